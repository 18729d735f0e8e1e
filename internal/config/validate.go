package config

import (
	"fmt"
	"net"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		return fmt.Errorf("config: paths.data_dir is required")
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		return fmt.Errorf("config: paths.log_dir is required")
	}
	if c.Server.APIBind != "" {
		if _, _, err := net.SplitHostPort(c.Server.APIBind); err != nil {
			return fmt.Errorf("config: server.api_bind %q is not host:port: %w", c.Server.APIBind, err)
		}
	}
	if c.Auth.TokenTTLHours <= 0 {
		return fmt.Errorf("config: auth.token_ttl_hours must be positive")
	}
	if c.Finalizer.PollInterval <= 0 {
		return fmt.Errorf("config: finalizer.poll_interval must be positive")
	}
	if c.Finalizer.JobTimeout <= 0 {
		return fmt.Errorf("config: finalizer.job_timeout must be positive")
	}
	if c.Email.RelayURL != "" && c.Email.FromAddress == "" {
		return fmt.Errorf("config: email.from_address is required when email.relay_url is set")
	}
	return nil
}
