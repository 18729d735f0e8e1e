package testsupport

import (
	"path/filepath"
	"testing"

	"recital/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t   testing.TB
	cfg *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "content")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Server.APIBind = "127.0.0.1:0"
	cfgVal.Finalizer.PollInterval = 1

	builder := &configBuilder{t: t, cfg: &cfgVal}
	for _, opt := range opts {
		opt(builder)
	}
	return builder.cfg
}

// WithRelayURL points email notifications at a test relay endpoint.
func WithRelayURL(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Email.RelayURL = url
		b.cfg.Email.FromAddress = "recitald@example.com"
	}
}

// WithTokenTTLHours overrides the access token lifetime.
func WithTokenTTLHours(hours int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Auth.TokenTTLHours = hours
	}
}
