package config

const (
	defaultDataDir               = "~/.local/share/recitald/content"
	defaultLogDir                = "~/.local/share/recitald/logs"
	defaultAPIBind               = "127.0.0.1:7301"
	defaultTokenTTLHours         = 24 * 30
	defaultFinalizerPollInterval = 10
	defaultFinalizerJobTimeout   = 120
	defaultEmailRequestTimeout   = 10
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Server: Server{
			APIBind: defaultAPIBind,
		},
		Auth: Auth{
			TokenTTLHours: defaultTokenTTLHours,
		},
		Finalizer: Finalizer{
			PollInterval: defaultFinalizerPollInterval,
			JobTimeout:   defaultFinalizerJobTimeout,
		},
		Email: Email{
			RequestTimeout: defaultEmailRequestTimeout,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
