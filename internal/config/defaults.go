package config

import (
	"github.com/tonimelisma/reelpost/internal/caption"
	"github.com/tonimelisma/reelpost/internal/media"
)

// Default values for configuration options.
const (
	defaultAPIBaseURL     = "https://i.instagram.com"
	defaultConnectTimeout = "10s"
	defaultDataTimeout    = "60s"
	defaultLogLevel       = "warn"
	defaultLogFormat      = "auto"
	defaultKeyringBackend = "auto"
	sessionFileName       = "session.json"
	historyFileName       = "history.db"
)

// DefaultConfig returns a Config populated with all default values. It is
// the decode target for TOML so unset keys keep their defaults.
func DefaultConfig() *Config {
	return &Config{
		NetworkConfig: NetworkConfig{
			APIBaseURL:     defaultAPIBaseURL,
			ConnectTimeout: defaultConnectTimeout,
			DataTimeout:    defaultDataTimeout,
		},
		CaptionConfig: CaptionConfig{
			CaptionModel:  caption.DefaultModel,
			CaptionPrompt: caption.DefaultPrompt,
		},
		FetchConfig: FetchConfig{
			FetchCommand: media.DefaultFetchCommand,
		},
		LoggingConfig: LoggingConfig{
			LogLevel:  defaultLogLevel,
			LogFormat: defaultLogFormat,
		},
		SecretsConfig: SecretsConfig{
			UseKeyring:     true,
			KeyringBackend: defaultKeyringBackend,
		},
	}
}
