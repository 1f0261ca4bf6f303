// Package config implements TOML configuration loading, validation, and
// platform-specific path resolution for reelpost. Values are layered:
// defaults -> config file -> environment -> CLI flags.
package config

import "time"

// Config is the configuration parsed from a TOML file. All keys live at the
// top level; the embedded structs only group related fields.
type Config struct {
	Account     string `toml:"account"`
	SessionFile string `toml:"session_file"`
	HistoryFile string `toml:"history_file"`

	NetworkConfig
	CaptionConfig
	FetchConfig
	LoggingConfig
	SecretsConfig

	// Path is the file the config was read from. Empty when defaults were
	// used because no file exists.
	Path string `toml:"-"`
}

// NetworkConfig controls the account-service HTTP client.
type NetworkConfig struct {
	APIBaseURL     string `toml:"api_base_url"`
	UserAgent      string `toml:"user_agent"`
	ConnectTimeout string `toml:"connect_timeout"`
	DataTimeout    string `toml:"data_timeout"`
}

// CaptionConfig controls generated captions.
type CaptionConfig struct {
	GeminiAPIKey  string `toml:"gemini_api_key"`
	CaptionModel  string `toml:"caption_model"`
	CaptionPrompt string `toml:"caption_prompt"`
}

// FetchConfig holds the external media download command template.
type FetchConfig struct {
	FetchCommand string `toml:"fetch_command"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"`
}

// SecretsConfig controls where the account password may be stored.
type SecretsConfig struct {
	UseKeyring     bool   `toml:"use_keyring"`
	KeyringBackend string `toml:"keyring_backend"`
}

// CLIOverrides holds values from CLI flags. Empty strings mean "not given".
type CLIOverrides struct {
	ConfigPath string // --config
	Account    string // --account
}

// ConnectTimeoutDuration returns connect_timeout parsed. Validation has
// already rejected bad values, so a parse failure yields the default.
func (n *NetworkConfig) ConnectTimeoutDuration() time.Duration {
	return parseDurationOr(n.ConnectTimeout, defaultConnectTimeout)
}

// DataTimeoutDuration returns data_timeout parsed.
func (n *NetworkConfig) DataTimeoutDuration() time.Duration {
	return parseDurationOr(n.DataTimeout, defaultDataTimeout)
}

func parseDurationOr(s, fallback string) time.Duration {
	if d, err := time.ParseDuration(s); err == nil {
		return d
	}

	d, _ := time.ParseDuration(fallback)

	return d
}
