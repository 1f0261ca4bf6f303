package config

import "os"

// Environment variable names for overrides.
const (
	EnvConfig       = "REELPOST_CONFIG"
	EnvAccount      = "REELPOST_ACCOUNT"
	EnvPassword     = "REELPOST_PASSWORD"
	EnvGeminiAPIKey = "GEMINI_API_KEY"
)

// EnvOverrides holds values derived from environment variables.
type EnvOverrides struct {
	ConfigPath   string // REELPOST_CONFIG
	Account      string // REELPOST_ACCOUNT
	GeminiAPIKey string // GEMINI_API_KEY
}

// ReadEnvOverrides reads environment variables and returns any overrides
// found. The password variable is read only by the login path, never here,
// so it never ends up in a Config.
func ReadEnvOverrides() EnvOverrides {
	return EnvOverrides{
		ConfigPath:   os.Getenv(EnvConfig),
		Account:      os.Getenv(EnvAccount),
		GeminiAPIKey: os.Getenv(EnvGeminiAPIKey),
	}
}
