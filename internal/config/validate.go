package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/shlex"
)

// Validation range constants.
const (
	minConnectTimeout = 1 * time.Second
	minDataTimeout    = 5 * time.Second
)

// Validate checks all configuration values and returns all errors found,
// so a user can fix every problem in one pass.
func Validate(cfg *Config) error {
	var errs []error

	errs = append(errs, validateNetwork(&cfg.NetworkConfig)...)
	errs = append(errs, validateCaption(&cfg.CaptionConfig)...)
	errs = append(errs, validateFetch(&cfg.FetchConfig)...)
	errs = append(errs, validateLogging(&cfg.LoggingConfig)...)
	errs = append(errs, validateSecrets(&cfg.SecretsConfig)...)

	if strings.ContainsAny(cfg.Account, " \t\n") {
		errs = append(errs, fmt.Errorf("account: must not contain whitespace, got %q", cfg.Account))
	}

	return errors.Join(errs...)
}

func validateNetwork(n *NetworkConfig) []error {
	var errs []error

	u, err := url.Parse(n.APIBaseURL)
	if err != nil || (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
		errs = append(errs, fmt.Errorf("api_base_url: must be an http(s) URL, got %q", n.APIBaseURL))
	}

	errs = append(errs, validateDurationMin("connect_timeout", n.ConnectTimeout, minConnectTimeout)...)
	errs = append(errs, validateDurationMin("data_timeout", n.DataTimeout, minDataTimeout)...)

	return errs
}

func validateDurationMin(field, value string, minimum time.Duration) []error {
	d, err := time.ParseDuration(value)
	if err != nil {
		return []error{fmt.Errorf("%s: invalid duration %q: %w", field, value, err)}
	}

	if d < minimum {
		return []error{fmt.Errorf("%s: must be at least %s, got %s", field, minimum, d)}
	}

	return nil
}

func validateCaption(c *CaptionConfig) []error {
	var errs []error

	if strings.TrimSpace(c.CaptionModel) == "" {
		errs = append(errs, errors.New("caption_model: must not be empty"))
	}

	if strings.TrimSpace(c.CaptionPrompt) == "" {
		errs = append(errs, errors.New("caption_prompt: must not be empty"))
	}

	return errs
}

func validateFetch(f *FetchConfig) []error {
	args, err := shlex.Split(f.FetchCommand)
	if err != nil {
		return []error{fmt.Errorf("fetch_command: %w", err)}
	}

	if len(args) == 0 {
		return []error{errors.New("fetch_command: must not be empty")}
	}

	if !strings.Contains(f.FetchCommand, "{output}") && !strings.Contains(f.FetchCommand, "{output_stem}") {
		return []error{errors.New("fetch_command: must reference {output} or {output_stem}")}
	}

	return nil
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validLogFormats = map[string]bool{
	"auto": true,
	"text": true,
	"json": true,
}

func validateLogging(l *LoggingConfig) []error {
	var errs []error

	if !validLogLevels[l.LogLevel] {
		errs = append(errs, fmt.Errorf("log_level: must be one of debug, info, warn, error; got %q", l.LogLevel))
	}

	if !validLogFormats[l.LogFormat] {
		errs = append(errs, fmt.Errorf("log_format: must be one of auto, text, json; got %q", l.LogFormat))
	}

	return errs
}

// validKeyringBackends mirrors the backends the keyring library can open
// from a CLI. "auto" lets the library pick.
var validKeyringBackends = map[string]bool{
	"auto":           true,
	"keychain":       true,
	"secret-service": true,
	"kwallet":        true,
	"wincred":        true,
	"pass":           true,
	"file":           true,
	"keyctl":         true,
}

func validateSecrets(s *SecretsConfig) []error {
	if !validKeyringBackends[s.KeyringBackend] {
		return []error{fmt.Errorf("keyring_backend: unknown backend %q", s.KeyringBackend)}
	}

	return nil
}
