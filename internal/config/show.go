package config

import (
	"fmt"
	"io"
)

// RenderEffective writes the resolved configuration as an annotated
// summary to w. Secrets are masked.
func RenderEffective(cfg *Config, w io.Writer) error {
	ew := &errWriter{w: w}

	source := cfg.Path
	if source == "" {
		source = "(defaults, no config file)"
	}

	ew.printf("# Effective configuration\n# source: %s\n\n", source)

	ew.printf("account        = %q\n", cfg.Account)
	ew.printf("session_file   = %q\n", cfg.SessionPath())
	ew.printf("history_file   = %q\n", cfg.HistoryPath())
	ew.printf("\n")

	ew.printf("# network\n")
	ew.printf("api_base_url    = %q\n", cfg.APIBaseURL)
	ew.printf("user_agent      = %q\n", cfg.UserAgent)
	ew.printf("connect_timeout = %q\n", cfg.ConnectTimeout)
	ew.printf("data_timeout    = %q\n", cfg.DataTimeout)
	ew.printf("\n")

	ew.printf("# caption\n")
	ew.printf("gemini_api_key  = %q\n", mask(cfg.GeminiAPIKey))
	ew.printf("caption_model   = %q\n", cfg.CaptionModel)
	ew.printf("caption_prompt  = %q\n", cfg.CaptionPrompt)
	ew.printf("\n")

	ew.printf("# fetch\n")
	ew.printf("fetch_command   = %q\n", cfg.FetchCommand)
	ew.printf("\n")

	ew.printf("# logging\n")
	ew.printf("log_level       = %q\n", cfg.LogLevel)
	ew.printf("log_format      = %q\n", cfg.LogFormat)
	ew.printf("\n")

	ew.printf("# secrets\n")
	ew.printf("use_keyring     = %t\n", cfg.UseKeyring)
	ew.printf("keyring_backend = %q\n", cfg.KeyringBackend)

	return ew.err
}

// Effective returns the resolved configuration keyed by config file names,
// with paths expanded and secrets masked.
func Effective(cfg *Config) map[string]any {
	return map[string]any{
		"config_file":     cfg.Path,
		"account":         cfg.Account,
		"session_file":    cfg.SessionPath(),
		"history_file":    cfg.HistoryPath(),
		"api_base_url":    cfg.APIBaseURL,
		"user_agent":      cfg.UserAgent,
		"connect_timeout": cfg.ConnectTimeout,
		"data_timeout":    cfg.DataTimeout,
		"gemini_api_key":  mask(cfg.GeminiAPIKey),
		"caption_model":   cfg.CaptionModel,
		"caption_prompt":  cfg.CaptionPrompt,
		"fetch_command":   cfg.FetchCommand,
		"log_level":       cfg.LogLevel,
		"log_format":      cfg.LogFormat,
		"use_keyring":     cfg.UseKeyring,
		"keyring_backend": cfg.KeyringBackend,
	}
}

// mask hides all but the last four characters of a secret.
func mask(secret string) string {
	const visible = 4

	if secret == "" {
		return ""
	}

	if len(secret) <= visible {
		return "****"
	}

	return "****" + secret[len(secret)-visible:]
}

// errWriter wraps an io.Writer and captures the first write error.
// Subsequent writes after an error are no-ops.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...any) {
	if ew.err != nil {
		return
	}

	_, ew.err = fmt.Fprintf(ew.w, format, args...)
}
