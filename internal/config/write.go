package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
)

// configFilePermissions is the mode for config files. The file may hold an
// API key, so it is owner-only.
const configFilePermissions = 0o600

// configDirPermissions is the mode for the config directory.
const configDirPermissions = 0o700

// configTemplate is written when SetKey creates a new config file. Every
// option is listed commented out so users can discover them.
const configTemplate = `# reelpost configuration

# Account used when --account is not given.
# account = ""

# Where the login session is cached (default: data dir/session.json)
# session_file = ""

# caption_model = "gemini-2.0-flash-001"
# gemini_api_key = ""

# Command used by 'reelpost fetch'. {query}, {output} and {output_stem}
# are substituted per argument.
# fetch_command = ""

# log_level = "warn"
# log_format = "auto"

# use_keyring = true
# keyring_backend = "auto"
`

// SetKey sets a top-level key in the config file at path, creating the file
// from the template when missing. Other lines, comments included, are
// preserved. Only known keys may be set; use_keyring takes a boolean.
func SetKey(path, key, value string) error {
	if !slices.Contains(knownKeys, key) {
		return fmt.Errorf("config: unknown key %q", key)
	}

	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("config: reading %s: %w", path, err)
	}

	if errors.Is(err, os.ErrNotExist) {
		data = []byte(configTemplate)
	}

	line := fmt.Sprintf("%s = %q", key, value)

	if key == "use_keyring" {
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("config: %s must be true or false, got %q", key, value)
		}

		line = fmt.Sprintf("%s = %t", key, b)
	}

	lines := strings.Split(string(data), "\n")
	replaced := false

	for i, l := range lines {
		if keyOfLine(l) == key {
			lines[i] = line
			replaced = true

			break
		}
	}

	if !replaced {
		if lines[len(lines)-1] == "" {
			lines = lines[:len(lines)-1]
		}

		lines = append(lines, line, "")
	}

	return atomicWriteFile(path, []byte(strings.Join(lines, "\n")))
}

// keyOfLine returns the key assigned on an uncommented "key = value" line,
// or "" for anything else.
func keyOfLine(l string) string {
	l = strings.TrimSpace(l)
	if l == "" || strings.HasPrefix(l, "#") || strings.HasPrefix(l, "[") {
		return ""
	}

	k, _, ok := strings.Cut(l, "=")
	if !ok {
		return ""
	}

	return strings.TrimSpace(k)
}

// atomicWriteFile writes data to a temporary file in the same directory as
// path, then renames it over path. Parent directories are created as needed.
func atomicWriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, configDirPermissions); err != nil {
		return fmt.Errorf("config: creating directory: %w", err)
	}

	f, err := os.CreateTemp(dir, ".config-*.tmp")
	if err != nil {
		return fmt.Errorf("config: creating temp file: %w", err)
	}

	tempPath := f.Name()

	succeeded := false
	defer func() {
		if !succeeded {
			os.Remove(tempPath)
		}
	}()

	if _, err := f.Write(data); err != nil {
		f.Close()

		return fmt.Errorf("config: writing temp file: %w", err)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("config: closing temp file: %w", err)
	}

	if err := os.Chmod(tempPath, configFilePermissions); err != nil {
		return fmt.Errorf("config: setting file permissions: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		return fmt.Errorf("config: renaming temp file: %w", err)
	}

	succeeded = true

	return nil
}
