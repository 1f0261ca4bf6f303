package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
)

// FilePerms restricts the session file to owner-only read/write. The file
// holds live cookies.
const FilePerms = 0o600

// DirPerms is used when creating the session directory.
const DirPerms = 0o700

// PersistError reports a failed Save. The previously stored bundle, if any,
// is left untouched.
type PersistError struct {
	Path string
	Err  error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("session: persisting %s: %v", e.Path, e.Err)
}

func (e *PersistError) Unwrap() error {
	return e.Err
}

// Store is the single-slot, file-backed session cache.
type Store struct {
	path   string
	logger *slog.Logger

	// createTemp opens the staging file for Save. Defaults to os.CreateTemp.
	// Tests override this to simulate an unwritable medium.
	createTemp func(dir, pattern string) (*os.File, error)
}

// NewStore returns a Store backed by the file at path.
func NewStore(path string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}

	return &Store{path: path, logger: logger, createTemp: os.CreateTemp}
}

// Path returns the location of the session file.
func (s *Store) Path() string {
	return s.path
}

// Load reads the persisted bundle. It returns nil when no usable bundle
// exists: a missing file, an unreadable file, undecodable JSON, a schema
// version mismatch, and a partially populated bundle all count as absent.
// Corrupt files are removed so the next login starts from a clean slot.
func (s *Store) Load() *Bundle {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		s.logger.Debug("no saved session", slog.String("path", s.path))
		return nil
	}

	if err != nil {
		s.logger.Warn("cannot read saved session, treating as absent",
			slog.String("path", s.path),
			slog.String("error", err.Error()),
		)

		return nil
	}

	var b Bundle
	if err := json.Unmarshal(data, &b); err != nil {
		s.discardCorrupt(fmt.Sprintf("decoding: %v", err))
		return nil
	}

	if b.Version != SchemaVersion {
		s.discardCorrupt(fmt.Sprintf("schema version %d, want %d", b.Version, SchemaVersion))
		return nil
	}

	if !b.complete() {
		s.discardCorrupt("incomplete bundle")
		return nil
	}

	s.logger.Debug("loaded saved session",
		slog.String("path", s.path),
		slog.String("account", b.Account),
		slog.Int("cookies", len(b.Cookies)),
	)

	return &b
}

// discardCorrupt removes an unusable session file. Removal failures are
// logged only; the slot is reported absent either way.
func (s *Store) discardCorrupt(reason string) {
	s.logger.Warn("corrupt session file, discarding",
		slog.String("path", s.path),
		slog.String("reason", reason),
	)

	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		s.logger.Warn("failed to remove corrupt session file",
			slog.String("path", s.path),
			slog.String("error", err.Error()),
		)
	}
}

// Save writes b to the slot atomically (write-to-temp + fsync + rename) with
// 0600 permissions. Readers observe either the previous bundle or b, never a
// partial write. Cookie and settings values are never logged.
func (s *Store) Save(b *Bundle) error {
	if !b.complete() {
		return &PersistError{Path: s.path, Err: errors.New("refusing to save incomplete bundle")}
	}

	data, err := json.Marshal(b)
	if err != nil {
		return &PersistError{Path: s.path, Err: fmt.Errorf("encoding: %w", err)}
	}

	if err := s.writeAtomic(data); err != nil {
		return &PersistError{Path: s.path, Err: err}
	}

	s.logger.Info("session saved",
		slog.String("path", s.path),
		slog.String("account", b.Account),
	)

	return nil
}

// Invalidate clears the slot. An already empty slot is not an error.
func (s *Store) Invalidate() error {
	err := os.Remove(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		s.logger.Debug("invalidate: no session file", slog.String("path", s.path))
		return nil
	}

	if err != nil {
		return fmt.Errorf("session: removing %s: %w", s.path, err)
	}

	s.logger.Info("session invalidated", slog.String("path", s.path))

	return nil
}

func (s *Store) writeAtomic(data []byte) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, DirPerms); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}

	// Same directory as the target so rename(2) stays on one filesystem.
	tmp, err := s.createTemp(dir, ".session-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}

	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = os.Remove(tmpPath)
		}
	}()

	if err := os.Chmod(tmpPath, FilePerms); err != nil {
		tmp.Close()
		return fmt.Errorf("setting permissions: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing: %w", err)
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing: %w", err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("renaming: %w", err)
	}

	success = true

	return nil
}
