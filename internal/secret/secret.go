// Package secret resolves the account password: environment first, then
// the system keyring, then an interactive terminal prompt.
package secret

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/99designs/keyring"
	"golang.org/x/term"
)

const (
	serviceName = "reelpost"
	keyPrefix   = "password."

	// BackendAuto lets the keyring library pick the first available backend.
	BackendAuto = "auto"
)

var (
	// ErrNotFound means no password is stored for the account.
	ErrNotFound = errors.New("secret: no stored password")

	// ErrNoTerminal means a prompt was needed but stdin is not interactive.
	ErrNoTerminal = errors.New("secret: no terminal available for password prompt")

	// ErrEmpty is returned when the resolved password is empty.
	ErrEmpty = errors.New("secret: empty password")
)

// Store keeps account passwords in a keyring.
type Store struct {
	kr keyring.Keyring
}

// Open opens the system keyring. backend is a keyring backend name or
// BackendAuto. File-based backends live under dir and are unlocked with
// prompt.
func Open(backend, dir string, prompt keyring.PromptFunc) (*Store, error) {
	cfg := keyring.Config{
		ServiceName:              serviceName,
		KeychainTrustApplication: true,
		KeyCtlScope:              "user",
		FileDir:                  filepath.Join(dir, "keyring"),
		FilePasswordFunc:         prompt,
		KeychainPasswordFunc:     prompt,
	}

	if backend != "" && backend != BackendAuto {
		cfg.AllowedBackends = []keyring.BackendType{keyring.BackendType(backend)}
	}

	kr, err := keyring.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("secret: opening keyring: %w", err)
	}

	return New(kr), nil
}

// New wraps an already opened keyring.
func New(kr keyring.Keyring) *Store {
	return &Store{kr: kr}
}

// Password returns the stored password for account.
func (s *Store) Password(account string) (string, error) {
	item, err := s.kr.Get(keyPrefix + account)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return "", ErrNotFound
	}

	if err != nil {
		return "", fmt.Errorf("secret: reading password for %s: %w", account, err)
	}

	return string(item.Data), nil
}

// SetPassword stores password for account, replacing any previous value.
func (s *Store) SetPassword(account, password string) error {
	if err := s.kr.Set(keyring.Item{
		Key:         keyPrefix + account,
		Data:        []byte(password),
		Label:       "reelpost password for " + account,
		Description: "account password",
	}); err != nil {
		return fmt.Errorf("secret: storing password for %s: %w", account, err)
	}

	return nil
}

// DeletePassword removes the stored password. A missing entry is not an
// error.
func (s *Store) DeletePassword(account string) error {
	err := s.kr.Remove(keyPrefix + account)
	if err == nil || errors.Is(err, keyring.ErrKeyNotFound) || errors.Is(err, os.ErrNotExist) {
		return nil
	}

	return fmt.Errorf("secret: removing password for %s: %w", account, err)
}

// Resolver finds the password for a login. Its Secret method satisfies
// session.SecretFunc, so a prompt only happens when a login is needed.
type Resolver struct {
	// Env is the password from the environment, if any.
	Env string

	// Store is consulted after Env. Nil disables the keyring.
	Store *Store

	// Prompt asks the user. Nil disables prompting.
	Prompt keyring.PromptFunc

	Logger *slog.Logger
}

// Secret returns the password for account.
func (r *Resolver) Secret(_ context.Context, account string) (string, error) {
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if r.Env != "" {
		logger.Debug("using password from environment")
		return r.Env, nil
	}

	if r.Store != nil {
		pw, err := r.Store.Password(account)
		switch {
		case err == nil && pw != "":
			logger.Debug("using password from keyring", slog.String("account", account))
			return pw, nil
		case err != nil && !errors.Is(err, ErrNotFound):
			logger.Warn("keyring lookup failed", slog.String("error", err.Error()))
		}
	}

	if r.Prompt == nil {
		return "", fmt.Errorf("%w: set REELPOST_PASSWORD or store one with 'login --save-password'", ErrNotFound)
	}

	pw, err := r.Prompt("Password for " + account)
	if err != nil {
		return "", err
	}

	if pw == "" {
		return "", ErrEmpty
	}

	return pw, nil
}

// TerminalPrompt reads a password without echo. The prompt goes to
// whichever of stderr or stdout is a terminal.
func TerminalPrompt(prompt string) (string, error) {
	var w io.Writer

	switch {
	case term.IsTerminal(int(os.Stderr.Fd())):
		w = os.Stderr
	case term.IsTerminal(int(os.Stdout.Fd())):
		w = os.Stdout
	default:
		return "", ErrNoTerminal
	}

	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return "", ErrNoTerminal
	}

	fmt.Fprintf(w, "%s: ", prompt)

	b, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(w)

	if err != nil {
		return "", fmt.Errorf("secret: reading password: %w", err)
	}

	return string(b), nil
}
