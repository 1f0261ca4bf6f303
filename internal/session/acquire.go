package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// Sentinel errors. A missing or corrupt cache is not an error: Load simply
// returns nil.
var (
	// ErrExpired is wrapped by Prober implementations when the remote service
	// rejects a bundle.
	ErrExpired = errors.New("session: expired")

	// ErrValidationFailed is returned by Validate when the remote service no
	// longer accepts the bundle.
	ErrValidationFailed = errors.New("session: validation failed")

	// ErrLoginFailed wraps the account-service error when a fresh login does
	// not succeed. It is fatal to the current operation.
	ErrLoginFailed = errors.New("session: login failed")
)

// Prober asks the remote service whether a bundle is still accepted. It
// returns nil when valid and an error wrapping ErrExpired when rejected. Any
// other error means validity could not be determined.
type Prober interface {
	Probe(ctx context.Context, b *Bundle) error
}

// Authenticator is the account-service collaborator used by Acquire.
type Authenticator interface {
	Prober
	Login(ctx context.Context, account, secret string) (*Bundle, error)
}

// SecretFunc supplies the login secret for account. It is only called when a
// fresh login is actually needed, so interactive prompts stay lazy.
type SecretFunc func(ctx context.Context, account string) (string, error)

// Result describes how Acquire obtained its bundle.
type Result struct {
	Bundle *Bundle

	// Reused is true when the cached bundle passed validation.
	Reused bool

	// PersistErr is set when a freshly logged-in bundle could not be saved.
	// The bundle is still usable for the current run.
	PersistErr error
}

// Validate delegates to p. The cache has no expiry logic of its own.
func (s *Store) Validate(ctx context.Context, b *Bundle, p Prober) error {
	err := p.Probe(ctx, b)
	if err == nil {
		return nil
	}

	if errors.Is(err, ErrExpired) {
		return fmt.Errorf("%w: %w", ErrValidationFailed, err)
	}

	return fmt.Errorf("session: probing %s: %w", b.Account, err)
}

// Acquire returns a ready-to-use bundle for account.
//
// A cached bundle for the same account is validated and reused as-is. When
// the slot is empty, belongs to another account, or fails validation, exactly
// one login is attempted and the result overwrites the slot. An empty
// account accepts whatever account the cached bundle holds.
func (s *Store) Acquire(ctx context.Context, auth Authenticator, account string, secret SecretFunc) (*Result, error) {
	cached := s.Load()

	if cached != nil && account != "" && cached.Account != account {
		s.logger.Info("saved session belongs to another account, logging in",
			slog.String("cached_account", cached.Account),
			slog.String("account", account),
		)

		cached = nil
	}

	if cached != nil {
		err := s.Validate(ctx, cached, auth)
		if err == nil {
			s.logger.Info("reusing saved session", slog.String("account", cached.Account))
			return &Result{Bundle: cached, Reused: true}, nil
		}

		if !errors.Is(err, ErrValidationFailed) {
			return nil, err
		}

		s.logger.Warn("saved session rejected, logging in again",
			slog.String("account", cached.Account),
			slog.String("error", err.Error()),
		)

		if invErr := s.Invalidate(); invErr != nil {
			s.logger.Warn("failed to clear rejected session", slog.String("error", invErr.Error()))
		}

		if account == "" {
			account = cached.Account
		}
	}

	return s.login(ctx, auth, account, secret)
}

func (s *Store) login(ctx context.Context, auth Authenticator, account string, secret SecretFunc) (*Result, error) {
	if account == "" {
		return nil, fmt.Errorf("%w: no account configured", ErrLoginFailed)
	}

	pw, err := secret(ctx, account)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoginFailed, err)
	}

	s.logger.Info("logging in", slog.String("account", account))

	b, err := auth.Login(ctx, account, pw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoginFailed, err)
	}

	res := &Result{Bundle: b}

	if err := s.Save(b); err != nil {
		s.logger.Warn("could not persist session, continuing with in-memory session",
			slog.String("error", err.Error()),
		)

		res.PersistErr = err
	}

	return res, nil
}
