package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/tonimelisma/reelpost/internal/account"
	"github.com/tonimelisma/reelpost/internal/config"
	"github.com/tonimelisma/reelpost/internal/secret"
	"github.com/tonimelisma/reelpost/internal/session"
)

// errNotLoggedIn is returned by commands that need a saved session but do
// not log in on their own.
var errNotLoggedIn = errors.New("not logged in, run 'reelpost login' first")

// accountSession groups the account client, the session cache and the
// password sources for one command invocation.
type accountSession struct {
	Client  *account.Client
	Store   *session.Store
	Keyring *secret.Store // nil when the keyring is disabled or unavailable
	Secrets *secret.Resolver

	// password is the last secret handed to a login, kept so that
	// 'login --save-password' can store what actually worked.
	password string
}

// newAccountSession wires the account client and session cache from the
// resolved config. A keyring that cannot be opened is logged and skipped.
func newAccountSession(cc *CLIContext) *accountSession {
	cfg := cc.Cfg
	logger := cc.Logger

	as := &accountSession{
		Client: account.NewClient(cfg.APIBaseURL, newHTTPClient(cfg), cfg.UserAgent, logger),
		Store:  session.NewStore(cfg.SessionPath(), logger),
	}

	if cfg.UseKeyring {
		kr, err := secret.Open(cfg.KeyringBackend, config.DefaultDataDir(), secret.TerminalPrompt)
		if err != nil {
			logger.Warn("keyring unavailable", slog.String("error", err.Error()))
		} else {
			as.Keyring = kr
		}
	}

	as.Secrets = &secret.Resolver{
		Env:    os.Getenv(config.EnvPassword),
		Store:  as.Keyring,
		Prompt: secret.TerminalPrompt,
		Logger: logger,
	}

	return as
}

// secret is the session.SecretFunc handed to Acquire.
func (as *accountSession) secret(ctx context.Context, acct string) (string, error) {
	pw, err := as.Secrets.Secret(ctx, acct)
	if err != nil {
		return "", err
	}

	as.password = pw

	return pw, nil
}

// acquire returns a validated session for acct, logging in at most once.
func (as *accountSession) acquire(ctx context.Context, cc *CLIContext, acct string) (*session.Bundle, error) {
	res, err := as.Store.Acquire(ctx, as.Client, acct, as.secret)
	if err != nil {
		return nil, err
	}

	if res.PersistErr != nil {
		cc.Statusf("Warning: session could not be saved, you will be asked to log in next time: %v\n", res.PersistErr)
	}

	return res.Bundle, nil
}

// saved returns the cached bundle without contacting the service.
func (as *accountSession) saved(acct string) (*session.Bundle, error) {
	b := as.Store.Load()
	if b == nil {
		return nil, errNotLoggedIn
	}

	if acct != "" && b.Account != acct {
		return nil, fmt.Errorf("saved session is for %s, not %s: %w", b.Account, acct, errNotLoggedIn)
	}

	return b, nil
}
