package main

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/reelpost/internal/account"
	"github.com/tonimelisma/reelpost/internal/config"
	"github.com/tonimelisma/reelpost/internal/session"
)

func newLoginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and save the session",
		Long: `Log in to the account and cache the session for later commands.

A saved session that is still valid is reused unless --force is given. The
password is read from REELPOST_PASSWORD, the system keyring, or a prompt.`,
		Args: cobra.NoArgs,
		RunE: runLogin,
	}

	cmd.Flags().Bool("force", false, "discard any saved session and log in again")
	cmd.Flags().Bool("save-password", false, "store the password in the system keyring")

	return cmd
}

func newLogoutCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Remove the saved session",
		Args:  cobra.NoArgs,
		RunE:  runLogout,
	}

	cmd.Flags().Bool("forget-password", false, "also remove the password from the system keyring")

	return cmd
}

func newWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the account behind the saved session",
		Args:  cobra.NoArgs,
		RunE:  runWhoami,
	}
}

func runLogin(cmd *cobra.Command, _ []string) error {
	cc := mustCLIContext(cmd.Context())
	ctx := cmd.Context()
	force, _ := cmd.Flags().GetBool("force")
	savePassword, _ := cmd.Flags().GetBool("save-password")

	acct := cc.Cfg.Account
	if acct == "" {
		return errors.New("no account configured, pass --account or set account in the config file")
	}

	unlock, err := lockSession(cc.Cfg.SessionPath())
	if err != nil {
		return err
	}
	defer unlock()

	as := newAccountSession(cc)

	if savePassword && as.Keyring == nil {
		return errors.New("--save-password needs the system keyring, which is disabled or unavailable")
	}

	if force {
		if err := as.Store.Invalidate(); err != nil {
			return err
		}
	}

	res, err := as.Store.Acquire(ctx, as.Client, acct, as.secret)
	if err != nil {
		return err
	}

	if res.PersistErr != nil {
		return fmt.Errorf("logged in but could not save the session: %w", res.PersistErr)
	}

	if res.Reused {
		cc.Statusf("Already logged in as %s.\n", res.Bundle.Account)
	} else {
		cc.Logger.Info("login successful", slog.String("account", res.Bundle.Account))
		cc.Statusf("Logged in as %s.\n", res.Bundle.Account)
	}

	if savePassword {
		if as.password == "" {
			cc.Statusf("Password not saved: the existing session was reused. Use --force to log in again.\n")
		} else {
			if err := as.Keyring.SetPassword(acct, as.password); err != nil {
				return err
			}

			cc.Statusf("Password saved to keyring.\n")
		}
	}

	rememberAccount(cc, acct)

	return nil
}

// rememberAccount writes account to the config file when the file does not
// name one yet, so later commands work without --account. The login has
// already succeeded, so a failure is only reported.
func rememberAccount(cc *CLIContext, acct string) {
	path := cc.configPath()

	fileCfg, err := config.LoadOrDefault(path)
	if err != nil {
		cc.Logger.Warn("could not read config to save account",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)

		return
	}

	if fileCfg.Account != "" {
		return
	}

	if err := config.SetKey(path, "account", acct); err != nil {
		cc.Logger.Warn("could not save account to config",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)

		return
	}

	cc.Logger.Debug("account saved to config", slog.String("path", path))
}

func runLogout(cmd *cobra.Command, _ []string) error {
	cc := mustCLIContext(cmd.Context())
	forget, _ := cmd.Flags().GetBool("forget-password")

	unlock, err := lockSession(cc.Cfg.SessionPath())
	if err != nil {
		return err
	}
	defer unlock()

	as := newAccountSession(cc)

	acct := cc.Cfg.Account
	if b := as.Store.Load(); b != nil && acct == "" {
		acct = b.Account
	}

	if err := as.Store.Invalidate(); err != nil {
		return err
	}

	if forget && acct != "" {
		if as.Keyring == nil {
			return errors.New("--forget-password needs the system keyring, which is disabled or unavailable")
		}

		if err := as.Keyring.DeletePassword(acct); err != nil {
			return err
		}
	}

	cc.Logger.Info("logout successful", slog.String("account", acct))
	cc.Statusf("Logged out.\n")

	return nil
}

// whoamiOutput is the JSON schema for `whoami --json`.
type whoamiOutput struct {
	ID         int64  `json:"id"`
	Username   string `json:"username"`
	FullName   string `json:"full_name"`
	IsPrivate  bool   `json:"is_private"`
	IsVerified bool   `json:"is_verified"`
}

func runWhoami(cmd *cobra.Command, _ []string) error {
	cc := mustCLIContext(cmd.Context())
	ctx := cmd.Context()

	as := newAccountSession(cc)

	b, err := as.saved(cc.Cfg.Account)
	if err != nil {
		return err
	}

	user, err := as.Client.CurrentUser(ctx, b)
	if err != nil {
		if errors.Is(err, session.ErrExpired) {
			return fmt.Errorf("saved session has expired, run 'reelpost login': %w", err)
		}

		return err
	}

	return printWhoami(cmd, cc, user)
}

func printWhoami(cmd *cobra.Command, cc *CLIContext, user *account.User) error {
	w := cmd.OutOrStdout()

	if cc.Flags.JSON {
		return printJSON(w, whoamiOutput{
			ID:         user.ID,
			Username:   user.Username,
			FullName:   user.FullName,
			IsPrivate:  user.IsPrivate,
			IsVerified: user.IsVerified,
		})
	}

	fmt.Fprintf(w, "User: %s", user.Username)

	if user.FullName != "" {
		fmt.Fprintf(w, " (%s)", user.FullName)
	}

	fmt.Fprintf(w, "\nID:   %d\n", user.ID)

	if user.IsPrivate {
		fmt.Fprintln(w, "Private account")
	}

	return nil
}
