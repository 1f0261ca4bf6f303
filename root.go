package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/tonimelisma/reelpost/internal/config"
)

// version is set at build time via ldflags.
var version = "dev"

// skipConfigAnnotation marks commands that must run even when the config
// file is missing or invalid. PersistentPreRunE leaves CLIContext.Cfg nil
// for them.
const skipConfigAnnotation = "reelpost/skip-config"

// CLIFlags holds the parsed global flags.
type CLIFlags struct {
	ConfigPath string
	Account    string
	JSON       bool
	Verbose    bool
	Debug      bool
	Quiet      bool
}

// CLIContext is everything a command needs from the root: flags, the
// resolved configuration and a logger. Built once in PersistentPreRunE and
// carried on cmd.Context().
type CLIContext struct {
	Flags  CLIFlags
	Cfg    *config.Config
	Logger *slog.Logger
}

type cliContextKey struct{}

func withCLIContext(ctx context.Context, cc *CLIContext) context.Context {
	return context.WithValue(ctx, cliContextKey{}, cc)
}

// mustCLIContext returns the CLIContext installed by the root command. A
// missing context is a programming error.
func mustCLIContext(ctx context.Context) *CLIContext {
	cc, ok := ctx.Value(cliContextKey{}).(*CLIContext)
	if !ok || cc == nil {
		panic("reelpost: command run without CLIContext")
	}

	return cc
}

// configPath is the config file path after --config and REELPOST_CONFIG.
func (cc *CLIContext) configPath() string {
	return config.ConfigPath(config.ReadEnvOverrides(), config.CLIOverrides{ConfigPath: cc.Flags.ConfigPath})
}

// newRootCmd builds the root command with all subcommands registered.
func newRootCmd() *cobra.Command {
	flags := &CLIFlags{}

	cmd := &cobra.Command{
		Use:     "reelpost",
		Short:   "Post photos and videos with generated captions",
		Long:    "Publish media to your account from the command line, reusing a cached login session.",
		Version: version,
		// Errors are printed by main.
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cc := &CLIContext{Flags: *flags}

			if cmd.Annotations[skipConfigAnnotation] == "" {
				cfg, err := loadConfig(cc.Flags)
				if err != nil {
					return err
				}

				cc.Cfg = cfg
			}

			cc.Logger = buildLogger(cc.Cfg, cc.Flags, os.Stderr)

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			cmd.SetContext(withCLIContext(ctx, cc))

			return nil
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&flags.ConfigPath, "config", "", "config file path")
	pf.StringVar(&flags.Account, "account", "", "account username (overrides config)")
	pf.BoolVar(&flags.JSON, "json", false, "output in JSON format")
	pf.BoolVarP(&flags.Verbose, "verbose", "v", false, "show informational log output")
	pf.BoolVar(&flags.Debug, "debug", false, "show debug log output")
	pf.BoolVarP(&flags.Quiet, "quiet", "q", false, "suppress informational output")
	cmd.MarkFlagsMutuallyExclusive("verbose", "debug", "quiet")

	cmd.AddCommand(newLoginCmd())
	cmd.AddCommand(newLogoutCmd())
	cmd.AddCommand(newWhoamiCmd())
	cmd.AddCommand(newPostCmd())
	cmd.AddCommand(newCaptionCmd())
	cmd.AddCommand(newFetchCmd())
	cmd.AddCommand(newHistoryCmd())
	cmd.AddCommand(newConfigCmd())

	return cmd
}

// loadConfig resolves the effective configuration from the override chain.
func loadConfig(flags CLIFlags) (*config.Config, error) {
	cli := config.CLIOverrides{
		ConfigPath: flags.ConfigPath,
		Account:    flags.Account,
	}

	cfg, err := config.Resolve(config.ReadEnvOverrides(), cli)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	return cfg, nil
}

// buildLogger creates the process logger. The config log_level is the
// baseline; --verbose, --debug and --quiet override it. log_format "auto"
// picks text on a terminal and JSON otherwise.
func buildLogger(cfg *config.Config, flags CLIFlags, w io.Writer) *slog.Logger {
	level := slog.LevelWarn
	format := "auto"

	if cfg != nil {
		switch cfg.LogLevel {
		case "debug":
			level = slog.LevelDebug
		case "info":
			level = slog.LevelInfo
		case "error":
			level = slog.LevelError
		}

		if cfg.LogFormat != "" {
			format = cfg.LogFormat
		}
	}

	switch {
	case flags.Debug:
		level = slog.LevelDebug
	case flags.Verbose:
		level = slog.LevelInfo
	case flags.Quiet:
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}

	if format == "json" || (format == "auto" && !isTerminal(w)) {
		return slog.New(slog.NewJSONHandler(w, opts))
	}

	return slog.New(slog.NewTextHandler(w, opts))
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}

	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// newHTTPClient returns the client shared by the account and caption
// services. There is no overall timeout because uploads can be large; the
// connect and response-header phases are bounded instead.
func newHTTPClient(cfg *config.Config) *http.Client {
	connect := cfg.ConnectTimeoutDuration()

	dialer := &net.Dialer{Timeout: connect, KeepAlive: 30 * time.Second}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = dialer.DialContext
	transport.TLSHandshakeTimeout = connect
	transport.ResponseHeaderTimeout = cfg.DataTimeoutDuration()

	return &http.Client{Transport: transport}
}

// exitOnError prints a user-friendly error message to stderr and exits.
func exitOnError(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
