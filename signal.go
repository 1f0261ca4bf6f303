package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

// shutdownContext returns a context canceled by the first SIGINT or SIGTERM.
// In-flight requests and the fetch command see the cancellation and stop; a
// second signal exits immediately.
func shutdownContext(parent context.Context, logger *slog.Logger) context.Context {
	ctx, cancel := context.WithCancel(parent)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigCh)

		select {
		case sig := <-sigCh:
			logger.Info("interrupted, canceling", slog.String("signal", sig.String()))
			cancel()
		case <-ctx.Done():
			return
		}

		select {
		case sig := <-sigCh:
			logger.Warn("second signal, exiting now", slog.String("signal", sig.String()))
			os.Exit(1)
		case <-parent.Done():
			return
		}
	}()

	return ctx
}
