package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/szaher/voicebridge/internal/config"
	"github.com/szaher/voicebridge/internal/runtime"
	"github.com/szaher/voicebridge/internal/telemetry"
)

func newServeCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the Vonage answer and event webhooks",
		Long:  "Runs the webhook server until SIGINT or SIGTERM, then drains in-flight calls and exits.",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := configPath()
			cfg, err := config.Load(path)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
			}

			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			ctx = telemetry.WithCorrelationID(ctx, correlationID)
			logger := serveLogger(ctx, cfg, os.Stderr)

			rt, err := runtime.New(ctx, cfg, runtime.Options{
				Logger:     logger,
				ConfigPath: path,
				Version:    version,
			})
			if err != nil {
				return err
			}

			errCh := make(chan error, 1)
			go func() {
				errCh <- rt.Start(ctx)
			}()

			select {
			case err := <-errCh:
				if err != nil {
					_ = rt.Shutdown(context.Background())
					return fmt.Errorf("webhook server: %w", err)
				}
				return nil
			case <-ctx.Done():
			}

			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer shutdownCancel()
			if err := rt.Shutdown(shutdownCtx); err != nil {
				return err
			}
			return <-errCh
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "HTTP server port (overrides config and $PORT)")

	return cmd
}

// serveLogger builds the base logger for the server and records the process
// correlation ID on the startup line only. Request lines carry their own.
func serveLogger(ctx context.Context, cfg *config.Config, w io.Writer) *slog.Logger {
	logger := newLogger(cfg, w)
	logger.Info("voicebridge starting",
		"version", version,
		"correlation_id", telemetry.CorrelationID(ctx),
		"addr", cfg.Addr(),
		"session_backend", cfg.Session.Backend,
	)
	return logger
}
