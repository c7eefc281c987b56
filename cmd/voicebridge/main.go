// Package main is the entry point for the voicebridge service.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/szaher/voicebridge/internal/config"
	"github.com/szaher/voicebridge/internal/secrets"
	"github.com/szaher/voicebridge/internal/telemetry"
)

// Version information set at build time.
var version = "0.1.0"

// Global flags.
var (
	configFile    string
	verbose       bool
	correlationID string
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "voicebridge",
		Short: "Bridge Vonage voice calls to a Teneo dialogue engine",
		Long: `voicebridge answers Vonage voice webhooks, forwards each caller
utterance to a Teneo engine and replies with NCCO call-control actions
that speak the answer and listen again, transfer the call or hang up.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&configFile, "config", "", "Path to YAML config file (default $"+config.EnvConfigFile+")")
	root.PersistentFlags().BoolVar(&verbose, "verbose", false, "Enable debug logging")
	root.PersistentFlags().StringVar(&correlationID, "correlation-id", "", "Set explicit correlation ID")

	root.AddCommand(newVersionCmd())
	root.AddCommand(newServeCmd())
	root.AddCommand(newSayCmd())

	return root
}

// configPath is the --config flag, falling back to the environment.
func configPath() string {
	if configFile != "" {
		return configFile
	}
	return os.Getenv(config.EnvConfigFile)
}

// newLogger builds the JSON logger with the configured secrets redacted.
func newLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	level := telemetry.ParseLevel(cfg.Log.Level)
	if verbose {
		level = slog.LevelDebug
	}
	return telemetry.NewLogger(w, level, func(h slog.Handler) slog.Handler {
		r := secrets.NewRedactHandler(h)
		r.Add(cfg.Secrets...)
		return r
	})
}

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
