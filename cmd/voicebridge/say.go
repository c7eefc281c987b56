package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/szaher/voicebridge/internal/bridge"
	"github.com/szaher/voicebridge/internal/config"
	"github.com/szaher/voicebridge/internal/engine"
	"github.com/szaher/voicebridge/internal/telemetry"
)

func newSayCmd() *cobra.Command {
	var (
		sessionID string
		to        string
		end       bool
	)

	cmd := &cobra.Command{
		Use:   "say [text]",
		Short: "Send one utterance to the engine and print the rendered NCCO",
		Long:  "Sends text to the configured engine as a caller would, prints the reply and the call-control response the webhook would return.",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath())
			if err != nil {
				return err
			}
			logger := newLogger(cfg, os.Stderr)

			client, err := engine.New(&engine.Config{URL: cfg.Engine.URL, Timeout: cfg.Engine.Timeout})
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			ctx = telemetry.WithCorrelationID(ctx, correlationID)

			text := strings.Join(args, " ")
			reply, err := client.SendInput(ctx, sessionID, engine.Input{
				Text:    text,
				Channel: engine.ChannelVonageVoice,
			})
			if err != nil {
				return fmt.Errorf("engine request failed: %w", err)
			}
			logger.Debug("engine replied",
				"correlation_id", telemetry.CorrelationID(ctx),
				"engine_session", reply.SessionID,
			)

			out, outcome := bridge.NewRenderer(cfg.RenderSettings()).Render(reply, &bridge.Event{To: to})
			data, err := json.MarshalIndent(out, "", "  ")
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "engine: %s\n", reply.Output.Text)
			fmt.Fprintf(w, "session: %s\n", reply.SessionID)
			fmt.Fprintf(w, "outcome: %s\n", outcome)
			fmt.Fprintf(w, "%s\n", data)

			if end && reply.SessionID != "" {
				if err := client.Close(ctx, reply.SessionID); err != nil {
					return fmt.Errorf("end session: %w", err)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&sessionID, "session", "", "Engine session to continue")
	cmd.Flags().StringVar(&to, "to", "", "Called number, used as the caller ID of transfers")
	cmd.Flags().BoolVar(&end, "end", false, "End the engine session afterwards")

	return cmd
}
