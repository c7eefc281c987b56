package telemetry

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/oklog/ulid/v2"
)

type contextKey string

const correlationIDKey contextKey = "correlation_id"

// NewLogger creates a structured JSON logger. Each wrap function decorates
// the handler, outermost last.
func NewLogger(w io.Writer, level slog.Level, wrap ...func(slog.Handler) slog.Handler) *slog.Logger {
	if w == nil {
		w = os.Stdout
	}
	var handler slog.Handler = slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	})
	for _, fn := range wrap {
		handler = fn(handler)
	}
	return slog.New(handler)
}

// ParseLevel maps debug, info, warn and error to a slog level. Unknown
// values fall back to info.
func ParseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo
	}
	return level
}

// NewCorrelationID returns a new time-ordered identifier.
func NewCorrelationID() string {
	return ulid.Make().String()
}

// WithCorrelationID adds a correlation ID to the context.
// If id is empty, a new ULID is generated.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	if id == "" {
		id = NewCorrelationID()
	}
	return context.WithValue(ctx, correlationIDKey, id)
}

// CorrelationID retrieves the correlation ID from context.
func CorrelationID(ctx context.Context) string {
	if id, ok := ctx.Value(correlationIDKey).(string); ok {
		return id
	}
	return ""
}

// RequestLogger returns a logger with request-scoped fields.
func RequestLogger(logger *slog.Logger, ctx context.Context, conversationID string) *slog.Logger {
	attrs := []any{
		slog.String("conversation_uuid", conversationID),
	}
	if id := CorrelationID(ctx); id != "" {
		attrs = append(attrs, slog.String("correlation_id", id))
	}
	return logger.With(attrs...)
}
