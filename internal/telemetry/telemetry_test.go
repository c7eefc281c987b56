package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	promtest "github.com/prometheus/client_golang/prometheus/testutil"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":  slog.LevelDebug,
		"INFO":   slog.LevelInfo,
		"warn":   slog.LevelWarn,
		"error":  slog.LevelError,
		"":       slog.LevelInfo,
		"chatty": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestCorrelationID(t *testing.T) {
	ctx := WithCorrelationID(context.Background(), "req-123")
	if got := CorrelationID(ctx); got != "req-123" {
		t.Errorf("CorrelationID = %q, want %q", got, "req-123")
	}

	generated := CorrelationID(WithCorrelationID(context.Background(), ""))
	if len(generated) != 26 {
		t.Errorf("generated correlation ID %q has length %d, want a 26-char ULID", generated, len(generated))
	}

	if got := CorrelationID(context.Background()); got != "" {
		t.Errorf("CorrelationID on empty context = %q, want empty", got)
	}
}

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, slog.LevelInfo)
	ctx := WithCorrelationID(context.Background(), "req-1")

	RequestLogger(logger, ctx, "CON-1").Info("turn")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if entry["conversation_uuid"] != "CON-1" {
		t.Errorf("conversation_uuid = %v, want CON-1", entry["conversation_uuid"])
	}
	if entry["correlation_id"] != "req-1" {
		t.Errorf("correlation_id = %v, want req-1", entry["correlation_id"])
	}
}

func TestNewLoggerWrap(t *testing.T) {
	var wrapped bool
	logger := NewLogger(io.Discard, slog.LevelInfo, func(h slog.Handler) slog.Handler {
		wrapped = true
		return h
	})
	logger.Info("hello")
	if !wrapped {
		t.Error("wrap function was not applied")
	}
}

func TestMetrics(t *testing.T) {
	m := NewMetrics()

	m.RecordTurn("continue")
	m.RecordTurn("continue")
	m.RecordTurn("hangup")
	m.ObserveEngineCall(120*time.Millisecond, nil)
	m.ObserveEngineCall(3*time.Second, errors.New("timeout"))
	m.RecordCallEvent("completed")
	m.RecordCallEvent("")
	m.RecordRegistryError("get")

	if got := promtest.ToFloat64(m.turnsTotal.WithLabelValues("continue")); got != 2 {
		t.Errorf("turns_total{continue} = %v, want 2", got)
	}
	if got := promtest.ToFloat64(m.turnsTotal.WithLabelValues("hangup")); got != 1 {
		t.Errorf("turns_total{hangup} = %v, want 1", got)
	}
	if got := promtest.ToFloat64(m.engineErrors); got != 1 {
		t.Errorf("engine_errors_total = %v, want 1", got)
	}
	if got := promtest.ToFloat64(m.callEventsTotal.WithLabelValues("unknown")); got != 1 {
		t.Errorf("call_events_total{unknown} = %v, want 1", got)
	}
	if got := promtest.ToFloat64(m.registryErrors.WithLabelValues("get")); got != 1 {
		t.Errorf("session_registry_errors_total{get} = %v, want 1", got)
	}

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body := rec.Body.String()
	for _, want := range []string{
		`voicebridge_turns_total{outcome="continue"} 2`,
		`voicebridge_engine_request_duration_seconds_count 2`,
		`voicebridge_call_events_total{status="completed"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}
