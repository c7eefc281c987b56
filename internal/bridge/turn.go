package bridge

import (
	"context"
	"log/slog"
	"time"

	"github.com/szaher/voicebridge/internal/engine"
	"github.com/szaher/voicebridge/internal/ncco"
	"github.com/szaher/voicebridge/internal/session"
	"github.com/szaher/voicebridge/internal/telemetry"
)

// Engine is the dialogue engine as seen by the handler.
type Engine interface {
	SendInput(ctx context.Context, sessionID string, in engine.Input) (*engine.Reply, error)
	Close(ctx context.Context, sessionID string) error
}

// Handler runs conversation turns.
type Handler struct {
	engine   Engine
	sessions session.Registry
	renderer *Renderer
	metrics  *telemetry.Metrics
	logger   *slog.Logger
}

// Option configures the Handler.
type Option func(*Handler)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) { h.logger = logger }
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(h *Handler) { h.metrics = m }
}

// NewHandler creates a turn handler.
func NewHandler(eng Engine, sessions session.Registry, renderer *Renderer, opts ...Option) *Handler {
	h := &Handler{
		engine:   eng,
		sessions: sessions,
		renderer: renderer,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.metrics == nil {
		h.metrics = telemetry.NewMetrics()
	}
	return h
}

// Result is the outcome of one turn.
type Result struct {
	NCCO       ncco.NCCO
	Outcome    Outcome
	Transcript string
	SessionID  string
	// Err is set when the engine failed and NCCO holds the fallback response.
	Err error
}

// Turn forwards the event's transcript to the engine, remembers the engine
// session for the conversation and renders the reply.
func (h *Handler) Turn(ctx context.Context, ev *Event) *Result {
	log := telemetry.RequestLogger(h.logger, ctx, ev.ConversationUUID)

	sessionID, err := h.sessions.Get(ctx, ev.ConversationUUID)
	if err != nil {
		h.metrics.RecordRegistryError("get")
		log.Warn("session lookup failed, starting a new engine session", "error", err)
		sessionID = ""
	}

	transcript := ev.Transcript()
	log.Info("turn received", "user_input", transcript, "engine_session", sessionID)

	start := time.Now()
	reply, err := h.engine.SendInput(ctx, sessionID, engine.Input{
		Text:    transcript,
		Channel: engine.ChannelVonageVoice,
	})
	h.metrics.ObserveEngineCall(time.Since(start), err)
	if err != nil {
		log.Error("engine request failed", "error", err)
		h.metrics.RecordTurn(string(OutcomeFallback))
		return &Result{
			NCCO:       h.renderer.Fallback(),
			Outcome:    OutcomeFallback,
			Transcript: transcript,
			SessionID:  sessionID,
			Err:        err,
		}
	}

	if err := h.sessions.Set(ctx, ev.ConversationUUID, reply.SessionID); err != nil {
		h.metrics.RecordRegistryError("set")
		log.Warn("session store failed", "error", err)
	}

	out, outcome := h.renderer.Render(reply, ev)
	switch outcome {
	case OutcomeHangup:
		log.Info("engine instructs hangup")
	case OutcomeTransfer:
		log.Info("engine instructs transfer", "to_number", out[1].(ncco.Connect).Endpoint[0].Number)
	}
	log.Info("turn answered", "engine_output", reply.Output.Text, "outcome", outcome)
	h.metrics.RecordTurn(string(outcome))

	return &Result{
		NCCO:       out,
		Outcome:    outcome,
		Transcript: transcript,
		SessionID:  reply.SessionID,
	}
}

// CallStatus handles a call status callback. When a call completes the engine
// session is closed and the mapping forgotten; failures are only logged.
func (h *Handler) CallStatus(ctx context.Context, ev *CallEvent) {
	log := telemetry.RequestLogger(h.logger, ctx, ev.ConversationUUID)
	h.metrics.RecordCallEvent(ev.Status)
	log.Debug("call event", "status", ev.Status, "uuid", ev.UUID)

	if ev.Status != StatusCompleted || ev.ConversationUUID == "" {
		return
	}

	sessionID, err := h.sessions.Get(ctx, ev.ConversationUUID)
	if err != nil {
		h.metrics.RecordRegistryError("get")
		log.Warn("session lookup failed", "error", err)
		return
	}

	if sessionID != "" {
		if err := h.engine.Close(ctx, sessionID); err != nil {
			log.Warn("engine session close failed", "engine_session", sessionID, "error", err)
		}
	}

	if d, ok := h.sessions.(session.Deleter); ok {
		if err := d.Delete(ctx, ev.ConversationUUID); err != nil {
			h.metrics.RecordRegistryError("delete")
			log.Warn("session delete failed", "error", err)
			return
		}
	}
	log.Info("call completed, session released", "engine_session", sessionID)
}
