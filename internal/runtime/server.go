package runtime

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/szaher/voicebridge/internal/auth"
	"github.com/szaher/voicebridge/internal/bridge"
	"github.com/szaher/voicebridge/internal/telemetry"
)

// HeaderCorrelationID carries the request correlation ID in and out.
const HeaderCorrelationID = "X-Correlation-ID"

// maxBodyBytes caps inbound webhook bodies.
const maxBodyBytes = 1 << 20

// Server is the webhook HTTP server.
type Server struct {
	handler           *bridge.Handler
	metrics           *telemetry.Metrics
	mux               *http.ServeMux
	server            *http.Server
	logger            *slog.Logger
	startTime         time.Time
	addr              string
	apiKey            string
	answerPath        string
	eventPath         string
	version           string
	readHeaderTimeout time.Duration
}

// ServerOption configures the Server.
type ServerOption func(*Server)

// WithAddr sets the listen address.
func WithAddr(addr string) ServerOption {
	return func(s *Server) { s.addr = addr }
}

// WithAPIKey requires the shared key on webhook requests.
func WithAPIKey(key string) ServerOption {
	return func(s *Server) { s.apiKey = key }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) { s.logger = logger }
}

// WithPaths sets the answer and event webhook paths.
func WithPaths(answer, event string) ServerOption {
	return func(s *Server) {
		s.answerPath = answer
		s.eventPath = event
	}
}

// WithVersion sets the version reported by /healthz.
func WithVersion(v string) ServerOption {
	return func(s *Server) { s.version = v }
}

// WithReadHeaderTimeout bounds how long a client may take to send headers.
func WithReadHeaderTimeout(d time.Duration) ServerOption {
	return func(s *Server) { s.readHeaderTimeout = d }
}

// NewServer creates the webhook server.
func NewServer(handler *bridge.Handler, metrics *telemetry.Metrics, opts ...ServerOption) *Server {
	s := &Server{
		handler:           handler,
		metrics:           metrics,
		logger:            slog.Default(),
		startTime:         time.Now(),
		addr:              ":1337",
		answerPath:        "/webhooks/answer",
		eventPath:         "/webhooks/event",
		version:           "dev",
		readHeaderTimeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("POST "+s.answerPath, s.handleAnswer)
	mux.HandleFunc("POST "+s.eventPath, s.handleEvent)

	s.mux = mux
	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: s.readHeaderTimeout,
	}
	return s
}

// Handler returns the HTTP handler for use with httptest or custom servers.
func (s *Server) Handler() http.Handler {
	guard := auth.Middleware(s.apiKey, []string{"/healthz", "/metrics"}, s.logger)
	return s.correlate(guard(s.mux))
}

// ListenAndServe starts the HTTP server. It returns nil after Shutdown,
// including when Shutdown ran first.
func (s *Server) ListenAndServe() error {
	s.logger.Info("webhook server starting", "addr", s.addr, "answer_path", s.answerPath, "event_path", s.eventPath)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// correlate tags every request with a correlation ID, taken from the
// inbound header when present.
func (s *Server) correlate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := telemetry.WithCorrelationID(r.Context(), r.Header.Get(HeaderCorrelationID))
		w.Header().Set(HeaderCorrelationID, telemetry.CorrelationID(ctx))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"uptime":  time.Since(s.startTime).String(),
		"version": s.version,
	})
}

func (s *Server) handleAnswer(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "Failed to read request body")
		return
	}

	ev, err := bridge.ParseEvent(body)
	if err != nil {
		s.logger.Warn("malformed answer webhook", "error", err,
			"correlation_id", telemetry.CorrelationID(r.Context()))
		writeError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}
	if ev.ConversationUUID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "conversation_uuid is required")
		return
	}

	res := s.handler.Turn(r.Context(), ev)
	writeJSON(w, http.StatusOK, res.NCCO)
}

func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	defer w.WriteHeader(http.StatusNoContent)

	var ev bridge.CallEvent
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&ev); err != nil {
		s.logger.Warn("malformed call event", "error", err,
			"correlation_id", telemetry.CorrelationID(r.Context()))
		return
	}
	s.handler.CallStatus(r.Context(), &ev)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{
		"error":   code,
		"message": message,
	})
}
