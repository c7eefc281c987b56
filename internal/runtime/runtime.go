// Package runtime wires the voice bridge together and serves its webhooks.
package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/szaher/voicebridge/internal/bridge"
	"github.com/szaher/voicebridge/internal/config"
	"github.com/szaher/voicebridge/internal/engine"
	"github.com/szaher/voicebridge/internal/session"
	"github.com/szaher/voicebridge/internal/telemetry"
)

// Runtime manages the full lifecycle of the bridge.
type Runtime struct {
	cfg      *config.Config
	server   *Server
	renderer *bridge.Renderer
	sweeper  *session.Sweeper
	watcher  *config.Watcher
	closeReg func() error
	logger   *slog.Logger

	mu        sync.Mutex
	stopped   bool
	stopWatch context.CancelFunc
	wg        sync.WaitGroup
}

// Options configures the runtime.
type Options struct {
	Logger *slog.Logger
	// ConfigPath enables hot reload of speech settings when set.
	ConfigPath string
	Version    string
	// Engine and Registry replace the configured engine client and session
	// backend.
	Engine   bridge.Engine
	Registry session.Registry
}

// New creates a runtime from the given config, connecting the session
// backend.
func New(ctx context.Context, cfg *config.Config, opts Options) (*Runtime, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	eng := opts.Engine
	if eng == nil {
		client, err := engine.New(&engine.Config{URL: cfg.Engine.URL, Timeout: cfg.Engine.Timeout})
		if err != nil {
			return nil, fmt.Errorf("create engine client: %w", err)
		}
		eng = client
	}

	store := opts.Registry
	closeReg := func() error { return nil }
	if store == nil {
		var err error
		store, closeReg, err = openRegistry(ctx, cfg.Session, logger)
		if err != nil {
			return nil, fmt.Errorf("open session registry: %w", err)
		}
	}

	rt := &Runtime{
		cfg:      cfg,
		closeReg: closeReg,
		logger:   logger,
	}

	if exp, ok := store.(session.Expirer); ok && cfg.Session.TTL > 0 {
		sweeper, err := session.NewSweeper(exp, cfg.Session.SweepSchedule, logger)
		if err != nil {
			_ = closeReg()
			return nil, err
		}
		rt.sweeper = sweeper
	}

	if opts.ConfigPath != "" {
		w, err := config.NewWatcher(opts.ConfigPath, rt.applyReload, logger)
		if err != nil {
			logger.Warn("config hot reload disabled", "path", opts.ConfigPath, "error", err)
		} else {
			rt.watcher = w
		}
	}

	if cfg.Webhook.BaseURL == "" {
		logger.Warn("webhook base URL not set, input actions will carry a relative eventUrl",
			"event_url", cfg.EventURL())
	}

	metrics := telemetry.NewMetrics()
	rt.renderer = bridge.NewRenderer(cfg.RenderSettings())
	handler := bridge.NewHandler(eng, session.Coalesce(store), rt.renderer,
		bridge.WithLogger(logger),
		bridge.WithMetrics(metrics),
	)

	version := opts.Version
	if version == "" {
		version = "dev"
	}
	rt.server = NewServer(handler, metrics,
		WithLogger(logger),
		WithAddr(cfg.Addr()),
		WithAPIKey(cfg.Webhook.APIKey),
		WithPaths(cfg.Webhook.AnswerPath, cfg.Webhook.EventPath),
		WithVersion(version),
		WithReadHeaderTimeout(cfg.Server.ReadHeaderTimeout),
	)
	return rt, nil
}

// Handler returns the webhook HTTP handler.
func (rt *Runtime) Handler() http.Handler {
	return rt.server.Handler()
}

// Renderer returns the renderer whose settings follow config reloads.
func (rt *Runtime) Renderer() *bridge.Renderer {
	return rt.renderer
}

// Start starts background jobs and serves webhooks until Shutdown. It
// returns nil at once if Shutdown has already been called.
func (rt *Runtime) Start(ctx context.Context) error {
	rt.mu.Lock()
	if rt.stopped {
		rt.mu.Unlock()
		return nil
	}
	if rt.sweeper != nil {
		rt.sweeper.Start()
	}
	if rt.watcher != nil {
		watchCtx, cancel := context.WithCancel(ctx)
		rt.stopWatch = cancel
		rt.wg.Add(1)
		go func() {
			defer rt.wg.Done()
			rt.watcher.Run(watchCtx)
		}()
	}
	rt.mu.Unlock()

	return rt.server.ListenAndServe()
}

// Shutdown gracefully stops the runtime.
func (rt *Runtime) Shutdown(ctx context.Context) error {
	rt.logger.Info("shutting down runtime")

	rt.mu.Lock()
	rt.stopped = true
	stopWatch := rt.stopWatch
	rt.mu.Unlock()

	if err := rt.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown server: %w", err)
	}
	if rt.sweeper != nil {
		rt.sweeper.Stop(ctx)
	}
	if rt.watcher != nil {
		if stopWatch != nil {
			stopWatch()
		}
		_ = rt.watcher.Close()
		rt.wg.Wait()
	}
	if err := rt.closeReg(); err != nil {
		return fmt.Errorf("close session registry: %w", err)
	}
	return nil
}

// applyReload takes the speech settings of a reloaded config. Other
// sections need a restart.
func (rt *Runtime) applyReload(cfg *config.Config) {
	rt.renderer.Update(cfg.RenderSettings())
	rt.logger.Info("speech settings updated",
		"voice", cfg.Speech.Voice,
		"language", cfg.Speech.Language,
		"barge_in", cfg.Speech.BargeIn,
	)
}
