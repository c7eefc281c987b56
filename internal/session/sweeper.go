package session

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// Sweeper periodically drops expired entries from an Expirer.
type Sweeper struct {
	cron   *cron.Cron
	target Expirer
	logger *slog.Logger
}

// NewSweeper schedules target.Sweep on the given cron spec, e.g. "@every 5m".
func NewSweeper(target Expirer, schedule string, logger *slog.Logger) (*Sweeper, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Sweeper{
		cron:   cron.New(),
		target: target,
		logger: logger,
	}
	if _, err := s.cron.AddFunc(schedule, s.run); err != nil {
		return nil, fmt.Errorf("sweep schedule %q: %w", schedule, err)
	}
	return s, nil
}

// Start begins running the schedule in the background.
func (s *Sweeper) Start() {
	s.cron.Start()
}

// Stop halts the schedule and waits for a running sweep to finish.
func (s *Sweeper) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}

func (s *Sweeper) run() {
	if n := s.target.Sweep(context.Background()); n > 0 {
		s.logger.Info("expired sessions swept", "removed", n)
	}
}
