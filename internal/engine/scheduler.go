package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler manages the periodic token refresh and stats tasks.
type Scheduler struct {
	cron   *cron.Cron
	engine *Engine
	log    *slog.Logger
}

// NewScheduler creates a new Scheduler that runs engine tasks on a schedule.
func NewScheduler(
	eng *Engine,
	tokenRefreshInterval time.Duration,
	statsInterval time.Duration,
	log *slog.Logger,
) (*Scheduler, error) {
	c := cron.New()

	s := &Scheduler{
		cron:   c,
		engine: eng,
		log:    log,
	}

	if _, err := c.AddFunc(
		"@every "+tokenRefreshInterval.String(),
		s.runTokenRefresh,
	); err != nil {
		return nil, err
	}

	if _, err := c.AddFunc(
		"@every "+statsInterval.String(),
		s.runCatalogStats,
	); err != nil {
		return nil, err
	}

	return s, nil
}

// Start begins running scheduled tasks.
func (s *Scheduler) Start() {
	s.log.Info("scheduler started")
	s.cron.Start()
}

// Stop gracefully stops the scheduler, waiting for running jobs to finish.
func (s *Scheduler) Stop() context.Context {
	s.log.Info("scheduler stopping")
	return s.cron.Stop()
}

// Entries returns the registered cron entries for inspection.
func (s *Scheduler) Entries() []cron.Entry {
	return s.cron.Entries()
}

func (s *Scheduler) runTokenRefresh() {
	s.log.Info("scheduled token refresh sweep starting")
	s.engine.RunTokenRefreshSweep(context.Background())
}

func (s *Scheduler) runCatalogStats() {
	if err := s.engine.RunCatalogStats(context.Background()); err != nil {
		s.log.Error("scheduled catalog stats failed", "error", err)
	}
}
