/**
 * @description
 * Cron-driven TTL sweep for the correlation store. The store also sweeps
 * opportunistically on reads; this job keeps memory bounded when nobody reads.
 */
package app

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/carepro/verification-service/internal/store"
	"github.com/robfig/cron/v3"
)

// DefaultSweepSchedule runs the sweep hourly.
const DefaultSweepSchedule = "@every 1h"

// Sweeper owns the periodic sweep job and its lifecycle.
type Sweeper struct {
	cron     *cron.Cron
	store    store.CorrelationStore
	logger   *slog.Logger
	schedule string

	mu          sync.RWMutex
	running     bool
	lastRunAt   time.Time
	lastRemoved int
}

// NewSweeper creates a sweeper; nothing runs until Start.
func NewSweeper(st store.CorrelationStore, logger *slog.Logger, schedule string) *Sweeper {
	if schedule == "" {
		schedule = DefaultSweepSchedule
	}
	cronLogger := cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelInfo))
	return &Sweeper{
		cron:     cron.New(cron.WithChain(cron.Recover(cronLogger))),
		store:    st,
		logger:   logger,
		schedule: schedule,
	}
}

// Start registers the sweep job and starts the scheduler.
func (s *Sweeper) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}

	if _, err := s.cron.AddFunc(s.schedule, func() { s.RunOnce() }); err != nil {
		s.logger.Error("failed to schedule correlation store sweep", "schedule", s.schedule, "error", err)
		return err
	}
	s.cron.Start()
	s.running = true
	s.logger.Info("scheduled correlation store sweep", "schedule", s.schedule)
	return nil
}

// Stop halts the scheduler. The returned context is done once a running sweep finishes.
func (s *Sweeper) Stop() context.Context {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
	return s.cron.Stop()
}

// RunOnce sweeps expired records immediately.
func (s *Sweeper) RunOnce() int {
	removed := s.store.Sweep()

	s.mu.Lock()
	s.lastRunAt = time.Now()
	s.lastRemoved = removed
	s.mu.Unlock()

	if removed > 0 {
		s.logger.Info("swept expired staged webhooks", "removed", removed, "remaining", s.store.Len())
	}
	return removed
}

// Alive reports whether the scheduler is running.
func (s *Sweeper) Alive() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// LastRun returns when the last sweep ran and how many records it removed.
func (s *Sweeper) LastRun() (time.Time, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastRunAt, s.lastRemoved
}
