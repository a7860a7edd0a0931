package service

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
)

const (
	defaultSweepSchedule = "@every 1m"
	defaultSweepBatch    = 50
	defaultSweepMinAge   = 30 * time.Second
)

// Sweeper re-drives pending cases whose processing goroutine never ran to
// completion, typically after a crash or restart. Process is idempotent, so
// racing the live intake path is harmless.
type Sweeper struct {
	service  *Service
	cron     *cron.Cron
	schedule string
	batch    int
	minAge   time.Duration
}

// SweepOption configures the sweeper.
type SweepOption func(*Sweeper)

// WithSweepSchedule overrides the cron schedule.
func WithSweepSchedule(schedule string) SweepOption {
	return func(s *Sweeper) { s.schedule = schedule }
}

// WithSweepBatch caps how many cases one sweep picks up.
func WithSweepBatch(batch int) SweepOption {
	return func(s *Sweeper) { s.batch = batch }
}

// WithSweepMinAge sets how long a case must sit in pending before the sweep
// considers it stale.
func WithSweepMinAge(age time.Duration) SweepOption {
	return func(s *Sweeper) { s.minAge = age }
}

// NewSweeper builds a sweeper over the case service.
func NewSweeper(service *Service, opts ...SweepOption) *Sweeper {
	s := &Sweeper{
		service:  service,
		schedule: defaultSweepSchedule,
		batch:    defaultSweepBatch,
		minAge:   defaultSweepMinAge,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start schedules the sweep and returns. Stop cancels future runs.
func (s *Sweeper) Start(ctx context.Context) error {
	s.cron = cron.New()
	_, err := s.cron.AddFunc(s.schedule, func() {
		if err := s.Sweep(ctx); err != nil {
			s.service.logger.Warn("case sweep failed", "error", err)
		}
	})
	if err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

// Stop halts the schedule and waits for an in-flight sweep to finish.
func (s *Sweeper) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
}

// Sweep processes one batch of stale pending cases, oldest first.
func (s *Sweeper) Sweep(ctx context.Context) error {
	pending, err := s.service.store.ListPending(ctx, s.batch)
	if err != nil {
		return err
	}

	cutoff := s.service.now().Add(-s.minAge)
	for _, c := range pending {
		if c.CreatedAt.After(cutoff) {
			continue
		}
		if s.service.metrics != nil {
			s.service.metrics.SweepRequeuedCases.Inc()
		}
		s.service.logger.Info("sweep requeueing stale case", "case_id", c.ID, "age", s.service.now().Sub(c.CreatedAt))
		if err := s.service.Process(ctx, c.ID); err != nil {
			s.service.logger.Warn("sweep processing failed", "case_id", c.ID, "error", err)
		}
	}
	return nil
}
