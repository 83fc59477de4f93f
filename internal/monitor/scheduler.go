package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"donorsense/internal/common"
)

// Scheduler runs monitoring passes on a cron cadence. Stop blocks until an
// in-flight pass finishes, so shutdown never truncates an evaluation.
type Scheduler struct {
	evaluator *Evaluator
	schedule  string
	cron      *cron.Cron

	mu      sync.Mutex
	started bool
}

// NewScheduler wraps an evaluator in a recurring task. An empty schedule
// falls back to the hourly default.
func NewScheduler(evaluator *Evaluator, schedule string) *Scheduler {
	if schedule == "" {
		schedule = common.DefaultMonitorSchedule
	}
	return &Scheduler{
		evaluator: evaluator,
		schedule:  schedule,
		cron:      cron.New(cron.WithLocation(time.UTC)),
	}
}

// Start registers the pass and begins the schedule. The context bounds
// every pass the scheduler triggers.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return errors.New("monitoring scheduler already started")
	}

	if _, err := s.cron.AddFunc(s.schedule, func() {
		s.evaluator.RunPass(ctx)
	}); err != nil {
		return fmt.Errorf("invalid monitor schedule %q: %w", s.schedule, err)
	}

	s.cron.Start()
	s.started = true
	log.Info().Str("schedule", s.schedule).Msg("Monitoring scheduler started")
	return nil
}

// Stop halts the schedule and waits for any running pass to complete.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return
	}

	<-s.cron.Stop().Done()
	s.started = false
	log.Info().Msg("Monitoring scheduler stopped")
}

// RunNow triggers a single pass outside the schedule, for operator tooling
// and tests.
func (s *Scheduler) RunNow(ctx context.Context) {
	s.evaluator.RunPass(ctx)
}
