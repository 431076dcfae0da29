// Package scheduler runs scrape cycles on a cron schedule.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// Task is one scheduled run
type Task func(ctx context.Context)

// Scheduler triggers a task on a cron expression in a fixed timezone.
// A run that is still going when the next tick fires causes that tick to be skipped.
type Scheduler struct {
	cron     *cron.Cron
	location *time.Location
	mu       sync.Mutex
	entryID  cron.EntryID
	ctx      context.Context
	cancel   context.CancelFunc
}

// New creates a scheduler in the given IANA timezone
func New(timezone string) (*Scheduler, error) {
	if timezone == "" {
		timezone = "UTC"
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", timezone, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithChain(cron.Recover(cronLogger{}), cron.SkipIfStillRunning(cronLogger{})),
		),
		location: loc,
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// Schedule registers task on a standard five-field cron expression,
// replacing any previously scheduled task
func (s *Scheduler) Schedule(expr string, task Task) error {
	if task == nil {
		return errors.New("task is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.cron.AddFunc(expr, func() { task(s.ctx) })
	if err != nil {
		return fmt.Errorf("parse cron expression %q: %w", expr, err)
	}
	if s.entryID != 0 {
		s.cron.Remove(s.entryID)
	}
	s.entryID = id

	log.Info().Str("cron", expr).Str("timezone", s.location.String()).Msg("cycle scheduled")
	return nil
}

// Next returns the next activation time, or the zero time if nothing is scheduled
func (s *Scheduler) Next() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.entryID == 0 {
		return time.Time{}
	}
	return s.cron.Entry(s.entryID).Next
}

// Start begins firing scheduled tasks
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop cancels the running task's context and waits for it to return
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
}

// cronLogger adapts zerolog to cron's logger interface
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	log.Debug().Fields(keysAndValues).Msg(msg)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
