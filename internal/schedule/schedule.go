// Package schedule drives the Optimization Loop on a cron cadence, one
// job per account. Adapted from the teacher's internal/scheduler
// (cron.WithSeconds(), Start/Stop/IsRunning/GetNextRun/RunNow shape),
// changed from three fixed jobs (data sync / token refresh / metrics
// aggregation) to N account-parametrized cycle jobs.
package schedule

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/budgetloop/optimizer/internal/optloop"
)

// Scheduler runs one optloop.Loop.RunCycle per registered account on
// a shared cron expression.
type Scheduler struct {
	cron   *cron.Cron
	loop   Loop
	logger zerolog.Logger

	mu       sync.RWMutex
	running  bool
	jobs     map[string]cron.EntryID
	requests map[string]optloop.Request
}

// Loop is the subset of *optloop.Loop the scheduler depends on.
type Loop interface {
	RunCycle(ctx context.Context, req optloop.Request) (*optloop.Report, error)
}

// NewScheduler builds a Scheduler bound to loop.
func NewScheduler(loop Loop, logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:     cron.New(cron.WithSeconds()),
		loop:     loop,
		logger:   logger.With().Str("component", "schedule").Logger(),
		jobs:     make(map[string]cron.EntryID),
		requests: make(map[string]optloop.Request),
	}
}

// Register adds an account's cycle request under a cron expression.
// Calling Register while the scheduler is running schedules the job
// immediately.
func (s *Scheduler) Register(accountID string, cronExpr string, req optloop.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.requests[accountID] = req

	if !s.running {
		return nil
	}
	return s.scheduleLocked(accountID, cronExpr)
}

func (s *Scheduler) scheduleLocked(accountID, cronExpr string) error {
	id, err := s.cron.AddFunc(cronExpr, func() { s.runCycle(accountID) })
	if err != nil {
		return fmt.Errorf("schedule account %s: %w", accountID, err)
	}
	s.jobs[accountID] = id
	return nil
}

// Start begins running every registered account's job on its cron
// expression. accounts maps accountID -> cron expression.
func (s *Scheduler) Start(accounts map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	for accountID, cronExpr := range accounts {
		if _, ok := s.requests[accountID]; !ok {
			continue
		}
		if err := s.scheduleLocked(accountID, cronExpr); err != nil {
			return err
		}
		s.logger.Info().Str("account_id", accountID).Str("schedule", cronExpr).Msg("scheduled optimization cycle")
	}

	s.cron.Start()
	s.running = true
	s.logger.Info().Msg("scheduler started")
	return nil
}

// Stop halts the scheduler, waiting for in-flight jobs to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}

	ctx := s.cron.Stop()
	<-ctx.Done()
	s.running = false
	s.logger.Info().Msg("scheduler stopped")
}

// IsRunning reports whether the scheduler is active.
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// GetNextRun returns the next scheduled run time for an account.
func (s *Scheduler) GetNextRun(accountID string) (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if id, ok := s.jobs[accountID]; ok {
		return s.cron.Entry(id).Next, true
	}
	return time.Time{}, false
}

// RunNow triggers an account's cycle immediately, outside its cron
// schedule.
func (s *Scheduler) RunNow(accountID string) error {
	s.mu.RLock()
	_, ok := s.requests[accountID]
	s.mu.RUnlock()

	if !ok {
		return fmt.Errorf("account %s is not registered", accountID)
	}
	go s.runCycle(accountID)
	return nil
}

func (s *Scheduler) runCycle(accountID string) {
	s.mu.RLock()
	req := s.requests[accountID]
	s.mu.RUnlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	s.logger.Info().Str("account_id", accountID).Msg("starting scheduled optimization cycle")
	start := time.Now()

	report, err := s.loop.RunCycle(ctx, req)
	if err != nil {
		s.logger.Error().Err(err).Str("account_id", accountID).Msg("scheduled optimization cycle failed")
		return
	}

	s.logger.Info().
		Str("account_id", accountID).
		Str("status", string(report.Status)).
		Int("arms_processed", report.ArmsProcessed).
		Dur("duration", time.Since(start)).
		Msg("scheduled optimization cycle completed")
}
