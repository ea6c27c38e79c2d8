// Package scheduler runs recurring jobs on a cron schedule.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/marcus/dispatch/internal/config"
	"github.com/marcus/dispatch/internal/logging"
)

// Errors returned by the scheduler.
var (
	ErrNoSchedule     = errors.New("no cron schedule configured")
	ErrNoJob          = errors.New("no job configured")
	ErrAlreadyRunning = errors.New("scheduler already running")
	ErrNotRunning     = errors.New("scheduler not running")
)

// Job is the work run on each tick.
type Job func(ctx context.Context)

// Scheduler runs a single job on a cron expression.
type Scheduler struct {
	mu       sync.Mutex
	cronExpr string
	location *time.Location
	job      Job
	cron     *cron.Cron
	entryID  cron.EntryID
	cancel   context.CancelFunc
	running  bool
	logger   *logging.Logger
}

// New creates an unconfigured scheduler using local time.
func New() *Scheduler {
	return &Scheduler{
		location: time.Local,
		logger:   logging.Component("scheduler"),
	}
}

// NewFromConfig creates a scheduler from the digest section.
func NewFromConfig(cfg config.DigestConfig, job Job) (*Scheduler, error) {
	if cfg.Cron == "" {
		return nil, ErrNoSchedule
	}
	s := New()
	if err := s.SetCron(cfg.Cron); err != nil {
		return nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, fmt.Errorf("digest timezone: %w", err)
	}
	s.SetLocation(loc)
	s.SetJob(job)
	return s, nil
}

// SetCron sets the standard five-field cron expression.
func (s *Scheduler) SetCron(expr string) error {
	if _, err := cron.ParseStandard(expr); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cronExpr = expr
	return nil
}

// SetLocation sets the time zone the expression is evaluated in.
func (s *Scheduler) SetLocation(loc *time.Location) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if loc == nil {
		loc = time.Local
	}
	s.location = loc
}

// SetJob sets the job to run.
func (s *Scheduler) SetJob(job Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.job = job
}

// Start begins running the job. The job's ctx is cancelled by Stop or when
// ctx is done.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrAlreadyRunning
	}
	if s.cronExpr == "" {
		return ErrNoSchedule
	}
	if s.job == nil {
		return ErrNoJob
	}

	runCtx, cancel := context.WithCancel(ctx)
	c := cron.New(cron.WithLocation(s.location))
	job := s.job
	id, err := c.AddFunc(s.cronExpr, func() {
		if runCtx.Err() != nil {
			return
		}
		job(runCtx)
	})
	if err != nil {
		cancel()
		return fmt.Errorf("schedule job: %w", err)
	}

	s.cron = c
	s.entryID = id
	s.cancel = cancel
	s.running = true
	c.Start()

	s.logger.InfoCtx("scheduler started", map[string]any{
		"cron":     s.cronExpr,
		"location": s.location.String(),
		"next_run": c.Entry(id).Next,
	})
	return nil
}

// Stop halts the schedule and waits for a running job to return.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return ErrNotRunning
	}
	c := s.cron
	s.cancel()
	s.running = false
	s.cron = nil
	s.mu.Unlock()

	<-c.Stop().Done()
	s.logger.Info("scheduler stopped")
	return nil
}

// IsRunning reports whether the scheduler is active.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// NextRun returns the next scheduled run, or zero if not running.
func (s *Scheduler) NextRun() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running || s.cron == nil {
		return time.Time{}
	}
	return s.cron.Entry(s.entryID).Next
}
