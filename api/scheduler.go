/*
scheduler.go - Process-wide job scheduler

PURPOSE:
  Runs the monthly accrual and annual carry-forward jobs on a
  process-wide timer. Jobs register against monthly or yearly hooks;
  the scheduler fires them when the calendar period rolls over while
  the process is running.

DESIGN:
  - Background goroutine with a configurable check interval
  - Period markers are initialized at Start, so a fresh process never
    fires a job for the period it started in; manual triggers
    (/api/admin/*) cover catch-up runs
  - Single global instance, non-overlapping by convention: checks run
    sequentially on one goroutine

MULTI-INSTANCE CAVEAT:
  There is no distributed lock. In a multi-instance deployment, guard
  the registered jobs with leader election or a storage-level advisory
  lock; the monthly job's employee+month idempotency limits the blast
  radius of a double fire, the annual job's does not.

USAGE:
  s := NewScheduler(logger)
  s.RegisterMonthly("monthly-accrual", func(ctx context.Context) error { ... })
  s.RegisterYearly("carry-forward", func(ctx context.Context) error { ... })
  s.Start()
  // ... later
  s.Stop()

SEE ALSO:
  - leave/accrual.go, leave/carryforward.go: the registered jobs
*/
package api

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// JobFunc is a schedulable unit of work.
type JobFunc func(ctx context.Context) error

type scheduledJob struct {
	name string
	fn   JobFunc
}

// Scheduler fires registered jobs when their calendar period rolls over.
type Scheduler struct {
	CheckInterval time.Duration
	Logger        *slog.Logger

	// Now is injectable for tests; defaults to time.Now.
	Now func() time.Time

	mu      sync.Mutex
	monthly []scheduledJob
	yearly  []scheduledJob

	lastMonth time.Time // first day of the last month processed
	lastYear  int

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
}

// NewScheduler creates a scheduler with an hourly check interval.
func NewScheduler(logger *slog.Logger) *Scheduler {
	return &Scheduler{
		CheckInterval: 1 * time.Hour,
		Logger:        logger,
		stop:          make(chan struct{}),
	}
}

// RegisterMonthly adds a job fired once per calendar month.
func (s *Scheduler) RegisterMonthly(name string, fn JobFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.monthly = append(s.monthly, scheduledJob{name: name, fn: fn})
}

// RegisterYearly adds a job fired once per calendar year.
func (s *Scheduler) RegisterYearly(name string, fn JobFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.yearly = append(s.yearly, scheduledJob{name: name, fn: fn})
}

// Start begins the scheduler. The current period is marked as already
// processed; jobs fire on the next rollover.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.lastMonth = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	s.lastYear = now.Year()

	s.ticker = time.NewTicker(s.CheckInterval)
	s.wg.Add(1)
	go s.run()

	s.logger().Info("scheduler started", "check_interval", s.CheckInterval.String())
}

// Stop stops the scheduler and waits for an in-flight check to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker != nil {
		s.ticker.Stop()
		close(s.stop)
		s.wg.Wait()
		s.logger().Info("scheduler stopped")
	}
}

func (s *Scheduler) run() {
	defer s.wg.Done()

	for {
		select {
		case <-s.ticker.C:
			s.checkAndProcess()
		case <-s.stop:
			return
		}
	}
}

// checkAndProcess fires jobs whose period has rolled over since the
// last check. Yearly jobs run before monthly ones at a shared boundary
// so the January grant lands on top of the reset balance.
func (s *Scheduler) checkAndProcess() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	month := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)

	if now.Year() != s.lastYear {
		s.runJobs(s.yearly, "yearly")
		s.lastYear = now.Year()
	}
	if month.After(s.lastMonth) {
		s.runJobs(s.monthly, "monthly")
		s.lastMonth = month
	}
}

func (s *Scheduler) runJobs(jobs []scheduledJob, kind string) {
	ctx := context.Background()
	for _, j := range jobs {
		start := s.now()
		if err := j.fn(ctx); err != nil {
			s.logger().Error("scheduled job failed",
				"job", j.name, "kind", kind, "error", err)
			continue
		}
		s.logger().Info("scheduled job complete",
			"job", j.name, "kind", kind, "duration", time.Since(start).String())
	}
}

// RunNow triggers an immediate period check (for testing/admin).
func (s *Scheduler) RunNow() { s.checkAndProcess() }

func (s *Scheduler) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

func (s *Scheduler) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}
