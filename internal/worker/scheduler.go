package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"dailybudget/internal/config"

	"golang.org/x/sync/errgroup"
)

// ErrJobRunning is returned by RunNow while the job is already executing.
var ErrJobRunning = errors.New("job already running")

// JobFunc performs one run of a job. now is the scheduled instant.
type JobFunc func(ctx context.Context, now time.Time) error

type job struct {
	name   string
	hour   int
	minute int
	run    JobFunc
	// busy is held for the duration of a run.
	busy sync.Mutex
}

// Scheduler runs each job once a day at a fixed UTC wall-clock time. A job
// never overlaps itself.
type Scheduler struct {
	jobs  []*job
	now   func() time.Time
	after func(time.Duration) <-chan time.Time
}

func NewScheduler() *Scheduler {
	return &Scheduler{now: time.Now, after: time.After}
}

// Add registers run at the HH:MM UTC time at.
func (s *Scheduler) Add(name, at string, run JobFunc) error {
	h, m, err := config.ParseClock(at)
	if err != nil {
		return fmt.Errorf("job %s: %w", name, err)
	}
	s.jobs = append(s.jobs, &job{name: name, hour: h, minute: m, run: run})
	return nil
}

// NextRun returns the first instant at or after now when a job set for
// hour:minute UTC fires. An instant equal to now counts as the next day.
func NextRun(hour, minute int, now time.Time) time.Time {
	now = now.UTC()
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, time.UTC)
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// RunNow executes the named job immediately, unless it is already running.
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	for _, j := range s.jobs {
		if j.name == name {
			return s.execute(ctx, j, s.now())
		}
	}
	return fmt.Errorf("unknown job %q", name)
}

func (s *Scheduler) execute(ctx context.Context, j *job, now time.Time) error {
	if !j.busy.TryLock() {
		slog.WarnContext(ctx, "Skipping job run, previous run still active", "job", j.name)
		return ErrJobRunning
	}
	defer j.busy.Unlock()

	start := time.Now()
	slog.InfoContext(ctx, "Job started", "job", j.name)
	if err := j.run(ctx, now); err != nil {
		slog.ErrorContext(ctx, "Job failed", "job", j.name, "error", err, "duration_ms", time.Since(start).Milliseconds())
		return err
	}
	slog.InfoContext(ctx, "Job finished", "job", j.name, "duration_ms", time.Since(start).Milliseconds())
	return nil
}

// Run blocks until ctx is cancelled, firing every job at its time. Job
// failures are logged and the job waits for its next slot.
func (s *Scheduler) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, j := range s.jobs {
		j := j
		g.Go(func() error {
			for ctx.Err() == nil {
				next := NextRun(j.hour, j.minute, s.now())
				slog.InfoContext(ctx, "Job scheduled", "job", j.name, "next_run", next.Format(time.RFC3339))
				select {
				case <-ctx.Done():
					return nil
				case <-s.after(next.Sub(s.now())):
				}
				_ = s.execute(ctx, j, next)
			}
			return nil
		})
	}
	return g.Wait()
}
