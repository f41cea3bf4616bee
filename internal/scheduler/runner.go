package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ErlanBelekov/account-lifecycle/internal/requestid"
	"github.com/robfig/cron/v3"
)

// Locker is satisfied by *lock.CronLock.
type Locker interface {
	Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error)
}

// Runner fires a job on a cron schedule. Every firing first takes the named cron lock,
// so across all instances at most one runs the job per lock TTL.
type Runner struct {
	locker   Locker
	name     string
	ttl      time.Duration
	schedule cron.Schedule
	job      func(ctx context.Context)
	logger   *slog.Logger
}

func NewRunner(locker Locker, name, spec string, ttl time.Duration, job func(ctx context.Context), logger *slog.Logger) (*Runner, error) {
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("parse schedule %q: %w", spec, err)
	}
	return &Runner{
		locker:   locker,
		name:     name,
		ttl:      ttl,
		schedule: schedule,
		job:      job,
		logger:   logger.With("component", "runner", "job", name),
	}, nil
}

// Next returns the first firing strictly after t.
func (r *Runner) Next(t time.Time) time.Time {
	return r.schedule.Next(t)
}

// RunOnce takes the lock and, if this process won it, runs the job. It reports whether
// the job ran. Each run gets its own request id for log correlation.
func (r *Runner) RunOnce(ctx context.Context) (bool, error) {
	ctx = requestid.WithRequestID(ctx, requestid.New())

	ok, err := r.locker.Acquire(ctx, r.name, r.ttl)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}

	start := time.Now()
	r.job(ctx)
	r.logger.InfoContext(ctx, "job finished", "duration", time.Since(start))
	return true, nil
}

// Start fires the job on schedule until ctx is cancelled, then waits for a running job
// to return.
func (r *Runner) Start(ctx context.Context) {
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	c.Schedule(r.schedule, cron.FuncJob(func() {
		if _, err := r.RunOnce(ctx); err != nil {
			r.logger.ErrorContext(ctx, "scheduled run failed", "error", err)
		}
	}))

	c.Start()
	r.logger.Info("runner started", "next_run", r.Next(time.Now().UTC()))

	<-ctx.Done()
	<-c.Stop().Done()
	r.logger.Info("runner shut down")
}
