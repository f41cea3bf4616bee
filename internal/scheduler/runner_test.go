package scheduler_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/ErlanBelekov/account-lifecycle/internal/lock"
	"github.com/ErlanBelekov/account-lifecycle/internal/requestid"
	"github.com/ErlanBelekov/account-lifecycle/internal/scheduler"
	"github.com/jonboulle/clockwork"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRunOnce_OnlyLockHolderRuns(t *testing.T) {
	clock := clockwork.NewFakeClock()
	backend := lock.NewMemoryBackend()

	var runs int
	var runID string
	job := func(ctx context.Context) {
		runs++
		runID = requestid.FromContext(ctx)
	}

	nodeA, err := scheduler.NewRunner(lock.NewCronLock(backend, "stack", clock, discard()), "account-cleanup", "0 3 * * *", time.Hour, job, discard())
	if err != nil {
		t.Fatalf("new runner: %v", err)
	}
	nodeB, _ := scheduler.NewRunner(lock.NewCronLock(backend, "stack", clock, discard()), "account-cleanup", "0 3 * * *", time.Hour, job, discard())

	ran, err := nodeA.RunOnce(context.Background())
	if !ran || err != nil {
		t.Fatalf("node A: ran=%v err=%v", ran, err)
	}
	ran, err = nodeB.RunOnce(context.Background())
	if ran || err != nil {
		t.Fatalf("node B: ran=%v err=%v", ran, err)
	}
	if runs != 1 {
		t.Errorf("runs = %d", runs)
	}
	if runID == "" {
		t.Error("run has no request id")
	}

	clock.Advance(time.Hour)
	if ran, _ := nodeB.RunOnce(context.Background()); !ran {
		t.Error("node B could not run after the lock expired")
	}
}

type errLocker struct{}

func (errLocker) Acquire(context.Context, string, time.Duration) (bool, error) {
	return false, errors.New("boom")
}

func TestRunOnce_LockErrorSkipsJob(t *testing.T) {
	called := false
	r, _ := scheduler.NewRunner(errLocker{}, "job", "@hourly", time.Minute, func(context.Context) { called = true }, discard())

	if _, err := r.RunOnce(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if called {
		t.Error("job ran without the lock")
	}
}

func TestNewRunner_Schedule(t *testing.T) {
	r, err := scheduler.NewRunner(errLocker{}, "job", "0 3 * * *", time.Minute, func(context.Context) {}, discard())
	if err != nil {
		t.Fatalf("new runner: %v", err)
	}
	from := time.Date(2026, 10, 18, 4, 0, 0, 0, time.UTC)
	if got, want := r.Next(from), time.Date(2026, 10, 19, 3, 0, 0, 0, time.UTC); !got.Equal(want) {
		t.Errorf("next = %v, want %v", got, want)
	}

	if _, err := scheduler.NewRunner(errLocker{}, "job", "not a cron", time.Minute, func(context.Context) {}, discard()); err == nil {
		t.Error("invalid schedule accepted")
	}
}

func TestStart_StopsOnCancel(t *testing.T) {
	r, _ := scheduler.NewRunner(errLocker{}, "job", "@yearly", time.Minute, func(context.Context) {}, discard())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Start(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("runner did not stop")
	}
}
