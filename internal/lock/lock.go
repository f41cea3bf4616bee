// Package lock provides a named, TTL-bound mutual exclusion for scheduled jobs shared by
// processes that only have the backing store in common. There is no release: a claim
// lapses when its TTL passes.
package lock

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/ErlanBelekov/account-lifecycle/internal/domain"
	"github.com/ErlanBelekov/account-lifecycle/internal/metrics"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// Backend performs one conditional write: store rec unless an unexpired record with the
// same name exists. It reports whether rec was stored. Backends must make the check and
// the write a single atomic operation.
type Backend interface {
	TryAcquire(ctx context.Context, rec domain.LockRecord) (bool, error)
}

type CronLock struct {
	backend Backend
	prefix  string
	owner   string
	clock   clockwork.Clock
	logger  *slog.Logger
}

// NewCronLock namespaces every lock name with prefix (the deployment stack name).
func NewCronLock(backend Backend, prefix string, clock clockwork.Clock, logger *slog.Logger) *CronLock {
	return &CronLock{
		backend: backend,
		prefix:  prefix,
		owner:   Owner(),
		clock:   clock,
		logger:  logger.With("component", "cron_lock"),
	}
}

// Owner identifies this process in lock records. Without a hostname a random id stands in.
func Owner() string {
	hostname, err := os.Hostname()
	if err != nil || hostname == "" {
		hostname = uuid.NewString()
	}
	return fmt.Sprintf("%s-%d", hostname, os.Getpid())
}

// Key is the stored lock name for name.
func (l *CronLock) Key(name string) string {
	return l.prefix + "/" + name
}

// Acquire reports whether this process now holds name until now+ttl. Losing to another
// holder is the normal outcome on every node but one and is not an error.
func (l *CronLock) Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	rec, err := domain.NewLockRecord(l.Key(name), l.owner, l.clock.Now(), ttl)
	if err != nil {
		return false, err
	}

	ok, err := l.backend.TryAcquire(ctx, rec)
	if err != nil {
		metrics.CronLockAttemptsTotal.WithLabelValues(name, "error").Inc()
		return false, fmt.Errorf("acquire lock %s: %w", rec.Name, err)
	}
	if !ok {
		metrics.CronLockAttemptsTotal.WithLabelValues(name, "held").Inc()
		l.logger.InfoContext(ctx, "cron lock held elsewhere", "lock", rec.Name)
		return false, nil
	}

	metrics.CronLockAttemptsTotal.WithLabelValues(name, "acquired").Inc()
	l.logger.InfoContext(ctx, "cron lock acquired", "lock", rec.Name, "owner", rec.Owner, "expires_at", rec.ExpiresAt)
	return true, nil
}
