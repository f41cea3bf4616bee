package postgres

import (
	"context"
	"fmt"

	"github.com/ErlanBelekov/account-lifecycle/internal/domain"
	"github.com/jackc/pgx/v5/pgconn"
)

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// LockBackend keeps cron locks in the cron_locks table. *pgxpool.Pool satisfies execer.
type LockBackend struct {
	db execer
}

func NewLockBackend(db execer) *LockBackend {
	return &LockBackend{db: db}
}

func (b *LockBackend) EnsureSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS cron_locks (
			name        TEXT PRIMARY KEY,
			owner       TEXT        NOT NULL,
			acquired_at TIMESTAMPTZ NOT NULL,
			expires_at  TIMESTAMPTZ NOT NULL
		)`
	if _, err := b.db.Exec(ctx, query); err != nil {
		return fmt.Errorf("create cron_locks: %w", err)
	}
	return nil
}

// TryAcquire inserts the record, or takes over a row whose lease has run out. A live
// row makes the conditional update a no-op, so zero rows affected means "held".
func (b *LockBackend) TryAcquire(ctx context.Context, rec domain.LockRecord) (bool, error) {
	query := `
		INSERT INTO cron_locks (name, owner, acquired_at, expires_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (name) DO UPDATE
		SET    owner       = EXCLUDED.owner,
		       acquired_at = EXCLUDED.acquired_at,
		       expires_at  = EXCLUDED.expires_at
		WHERE  cron_locks.expires_at <= EXCLUDED.acquired_at`

	tag, err := b.db.Exec(ctx, query, rec.Name, rec.Owner, rec.AcquiredAt.UTC(), rec.ExpiresAt.UTC())
	if err != nil {
		return false, fmt.Errorf("acquire lock %s: %w", rec.Name, err)
	}
	return tag.RowsAffected() == 1, nil
}
