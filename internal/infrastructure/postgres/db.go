package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// The scheduler issues a handful of short lock statements per run, hours apart, so the
// pool holds no idle connections between runs.
const (
	lockPoolMaxConns    = 2
	lockConnIdleTime    = 5 * time.Minute
	lockConnLifetime    = 30 * time.Minute
	lockConnectTimeout  = 5 * time.Second
	lockStatementMillis = "5000"
)

// NewLockPool connects the cron lock store and checks it answers.
func NewLockPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	cfg, err := lockPoolConfig(databaseURL)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create lock pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, lockConnectTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping lock db: %w", err)
	}
	return pool, nil
}

func lockPoolConfig(databaseURL string) (*pgxpool.Config, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse lock db config: %w", err)
	}

	cfg.MaxConns = lockPoolMaxConns
	cfg.MinConns = 0
	cfg.MaxConnLifetime = lockConnLifetime
	cfg.MaxConnIdleTime = lockConnIdleTime
	cfg.HealthCheckPeriod = time.Minute
	cfg.ConnConfig.ConnectTimeout = lockConnectTimeout
	// lock statements give up after five seconds instead of queueing behind a row lock
	cfg.ConnConfig.RuntimeParams["statement_timeout"] = lockStatementMillis
	cfg.ConnConfig.RuntimeParams["application_name"] = "account-cleanup-lock"
	return cfg, nil
}
