// Package redisdb provides the Redis connection and the Redis cron lock backend.
package redisdb

import (
	"context"
	"fmt"
	"time"

	"github.com/ErlanBelekov/account-lifecycle/internal/domain"
	"github.com/redis/go-redis/v9"
)

func Connect(ctx context.Context, uri string) (*redis.Client, error) {
	opt, err := redis.ParseURL(uri)
	if err != nil {
		return nil, fmt.Errorf("parse redis uri: %w", err)
	}

	opt.PoolSize = 10
	opt.MinIdleConns = 2
	opt.MaxRetries = 3
	opt.DialTimeout = 5 * time.Second
	opt.ReadTimeout = 3 * time.Second
	opt.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// Pinger adapts a client to health.Pinger.
type Pinger struct {
	Client redis.Cmdable
}

func (p Pinger) Ping(ctx context.Context) error {
	return p.Client.Ping(ctx).Err()
}

type setNXer interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
}

// LockBackend relies on key expiry: an expired lease is simply gone, so SET NX is the
// whole protocol.
type LockBackend struct {
	client setNXer
}

func NewLockBackend(client setNXer) *LockBackend {
	return &LockBackend{client: client}
}

func (b *LockBackend) TryAcquire(ctx context.Context, rec domain.LockRecord) (bool, error) {
	ttl := rec.ExpiresAt.Sub(rec.AcquiredAt)
	ok, err := b.client.SetNX(ctx, rec.Name, rec.Owner, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("setnx %s: %w", rec.Name, err)
	}
	return ok, nil
}
