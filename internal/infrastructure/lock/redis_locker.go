package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"

	domainorphan "rosterrecon/internal/domain/orphan"
	"rosterrecon/internal/errs"
	"rosterrecon/internal/ports"
)

const defaultLockTTL = 30 * time.Second

// RedisLocker serializes resolution of one composite id across processes.
// The lock only narrows the race window; the store's guarded delete still decides.
type RedisLocker struct {
	client *redislock.Client
	ttl    time.Duration
}

var _ ports.ResolveLocker = (*RedisLocker)(nil)

func NewRedisLocker(client redislock.RedisClient, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &RedisLocker{client: redislock.New(client), ttl: ttl}
}

func (l *RedisLocker) Acquire(ctx context.Context, key string) (func(context.Context) error, error) {
	lock, err := l.client.Obtain(ctx, key, l.ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, fmt.Errorf("%w: %s", domainorphan.ErrResolveBusy, key)
	}
	if err != nil {
		return nil, errs.Wrapf(err, "obtain lock %s", key)
	}

	return func(releaseCtx context.Context) error {
		if err := lock.Release(releaseCtx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			return errs.Wrapf(err, "release lock %s", key)
		}
		return nil
	}, nil
}

// NoopLocker is used when no Redis is configured.
type NoopLocker struct{}

var _ ports.ResolveLocker = NoopLocker{}

func (NoopLocker) Acquire(context.Context, string) (func(context.Context) error, error) {
	return func(context.Context) error { return nil }, nil
}
