package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"earlykickoff-backend/internal/domain"
)

// Locker hands out short leases so only one replica runs a periodic sweep.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, err error)
	Unlock(ctx context.Context, key, token string) error
}

type lockBackend interface {
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	CompareAndDelete(ctx context.Context, key, value string) (bool, error)
}

var _ Locker = (*RedisLocker)(nil)

type RedisLocker struct {
	backend lockBackend
	tries   int
	wait    time.Duration
}

func NewLocker(backend lockBackend) *RedisLocker {
	return &RedisLocker{backend: backend, tries: 3, wait: 50 * time.Millisecond}
}

// TryLock returns domain.ErrLockNotAcquired when someone else holds key and a
// wrapped error when Redis itself keeps failing.
func (l *RedisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	token := uuid.NewString()
	var lastErr error
	for i := 0; i < l.tries; i++ {
		ok, err := l.backend.SetNX(ctx, key, token, ttl)
		switch {
		case err != nil:
			lastErr = err
		case ok:
			return token, nil
		default:
			lastErr = nil
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(l.wait):
		}
	}
	if lastErr != nil {
		return "", fmt.Errorf("lock %s: %w", key, lastErr)
	}
	return "", domain.ErrLockNotAcquired
}

// Unlock is a no-op when the lease already expired and someone else took it.
func (l *RedisLocker) Unlock(ctx context.Context, key, token string) error {
	_, err := l.backend.CompareAndDelete(ctx, key, token)
	return err
}
