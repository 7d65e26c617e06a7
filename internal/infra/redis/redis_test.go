package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"

	"earlykickoff-backend/internal/domain"
)

// memClient is an in-memory RedisClient good enough for counter and token tests.
type memClient struct {
	vals    map[string]string
	counts  map[string]int64
	expires map[string]time.Duration
	failGet error
}

func newMemClient() *memClient {
	return &memClient{vals: map[string]string{}, counts: map[string]int64{}, expires: map[string]time.Duration{}}
}

func (m *memClient) Ping(ctx context.Context) error { return nil }
func (m *memClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	switch v := value.(type) {
	case string:
		m.vals[key] = v
	case []byte:
		m.vals[key] = string(v)
	}
	m.expires[key] = expiration
	return nil
}
func (m *memClient) Get(ctx context.Context, key string) (string, error) {
	if m.failGet != nil {
		return "", m.failGet
	}
	v, ok := m.vals[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}
func (m *memClient) Incr(ctx context.Context, key string) (int64, error) {
	m.counts[key]++
	return m.counts[key], nil
}
func (m *memClient) Expire(ctx context.Context, key string, expiration time.Duration) error {
	m.expires[key] = expiration
	return nil
}
func (m *memClient) Del(ctx context.Context, keys ...string) error {
	for _, k := range keys {
		delete(m.vals, k)
	}
	return nil
}
func (m *memClient) Close() error { return nil }

func TestRateLimiter_Allow(t *testing.T) {
	ctx := context.Background()
	mc := newMemClient()
	rl := NewRateLimiter(mc)
	key := InitiateKey("auth-1")

	for i := 1; i <= 3; i++ {
		ok, err := rl.Allow(ctx, key, 3, time.Minute)
		if err != nil || !ok {
			t.Fatalf("call %d should pass: ok=%v err=%v", i, ok, err)
		}
	}
	ok, err := rl.Allow(ctx, key, 3, time.Minute)
	if err != nil || ok {
		t.Fatalf("fourth call should be limited: ok=%v err=%v", ok, err)
	}
	if mc.expires[key] != time.Minute {
		t.Errorf("window should be set on the first hit, got %v", mc.expires[key])
	}
}

func TestTokenCache(t *testing.T) {
	ctx := context.Background()
	mc := newMemClient()
	tc := NewTokenCache(mc, "mpesa")

	got, err := tc.Get(ctx, "oauth")
	if err != nil || got != "" {
		t.Fatalf("miss should be empty without error, got %q %v", got, err)
	}

	if err := tc.Store(ctx, "oauth", "tok", 50*time.Minute); err != nil {
		t.Fatalf("Store: %v", err)
	}
	got, _ = tc.Get(ctx, "oauth")
	if got != "tok" {
		t.Fatalf("expected cached token, got %q", got)
	}

	if err := tc.Drop(ctx, "oauth"); err != nil {
		t.Fatalf("Drop: %v", err)
	}
	got, _ = tc.Get(ctx, "oauth")
	if got != "" {
		t.Fatalf("expected token to be gone, got %q", got)
	}

	mc.failGet = errors.New("connection refused")
	if _, err := tc.Get(ctx, "oauth"); err == nil {
		t.Fatal("a real redis failure must surface")
	}
}

type memLockBackend struct {
	vals   map[string]string
	setErr error
}

func (m *memLockBackend) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	if m.setErr != nil {
		return false, m.setErr
	}
	if _, taken := m.vals[key]; taken {
		return false, nil
	}
	m.vals[key] = value
	return true, nil
}

func (m *memLockBackend) CompareAndDelete(ctx context.Context, key, value string) (bool, error) {
	if m.vals[key] != value {
		return false, nil
	}
	delete(m.vals, key)
	return true, nil
}

func TestRedisLocker(t *testing.T) {
	ctx := context.Background()
	be := &memLockBackend{vals: map[string]string{}}
	l := NewLocker(be)
	l.wait = time.Millisecond

	token, err := l.TryLock(ctx, "lock:sweep", time.Minute)
	if err != nil || token == "" {
		t.Fatalf("first lock should succeed: %q %v", token, err)
	}
	if _, err := l.TryLock(ctx, "lock:sweep", time.Minute); !errors.Is(err, domain.ErrLockNotAcquired) {
		t.Fatalf("second lock should be refused, got %v", err)
	}

	if err := l.Unlock(ctx, "lock:sweep", "someone-else"); err != nil {
		t.Fatalf("Unlock: %v", err)
	}
	if _, held := be.vals["lock:sweep"]; !held {
		t.Fatal("a stale token must not release the lock")
	}
	if err := l.Unlock(ctx, "lock:sweep", token); err != nil {
		t.Fatalf("Unlock: %v", err)
	}
	if _, err := l.TryLock(ctx, "lock:sweep", time.Minute); err != nil {
		t.Fatalf("lock should be free again: %v", err)
	}

	be.setErr = errors.New("connection refused")
	_, err = l.TryLock(ctx, "lock:other", time.Minute)
	if err == nil || errors.Is(err, domain.ErrLockNotAcquired) {
		t.Fatalf("a redis outage must surface as a real error, got %v", err)
	}
}

func TestRateLimiter_Disabled(t *testing.T) {
	mc := newMemClient()
	rl := NewRateLimiter(mc)
	for i := 0; i < 10; i++ {
		if ok, err := rl.Allow(context.Background(), "k", 0, time.Minute); !ok || err != nil {
			t.Fatalf("limit 0 should never block: ok=%v err=%v", ok, err)
		}
	}
	if mc.counts["k"] != 0 {
		t.Fatal("disabled limiter should not touch redis")
	}
}
