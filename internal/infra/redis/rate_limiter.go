package redis

import (
	"context"
	"time"
)

// RateLimiter is a fixed-window counter keyed per caller.
type RateLimiter struct {
	client RedisClient
}

func NewRateLimiter(client RedisClient) *RateLimiter {
	return &RateLimiter{client: client}
}

// Allow counts one hit against key. A limit of zero or less never blocks.
func (r *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if limit <= 0 {
		return true, nil
	}
	n, err := r.client.Incr(ctx, key)
	if err != nil {
		return false, err
	}
	if n == 1 {
		if err := r.client.Expire(ctx, key, window); err != nil {
			// a counter without a TTL would block the caller forever
			_ = r.client.Del(ctx, key)
			return false, err
		}
	}
	return n <= int64(limit), nil
}

// InitiateKey scopes STK push attempts to one authenticated caller.
func InitiateKey(authID string) string {
	return "rate_limit:initiate:" + authID
}
