package redis

import (
	"context"
	"time"
)

// TokenCache keeps short-lived gateway access tokens so every replica does
// not have to run its own OAuth round trip.
type TokenCache struct {
	client RedisClient
	prefix string
}

func NewTokenCache(client RedisClient, prefix string) *TokenCache {
	return &TokenCache{client: client, prefix: prefix}
}

func (c *TokenCache) key(name string) string { return c.prefix + ":token:" + name }

// Get returns "" on a miss.
func (c *TokenCache) Get(ctx context.Context, name string) (string, error) {
	v, err := c.client.Get(ctx, c.key(name))
	if IsMiss(err) {
		return "", nil
	}
	return v, err
}

func (c *TokenCache) Store(ctx context.Context, name, token string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return c.client.Set(ctx, c.key(name), token, ttl)
}

func (c *TokenCache) Drop(ctx context.Context, name string) error {
	return c.client.Del(ctx, c.key(name))
}
