package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"earlykickoff-backend/internal/domain/model"
	"earlykickoff-backend/internal/domain/ports/repository"
	"earlykickoff-backend/internal/infra/metrics"
	red "earlykickoff-backend/internal/infra/redis"
)

var _ repository.CatalogRepository = (*catalogRepoCacheDecorator)(nil)

// catalogRepoCacheDecorator fronts event and product lookups, which the image
// routes hit on every request.
type catalogRepoCacheDecorator struct {
	inner repository.CatalogRepository
	cache red.RedisClient
	ttl   time.Duration
}

func NewCatalogRepoCacheDecorator(inner repository.CatalogRepository, cache red.RedisClient, ttl time.Duration) repository.CatalogRepository {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &catalogRepoCacheDecorator{
		inner: inner,
		cache: cache,
		ttl:   ttl,
	}
}

func (d *catalogRepoCacheDecorator) FindEvent(ctx context.Context, tx repository.Tx, id int64) (*model.Event, error) {
	key := fmt.Sprintf("event:%d", id)
	if val, err := d.cache.Get(ctx, key); err == nil {
		var e model.Event
		if json.Unmarshal([]byte(val), &e) == nil {
			metrics.IncCacheRequest("event", "hit")
			return &e, nil
		}
	}

	metrics.IncCacheRequest("event", "miss")
	e, err := d.inner.FindEvent(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if b, err := json.Marshal(e); err == nil {
		_ = d.cache.Set(ctx, key, b, d.ttl)
	}
	return e, nil
}

func (d *catalogRepoCacheDecorator) FindProduct(ctx context.Context, tx repository.Tx, id int64) (*model.Product, error) {
	key := fmt.Sprintf("product:%d", id)
	if val, err := d.cache.Get(ctx, key); err == nil {
		var p model.Product
		if json.Unmarshal([]byte(val), &p) == nil {
			metrics.IncCacheRequest("product", "hit")
			return &p, nil
		}
	}

	metrics.IncCacheRequest("product", "miss")
	p, err := d.inner.FindProduct(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if b, err := json.Marshal(p); err == nil {
		_ = d.cache.Set(ctx, key, b, d.ttl)
	}
	return p, nil
}
