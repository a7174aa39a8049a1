// Package redis provides a Redis backed implementation of cache.SpecCache.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fashnai/fashnai/analysis/contract"
	"github.com/fashnai/fashnai/features/cache"
)

type (
	// Client is the subset of the go-redis client used by the cache.
	Client interface {
		Get(ctx context.Context, key string) *redis.StringCmd
		Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
		Ping(ctx context.Context) *redis.StatusCmd
	}

	// Cache stores specifications as JSON strings with a TTL.
	Cache struct {
		client Client
		ttl    time.Duration
	}
)

var _ cache.SpecCache = (*Cache)(nil)

// New returns a cache using client. A non-positive ttl selects
// cache.DefaultTTL.
func New(client Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = cache.DefaultTTL
	}
	return &Cache{client: client, ttl: ttl}
}

// Get returns the specification cached for url.
func (c *Cache) Get(ctx context.Context, url string) (contract.ProductSpecification, bool, error) {
	raw, err := c.client.Get(ctx, cache.Key(url)).Result()
	if errors.Is(err, redis.Nil) {
		return contract.ProductSpecification{}, false, nil
	}
	if err != nil {
		return contract.ProductSpecification{}, false, fmt.Errorf("redis cache get: %w", err)
	}
	var spec contract.ProductSpecification
	if err := json.Unmarshal([]byte(raw), &spec); err != nil {
		return contract.ProductSpecification{}, false, fmt.Errorf("redis cache decode: %w", err)
	}
	return spec, true, nil
}

// Set caches spec for url.
func (c *Cache) Set(ctx context.Context, url string, spec contract.ProductSpecification) error {
	b, err := json.Marshal(spec)
	if err != nil {
		return fmt.Errorf("redis cache encode: %w", err)
	}
	if err := c.client.Set(ctx, cache.Key(url), string(b), c.ttl).Err(); err != nil {
		return fmt.Errorf("redis cache set: %w", err)
	}
	return nil
}

// Name implements the clue health.Pinger interface.
func (c *Cache) Name() string { return "redis" }

// Ping implements the clue health.Pinger interface.
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
