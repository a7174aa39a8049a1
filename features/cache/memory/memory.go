// Package memory provides an in-process implementation of cache.SpecCache.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/fashnai/fashnai/analysis/contract"
	"github.com/fashnai/fashnai/features/cache"
)

// Cache is an in-memory TTL cache. It is safe for concurrent use.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]entry
	ttl     time.Duration
	now     func() time.Time
}

type entry struct {
	spec      contract.ProductSpecification
	expiresAt time.Time
}

// Option configures a Cache.
type Option func(*Cache)

var _ cache.SpecCache = (*Cache)(nil)

// WithTTL sets the entry lifetime.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithClock overrides the clock.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// New creates a new in-memory cache.
func New(opts ...Option) *Cache {
	c := &Cache{entries: make(map[string]entry), ttl: cache.DefaultTTL, now: time.Now}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Get returns the unexpired specification cached for url.
func (c *Cache) Get(ctx context.Context, url string) (contract.ProductSpecification, bool, error) {
	if err := ctx.Err(); err != nil {
		return contract.ProductSpecification{}, false, err
	}
	key := cache.Key(url)
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return contract.ProductSpecification{}, false, nil
	}
	if c.now().After(e.expiresAt) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return contract.ProductSpecification{}, false, nil
	}
	return e.spec, true, nil
}

// Set caches spec for url.
func (c *Cache) Set(ctx context.Context, url string, spec contract.ProductSpecification) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[cache.Key(url)] = entry{spec: spec, expiresAt: c.now().Add(c.ttl)}
	return nil
}

// Len returns the number of entries, expired ones included.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
