// Package cache defines the product specification cache used to avoid
// re-crawling a product page within a short window.
//
// Available implementations:
//
//   - memory: in-process TTL cache
//   - redis: Redis backed TTL cache shared between replicas
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/fashnai/fashnai/analysis/contract"
)

// DefaultTTL is the lifetime of cached specifications when none is set.
const DefaultTTL = time.Hour

// SpecCache stores product specifications by product URL. Implementations
// must be safe for concurrent use.
type SpecCache interface {
	// Get returns the specification cached for url. The boolean is false
	// when no unexpired entry exists.
	Get(ctx context.Context, url string) (contract.ProductSpecification, bool, error)
	// Set caches spec for url.
	Set(ctx context.Context, url string, spec contract.ProductSpecification) error
}

// Key returns the cache key for a product URL. URLs are trimmed and
// hashed so keys have a fixed length.
func Key(url string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(url)))
	return "fashnai:spec:" + hex.EncodeToString(sum[:])
}
