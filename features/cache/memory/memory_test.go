package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fashnai/fashnai/analysis/contract"
)

func TestCacheGetSet(t *testing.T) {
	ctx := context.Background()
	c := New()
	_, ok, err := c.Get(ctx, "https://a")
	require.NoError(t, err)
	assert.False(t, ok)

	spec := contract.ProductSpecification{ProductName: "Tee", Brand: "H&M"}
	require.NoError(t, c.Set(ctx, "https://a", spec))
	got, ok, err := c.Get(ctx, " https://a ")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, spec, got)
}

func TestCacheExpires(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c := New(WithTTL(time.Minute), WithClock(func() time.Time { return now }))
	require.NoError(t, c.Set(ctx, "u", contract.ProductSpecification{ProductName: "x"}))

	now = now.Add(59 * time.Second)
	_, ok, _ := c.Get(ctx, "u")
	assert.True(t, ok)

	now = now.Add(2 * time.Second)
	_, ok, _ = c.Get(ctx, "u")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestCacheCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := New()
	assert.ErrorIs(t, c.Set(ctx, "u", contract.ProductSpecification{}), context.Canceled)
	_, _, err := c.Get(ctx, "u")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCacheConcurrent(t *testing.T) {
	ctx := context.Background()
	c := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = c.Set(ctx, "u", contract.ProductSpecification{ProductName: "x"})
			_, _, _ = c.Get(ctx, "u")
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, c.Len())
}
