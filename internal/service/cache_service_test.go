package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

type brokenCache struct{}

func (brokenCache) Get(ctx context.Context, key string, dest interface{}) error {
	return errors.New("connection refused")
}

func (brokenCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return errors.New("connection refused")
}

func (brokenCache) Delete(ctx context.Context, keys ...string) error {
	return errors.New("connection refused")
}

func TestCacheServiceHitAndMiss(t *testing.T) {
	metrics := NewMetricsService()
	mem := newMemCache()
	svc := NewCacheService(mem, metrics, time.Minute, nil, true)
	ctx := context.Background()

	var out map[string]int
	assert.False(t, svc.Get(ctx, "k", &out))

	svc.Set(ctx, "k", map[string]int{"a": 1}, 0)
	assert.True(t, svc.Get(ctx, "k", &out))
	assert.Equal(t, 1, out["a"])

	svc.Invalidate(ctx, "k")
	assert.False(t, svc.Get(ctx, "k", &out))

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.cacheHits))
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.cacheMisses))
}

func TestCacheServiceDisabled(t *testing.T) {
	mem := newMemCache()
	svc := NewCacheService(mem, nil, 0, nil, false)

	svc.Set(context.Background(), "k", 1, 0)
	assert.Empty(t, mem.items)
	assert.False(t, svc.Enabled())

	var nilSvc *CacheService
	assert.False(t, nilSvc.Enabled())
	assert.False(t, nilSvc.Get(context.Background(), "k", new(int)))
	assert.NotPanics(t, func() { nilSvc.Invalidate(context.Background(), "k") })
}

func TestCacheServiceFailuresAreMisses(t *testing.T) {
	svc := NewCacheService(brokenCache{}, nil, 0, nil, true)
	var out int

	assert.False(t, svc.Get(context.Background(), "k", &out))
	assert.NotPanics(t, func() {
		svc.Set(context.Background(), "k", 1, 0)
		svc.Invalidate(context.Background(), "k")
	})
}

func TestCacheServiceSetIfCurrent(t *testing.T) {
	mem := newMemCache()
	svc := NewCacheService(mem, nil, time.Minute, nil, true)
	ctx := context.Background()

	gen := svc.Generation("k")
	assert.True(t, svc.SetIfCurrent(ctx, "k", gen, 1, 0))
	assert.Contains(t, mem.items, "k")

	stale := svc.Generation("k")
	svc.Invalidate(ctx, "k")
	assert.NotEqual(t, stale, svc.Generation("k"))
	assert.False(t, svc.SetIfCurrent(ctx, "k", stale, 2, 0))
	assert.NotContains(t, mem.items, "k")

	assert.True(t, svc.SetIfCurrent(ctx, "k", svc.Generation("k"), 3, 0))

	disabled := NewCacheService(mem, nil, 0, nil, false)
	assert.False(t, disabled.SetIfCurrent(ctx, "k", disabled.Generation("k"), 4, 0))
}
