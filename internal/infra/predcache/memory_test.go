package predcache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pandemetrix/pandemetrix/internal/domain/predictor"
)

func TestMemoryCacheRoundTrip(t *testing.T) {
	cache := NewMemoryCache()
	ctx := context.Background()

	_, ok, err := cache.Get(ctx, "missing")
	require.NoError(t, err)
	require.False(t, ok)

	res := predictor.Result{Prediction: predictor.Prediction{Country: "France", NewDeathsPredicted: 12}}
	require.NoError(t, cache.Set(ctx, "k", res, time.Minute))

	got, ok, err := cache.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, res, got)
}

func TestMemoryCacheExpiry(t *testing.T) {
	cache := NewMemoryCache()
	ctx := context.Background()
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return clock }

	require.NoError(t, cache.Set(ctx, "k", predictor.Result{}, time.Minute))

	_, ok, err := cache.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)

	clock = clock.Add(2 * time.Minute)
	_, ok, err = cache.Get(ctx, "k")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestMemoryCacheZeroTTLNeverExpires(t *testing.T) {
	cache := NewMemoryCache()
	ctx := context.Background()
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return clock }

	require.NoError(t, cache.Set(ctx, "k", predictor.Result{}, 0))

	clock = clock.Add(24 * time.Hour)
	_, ok, err := cache.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
}
