package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (IRedis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	cache := NewWithOptions(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { cache.Close() })
	return cache, mr
}

func TestPredictionRoundTrip(t *testing.T) {
	cache, mr := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.SetPrediction(ctx, "abc", []byte(`{"results":[]}`), time.Minute))
	assert.True(t, mr.Exists(keyPrefix+"abc"))

	got, err := cache.GetPrediction(ctx, "abc")
	require.NoError(t, err)
	assert.JSONEq(t, `{"results":[]}`, string(got))

	require.NoError(t, cache.DeletePrediction(ctx, "abc"))
	_, err = cache.GetPrediction(ctx, "abc")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestPredictionExpires(t *testing.T) {
	cache, mr := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.SetPrediction(ctx, "ttl", []byte("x"), time.Minute))
	mr.FastForward(2 * time.Minute)

	_, err := cache.GetPrediction(ctx, "ttl")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestNewWithoutAddressDisablesCache(t *testing.T) {
	t.Setenv("REDIS_ADDRESS", "")
	assert.Nil(t, New())
}
