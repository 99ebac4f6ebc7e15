package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLimiter(t *testing.T, limits []Limit) (*Limiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return New(client, limits), mr
}

func TestLimiter_BurstWindow(t *testing.T) {
	limiter, _ := newTestLimiter(t, []Limit{{Name: "minute", Max: 3, Window: time.Minute}})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, _ := limiter.Allow(ctx, "builder:tenant-1")
		require.True(t, ok, "request %d should pass", i+1)
	}

	ok, retryAfter := limiter.Allow(ctx, "builder:tenant-1")
	assert.False(t, ok)
	assert.Greater(t, retryAfter, time.Duration(0))
	assert.LessOrEqual(t, retryAfter, time.Minute)
}

func TestLimiter_WindowReset(t *testing.T) {
	limiter, mr := newTestLimiter(t, []Limit{{Name: "minute", Max: 2, Window: time.Minute}})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		ok, _ := limiter.Allow(ctx, "builder:tenant-1")
		require.True(t, ok)
	}
	ok, _ := limiter.Allow(ctx, "builder:tenant-1")
	require.False(t, ok)

	mr.FastForward(time.Minute + time.Second)

	ok, _ = limiter.Allow(ctx, "builder:tenant-1")
	assert.True(t, ok, "window should reset after expiry")
}

func TestLimiter_DailyCapSurvivesBurstReset(t *testing.T) {
	limiter, mr := newTestLimiter(t, []Limit{
		{Name: "minute", Max: 2, Window: time.Minute},
		{Name: "day", Max: 3, Window: 24 * time.Hour},
	})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		ok, _ := limiter.Allow(ctx, "builder:tenant-1")
		require.True(t, ok)
	}

	mr.FastForward(time.Minute + time.Second)

	// Burst window reset, one daily unit left.
	ok, _ := limiter.Allow(ctx, "builder:tenant-1")
	require.True(t, ok)

	ok, retryAfter := limiter.Allow(ctx, "builder:tenant-1")
	assert.False(t, ok, "daily cap must hold across burst resets")
	assert.Greater(t, retryAfter, time.Minute)
}

func TestLimiter_KeysAreIndependent(t *testing.T) {
	limiter, _ := newTestLimiter(t, []Limit{{Name: "minute", Max: 1, Window: time.Minute}})
	ctx := context.Background()

	ok, _ := limiter.Allow(ctx, "builder:tenant-1")
	require.True(t, ok)
	ok, _ = limiter.Allow(ctx, "builder:tenant-1")
	require.False(t, ok)

	ok, _ = limiter.Allow(ctx, "builder:tenant-2")
	assert.True(t, ok, "another tenant's budget must be untouched")
}

func TestLimiter_FailsOpenWhenRedisDown(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	limiter := New(client, BuilderLimits)

	mr.Close()

	ok, retryAfter := limiter.Allow(context.Background(), "builder:tenant-1")
	assert.True(t, ok)
	assert.Zero(t, retryAfter)
}
