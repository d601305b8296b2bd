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

func TestMemoryLimiterWindow(t *testing.T) {
	limiter := NewMemoryLimiter()
	now := time.Date(2025, 10, 1, 8, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }
	ctx := context.Background()

	first, err := limiter.Allow(ctx, "rate:alice", 2, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, AllowResult{Allowed: true, Remaining: 1}, first)

	second, _ := limiter.Allow(ctx, "rate:alice", 2, time.Minute)
	assert.Equal(t, AllowResult{Allowed: true, Remaining: 0}, second)

	now = now.Add(20 * time.Second)
	third, _ := limiter.Allow(ctx, "rate:alice", 2, time.Minute)
	assert.False(t, third.Allowed)
	assert.Equal(t, 40*time.Second, third.RetryAfter)

	other, _ := limiter.Allow(ctx, "rate:bob", 2, time.Minute)
	assert.True(t, other.Allowed)

	now = now.Add(61 * time.Second)
	fresh, _ := limiter.Allow(ctx, "rate:alice", 2, time.Minute)
	assert.True(t, fresh.Allowed)
	assert.Equal(t, 1, fresh.Remaining)
	// 过期窗口在新窗口开启时被清理。
	assert.NotContains(t, limiter.store, "rate:bob")
}

func TestLimiterDisabled(t *testing.T) {
	ctx := context.Background()
	for _, limiter := range []Limiter{NewMemoryLimiter(), NewRedisLimiter(nil, "")} {
		res, err := limiter.Allow(ctx, "any", 0, time.Minute)
		require.NoError(t, err)
		assert.Equal(t, AllowResult{Allowed: true, Remaining: -1}, res)
	}
}

func TestRedisLimiterFixedWindow(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	limiter := NewRedisLimiter(rdb, "community")
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		res, err := limiter.Allow(ctx, "comment:alice", 3, time.Minute)
		require.NoError(t, err)
		require.True(t, res.Allowed)
		require.Equal(t, 2-i, res.Remaining)
	}
	mr.FastForward(30 * time.Second)
	blocked, err := limiter.Allow(ctx, "comment:alice", 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, blocked.Allowed)
	// 后续请求不续期窗口。
	assert.Equal(t, 30*time.Second, blocked.RetryAfter)

	mr.FastForward(31 * time.Second)
	res, err := limiter.Allow(ctx, "comment:alice", 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestRedisLimiterRepairsMissingExpiry(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	limiter := NewRedisLimiter(rdb, "")

	require.NoError(t, mr.Set("ratelimit:create:alice", "10"))
	res, err := limiter.Allow(context.Background(), "create:alice", 5, time.Minute)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, time.Minute, res.RetryAfter)
	assert.Equal(t, time.Minute, mr.TTL("ratelimit:create:alice"))
}
