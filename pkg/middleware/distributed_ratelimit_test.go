package middleware

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestDistributedRateLimiter_Allow(t *testing.T) {
	mr, client := newRedis(t)
	limiter := NewDistributedRateLimiter(client, &RateLimitConfig{RequestsPerWindow: 3, WindowDuration: time.Minute}, "test")
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		d, err := limiter.Allow(ctx, "login:ip:1.2.3.4")
		require.NoError(t, err)
		assert.True(t, d.Allowed)
		assert.Equal(t, 2-i, d.Remaining)
	}

	d, err := limiter.Allow(ctx, "login:ip:1.2.3.4")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, 0, d.Remaining)
	assert.InDelta(t, time.Minute.Seconds(), d.ResetAfter.Seconds(), 1)

	assert.True(t, mr.Exists("test:login:ip:1.2.3.4"))

	mr.FastForward(time.Minute + time.Second)
	d, err = limiter.Allow(ctx, "login:ip:1.2.3.4")
	require.NoError(t, err)
	assert.True(t, d.Allowed, "a new window starts after expiry")
}

func TestDistributedRateLimiter_WindowNotExtended(t *testing.T) {
	mr, client := newRedis(t)
	limiter := NewDistributedRateLimiter(client, &RateLimitConfig{RequestsPerWindow: 100, WindowDuration: time.Minute}, "")
	ctx := context.Background()

	_, err := limiter.Allow(ctx, "k")
	require.NoError(t, err)
	mr.FastForward(40 * time.Second)
	_, err = limiter.Allow(ctx, "k")
	require.NoError(t, err)

	assert.LessOrEqual(t, mr.TTL("ratelimit:k"), 20*time.Second)
}

func TestDistributedRateLimiter_Reset(t *testing.T) {
	_, client := newRedis(t)
	limiter := NewDistributedRateLimiter(client, &RateLimitConfig{RequestsPerWindow: 1, WindowDuration: time.Minute}, "test")
	ctx := context.Background()

	_, _ = limiter.Allow(ctx, "k")
	d, _ := limiter.Allow(ctx, "k")
	require.False(t, d.Allowed)

	require.NoError(t, limiter.Reset(ctx, "k"))
	d, err := limiter.Allow(ctx, "k")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestDistributedRateLimiter_RedisDown(t *testing.T) {
	mr, client := newRedis(t)
	limiter := NewDistributedRateLimiter(client, nil, "test")
	mr.Close()

	_, err := limiter.Allow(context.Background(), "k")
	assert.Error(t, err)
}
