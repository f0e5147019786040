package middleware

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
)

// DistributedRateLimiter implements fixed-window rate limiting in Redis so
// that limits are shared across instances.
type DistributedRateLimiter struct {
	redis  *redis.Client
	config *RateLimitConfig
	prefix string
}

// NewDistributedRateLimiter creates a new Redis-backed rate limiter
func NewDistributedRateLimiter(redisClient *redis.Client, config *RateLimitConfig, prefix string) *DistributedRateLimiter {
	if config == nil {
		config = DefaultRateLimitConfig()
	}
	if prefix == "" {
		prefix = "ratelimit"
	}

	return &DistributedRateLimiter{
		redis:  redisClient,
		config: config,
		prefix: prefix,
	}
}

func (rl *DistributedRateLimiter) limit() int {
	return rl.config.RequestsPerWindow + rl.config.BurstSize
}

// Allow counts one request in the current window. The window starts with
// the first request for the key; later requests do not extend it.
func (rl *DistributedRateLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	redisKey := fmt.Sprintf("%s:%s", rl.prefix, key)

	var incr *redis.IntCmd
	var ttl *redis.DurationCmd
	_, err := rl.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SetNX(ctx, redisKey, 0, rl.config.WindowDuration)
		incr = pipe.Incr(ctx, redisKey)
		ttl = pipe.PTTL(ctx, redisKey)
		return nil
	})
	if err != nil {
		return Decision{}, fmt.Errorf("redis error: %w", err)
	}

	count := int(incr.Val())
	reset := ttl.Val()
	if reset <= 0 {
		reset = rl.config.WindowDuration
	}

	remaining := rl.limit() - count
	if remaining < 0 {
		remaining = 0
	}
	return Decision{
		Allowed:    count <= rl.limit(),
		Limit:      rl.config.RequestsPerWindow,
		Remaining:  remaining,
		ResetAfter: reset,
	}, nil
}

// Reset clears the rate limit for a key
func (rl *DistributedRateLimiter) Reset(ctx context.Context, key string) error {
	redisKey := fmt.Sprintf("%s:%s", rl.prefix, key)
	return rl.redis.Del(ctx, redisKey).Err()
}

