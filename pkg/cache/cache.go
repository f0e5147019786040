package cache

import (
	"context"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/nasa-explorer/explorer/pkg/observability"
)

// Tier labels used in cache metrics
const (
	TierMemory = "memory"
	TierRedis  = "redis"
)

// Config configures a tiered cache
type Config struct {
	// Size is the maximum number of in-memory entries
	Size int
	// TTL applies to both tiers
	TTL time.Duration
	// Prefix namespaces keys in Redis
	Prefix string
}

// DefaultConfig returns the defaults used when no config is given
func DefaultConfig() *Config {
	return &Config{
		Size:   256,
		TTL:    10 * time.Minute,
		Prefix: "explorer:cache",
	}
}

// Cache is a two-tier byte cache: an expirable LRU in front of an optional
// Redis tier. A Redis failure degrades to a miss; it never fails a read.
type Cache struct {
	config  *Config
	local   *lru.LRU[string, []byte]
	remote  *RedisClient
	metrics *observability.Metrics

	hits   atomic.Int64
	misses atomic.Int64
}

// Stats is a point-in-time snapshot of cache effectiveness
type Stats struct {
	Hits      int64
	Misses    int64
	HitRate   float64
	ItemCount int64
}

// New creates a cache. remote and metrics may be nil.
func New(config *Config, remote *RedisClient, metrics *observability.Metrics) *Cache {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Size < 10 {
		config.Size = 10
	}

	return &Cache{
		config:  config,
		local:   lru.NewLRU[string, []byte](config.Size, nil, config.TTL),
		remote:  remote,
		metrics: metrics,
	}
}

func (c *Cache) remoteKey(key string) string {
	return c.config.Prefix + ":" + key
}

// Get returns the value for key from the first tier that has it. A Redis
// hit is copied into memory.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, error) {
	if key == "" {
		return nil, ErrInvalidCacheKey
	}

	if v, ok := c.local.Get(key); ok {
		c.recordHit(TierMemory)
		return v, nil
	}
	c.metrics.CacheMiss(TierMemory)

	if c.remote != nil {
		v, err := c.remote.Get(ctx, c.remoteKey(key))
		if err == nil {
			c.local.Add(key, v)
			c.recordHit(TierRedis)
			return v, nil
		}
		c.metrics.CacheMiss(TierRedis)
	}

	c.misses.Add(1)
	return nil, ErrCacheMiss
}

// Set stores value in every tier. The returned error only reports a
// Redis write failure; the memory tier always succeeds.
func (c *Cache) Set(ctx context.Context, key string, value []byte) error {
	if key == "" {
		return ErrInvalidCacheKey
	}

	c.local.Add(key, value)
	if c.remote == nil {
		return nil
	}
	return c.remote.Set(ctx, c.remoteKey(key), value, c.config.TTL)
}

// Delete removes key from every tier
func (c *Cache) Delete(ctx context.Context, key string) error {
	if key == "" {
		return ErrInvalidCacheKey
	}

	c.local.Remove(key)
	if c.remote == nil {
		return nil
	}
	return c.remote.Delete(ctx, c.remoteKey(key))
}

// Purge empties the memory tier and every prefixed Redis key
func (c *Cache) Purge(ctx context.Context) error {
	c.local.Purge()
	if c.remote == nil {
		return nil
	}
	return c.remote.InvalidatePattern(ctx, c.config.Prefix+":*")
}

// Stats returns cache statistics
func (c *Cache) Stats() Stats {
	stats := Stats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		ItemCount: int64(c.local.Len()),
	}
	if total := stats.Hits + stats.Misses; total > 0 {
		stats.HitRate = float64(stats.Hits) / float64(total)
	}
	return stats
}

func (c *Cache) recordHit(tier string) {
	c.hits.Add(1)
	c.metrics.CacheHit(tier)
}
