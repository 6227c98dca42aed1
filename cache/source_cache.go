package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"blogmusic/core/resolver"
	"blogmusic/logger"

	"github.com/go-redis/redis/v8"
)

const sourceKeyPrefix = "source:"

// SourceCache memoizes resolver output in Redis. Resolution is pure, so a cache outage only
// costs recomputation.
type SourceCache struct {
	client   *redis.Client
	ttl      time.Duration
	resolver resolver.Resolver
}

// NewSourceCache creates a cache. A nil client disables caching; a nil resolver uses the
// default heuristics.
func NewSourceCache(client *redis.Client, ttl time.Duration, res resolver.Resolver) *SourceCache {
	if res == nil {
		res = resolver.Default
	}
	return &SourceCache{client: client, ttl: ttl, resolver: res}
}

// SourceKey 生成缓存键
func SourceKey(sourceURL string, platform resolver.Platform) string {
	return sourceKeyPrefix + platform.String() + ":" + sourceURL
}

// Resolve returns the cached ResolvedSource or computes and stores it.
func (c *SourceCache) Resolve(ctx context.Context, sourceURL string, platform resolver.Platform) resolver.ResolvedSource {
	if c.client == nil {
		return c.resolver.Resolve(sourceURL, platform)
	}

	key := SourceKey(sourceURL, platform)
	data, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var rs resolver.ResolvedSource
		if jsonErr := json.Unmarshal(data, &rs); jsonErr == nil {
			return rs
		}
		logger.Warn("corrupt resolved source in cache, recomputing", logger.String("key", key))
	case errors.Is(err, redis.Nil):
		// 未命中
	default:
		logger.Warn("resolved source cache read failed",
			logger.String("key", key),
			logger.ErrorField(err))
	}

	rs := c.resolver.Resolve(sourceURL, platform)
	if data, err := json.Marshal(rs); err == nil {
		if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
			logger.Warn("resolved source cache write failed",
				logger.String("key", key),
				logger.ErrorField(err))
		}
	}
	return rs
}

// Invalidate drops the cached entry, e.g. after an admin edits the link.
func (c *SourceCache) Invalidate(ctx context.Context, sourceURL string, platform resolver.Platform) error {
	if c.client == nil {
		return nil
	}
	return c.client.Del(ctx, SourceKey(sourceURL, platform)).Err()
}
