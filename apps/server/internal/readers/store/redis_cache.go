package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tilsley/scmreader/pkg/reading"
)

const redisKeyPrefix = "scmreader:file:"

// Compile-time check: *RedisResponseCache implements reading.ResponseCache.
var _ reading.ResponseCache = (*RedisResponseCache)(nil)

// RedisResponseCache implements reading.ResponseCache using go-redis directly.
type RedisResponseCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisResponseCache creates a cache whose entries expire after ttl.
// A zero ttl keeps entries until evicted.
func NewRedisResponseCache(rdb *redis.Client, ttl time.Duration) *RedisResponseCache {
	return &RedisResponseCache{rdb: rdb, ttl: ttl}
}

// Get returns the cached response for url, or nil if there is none.
func (c *RedisResponseCache) Get(ctx context.Context, url string) (*reading.CachedResponse, error) {
	val, err := c.rdb.Get(ctx, redisKeyPrefix+url).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil //nolint:nilnil // caller checks nil value to detect a miss
	}
	if err != nil {
		return nil, fmt.Errorf("get cached response %q: %w", url, err)
	}
	var resp reading.CachedResponse
	if err := json.Unmarshal(val, &resp); err != nil {
		return nil, fmt.Errorf("unmarshal cached response %q: %w", url, err)
	}
	return &resp, nil
}

// Put stores resp under url.
func (c *RedisResponseCache) Put(ctx context.Context, url string, resp reading.CachedResponse) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("marshal cached response: %w", err)
	}
	if err := c.rdb.Set(ctx, redisKeyPrefix+url, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("put cached response %q: %w", url, err)
	}
	return nil
}
