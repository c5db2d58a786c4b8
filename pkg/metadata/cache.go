package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultCacheTTL = 24 * time.Hour

// RedisCache memoizes resolved metadata by ISBN so repeated catalog adds and
// bulk refreshes do not hammer the providers.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache connects a cache to Redis. ttl <= 0 selects the default.
func NewRedisCache(addr, password string, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &RedisCache{
		client: redis.NewClient(&redis.Options{Addr: addr, Password: password}),
		ttl:    ttl,
	}
}

// Get returns the cached resolution for an ISBN, if present.
func (c *RedisCache) Get(ctx context.Context, isbn string) (Resolved, bool, error) {
	raw, err := c.client.Get(ctx, cacheKey(isbn)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Resolved{}, false, nil
	}
	if err != nil {
		return Resolved{}, false, err
	}
	var r Resolved
	if err := json.Unmarshal(raw, &r); err != nil {
		return Resolved{}, false, fmt.Errorf("decode cached metadata: %w", err)
	}
	return r, true, nil
}

// Put stores a resolution with the configured TTL.
func (c *RedisCache) Put(ctx context.Context, isbn string, r Resolved) error {
	raw, err := json.Marshal(r)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, cacheKey(isbn), raw, c.ttl).Err()
}

func cacheKey(isbn string) string {
	return "metadata:isbn:" + isbn
}
