package resultcache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/connexus-ai/ragbox-backend/internal/model"
)

// RedisCache is the shared-backend result cache for deployments that
// configure a cache backend URL (§4.9, §6), so the fingerprint -> matches
// mapping survives process restarts and is shared across workers. Falls
// through to a miss on any backend error per §4.9 ("advisory: a miss never
// fails; a backend outage falls through to live computation").
type RedisCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisCache wraps an existing client. keyPrefix namespaces cache keys.
func NewRedisCache(client *redis.Client, keyPrefix string, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisCache{client: client, prefix: keyPrefix, ttl: ttl}
}

func (c *RedisCache) key(fp model.Fingerprint) string {
	return fmt.Sprintf("%sresult:%x", c.prefix, fp[:])
}

// Lookup returns a miss on any backend error, including timeout or
// unreachable Redis, never surfacing the error to the caller.
func (c *RedisCache) Lookup(fp model.Fingerprint) ([]model.Match, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	raw, err := c.client.Get(ctx, c.key(fp)).Bytes()
	if err != nil {
		return nil, false
	}
	var matches []model.Match
	if err := json.Unmarshal(raw, &matches); err != nil {
		return nil, false
	}
	return matches, true
}

// Store is best-effort: a write failure is silently dropped, matching the
// advisory nature of the cache.
func (c *RedisCache) Store(fp model.Fingerprint, matches []model.Match, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.ttl
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	raw, err := json.Marshal(matches)
	if err != nil {
		return
	}
	c.client.Set(ctx, c.key(fp), raw, ttl)
}

// Clear removes every key under this cache's prefix.
func (c *RedisCache) Clear() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	iter := c.client.Scan(ctx, 0, c.prefix+"result:*", 0).Iterator()
	for iter.Next(ctx) {
		c.client.Del(ctx, iter.Val())
	}
}
