package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisTokenBucketScript implements the same refill-then-consume algorithm
// as inProcessBackend, but atomically in Redis so multiple worker processes
// share one bucket per source (§4.5, §9). KEYS[1] is the tokens key,
// KEYS[2] the last-refill timestamp key.
const redisTokenBucketScript = `
local tokensKey = KEYS[1]
local refillKey = KEYS[2]
local capacity = tonumber(ARGV[1])
local refillPerSecond = tonumber(ARGV[2])
local now = tonumber(ARGV[3])

local tokens = tonumber(redis.call("GET", tokensKey))
local lastRefill = tonumber(redis.call("GET", refillKey))
if tokens == nil then
  tokens = capacity
  lastRefill = now
end

local elapsed = now - lastRefill
if elapsed > 0 then
  tokens = math.min(capacity, tokens + elapsed * refillPerSecond)
  lastRefill = now
end

local allowed = 0
if tokens >= 1 then
  tokens = tokens - 1
  allowed = 1
end

redis.call("SET", tokensKey, tostring(tokens), "EX", 3600)
redis.call("SET", refillKey, tostring(lastRefill), "EX", 3600)
return allowed
`

// RedisBackend shares token buckets across worker processes via a Redis
// instance, grounded on the teacher's use of `redis/go-redis/v9` elsewhere
// in the stack for cross-worker shared state.
type RedisBackend struct {
	client  *redis.Client
	script  *redis.Script
	prefix  string
	nowFunc func() time.Time
}

// NewRedisBackend wraps an existing client. keyPrefix namespaces bucket
// keys (e.g. "ratelimit:").
func NewRedisBackend(client *redis.Client, keyPrefix string) *RedisBackend {
	return &RedisBackend{
		client:  client,
		script:  redis.NewScript(redisTokenBucketScript),
		prefix:  keyPrefix,
		nowFunc: time.Now,
	}
}

func (b *RedisBackend) keys(source string) (string, string) {
	return fmt.Sprintf("%s%s:tokens", b.prefix, source), fmt.Sprintf("%s%s:refill", b.prefix, source)
}

func (b *RedisBackend) TryAcquire(source string, capacity, refillPerSecond float64) bool {
	tokensKey, refillKey := b.keys(source)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	now := float64(b.nowFunc().UnixNano()) / 1e9
	result, err := b.script.Run(ctx, b.client, []string{tokensKey, refillKey}, capacity, refillPerSecond, now).Int()
	if err != nil {
		// Fail open: an unreachable rate-limit backend must not block
		// every external-source call.
		return true
	}
	return result == 1
}

func (b *RedisBackend) Reset(source string) {
	tokensKey, refillKey := b.keys(source)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	b.client.Del(ctx, tokensKey, refillKey)
}

func (b *RedisBackend) ResetAll() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	iter := b.client.Scan(ctx, 0, b.prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		b.client.Del(ctx, iter.Val())
	}
}
