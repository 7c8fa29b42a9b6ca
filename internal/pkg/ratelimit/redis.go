package ratelimit

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/redis/go-redis/v9"
)

// tokenBucketScript refills and consumes one bucket atomically.
// KEYS[1] = bucket key
// ARGV[1] = refill rate (tokens per second)
// ARGV[2] = capacity
// ARGV[3] = now (unix seconds, microsecond precision)
// ARGV[4] = key ttl in seconds
var tokenBucketScript = redis.NewScript(`
local key = KEYS[1]
local rate = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local ttl = tonumber(ARGV[4])

local state = redis.call("HMGET", key, "tokens", "last_refill")
local tokens = tonumber(state[1])
local last_refill = tonumber(state[2])

if not tokens or not last_refill then
    tokens = capacity
    last_refill = now
end

local elapsed = now - last_refill
if elapsed > 0 then
    tokens = math.min(capacity, tokens + elapsed * rate)
    last_refill = now
end

local allowed = 0
if tokens >= 1 then
    tokens = tokens - 1
    allowed = 1
end

redis.call("HSET", key, "tokens", tokens, "last_refill", last_refill)
redis.call("EXPIRE", key, ttl)

return allowed
`)

// RedisLimiter shares token buckets across replicas through Redis.
type RedisLimiter struct {
	client redis.UniversalClient
	policy Policy
	prefix string
	now    func() time.Time
}

// NewRedisLimiter creates a limiter whose buckets live under prefix.
func NewRedisLimiter(client redis.UniversalClient, policy Policy, prefix string) *RedisLimiter {
	return &RedisLimiter{client: client, policy: policy, prefix: prefix, now: time.Now}
}

// NewRedisClient opens a client and checks the connection.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return rdb, nil
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	rate := l.policy.PerSecond
	if rate <= 0 {
		rate = 1.0
	}
	// Keep an idle bucket at least as long as a full refill takes.
	ttl := int(math.Ceil(float64(l.policy.Burst)/rate)) + 60
	now := float64(l.now().UnixMicro()) / 1e6

	res, err := tokenBucketScript.Run(ctx, l.client, []string{l.prefix + key}, rate, l.policy.Burst, now, ttl).Int64()
	if err != nil {
		return false, fmt.Errorf("redis limiter error: %w", err)
	}
	return res == 1, nil
}
