package ratelimit

import (
	"context"
	"math"
	"time"

	"github.com/redis/go-redis/v9"
)

// bucketScript performs the same refill-then-take arithmetic as Bucket.Take,
// atomically, so multiple gateway instances share one logical bucket.
// KEYS[1]  = bucket key
// ARGV[1]  = capacity
// ARGV[2]  = refill per second
// ARGV[3]  = now (unix seconds, float)
// ARGV[4]  = TTL seconds for the stored hash (bucket goes idle -> expire)
// returns {admitted (0/1), tokens_remaining_floor, retry_after_seconds}
const bucketScript = `
local cap = tonumber(ARGV[1])
local refill = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local ttl = tonumber(ARGV[4])

local tokens = cap
local last = now

local existing = redis.call('HMGET', KEYS[1], 'tokens', 'ts')
if existing[1] and existing[2] then
  tokens = tonumber(existing[1])
  last = tonumber(existing[2])
end

local delta = now - last
if delta < 0 then delta = 0 end
tokens = math.min(cap, tokens + delta * refill)

local admitted = 0
local retry_after = 0
if tokens >= 1.0 then
  tokens = tokens - 1.0
  admitted = 1
else
  local needed = 1.0 - tokens
  retry_after = math.ceil(needed / refill)
  if retry_after < 1 then retry_after = 1 end
end

redis.call('HSET', KEYS[1], 'tokens', tostring(tokens), 'ts', tostring(now))
redis.call('EXPIRE', KEYS[1], ttl)

return {admitted, math.floor(tokens), retry_after}
`

// RedisStore backs the token bucket with Redis so several gateway
// instances observe the same bucket state. Take returns Redis errors to
// the caller; Limiter.Allow then admits the request (fails open, spec
// §4.2) without falling back to an in-memory Store.
type RedisStore struct {
	client *redis.Client
	sha    string
}

// NewRedisStore wraps an existing Redis client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Take runs bucketScript against key. idleTTL bounds how long an unused
// bucket lingers in Redis.
func (s *RedisStore) Take(ctx context.Context, key string, capacity, refill float64, idleTTL time.Duration) (admitted bool, remaining int, retryAfterSec int, err error) {
	now := float64(time.Now().UnixNano()) / 1e9

	res, evalErr := s.client.Eval(ctx, bucketScript, []string{key},
		capacity, refill, now, int(idleTTL.Seconds())).Result()
	if evalErr != nil {
		return false, 0, 0, evalErr
	}

	vals, ok := res.([]interface{})
	if !ok || len(vals) != 3 {
		return false, 0, 0, nil
	}

	admittedN, _ := toInt64(vals[0])
	remainingN, _ := toInt64(vals[1])
	retryN, _ := toInt64(vals[2])

	return admittedN == 1, int(remainingN), int(retryN), nil
}

func toInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case float64:
		return int64(math.Round(n)), true
	default:
		return 0, false
	}
}
