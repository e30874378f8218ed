package ratelimit

import (
	"context"
	"fmt"
	"time"
)

// Rule is a (capacity, refill_per_sec) pair.
type Rule struct {
	Capacity   int
	RefillRate int
}

// Config configures a Limiter: a default rule plus per-emitter overrides
// (spec §4.2, §6).
type Config struct {
	Default    Rule
	PerEmitter map[string]Rule
}

// ruleFor resolves the effective rule for emitter.
func (c Config) ruleFor(emitter string) Rule {
	if r, ok := c.PerEmitter[emitter]; ok {
		return r
	}
	return c.Default
}

// Decision is the result of an admission check.
type Decision struct {
	Admitted      bool
	Limit         int
	Remaining     int
	RetryAfterSec int
}

// Limiter is the per-emitter token bucket gate used by the Auth Gateway's
// rate-limit middleware. It uses a shared RedisStore when configured and
// the in-memory Store otherwise; on a Redis error it admits the request
// without consulting the in-memory Store (spec §4.2: "on store errors, the
// limiter fails open").
type Limiter struct {
	cfg   Config
	mem   *Store
	redis *RedisStore
}

// New builds a Limiter. redisStore may be nil to use only the in-memory
// store.
func New(cfg Config, redisStore *RedisStore) *Limiter {
	return &Limiter{cfg: cfg, mem: NewStore(), redis: redisStore}
}

// Allow admits or rejects one request for emitter.
func (l *Limiter) Allow(ctx context.Context, emitter string) Decision {
	if emitter == "" {
		emitter = "unknown"
	}
	rule := l.cfg.ruleFor(emitter)
	key := fmt.Sprintf("rl:%s:%d:%d", emitter, rule.Capacity, rule.RefillRate)

	if l.redis != nil {
		admitted, remaining, retryAfter, err := l.redis.Take(ctx, key, float64(rule.Capacity), float64(rule.RefillRate), 10*time.Minute)
		if err != nil {
			// Store error: fail open per spec §4.2, do not consult any
			// fallback bucket (that would silently re-introduce a local
			// rate limit the operator did not configure).
			return Decision{Admitted: true, Limit: rule.Capacity, Remaining: rule.Capacity}
		}
		return Decision{Admitted: admitted, Limit: rule.Capacity, Remaining: remaining, RetryAfterSec: retryAfter}
	}

	admitted, remaining, retryAfter := l.mem.Take(key, float64(rule.Capacity), float64(rule.RefillRate))
	return Decision{Admitted: admitted, Limit: rule.Capacity, Remaining: remaining, RetryAfterSec: retryAfter}
}
