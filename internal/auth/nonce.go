package auth

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// NonceStore is the duck-typed capability spec §9 calls for: check whether
// a (api_key, nonce) pair has been seen, and remember a fresh one with a
// TTL. Two implementations are provided: an in-memory map with lazy
// expiry (the reference, single-process implementation) and a Redis
// adapter using set-if-not-exists semantics for multi-instance deployments.
type NonceStore interface {
	// SeenOrRemember atomically checks whether key has been seen and, if
	// not, remembers it for ttl. It returns true if the key was already
	// present (a replay).
	SeenOrRemember(ctx context.Context, key string, ttl time.Duration) (replay bool, err error)
}

// MemoryNonceStore is a single-mutex map guarded store with lazy
// expiry: entries are only evicted when probed after their expiry,
// exactly as spec §3's Nonce Cache Entry describes.
type MemoryNonceStore struct {
	mu      sync.Mutex
	entries map[string]time.Time // key -> expiry
}

// NewMemoryNonceStore constructs an empty in-memory nonce store.
func NewMemoryNonceStore() *MemoryNonceStore {
	return &MemoryNonceStore{entries: make(map[string]time.Time)}
}

// SeenOrRemember implements NonceStore.
func (s *MemoryNonceStore) SeenOrRemember(_ context.Context, key string, ttl time.Duration) (bool, error) {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if expiry, ok := s.entries[key]; ok {
		if now.Before(expiry) {
			return true, nil
		}
		// Expired: lazily evict and fall through to re-insert.
		delete(s.entries, key)
	}

	s.entries[key] = now.Add(ttl)
	return false, nil
}

// Len reports the number of entries currently tracked, including
// not-yet-evicted expired ones. Exposed for tests.
func (s *MemoryNonceStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// RedisNonceStore backs the nonce cache with a shared Redis instance using
// a single set-if-not-exists with TTL (SET NX) so multiple gateway
// instances share replay state.
type RedisNonceStore struct {
	client *redis.Client
	prefix string
}

// NewRedisNonceStore builds a Redis-backed nonce store under the given key
// prefix (e.g. "hmac:nonce:").
func NewRedisNonceStore(client *redis.Client, prefix string) *RedisNonceStore {
	return &RedisNonceStore{client: client, prefix: prefix}
}

// SeenOrRemember implements NonceStore. Redis connectivity problems are
// surfaced to the caller (the HMAC middleware fails closed on nonce store
// errors, unlike the rate limiter which fails open — a replay-protection
// guarantee must never be silently skipped).
func (s *RedisNonceStore) SeenOrRemember(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, s.prefix+key, "1", ttl).Result()
	if err != nil {
		return false, err
	}
	return !ok, nil
}
