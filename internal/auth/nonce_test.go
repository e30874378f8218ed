package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMemoryNonceStore_RemembersFreshKey(t *testing.T) {
	s := NewMemoryNonceStore()

	replay, err := s.SeenOrRemember(context.Background(), "nonce-1", time.Minute)
	require.NoError(t, err)
	assert.False(t, replay)
	assert.Equal(t, 1, s.Len())
}

func TestMemoryNonceStore_FlagsReplayWithinTTL(t *testing.T) {
	s := NewMemoryNonceStore()
	ctx := context.Background()

	_, err := s.SeenOrRemember(ctx, "nonce-1", time.Minute)
	require.NoError(t, err)

	replay, err := s.SeenOrRemember(ctx, "nonce-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, replay, "second use of the same key within its TTL is a replay")
}

func TestMemoryNonceStore_ReadmitsAfterLazyExpiry(t *testing.T) {
	s := NewMemoryNonceStore()
	ctx := context.Background()

	_, err := s.SeenOrRemember(ctx, "nonce-1", time.Nanosecond)
	require.NoError(t, err)

	time.Sleep(time.Millisecond)

	replay, err := s.SeenOrRemember(ctx, "nonce-1", time.Minute)
	require.NoError(t, err)
	assert.False(t, replay, "an expired entry is lazily evicted and re-admitted, not treated as a replay")
	assert.Equal(t, 1, s.Len(), "the expired entry was evicted rather than left to accumulate")
}

func TestMemoryNonceStore_TracksDistinctKeysIndependently(t *testing.T) {
	s := NewMemoryNonceStore()
	ctx := context.Background()

	_, err := s.SeenOrRemember(ctx, "nonce-1", time.Minute)
	require.NoError(t, err)
	_, err = s.SeenOrRemember(ctx, "nonce-2", time.Minute)
	require.NoError(t, err)

	assert.Equal(t, 2, s.Len())
}

// TestMemoryNonceStore_NoGoroutineLeak documents that the lazy-expiry design
// (eviction only happens on a probing SeenOrRemember call, spec §3's Nonce
// Cache Entry) means there is no background janitor goroutine to leak.
func TestMemoryNonceStore_NoGoroutineLeak(t *testing.T) {
	defer goleak.VerifyNone(t)

	s := NewMemoryNonceStore()
	ctx := context.Background()
	for i := 0; i < 10; i++ {
		_, _ = s.SeenOrRemember(ctx, "nonce", time.Millisecond)
	}
}
