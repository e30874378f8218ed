package authgw

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AllEyesOnMyPon/OpsLog/internal/config"
	"github.com/AllEyesOnMyPon/OpsLog/internal/observability"
)

func TestNew_BuildsServerWithDefaultInMemoryNonceStore(t *testing.T) {
	cfg := &config.AuthGWConfig{
		Server: config.ServerConfig{Addr: ":0"},
		Log:    config.LogConfig{Level: "error"},
		Auth: config.AuthConfig{
			Mode:         "hmac",
			ClockSkew:    5 * time.Minute,
			RequireNonce: true,
			NonceTTL:     10 * time.Minute,
			Clients:      []config.Client{{APIKey: "k", Secret: "s", Emitter: "e"}},
		},
		RateLimit: config.RateLimitConfig{
			Default: config.RateLimitRule{Capacity: 10, RefillRate: 1},
		},
		Backpressure: config.BackpressureConfig{MaxBodyBytes: 1024},
		Forward:      config.ForwardConfig{URL: "http://downstream.invalid"},
		Retry:        config.RetryConfig{MaxAttempts: 1, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond},
		Breaker:      config.BreakerConfig{FailureThreshold: 0.5, HalfOpenAfter: time.Second},
	}
	logger := observability.NewLogger(cfg.Log, "authgw", "test")
	metrics := observability.NewMetrics(prometheus.NewRegistry(), "authgw")

	s := New(cfg, logger, metrics, nil, "")

	require.NotNil(t, s)
	assert.NotNil(t, s.authn)
	assert.NotNil(t, s.limiter)
	assert.NotNil(t, s.fwd)
	assert.Equal(t, "closed", s.fwd.BreakerState())
}

func TestToAuthClients(t *testing.T) {
	clients := toAuthClients([]config.Client{
		{APIKey: "a", Secret: "sa", Emitter: "ea"},
		{APIKey: "b", Secret: "sb", Emitter: "eb"},
	})
	require.Len(t, clients, 2)
	assert.Equal(t, "a", clients[0].APIKey)
	assert.Equal(t, "eb", clients[1].Emitter)
}

func TestToRateLimitRules_ConvertsFloatRefillRateToInt(t *testing.T) {
	rules := toRateLimitRules(map[string]config.RateLimitRule{
		"checkout": {Capacity: 50, RefillRate: 12.0},
	})
	require.Contains(t, rules, "checkout")
	assert.Equal(t, 50, rules["checkout"].Capacity)
	assert.Equal(t, 12, rules["checkout"].RefillRate)
}
