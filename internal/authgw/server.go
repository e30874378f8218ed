// Package authgw wires the Auth Gateway's middleware chain — HMAC
// authentication, rate limiting, backpressure, and the downstream
// forwarder (spec §4.1-4.4) — grounded on the teacher's
// internal/transport/http.NewRouter and its middleware package, rebuilt
// around log/slog instead of zap and the flat {"detail":...} contract
// instead of RFC 7807.
package authgw

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/heptiolabs/healthcheck"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/AllEyesOnMyPon/OpsLog/internal/auth"
	"github.com/AllEyesOnMyPon/OpsLog/internal/breaker"
	"github.com/AllEyesOnMyPon/OpsLog/internal/config"
	"github.com/AllEyesOnMyPon/OpsLog/internal/forwarder"
	"github.com/AllEyesOnMyPon/OpsLog/internal/httpretry"
	"github.com/AllEyesOnMyPon/OpsLog/internal/observability"
	"github.com/AllEyesOnMyPon/OpsLog/internal/ratelimit"
)

// Server bundles the Auth Gateway's dependencies (spec §9: "encapsulate
// global mutable state in an explicit server struct; constructors return
// an instance").
type Server struct {
	cfg     *config.AuthGWConfig
	log     *slog.Logger
	metrics *observability.Metrics
	authn   *auth.Authenticator
	limiter *ratelimit.Limiter
	fwd     *forwarder.Forwarder
	health  healthcheck.Handler
}

// New builds a Server from cfg. A nil nonces (with no
// cfg.Auth.NonceRedisAddr) and an empty rateRedisAddr select the in-memory
// reference implementations (spec §5 "shared state and mutation
// discipline").
func New(cfg *config.AuthGWConfig, logger *slog.Logger, metrics *observability.Metrics, nonces auth.NonceStore, rateRedisAddr string) *Server {
	registry := auth.NewRegistry(toAuthClients(cfg.Auth.Clients))

	if nonces == nil && cfg.Auth.RequireNonce {
		if cfg.Auth.NonceRedisAddr != "" {
			nonces = auth.NewRedisNonceStore(redis.NewClient(&redis.Options{Addr: cfg.Auth.NonceRedisAddr}), "hmac:nonce:")
		} else {
			nonces = auth.NewMemoryNonceStore()
		}
	}

	authn := auth.NewAuthenticator(auth.Config{
		Mode:         auth.Mode(cfg.Auth.Mode),
		ClockSkew:    cfg.Auth.ClockSkew,
		RequireNonce: cfg.Auth.RequireNonce,
		NonceTTL:     cfg.Auth.NonceTTL,
		Clients:      registry,
		Nonces:       nonces,
	})

	rlCfg := ratelimit.Config{
		Default: ratelimit.Rule{
			Capacity:   cfg.RateLimit.Default.Capacity,
			RefillRate: int(cfg.RateLimit.Default.RefillRate),
		},
		PerEmitter: toRateLimitRules(cfg.RateLimit.PerEmitter),
	}
	var redisStore *ratelimit.RedisStore
	if rateRedisAddr != "" {
		redisStore = ratelimit.NewRedisStore(redis.NewClient(&redis.Options{Addr: rateRedisAddr}))
	}
	limiter := ratelimit.New(rlCfg, redisStore)

	brk := breaker.New(breaker.Config{
		FailureThreshold: cfg.Breaker.FailureThreshold,
		HalfOpenAfter:    cfg.Breaker.HalfOpenAfter,
	})

	fwd := forwarder.New(forwarder.Config{
		URL:            cfg.Forward.URL,
		ConnectTimeout: cfg.Forward.ConnectTimeout,
		ReadTimeout:    cfg.Forward.ReadTimeout,
		Retry: httpretry.Config{
			MaxAttempts: cfg.Retry.MaxAttempts,
			BaseDelay:   cfg.Retry.BaseDelay,
			MaxDelay:    cfg.Retry.MaxDelay,
		},
		HeaderTemplate: cfg.Forward.HeaderTemplate,
	}, brk, metrics)

	health := healthcheck.NewHandler()

	return &Server{cfg: cfg, log: logger, metrics: metrics, authn: authn, limiter: limiter, fwd: fwd, health: health}
}

// Router builds the chi router implementing spec §4.1-§4.4's request
// pipeline: backpressure -> authenticate -> rate-limit -> forward.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/healthz", s.health.LiveEndpoint)
	r.Get("/readyz", s.health.ReadyEndpoint)
	r.Handle("/metrics", promhttp.Handler())

	r.Post("/ingest", s.handleIngest)

	return r
}

func toAuthClients(clients []config.Client) []auth.Client {
	out := make([]auth.Client, len(clients))
	for i, c := range clients {
		out[i] = auth.Client{APIKey: c.APIKey, Secret: c.Secret, Emitter: c.Emitter}
	}
	return out
}

func toRateLimitRules(rules map[string]config.RateLimitRule) map[string]ratelimit.Rule {
	out := make(map[string]ratelimit.Rule, len(rules))
	for emitter, rule := range rules {
		out[emitter] = ratelimit.Rule{Capacity: rule.Capacity, RefillRate: int(rule.RefillRate)}
	}
	return out
}
