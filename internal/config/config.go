// Package config loads and validates the YAML + environment-variable
// configuration for each OpsLog service, grounded on the teacher's
// internal/config package but restructured around the nested client and
// per-emitter tables spec §6 requires instead of the teacher's flat
// envconfig-only struct.
package config

import (
	"encoding/hex"
	"fmt"
	"time"
)

// ServerConfig is the HTTP bind address shared by all three services.
type ServerConfig struct {
	Addr string `yaml:"addr" envconfig:"ADDR" validate:"required"`
}

// LogConfig controls the shared slog handler (internal/observability).
type LogConfig struct {
	Level string `yaml:"level" envconfig:"LOG_LEVEL" validate:"omitempty,oneof=debug info warn error"`
}

// Client is one entry of the Auth Gateway's client registry (spec §3).
type Client struct {
	APIKey  string `yaml:"api_key" validate:"required"`
	Secret  string `yaml:"secret" validate:"required"`
	Emitter string `yaml:"emitter" validate:"required"`
}

// RateLimitRule is a token-bucket (capacity, refill_rate) pair (spec §4.2).
type RateLimitRule struct {
	Capacity   int     `yaml:"capacity" validate:"required,min=1"`
	RefillRate float64 `yaml:"refill_rate" validate:"required,gt=0"`
}

// RateLimitConfig configures the Auth Gateway's per-emitter token buckets.
type RateLimitConfig struct {
	Default    RateLimitRule            `yaml:"default" validate:"required"`
	PerEmitter map[string]RateLimitRule `yaml:"per_emitter"`
	RedisAddr  string                   `yaml:"redis_addr" envconfig:"RATE_LIMIT_REDIS_ADDR"`
}

// BackpressureConfig is the Auth Gateway's §4.3 body-size gate.
type BackpressureConfig struct {
	MaxBodyBytes int64 `yaml:"max_body_bytes" envconfig:"MAX_BODY_BYTES" validate:"required,min=1"`
}

// RetryConfig is the exponential backoff schedule shared by the forwarder
// in both the Auth Gateway and the Ingest Normalizer (spec §4.4).
type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts" envconfig:"RETRY_MAX_ATTEMPTS" validate:"required,min=1"`
	BaseDelay   time.Duration `yaml:"base_delay" envconfig:"RETRY_BASE_DELAY" validate:"required"`
	MaxDelay    time.Duration `yaml:"max_delay" envconfig:"RETRY_MAX_DELAY" validate:"required"`
}

// BreakerConfig parameterizes the Auth Gateway's circuit breaker (spec §4.4).
// FailureThreshold accepts either a fraction in (0,1] or an integer
// percentage; breaker.Config folds the latter down to a fraction before use.
type BreakerConfig struct {
	FailureThreshold float64       `yaml:"failure_threshold" envconfig:"BREAKER_FAILURE_THRESHOLD" validate:"required,gt=0"`
	HalfOpenAfter    time.Duration `yaml:"half_open_after" envconfig:"BREAKER_HALF_OPEN_AFTER" validate:"required"`
}

// ForwardConfig is the downstream target and header template shared by the
// Auth Gateway (->Normalizer) and the Normalizer (->Core Sink).
type ForwardConfig struct {
	URL            string            `yaml:"url" envconfig:"FORWARD_URL" validate:"required,url"`
	ConnectTimeout time.Duration     `yaml:"connect_timeout" envconfig:"FORWARD_CONNECT_TIMEOUT"`
	ReadTimeout    time.Duration     `yaml:"read_timeout" envconfig:"FORWARD_READ_TIMEOUT"`
	HeaderTemplate map[string]string `yaml:"header_template"`
}

// AuthConfig configures the Auth Gateway's HMAC authenticator (spec §4.1).
type AuthConfig struct {
	Mode           string        `yaml:"mode" envconfig:"AUTH_MODE" validate:"required,oneof=none apikey hmac any"`
	ClockSkew      time.Duration `yaml:"clock_skew" envconfig:"AUTH_CLOCK_SKEW" validate:"required"`
	RequireNonce   bool          `yaml:"require_nonce" envconfig:"AUTH_REQUIRE_NONCE"`
	NonceTTL       time.Duration `yaml:"nonce_ttl" envconfig:"AUTH_NONCE_TTL"`
	NonceRedisAddr string        `yaml:"nonce_redis_addr" envconfig:"AUTH_NONCE_REDIS_ADDR"`
	Clients        []Client      `yaml:"clients" validate:"required,min=1,dive"`
}

// EncryptionConfig enables the Normalizer's optional field-level AES-GCM
// encryption (spec §4.6).
type EncryptionConfig struct {
	Enabled bool     `yaml:"enabled" envconfig:"ENCRYPTION_ENABLED"`
	KeyHex  string   `yaml:"key_hex" envconfig:"ENCRYPTION_KEY_HEX"`
	Fields  []string `yaml:"fields"`
}

// Key decodes KeyHex, validating it is a legal AES key length.
func (e EncryptionConfig) Key() ([]byte, error) {
	if e.KeyHex == "" {
		return nil, nil
	}
	key, err := hex.DecodeString(e.KeyHex)
	if err != nil {
		return nil, fmt.Errorf("encryption.key_hex: %w", err)
	}
	switch len(key) {
	case 16, 24, 32:
		return key, nil
	default:
		return nil, fmt.Errorf("encryption.key_hex: must decode to 16, 24 or 32 bytes, got %d", len(key))
	}
}

// SinkStorageConfig is the Core Sink's NDJSON store (spec §4.7).
type SinkStorageConfig struct {
	Dir          string `yaml:"dir" envconfig:"SINK_DIR" validate:"required"`
	MaxBodyBytes int64  `yaml:"max_body_bytes" envconfig:"SINK_MAX_BODY_BYTES" validate:"required,min=1"`
	MaxItems     int    `yaml:"max_items" envconfig:"SINK_MAX_ITEMS" validate:"required,min=1"`
	RingSize     int    `yaml:"ring_size" envconfig:"SINK_RING_SIZE" validate:"required,min=1"`
}
