package config

import "time"

// AuthGWConfig is the full configuration of the Auth Gateway service.
type AuthGWConfig struct {
	Server       ServerConfig       `yaml:"server" validate:"required"`
	Log          LogConfig          `yaml:"log"`
	Auth         AuthConfig         `yaml:"auth" validate:"required"`
	RateLimit    RateLimitConfig    `yaml:"rate_limit" validate:"required"`
	Backpressure BackpressureConfig `yaml:"backpressure" validate:"required"`
	Forward      ForwardConfig      `yaml:"forward" validate:"required"`
	Retry        RetryConfig        `yaml:"retry" validate:"required"`
	Breaker      BreakerConfig      `yaml:"breaker" validate:"required"`
}

func defaultAuthGWConfig() *AuthGWConfig {
	return &AuthGWConfig{
		Server: ServerConfig{Addr: ":8081"},
		Log:    LogConfig{Level: "info"},
		Auth: AuthConfig{
			Mode:      "hmac",
			ClockSkew: 5 * time.Minute,
			NonceTTL:  10 * time.Minute,
		},
		RateLimit: RateLimitConfig{
			Default: RateLimitRule{Capacity: 100, RefillRate: 10},
		},
		Backpressure: BackpressureConfig{MaxBodyBytes: 1 << 20},
		Forward: ForwardConfig{
			ConnectTimeout: 2 * time.Second,
			ReadTimeout:    5 * time.Second,
		},
		Retry: RetryConfig{
			MaxAttempts: 3,
			BaseDelay:   100 * time.Millisecond,
			MaxDelay:    2 * time.Second,
		},
		Breaker: BreakerConfig{
			FailureThreshold: 0.5,
			HalfOpenAfter:    30 * time.Second,
		},
	}
}

// LoadAuthGW reads path (when non-empty) as YAML, layers AUTHGW_-prefixed
// environment overrides on top, and validates the result.
func LoadAuthGW(path string) (*AuthGWConfig, error) {
	cfg := defaultAuthGWConfig()
	if err := LoadYAMLAndEnv(path, "AUTHGW", cfg); err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
