package config

import "time"

// NormalizerConfig is the full configuration of the Ingest Normalizer
// service.
type NormalizerConfig struct {
	Server     ServerConfig     `yaml:"server" validate:"required"`
	Log        LogConfig        `yaml:"log"`
	Forward    ForwardConfig    `yaml:"forward" validate:"required"`
	Retry      RetryConfig      `yaml:"retry" validate:"required"`
	Encryption EncryptionConfig `yaml:"encryption"`
}

func defaultNormalizerConfig() *NormalizerConfig {
	return &NormalizerConfig{
		Server: ServerConfig{Addr: ":8082"},
		Log:    LogConfig{Level: "info"},
		Forward: ForwardConfig{
			ConnectTimeout: 2 * time.Second,
			ReadTimeout:    5 * time.Second,
		},
		Retry: RetryConfig{
			MaxAttempts: 3,
			BaseDelay:   100 * time.Millisecond,
			MaxDelay:    2 * time.Second,
		},
	}
}

// LoadNormalizer reads path (when non-empty) as YAML, layers
// NORMALIZER_-prefixed environment overrides on top, and validates the
// result.
func LoadNormalizer(path string) (*NormalizerConfig, error) {
	cfg := defaultNormalizerConfig()
	if err := LoadYAMLAndEnv(path, "NORMALIZER", cfg); err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
