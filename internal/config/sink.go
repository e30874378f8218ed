package config

// SinkServiceConfig is the full configuration of the Core Sink service.
type SinkServiceConfig struct {
	Server  ServerConfig      `yaml:"server" validate:"required"`
	Log     LogConfig         `yaml:"log"`
	Storage SinkStorageConfig `yaml:"storage" validate:"required"`
}

func defaultSinkConfig() *SinkServiceConfig {
	return &SinkServiceConfig{
		Server: ServerConfig{Addr: ":8083"},
		Log:    LogConfig{Level: "info"},
		Storage: SinkStorageConfig{
			Dir:          "./data/sink",
			MaxBodyBytes: 8 << 20,
			MaxItems:     5000,
			RingSize:     200,
		},
	}
}

// LoadSink reads path (when non-empty) as YAML, layers SINK_-prefixed
// environment overrides on top, and validates the result.
func LoadSink(path string) (*SinkServiceConfig, error) {
	cfg := defaultSinkConfig()
	if err := LoadYAMLAndEnv(path, "SINK", cfg); err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
