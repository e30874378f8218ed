package config

import (
	"fmt"
	"os"
	"reflect"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// LoadYAMLAndEnv populates cfg (a pointer to a service config struct) from
// the YAML file at path, when non-empty, then applies envPrefix-scoped
// environment variable overrides via envconfig. Environment variables
// always win over the file, mirroring the teacher's env-overrides-file
// layering in internal/config/loader.go.
func LoadYAMLAndEnv(path, envPrefix string, cfg any) error {
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	// Each top-level block is processed under envPrefix itself, so a field
	// tagged envconfig:"ADDR" is read from <envPrefix>_ADDR.
	v := reflect.ValueOf(cfg).Elem()
	for i := 0; i < v.NumField(); i++ {
		block := v.Field(i)
		if block.Kind() != reflect.Struct {
			continue
		}
		if err := envconfig.Process(envPrefix, block.Addr().Interface()); err != nil {
			return fmt.Errorf("applying %s environment overrides: %w", envPrefix, err)
		}
	}
	return nil
}
