package config

import (
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/loreguard-ai/loreguard/internal/types"
)

// Loader loads configuration from files and the environment.
type Loader interface {
	Load(path string) (*Config, error)
	LoadWithDefaults(path string) (*Config, error)
}

// viperLoader implements Loader using Viper.
type viperLoader struct {
	validator Validator
}

// NewLoader creates a Loader backed by the given validator.
func NewLoader(validator Validator) Loader {
	return &viperLoader{validator: validator}
}

// Load reads the file at path, overlays LOREGUARD_* environment variables,
// and validates the result.
func (l *viperLoader) Load(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, types.WrapError(types.CONFIG_LOAD_FAILED, "read config file", err)
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, types.WrapError(types.CONFIG_PARSE_FAILED, "unmarshal config", err)
	}

	if err := l.validator.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadWithDefaults behaves like Load, but a missing file yields the
// defaults (still overlaid with environment variables and validated).
func (l *viperLoader) LoadWithDefaults(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		v := newViper()
		cfg := DefaultConfig()
		if err := v.Unmarshal(cfg); err != nil {
			return nil, types.WrapError(types.CONFIG_PARSE_FAILED, "unmarshal config", err)
		}
		if err := l.validator.Validate(cfg); err != nil {
			return nil, err
		}
		return cfg, nil
	}
	return l.Load(path)
}

// newViper builds a viper instance with the environment overlay wired:
// "server.port" maps to LOREGUARD_SERVER_PORT.
func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("LOREGUARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}
