// Package config loads and validates the loreguard configuration.
package config

import (
	"time"
)

// Config is the root configuration for the loreguard service.
type Config struct {
	Server   ServerConfig   `mapstructure:"server" validate:"required"`
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Engine   EngineConfig   `mapstructure:"engine"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig configures the HTTP boundary.
type ServerConfig struct {
	Host         string        `mapstructure:"host" validate:"required"`
	Port         int           `mapstructure:"port" validate:"min=1,max=65535"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`

	// RateLimit throttles content-evaluation requests per tenant.
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

// RateLimitConfig is a per-tenant token bucket.
type RateLimitConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second" validate:"min=0"`
	Burst             int     `mapstructure:"burst" validate:"min=0"`
}

// DatabaseConfig configures the SQLite store.
type DatabaseConfig struct {
	Path         string `mapstructure:"path" validate:"required"`
	MaxOpenConns int    `mapstructure:"max_open_conns" validate:"min=1"`
	MaxIdleConns int    `mapstructure:"max_idle_conns" validate:"min=1"`
}

// PipelineConfig configures the redaction pipeline.
type PipelineConfig struct {
	// AllowedDomains are public domains whose URLs survive scrubbing.
	// Empty uses the built-in defaults.
	AllowedDomains []string `mapstructure:"allowed_domains"`

	// ReviewEnabled turns on the human review gate.
	ReviewEnabled bool `mapstructure:"review_enabled"`

	// SecretsMinConfidence post-filters secrets findings. The entropy
	// detector reports at 0.5; set this above it to drop advisory findings.
	SecretsMinConfidence float64 `mapstructure:"secrets_min_confidence" validate:"min=0,max=1"`

	// PIIMinConfidence post-filters PII findings.
	PIIMinConfidence float64 `mapstructure:"pii_min_confidence" validate:"min=0,max=1"`

	// EntropyThreshold overrides the default entropy threshold when > 0.
	EntropyThreshold float64 `mapstructure:"entropy_threshold" validate:"min=0"`

	// BatchConcurrency bounds parallel batch redaction runs.
	BatchConcurrency int `mapstructure:"batch_concurrency" validate:"min=1"`
}

// EngineConfig configures the guardrail engine.
type EngineConfig struct {
	// Enabled starts the bus-driven evaluation loop.
	Enabled bool `mapstructure:"enabled"`

	// BusBufferSize is the default subscriber buffer on the event bus.
	BusBufferSize int `mapstructure:"bus_buffer_size" validate:"min=1"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=text json"`
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "127.0.0.1",
			Port:         8480,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			RateLimit: RateLimitConfig{
				Enabled:           true,
				RequestsPerSecond: 50,
				Burst:             100,
			},
		},
		Database: DatabaseConfig{
			Path:         "loreguard.db",
			MaxOpenConns: 10,
			MaxIdleConns: 5,
		},
		Pipeline: PipelineConfig{
			ReviewEnabled:    false,
			BatchConcurrency: 4,
		},
		Engine: EngineConfig{
			Enabled:       true,
			BusBufferSize: 256,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}
