package config

import (
	"fmt"
	"time"

	pkgconfig "github.com/utafrali/cartkeeper/pkg/config"
)

// Storage backends selectable through CART_BACKEND.
const (
	BackendMemory   = "memory"
	BackendLedis    = "ledis"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// Config holds all configuration for the cart.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// Snapshot
	StoreKey string `env:"CART_STORE_KEY" envDefault:"@GOMARKETPLACE"`
	Backend  string `env:"CART_BACKEND" envDefault:"ledis"`

	// Embedded LedisDB
	LedisDir string `env:"CART_LEDIS_DIR" envDefault:"./data/cart"`
	LedisDB  int    `env:"CART_LEDIS_DB" envDefault:"0"`

	// Redis
	RedisAddr   string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPass   string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB     int    `env:"REDIS_DB" envDefault:"0"`
	RedisPrefix string `env:"CART_REDIS_PREFIX" envDefault:"cart:"`

	// Redis key TTL in hours, 0 keeps snapshots forever.
	RedisTTL int `env:"CART_REDIS_TTL_HOURS" envDefault:"0"`

	// PostgreSQL
	PostgresHost     string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort     int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser     string `env:"POSTGRES_USER" envDefault:"cart"`
	PostgresPassword string `env:"POSTGRES_PASSWORD" envDefault:"cart_secret"`
	PostgresDB       string `env:"POSTGRES_DB" envDefault:"cart"`
	PostgresSSLMode  string `env:"POSTGRES_SSLMODE" envDefault:"disable"`

	// Saves
	SaveMaxAttempts    uint          `env:"CART_SAVE_MAX_ATTEMPTS" envDefault:"5"`
	SaveInitialBackoff time.Duration `env:"CART_SAVE_INITIAL_BACKOFF" envDefault:"100ms"`
	SaveMaxBackoff     time.Duration `env:"CART_SAVE_MAX_BACKOFF" envDefault:"2s"`
	StoreOpTimeout     time.Duration `env:"CART_STORE_OP_TIMEOUT" envDefault:"3s"`
	SlowOpThreshold    time.Duration `env:"CART_SLOW_OP_THRESHOLD" envDefault:"0"`
	EventBuffer        int           `env:"CART_EVENT_BUFFER" envDefault:"16"`

	// Circuit breaker
	BreakerTimeout      time.Duration `env:"CART_BREAKER_TIMEOUT" envDefault:"15s"`
	BreakerFailureRatio float64       `env:"CART_BREAKER_FAILURE_RATIO" envDefault:"0.5"`
	BreakerMinRequests  uint32        `env:"CART_BREAKER_MIN_REQUESTS" envDefault:"5"`

	// OpenTelemetry
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`
}

// Load reads configuration from environment variables.
func Load(opts ...pkgconfig.Option) (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg, opts...); err != nil {
		return nil, fmt.Errorf("load cart config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate checks configuration invariants.
func (c *Config) validate() error {
	if c.StoreKey == "" {
		return fmt.Errorf("CART_STORE_KEY is required")
	}
	switch c.Backend {
	case BackendMemory, BackendRedis, BackendPostgres:
	case BackendLedis:
		if c.LedisDir == "" {
			return fmt.Errorf("CART_LEDIS_DIR is required for the ledis backend")
		}
	default:
		return fmt.Errorf("unknown CART_BACKEND %q", c.Backend)
	}
	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("invalid postgres port: %d", c.PostgresPort)
	}
	if c.RedisTTL < 0 {
		return fmt.Errorf("CART_REDIS_TTL_HOURS must not be negative")
	}
	if c.SaveMaxAttempts < 1 {
		return fmt.Errorf("CART_SAVE_MAX_ATTEMPTS must be at least 1")
	}
	if c.SaveInitialBackoff <= 0 {
		return fmt.Errorf("CART_SAVE_INITIAL_BACKOFF must be positive")
	}
	if c.SaveMaxBackoff < c.SaveInitialBackoff {
		return fmt.Errorf("CART_SAVE_MAX_BACKOFF must be at least CART_SAVE_INITIAL_BACKOFF")
	}
	if c.StoreOpTimeout <= 0 {
		return fmt.Errorf("CART_STORE_OP_TIMEOUT must be positive")
	}
	if c.EventBuffer < 1 {
		return fmt.Errorf("CART_EVENT_BUFFER must be at least 1")
	}
	if c.BreakerFailureRatio <= 0 || c.BreakerFailureRatio > 1 {
		return fmt.Errorf("CART_BREAKER_FAILURE_RATIO must be in (0, 1]")
	}
	if c.OTELSampleRate < 0 || c.OTELSampleRate > 1 {
		return fmt.Errorf("OTEL_SAMPLE_RATE must be between 0.0 and 1.0, got %v", c.OTELSampleRate)
	}
	return nil
}
