package config

import (
	"fmt"

	"github.com/caarlos0/env/v10"
)

// Option tweaks how Load resolves variables.
type Option func(*env.Options)

// WithPrefix prepends prefix to every `env` tag, so `REDIS_ADDR` becomes
// `<prefix>REDIS_ADDR`. Lets one process host several independently configured carts.
func WithPrefix(prefix string) Option {
	return func(o *env.Options) {
		o.Prefix = prefix
	}
}

// WithEnvironment resolves variables from the given map instead of the process environment.
func WithEnvironment(vars map[string]string) Option {
	return func(o *env.Options) {
		o.Environment = vars
	}
}

// Load parses environment variables into the provided struct.
// The struct should use `env` tags to define mappings.
//
// Example:
//
//	type Config struct {
//	    StoreKey string `env:"CART_STORE_KEY" envDefault:"@GOMARKETPLACE"`
//	    LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
//	}
func Load(cfg any, opts ...Option) error {
	var o env.Options
	for _, opt := range opts {
		opt(&o)
	}
	if err := env.ParseWithOptions(cfg, o); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}
