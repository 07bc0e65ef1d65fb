package config

import (
	"fmt"

	"github.com/caarlos0/env/v10"
)

// Option customizes how environment variables are read.
type Option func(*env.Options)

// WithPrefix prepends prefix to every variable name, so a field tagged
// `env:"LOG_LEVEL"` is read from PREFIX_LOG_LEVEL when prefix is "PREFIX_".
func WithPrefix(prefix string) Option {
	return func(o *env.Options) {
		o.Prefix = prefix
	}
}

// WithEnvironment reads variables from the given map instead of the process
// environment.
func WithEnvironment(vars map[string]string) Option {
	return func(o *env.Options) {
		o.Environment = vars
	}
}

// Load parses environment variables into the provided struct.
// The struct should use `env` tags to define mappings. Types implementing
// encoding.TextUnmarshaler, such as decimal.Decimal, are parsed from text.
//
// Example:
//
//	type Config struct {
//	    LogLevel string          `env:"LOG_LEVEL" envDefault:"info"`
//	    BaseFee  decimal.Decimal `env:"SHIPPING_BASE_FEE" envDefault:"5"`
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
