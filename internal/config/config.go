package config

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/utafrali/storecheckout/internal/domain"
	pkgconfig "github.com/utafrali/storecheckout/pkg/config"
)

// Config holds all configuration for the checkout demo.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat   string `env:"LOG_FORMAT" envDefault:"json"`

	// Ops HTTP server for /metrics and /health. 0 disables it.
	OpsHTTPPort int `env:"OPS_HTTP_PORT" envDefault:"0"`

	// Shipping policy
	ShippingBaseFee   decimal.Decimal `env:"SHIPPING_BASE_FEE" envDefault:"5"`
	ShippingRatePerKg decimal.Decimal `env:"SHIPPING_RATE_PER_KG" envDefault:"25"`

	// Kafka event sink
	KafkaEnabled bool     `env:"KAFKA_ENABLED" envDefault:"false"`
	KafkaBrokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`

	// Circuit breaker settings for event publishing
	CBMaxRequests  uint32  `env:"CB_MAX_REQUESTS" envDefault:"1"`
	CBInterval     int     `env:"CB_INTERVAL_SECONDS" envDefault:"60"`
	CBTimeout      int     `env:"CB_TIMEOUT_SECONDS" envDefault:"30"`
	CBFailureRatio float64 `env:"CB_FAILURE_RATIO" envDefault:"0.5"`
	CBMinRequests  uint32  `env:"CB_MIN_REQUESTS" envDefault:"5"`

	// OpenTelemetry
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`
}

// Load reads configuration from environment variables.
func Load(opts ...pkgconfig.Option) (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg, opts...); err != nil {
		return nil, fmt.Errorf("load checkout config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate checks configuration invariants.
func (c *Config) validate() error {
	if c.OpsHTTPPort < 0 || c.OpsHTTPPort > 65535 {
		return fmt.Errorf("invalid ops HTTP port: %d", c.OpsHTTPPort)
	}
	if c.LogFormat != "json" && c.LogFormat != "text" {
		return fmt.Errorf("LOG_FORMAT must be json or text, got %q", c.LogFormat)
	}
	if c.ShippingBaseFee.IsNegative() {
		return fmt.Errorf("SHIPPING_BASE_FEE must not be negative, got %s", c.ShippingBaseFee)
	}
	if c.ShippingRatePerKg.IsNegative() {
		return fmt.Errorf("SHIPPING_RATE_PER_KG must not be negative, got %s", c.ShippingRatePerKg)
	}
	if c.KafkaEnabled && len(c.KafkaBrokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS is required when KAFKA_ENABLED is set")
	}
	if c.CBFailureRatio <= 0 || c.CBFailureRatio > 1.0 {
		return fmt.Errorf("CB_FAILURE_RATIO must be in (0.0, 1.0], got %f", c.CBFailureRatio)
	}
	if c.OTELSampleRate < 0 || c.OTELSampleRate > 1.0 {
		return fmt.Errorf("OTEL_SAMPLE_RATE must be between 0.0 and 1.0, got %f", c.OTELSampleRate)
	}
	return nil
}

// ShippingPolicy returns the configured shipping policy.
func (c *Config) ShippingPolicy() domain.ShippingPolicy {
	return domain.ShippingPolicy{
		BaseFee:   c.ShippingBaseFee,
		RatePerKg: c.ShippingRatePerKg,
	}
}

// BreakerInterval returns the breaker count-reset interval.
func (c *Config) BreakerInterval() time.Duration {
	return time.Duration(c.CBInterval) * time.Second
}

// BreakerTimeout returns how long the breaker stays open.
func (c *Config) BreakerTimeout() time.Duration {
	return time.Duration(c.CBTimeout) * time.Second
}
