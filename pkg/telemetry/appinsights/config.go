package appinsights

import (
	"errors"
	"net/url"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/multierr"
)

const (
	// DefaultEndpointUrl is the public ingestion endpoint.
	DefaultEndpointUrl = "https://dc.services.visualstudio.com/v2/track"
	// DefaultMaxBatchSize is the maximum number of telemetry items sent in one request.
	DefaultMaxBatchSize = 1024
	// DefaultMaxBatchInterval is the maximum time telemetry is buffered before being sent.
	DefaultMaxBatchInterval = 10 * time.Second
	// DefaultShutdownTimeout is how long buffered telemetry is retried for on shutdown.
	DefaultShutdownTimeout = 5 * time.Second
)

type Config struct {
	// EndpointUrl (Optional, default: DefaultEndpointUrl) is the ingestion endpoint
	EndpointUrl string `mapstructure:"endpoint-url"`
	// MaxBatchSize (Optional, default: 1024) is the maximum number of items per request
	MaxBatchSize int `mapstructure:"max-batch-size"`
	// MaxBatchInterval (Optional, default: 10s) is the maximum time items are buffered for
	MaxBatchInterval time.Duration `mapstructure:"max-batch-interval"`
	// ShutdownTimeout (Optional, default: 5s) bounds the final flush on shutdown
	ShutdownTimeout time.Duration `mapstructure:"shutdown-timeout"`
}

func newDefaultConfig() Config {
	return Config{
		EndpointUrl:      DefaultEndpointUrl,
		MaxBatchSize:     DefaultMaxBatchSize,
		MaxBatchInterval: DefaultMaxBatchInterval,
		ShutdownTimeout:  DefaultShutdownTimeout,
	}
}

func NewConfig(v *viper.Viper) (*Config, error) {
	cfg := newDefaultConfig()
	// Environment overrides only apply to keys viper knows about.
	v.SetDefault("endpoint-url", cfg.EndpointUrl)
	v.SetDefault("max-batch-size", cfg.MaxBatchSize)
	v.SetDefault("max-batch-interval", cfg.MaxBatchInterval)
	v.SetDefault("shutdown-timeout", cfg.ShutdownTimeout)
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c Config) Validate() (errs error) {
	if u, err := url.Parse(c.EndpointUrl); err != nil || u.Scheme == "" || u.Host == "" {
		errs = multierr.Append(errs, errors.New("endpoint url must be an absolute url"))
	}
	if c.MaxBatchSize <= 0 {
		errs = multierr.Append(errs, errors.New("max batch size must be a positive value"))
	}
	if c.MaxBatchInterval <= 0 {
		errs = multierr.Append(errs, errors.New("max batch interval must be a positive value"))
	}
	if c.ShutdownTimeout < 0 {
		errs = multierr.Append(errs, errors.New("shutdown timeout must not be negative"))
	}
	return errs
}
