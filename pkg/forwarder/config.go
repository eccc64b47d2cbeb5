package forwarder

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/multierr"
)

type Config struct {
	// InstrumentationKey (Required for real submission) identifies the telemetry resource
	InstrumentationKey string `mapstructure:"instrumentation-key"`
	// RoleName (Optional) is attached to all telemetry as the cloud role
	RoleName string `mapstructure:"role-name"`
	// RoleInstance (Optional) is attached to all telemetry as the cloud role instance
	RoleInstance string `mapstructure:"role-instance"`
	// Prefix (Optional) restricts forwarding to keys starting with "<prefix>." and strips it from the name
	Prefix string `mapstructure:"prefix"`
	// TrackStatsDMetrics (Optional, default: false) forwards the host daemon's own statsd.* metrics
	TrackStatsDMetrics bool `mapstructure:"track-statsd-metrics"`
	// StaleFlushThreshold (Optional, default: 0) fails the deepcheck when no flush arrived within it, 0 disables
	StaleFlushThreshold time.Duration `mapstructure:"stale-flush-threshold"`
}

func newDefaultConfig() Config {
	return Config{
		TrackStatsDMetrics:  false,
		StaleFlushThreshold: 0,
	}
}

func NewConfig(v *viper.Viper) (*Config, error) {
	cfg := newDefaultConfig()
	// Environment overrides only apply to keys viper knows about.
	v.SetDefault("instrumentation-key", cfg.InstrumentationKey)
	v.SetDefault("role-name", cfg.RoleName)
	v.SetDefault("role-instance", cfg.RoleInstance)
	v.SetDefault("prefix", cfg.Prefix)
	v.SetDefault("track-statsd-metrics", cfg.TrackStatsDMetrics)
	v.SetDefault("stale-flush-threshold", cfg.StaleFlushThreshold)
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c Config) Validate() (errs error) {
	if strings.ContainsAny(c.InstrumentationKey, " \t\r\n") {
		errs = multierr.Append(errs, errors.New("instrumentation key must not contain whitespace"))
	}
	if c.StaleFlushThreshold < 0 {
		errs = multierr.Append(errs, fmt.Errorf("stale flush threshold must not be negative: %v", c.StaleFlushThreshold))
	}
	return errs
}

// normalisedPrefix is the prefix as matched against keys, including the trailing separator.
func (c Config) normalisedPrefix() string {
	if c.Prefix == "" {
		return ""
	}
	return c.Prefix + "."
}
