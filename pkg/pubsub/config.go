package pubsub

import (
	"errors"
	"fmt"

	"github.com/spf13/viper"
	"go.uber.org/multierr"
)

const (
	// DefaultAddress is the Redis server flushes are read from.
	DefaultAddress = "127.0.0.1:6379"
	// DefaultChannel is the channel flushes are published on.
	DefaultChannel = "aistatsd:flush"
	// DefaultEncoding is the encoding of published flushes.
	DefaultEncoding = EncodingJSON
)

type Config struct {
	Address  string `mapstructure:"address"`
	Channel  string `mapstructure:"channel"`
	Encoding string `mapstructure:"encoding"`
	DB       int    `mapstructure:"db"`
}

func newDefaultConfig() Config {
	return Config{
		Address:  DefaultAddress,
		Channel:  DefaultChannel,
		Encoding: DefaultEncoding,
	}
}

func NewConfig(v *viper.Viper) (*Config, error) {
	cfg := newDefaultConfig()
	// Environment overrides only apply to keys viper knows about.
	v.SetDefault("address", cfg.Address)
	v.SetDefault("channel", cfg.Channel)
	v.SetDefault("encoding", cfg.Encoding)
	v.SetDefault("db", cfg.DB)
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c Config) Validate() (errs error) {
	if c.Address == "" {
		errs = multierr.Append(errs, errors.New("address must not be empty"))
	}
	if c.Channel == "" {
		errs = multierr.Append(errs, errors.New("channel must not be empty"))
	}
	if !validEncoding(c.Encoding) {
		errs = multierr.Append(errs, fmt.Errorf("encoding must be one of %s or %s: %q", EncodingJSON, EncodingMsgpack, c.Encoding))
	}
	if c.DB < 0 {
		errs = multierr.Append(errs, errors.New("db must not be negative"))
	}
	return errs
}
