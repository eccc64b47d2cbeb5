package null

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/aistatsd/aistatsd"
)

// ClientName is the name of this telemetry client.
const ClientName = "null"

// client represents a discarding telemetry client.
type client struct{}

// NewFactoryFromViper returns a factory for discarding clients.
func NewFactoryFromViper(v *viper.Viper, logger logrus.FieldLogger) (aistatsd.TelemetryClientFactory, error) {
	return func(string) (aistatsd.TelemetryClient, error) {
		return NewClient(), nil
	}, nil
}

// NewClient constructs a client object.
func NewClient() aistatsd.TelemetryClient {
	return client{}
}

// TrackMetric discards the sample.
func (client) TrackMetric(*aistatsd.MetricSample) {}

// TrackException discards the error.
func (client) TrackException(error) {}

func (client) SetRoleName(string) {}

func (client) SetRoleInstance(string) {}
