package telemetry

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/aistatsd/aistatsd"
	"github.com/aistatsd/aistatsd/pkg/telemetry/appinsights"
	"github.com/aistatsd/aistatsd/pkg/telemetry/null"
	"github.com/aistatsd/aistatsd/pkg/telemetry/stdout"
)

// FactoryBuilder reads a telemetry client's configuration and returns a factory for it.
type FactoryBuilder func(v *viper.Viper, logger logrus.FieldLogger) (aistatsd.TelemetryClientFactory, error)

// All known telemetry clients.
var builders = map[string]FactoryBuilder{
	appinsights.ClientName: appinsights.NewFactoryFromViper,
	null.ClientName:        null.NewFactoryFromViper,
	stdout.ClientName:      stdout.NewFactoryFromViper,
}

// GetFactory creates a factory for the named telemetry client, or nil if the name is not known. The error
// return is only used if the named client was known but its configuration was invalid.
func GetFactory(name string, v *viper.Viper, logger logrus.FieldLogger) (aistatsd.TelemetryClientFactory, error) {
	b, found := builders[name]
	if !found {
		return nil, nil
	}
	return b(v, logger)
}

// InitFactory creates a factory for the named telemetry client.
func InitFactory(name string, v *viper.Viper, logger logrus.FieldLogger) (aistatsd.TelemetryClientFactory, error) {
	if name == "" {
		return nil, fmt.Errorf("no telemetry client specified")
	}

	factory, err := GetFactory(name, v, logger)
	if err != nil {
		return nil, fmt.Errorf("could not init telemetry client %q: %v", name, err)
	}
	if factory == nil {
		return nil, fmt.Errorf("unknown telemetry client %q", name)
	}
	logger.Infof("Initialised telemetry client %q", name)

	return factory, nil
}
