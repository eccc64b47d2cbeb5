package appinsights

import (
	"context"
	"fmt"
	"time"

	"github.com/microsoft/ApplicationInsights-Go/appinsights"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/aistatsd/aistatsd"
	"github.com/aistatsd/aistatsd/pkg/healthcheck"
	"github.com/aistatsd/aistatsd/pkg/util"
)

// ClientName is the name of this telemetry client.
const ClientName = "appinsights"

// Client submits telemetry to Application Insights. The SDK channel owns batching and retries.
type Client struct {
	logger      logrus.FieldLogger
	config      Config
	tc          appinsights.TelemetryClient
	diagnostics appinsights.DiagnosticsMessageListener
}

var _ aistatsd.TelemetryClient = (*Client)(nil)

// NewFactoryFromViper reads the appinsights section of v and returns a factory for clients using it.
func NewFactoryFromViper(v *viper.Viper, logger logrus.FieldLogger) (aistatsd.TelemetryClientFactory, error) {
	cfg, err := NewConfig(util.GetSubViper(v, ClientName))
	if err != nil {
		return nil, fmt.Errorf("[%s] invalid configuration: %v", ClientName, err)
	}
	logger = logger.WithField("telemetry-client", ClientName)
	return func(instrumentationKey string) (aistatsd.TelemetryClient, error) {
		return NewClient(logger, *cfg, instrumentationKey)
	}, nil
}

// NewClient creates a Client sending to the resource identified by instrumentationKey.
func NewClient(logger logrus.FieldLogger, config Config, instrumentationKey string) (*Client, error) {
	if instrumentationKey == "" {
		return nil, fmt.Errorf("[%s] instrumentation key is required", ClientName)
	}

	tcfg := appinsights.NewTelemetryConfiguration(instrumentationKey)
	tcfg.EndpointUrl = config.EndpointUrl
	tcfg.MaxBatchSize = config.MaxBatchSize
	tcfg.MaxBatchInterval = config.MaxBatchInterval

	c := &Client{
		logger: logger,
		config: config,
		tc:     appinsights.NewTelemetryClientFromConfig(tcfg),
	}
	c.diagnostics = appinsights.NewDiagnosticsMessageListener(func(msg string) error {
		c.logger.WithField("source", "sdk").Debug(msg)
		return nil
	})

	logger.WithFields(logrus.Fields{
		"endpoint":           config.EndpointUrl,
		"max-batch-size":     config.MaxBatchSize,
		"max-batch-interval": config.MaxBatchInterval,
	}).Info("Created telemetry client")
	return c, nil
}

// TrackMetric queues a metric, or an aggregate metric if sample carries an Aggregate.
func (c *Client) TrackMetric(sample *aistatsd.MetricSample) {
	c.tc.Track(newTelemetry(sample))
}

func (c *Client) TrackException(err error) {
	c.tc.TrackException(err)
}

func (c *Client) SetRoleName(name string) {
	c.tc.Context().Tags.Cloud().SetRole(name)
}

func (c *Client) SetRoleInstance(instance string) {
	c.tc.Context().Tags.Cloud().SetRoleInstance(instance)
}

// Run waits for ctx to be done, then drains the channel.
func (c *Client) Run(ctx context.Context) {
	<-ctx.Done()
	c.logger.Info("Flushing telemetry channel")

	select {
	case <-c.tc.Channel().Close(c.config.ShutdownTimeout):
		c.logger.Info("Telemetry channel closed")
	case <-time.After(c.config.ShutdownTimeout + time.Second):
		c.logger.Warn("Timed out closing telemetry channel, some telemetry may be lost")
	}
	c.diagnostics.Remove()
}

func (c *Client) DeepChecks() []healthcheck.HealthcheckFunc {
	return []healthcheck.HealthcheckFunc{c.deepCheckThrottled}
}

func (c *Client) deepCheckThrottled() (string, healthcheck.HealthyStatus) {
	if c.tc.Channel().IsThrottled() {
		return ClientName + " channel throttled", healthcheck.Unhealthy
	}
	return ClientName + " channel ok", healthcheck.Healthy
}

func newTelemetry(sample *aistatsd.MetricSample) appinsights.Telemetry {
	if sample.Aggregate == nil {
		m := appinsights.NewMetricTelemetry(sample.Name, sample.Value)
		applyCommon(&m.BaseTelemetry, &m.Properties, sample)
		return m
	}

	a := appinsights.NewAggregateMetricTelemetry(sample.Name)
	a.Value = sample.Value
	a.Count = sample.Aggregate.Count
	a.Min = sample.Aggregate.Min
	a.Max = sample.Aggregate.Max
	a.StdDev = sample.Aggregate.StdDev
	applyCommon(&a.BaseTelemetry, &a.Properties, sample)
	return a
}

func applyCommon(base *appinsights.BaseTelemetry, properties *map[string]string, sample *aistatsd.MetricSample) {
	if !sample.Timestamp.IsZero() {
		base.Timestamp = sample.Timestamp
	}
	if len(sample.Properties) == 0 {
		return
	}
	if *properties == nil {
		*properties = make(map[string]string, len(sample.Properties))
	}
	for k, v := range sample.Properties {
		(*properties)[k] = v
	}
}
