package forwarder

import (
	"fmt"
	"math"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"github.com/tilinna/clock"
	"golang.org/x/time/rate"

	"github.com/aistatsd/aistatsd"
	"github.com/aistatsd/aistatsd/pkg/healthcheck"
	"github.com/aistatsd/aistatsd/pkg/keycodec"
)

// InternalMetricPrefix is the prefix of metrics generated by the host daemon about itself.
const InternalMetricPrefix = "statsd."

// DecodedKey is a metric key split into its name and properties.
type DecodedKey struct {
	MetricName string
	// Properties is nil if the key carried none, or they could not be decoded.
	Properties map[string]string
}

// Forwarder forwards every flush it is notified of to a telemetry client.
type Forwarder struct {
	initialized   uint32 // atomic
	lastFlushNano int64  // atomic

	logger    logrus.FieldLogger
	config    Config
	prefix    string
	newClient aistatsd.TelemetryClientFactory
	clock     clock.Clock

	clientLock sync.Mutex
	client     aistatsd.TelemetryClient

	// decodeFailureLog limits warnings for undecodable keys, the exception is still reported every time.
	decodeFailureLog *rate.Limiter
}

// NewForwarder creates a Forwarder. No telemetry client exists until Initialize is called.
func NewForwarder(logger logrus.FieldLogger, config Config, newClient aistatsd.TelemetryClientFactory) *Forwarder {
	return &Forwarder{
		logger:           logger,
		config:           config,
		prefix:           config.normalisedPrefix(),
		newClient:        newClient,
		clock:            clock.Realtime(),
		decodeFailureLog: rate.NewLimiter(rate.Every(time.Minute), 5),
	}
}

// NewForwarderFromViper creates a Forwarder from the top level configuration.
func NewForwarderFromViper(v *viper.Viper, logger logrus.FieldLogger, newClient aistatsd.TelemetryClientFactory) (*Forwarder, error) {
	cfg, err := NewConfig(v)
	if err != nil {
		return nil, fmt.Errorf("invalid forwarder configuration: %v", err)
	}
	return NewForwarder(logger, *cfg, newClient), nil
}

// Initialize creates the telemetry client, applies role tags and registers for flush events on
// source. Calling it again registers a second listener, and every flush is then forwarded twice.
func (f *Forwarder) Initialize(source aistatsd.EventSource) error {
	f.clientLock.Lock()
	if f.client == nil {
		client, err := f.newClient(f.config.InstrumentationKey)
		if err != nil {
			f.clientLock.Unlock()
			return fmt.Errorf("failed to create telemetry client: %v", err)
		}
		f.client = client
	} else {
		f.logger.Warn("Forwarder initialized more than once, flushes will be forwarded once per registration")
	}
	client := f.client
	f.clientLock.Unlock()

	if f.config.RoleName != "" {
		client.SetRoleName(f.config.RoleName)
	}
	if f.config.RoleInstance != "" {
		client.SetRoleInstance(f.config.RoleInstance)
	}

	f.logger.WithField("event", aistatsd.EventFlush).Info("Registering for flush event")
	source.On(aistatsd.EventFlush, f.handleFlush)
	atomic.StoreUint32(&f.initialized, 1)

	f.logger.WithFields(logrus.Fields{
		"role-name":            f.config.RoleName,
		"role-instance":        f.config.RoleInstance,
		"prefix":               f.config.Prefix,
		"track-statsd-metrics": f.config.TrackStatsDMetrics,
	}).Info("Initialized forwarder")
	return nil
}

func (f *Forwarder) handleFlush(timestamp time.Time, payload *aistatsd.FlushPayload) {
	f.OnFlush(timestamp, payload)
}

// TelemetryClient returns the client created by Initialize, or nil before then.
func (f *Forwarder) TelemetryClient() aistatsd.TelemetryClient {
	f.clientLock.Lock()
	defer f.clientLock.Unlock()
	return f.client
}

// OnFlush forwards counters, then timers, then gauges from payload. Keys are visited in lexical
// order within each category. It always returns true.
func (f *Forwarder) OnFlush(timestamp time.Time, payload *aistatsd.FlushPayload) bool {
	logger := f.logger.WithField("flush_id", uuid.New().String())
	logger.Debug("Flush started")

	client := f.TelemetryClient()
	if client == nil {
		logger.Warn("Flush received before the forwarder was initialized, dropping")
		return true
	}
	if payload == nil {
		payload = &aistatsd.FlushPayload{}
	}

	countersTracked := 0
	for _, key := range aistatsd.SortedKeys(payload.Counters) {
		if !f.ShouldProcess(key) {
			continue
		}
		dk := f.decodeKey(client, logger, key)
		client.TrackMetric(&aistatsd.MetricSample{
			Name:       dk.MetricName,
			Value:      payload.Counters[key],
			Properties: dk.Properties,
			Timestamp:  timestamp,
		})
		countersTracked++
	}

	timersTracked := 0
	for _, key := range aistatsd.SortedTimerKeys(payload.Timers) {
		if !f.ShouldProcess(key) {
			continue
		}
		dk := f.decodeKey(client, logger, key)
		timer := payload.Timers[key]
		client.TrackMetric(&aistatsd.MetricSample{
			Name:  dk.MetricName,
			Value: timer.Sum,
			Aggregate: &aistatsd.Aggregate{
				Count:  int(math.Round(timer.Count)),
				Min:    timer.Lower,
				Max:    timer.Upper,
				StdDev: timer.Std,
			},
			Properties: dk.Properties,
			Timestamp:  timestamp,
		})
		timersTracked++
	}

	gaugesTracked := 0
	for _, key := range aistatsd.SortedKeys(payload.Gauges) {
		if !f.ShouldProcess(key) {
			continue
		}
		dk := f.decodeKey(client, logger, key)
		client.TrackMetric(&aistatsd.MetricSample{
			Name:       dk.MetricName,
			Value:      payload.Gauges[key],
			Properties: dk.Properties,
			Timestamp:  timestamp,
		})
		gaugesTracked++
	}

	atomic.StoreInt64(&f.lastFlushNano, f.clock.Now().UnixNano())

	logger.WithFields(logrus.Fields{
		"counters": countersTracked,
		"timers":   timersTracked,
		"gauges":   gaugesTracked,
	}).Debug("Flush completed")
	return true
}

// ShouldProcess reports whether key is forwarded at all.
func (f *Forwarder) ShouldProcess(key string) bool {
	if !f.config.TrackStatsDMetrics && strings.HasPrefix(key, InternalMetricPrefix) {
		return false
	}
	if f.prefix != "" {
		return strings.HasPrefix(key, f.prefix)
	}
	return true
}

// DecodeKey strips the configured prefix from key and decodes the properties it carries, if any.
// Undecodable properties are reported to the telemetry client as an exception and dropped.
func (f *Forwarder) DecodeKey(key string) DecodedKey {
	return f.decodeKey(f.TelemetryClient(), f.logger, key)
}

func (f *Forwarder) decodeKey(client aistatsd.TelemetryClient, logger logrus.FieldLogger, key string) DecodedKey {
	if f.prefix != "" {
		key = strings.TrimPrefix(key, f.prefix)
	}

	name, encoded, ok := keycodec.Split(key)
	if !ok {
		return DecodedKey{MetricName: name}
	}

	props, err := keycodec.DecodeProperties(encoded)
	if err != nil {
		if client != nil {
			client.TrackException(fmt.Errorf("Failed to parse properties string from key '%s': %v", key, err))
		}
		if f.decodeFailureLog.Allow() {
			logger.WithError(err).WithField("key", key).Warn("Failed to parse properties")
		}
		return DecodedKey{MetricName: name}
	}
	return DecodedKey{MetricName: name, Properties: props}
}

func (f *Forwarder) HealthChecks() []healthcheck.HealthcheckFunc {
	return []healthcheck.HealthcheckFunc{f.healthCheckInitialized}
}

func (f *Forwarder) DeepChecks() []healthcheck.HealthcheckFunc {
	if f.config.StaleFlushThreshold <= 0 {
		return nil
	}
	return []healthcheck.HealthcheckFunc{f.deepCheckLastFlush}
}

func (f *Forwarder) healthCheckInitialized() (string, healthcheck.HealthyStatus) {
	if atomic.LoadUint32(&f.initialized) == 0 {
		return "forwarder not initialized", healthcheck.Unhealthy
	}
	return "forwarder initialized", healthcheck.Healthy
}

func (f *Forwarder) deepCheckLastFlush() (string, healthcheck.HealthyStatus) {
	last := atomic.LoadInt64(&f.lastFlushNano)
	if last == 0 {
		return "no flush received", healthcheck.Unhealthy
	}
	age := f.clock.Now().Sub(time.Unix(0, last))
	if age > f.config.StaleFlushThreshold {
		return fmt.Sprintf("last flush %v ago exceeds %v", age.Truncate(time.Millisecond), f.config.StaleFlushThreshold), healthcheck.Unhealthy
	}
	return fmt.Sprintf("last flush %v ago", age.Truncate(time.Millisecond)), healthcheck.Healthy
}
