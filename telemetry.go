package aistatsd

import (
	"time"
)

// Aggregate holds the pre-aggregated statistics submitted with a timer.
type Aggregate struct {
	Count  int
	Min    float64
	Max    float64
	StdDev float64
}

// MetricSample is a single data point submitted to a TelemetryClient.
type MetricSample struct {
	Name  string
	Value float64
	// Aggregate is nil for counters and gauges.
	Aggregate *Aggregate
	// Properties is nil when the metric key carried none.
	Properties map[string]string
	// Timestamp is zero when unknown, in which case the client uses its own clock.
	Timestamp time.Time
}

// TelemetryClient submits metrics and exceptions to a telemetry service. Implementations own
// batching and delivery, and every method must be non-blocking.
type TelemetryClient interface {
	TrackMetric(sample *MetricSample)
	TrackException(err error)
	SetRoleName(name string)
	SetRoleInstance(instance string)
}

// TelemetryClientFactory creates a TelemetryClient bound to an instrumentation key.
type TelemetryClientFactory func(instrumentationKey string) (TelemetryClient, error)
