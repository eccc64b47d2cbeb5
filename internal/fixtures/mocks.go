package fixtures

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aistatsd/aistatsd"
)

// MockTelemetryClient implements a mock aistatsd.TelemetryClient
type MockTelemetryClient struct {
	TB testing.TB

	FnTrackMetric     func(sample *aistatsd.MetricSample)
	FnTrackException  func(err error)
	FnSetRoleName     func(name string)
	FnSetRoleInstance func(instance string)
}

func (m *MockTelemetryClient) TrackMetric(sample *aistatsd.MetricSample) {
	if m.FnTrackMetric != nil {
		m.FnTrackMetric(sample)
	} else {
		assert.Fail(m.TB, "TelemetryClient.TrackMetric must not be called")
	}
}

func (m *MockTelemetryClient) TrackException(err error) {
	if m.FnTrackException != nil {
		m.FnTrackException(err)
	} else {
		assert.Fail(m.TB, "TelemetryClient.TrackException must not be called")
	}
}

func (m *MockTelemetryClient) SetRoleName(name string) {
	if m.FnSetRoleName != nil {
		m.FnSetRoleName(name)
	} else {
		assert.Fail(m.TB, "TelemetryClient.SetRoleName must not be called")
	}
}

func (m *MockTelemetryClient) SetRoleInstance(instance string) {
	if m.FnSetRoleInstance != nil {
		m.FnSetRoleInstance(instance)
	} else {
		assert.Fail(m.TB, "TelemetryClient.SetRoleInstance must not be called")
	}
}

// RecordingTelemetryClient is an aistatsd.TelemetryClient which keeps everything it is given.
type RecordingTelemetryClient struct {
	lock         sync.Mutex
	metrics      []*aistatsd.MetricSample
	exceptions   []error
	roleName     string
	roleInstance string
}

func (r *RecordingTelemetryClient) TrackMetric(sample *aistatsd.MetricSample) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.metrics = append(r.metrics, sample)
}

func (r *RecordingTelemetryClient) TrackException(err error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.exceptions = append(r.exceptions, err)
}

func (r *RecordingTelemetryClient) SetRoleName(name string) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.roleName = name
}

func (r *RecordingTelemetryClient) SetRoleInstance(instance string) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.roleInstance = instance
}

func (r *RecordingTelemetryClient) Metrics() []*aistatsd.MetricSample {
	r.lock.Lock()
	defer r.lock.Unlock()
	metrics := make([]*aistatsd.MetricSample, len(r.metrics))
	copy(metrics, r.metrics)
	return metrics
}

func (r *RecordingTelemetryClient) Exceptions() []error {
	r.lock.Lock()
	defer r.lock.Unlock()
	exceptions := make([]error, len(r.exceptions))
	copy(exceptions, r.exceptions)
	return exceptions
}

func (r *RecordingTelemetryClient) RoleName() string {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.roleName
}

func (r *RecordingTelemetryClient) RoleInstance() string {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.roleInstance
}

// FactoryFor returns a TelemetryClientFactory which always returns client, and records the
// instrumentation key it was asked for in *ikey if ikey is not nil.
func FactoryFor(client aistatsd.TelemetryClient, ikey *string) aistatsd.TelemetryClientFactory {
	return func(instrumentationKey string) (aistatsd.TelemetryClient, error) {
		if ikey != nil {
			*ikey = instrumentationKey
		}
		return client, nil
	}
}
