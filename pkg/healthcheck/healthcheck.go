package healthcheck

// HealthcheckFunc is a function that returns a status message, and if the check if healthy or not (false).
// healthchecks must not block, and downstream dependencies should be reported on via a watchdog style, and not by
// making a roundtrip.
type HealthcheckFunc func() (string, HealthyStatus)

type HealthyStatus bool

const (
	Healthy   = HealthyStatus(true)
	Unhealthy = HealthyStatus(false)
)

// HealthCheckProvider is implemented by components which can report if they are ready to process flushes.
type HealthCheckProvider interface {
	HealthChecks() []HealthcheckFunc
}

// DeepCheckProvider is implemented by components which can report on their downstream dependencies,
// such as the telemetry channel or the Redis subscription.
type DeepCheckProvider interface {
	DeepChecks() []HealthcheckFunc
}

func MaybeAppendHealthChecks(healthChecks []HealthcheckFunc, deepChecks []HealthcheckFunc, maybeProvider interface{}) ([]HealthcheckFunc, []HealthcheckFunc) {
	if hcp, ok := maybeProvider.(HealthCheckProvider); ok {
		healthChecks = append(healthChecks, hcp.HealthChecks()...)
	}
	if dcp, ok := maybeProvider.(DeepCheckProvider); ok {
		deepChecks = append(deepChecks, dcp.DeepChecks()...)
	}
	return healthChecks, deepChecks
}

// Run runs every check and splits their reports by status. Both slices are non-nil.
func Run(checks []HealthcheckFunc) (good []string, bad []string) {
	good = []string{}
	bad = []string{}
	for _, check := range checks {
		report, isHealthy := check()
		if isHealthy == Healthy {
			good = append(good, report)
		} else {
			bad = append(bad, report)
		}
	}
	return good, bad
}
