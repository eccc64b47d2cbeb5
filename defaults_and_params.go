package aistatsd

import (
	"time"

	"github.com/spf13/pflag"
)

const (
	// DefaultTelemetryClient is the name of the default telemetry client.
	DefaultTelemetryClient = "appinsights"
	// DefaultTrackStatsDMetrics is the default for forwarding the host daemon's own metrics.
	DefaultTrackStatsDMetrics = false
	// DefaultStaleFlushThreshold is the default age after which the last flush is reported as stale.
	DefaultStaleFlushThreshold = time.Duration(0)
	// DefaultRedisEnabled is the default for subscribing to flushes over Redis.
	DefaultRedisEnabled = false
)

// DefaultHttpServers is the default list of http server names.
var DefaultHttpServers = []string{"default"}

const (
	// ParamInstrumentationKey is the name of parameter with the telemetry instrumentation key.
	ParamInstrumentationKey = "instrumentation-key"
	// ParamRoleName is the name of parameter with the cloud role name tag.
	ParamRoleName = "role-name"
	// ParamRoleInstance is the name of parameter with the cloud role instance tag.
	ParamRoleInstance = "role-instance"
	// ParamPrefix is the name of parameter with the metric name prefix to filter on and strip.
	ParamPrefix = "prefix"
	// ParamTrackStatsDMetrics is the name of parameter to forward the host daemon's own metrics.
	ParamTrackStatsDMetrics = "track-statsd-metrics"
	// ParamTelemetryClient is the name of parameter with the telemetry client to use.
	ParamTelemetryClient = "telemetry-client"
	// ParamStaleFlushThreshold is the name of parameter with the age after which the last flush is stale.
	ParamStaleFlushThreshold = "stale-flush-threshold"
	// ParamHttpServers is the name of parameter with the list of http server names.
	ParamHttpServers = "http-servers"
	// ParamRedisEnabled is the name of parameter to subscribe to flushes over Redis.
	ParamRedisEnabled = "redis-enabled"
)

// AddFlags adds flags to the specified FlagSet.
func AddFlags(fs *pflag.FlagSet) {
	fs.String(ParamInstrumentationKey, "", "Instrumentation key of the telemetry resource")
	fs.String(ParamRoleName, "", "If set, the cloud role name attached to all telemetry")
	fs.String(ParamRoleInstance, "", "If set, the cloud role instance attached to all telemetry")
	fs.String(ParamPrefix, "", "If set, only forward metrics starting with this prefix, and strip it")
	fs.Bool(ParamTrackStatsDMetrics, DefaultTrackStatsDMetrics, "Forward the statsd daemon's own statsd.* metrics")
	fs.String(ParamTelemetryClient, DefaultTelemetryClient, "Telemetry client to forward to (appinsights, stdout, null)")
	fs.Duration(ParamStaleFlushThreshold, DefaultStaleFlushThreshold, "Report the deepcheck as failed if no flush arrived within this duration (0 to disable)")
	fs.StringSlice(ParamHttpServers, DefaultHttpServers, "Comma-separated list of http server names")
	fs.Bool(ParamRedisEnabled, DefaultRedisEnabled, "Receive flushes from a Redis pub/sub channel")
}
