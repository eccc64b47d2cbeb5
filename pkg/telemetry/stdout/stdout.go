package stdout

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/aistatsd/aistatsd"
)

// ClientName is the name of this telemetry client.
const ClientName = "stdout"

// Client writes telemetry to a writer, one line per item.
type Client struct {
	lock         sync.Mutex
	w            io.Writer
	roleName     string
	roleInstance string
}

// NewFactoryFromViper returns a factory for clients writing to stdout.
func NewFactoryFromViper(v *viper.Viper, logger logrus.FieldLogger) (aistatsd.TelemetryClientFactory, error) {
	return func(instrumentationKey string) (aistatsd.TelemetryClient, error) {
		logger.WithField("telemetry-client", ClientName).Info("Writing telemetry to stdout")
		return NewClient(os.Stdout), nil
	}, nil
}

// NewClient constructs a client writing to w.
func NewClient(w io.Writer) *Client {
	return &Client{w: w}
}

func (c *Client) TrackMetric(sample *aistatsd.MetricSample) {
	var sb strings.Builder
	sb.WriteString("metric")
	c.writeCommon(&sb, sample.Timestamp)
	sb.WriteString(" name=")
	sb.WriteString(strconv.Quote(sample.Name))
	sb.WriteString(" value=")
	sb.WriteString(formatFloat(sample.Value))
	if agg := sample.Aggregate; agg != nil {
		fmt.Fprintf(&sb, " count=%d min=%s max=%s std=%s", agg.Count, formatFloat(agg.Min), formatFloat(agg.Max), formatFloat(agg.StdDev))
	}
	writeProperties(&sb, sample.Properties)
	c.writeLine(sb.String())
}

func (c *Client) TrackException(err error) {
	var sb strings.Builder
	sb.WriteString("exception")
	c.writeCommon(&sb, time.Time{})
	sb.WriteString(" message=")
	sb.WriteString(strconv.Quote(err.Error()))
	c.writeLine(sb.String())
}

func (c *Client) SetRoleName(name string) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.roleName = name
}

func (c *Client) SetRoleInstance(instance string) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.roleInstance = instance
}

func (c *Client) writeCommon(sb *strings.Builder, ts time.Time) {
	c.lock.Lock()
	roleName, roleInstance := c.roleName, c.roleInstance
	c.lock.Unlock()

	if !ts.IsZero() {
		sb.WriteString(" time=")
		sb.WriteString(ts.UTC().Format(time.RFC3339))
	}
	if roleName != "" {
		sb.WriteString(" role=")
		sb.WriteString(strconv.Quote(roleName))
	}
	if roleInstance != "" {
		sb.WriteString(" instance=")
		sb.WriteString(strconv.Quote(roleInstance))
	}
}

func (c *Client) writeLine(line string) {
	c.lock.Lock()
	defer c.lock.Unlock()
	_, _ = io.WriteString(c.w, line+"\n")
}

func writeProperties(sb *strings.Builder, props map[string]string) {
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(sb, " %s=%s", strconv.Quote(k), strconv.Quote(props[k]))
	}
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
