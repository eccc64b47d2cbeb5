package aistatsd

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlushPayloadUnmarshal(t *testing.T) {
	t.Parallel()
	input := `{
		"counters": {"a": 1, "statsd.bad_lines_seen": 0},
		"timer_data": {"t": {"sum": 10, "count": 2, "lower": 3, "upper": 7, "std": 2, "mean": 5}},
		"gauges": {"g": 4.5},
		"sets": {"s": ["x"]}
	}`
	var fp FlushPayload
	require.NoError(t, json.Unmarshal([]byte(input), &fp))

	assert.Equal(t, map[string]float64{"a": 1, "statsd.bad_lines_seen": 0}, fp.Counters)
	assert.Equal(t, map[string]TimerData{"t": {Sum: 10, Count: 2, Lower: 3, Upper: 7, Std: 2}}, fp.Timers)
	assert.Equal(t, map[string]float64{"g": 4.5}, fp.Gauges)
	assert.Equal(t, 4, fp.Len())
}

func TestFlushPayloadTime(t *testing.T) {
	t.Parallel()
	def := time.Unix(100, 0)

	var nilPayload *FlushPayload
	assert.Equal(t, def, nilPayload.Time(def))
	assert.Equal(t, def, NewFlushPayload().Time(def))
	assert.Equal(t, time.Unix(42, 0), (&FlushPayload{Timestamp: 42}).Time(def))
}

func TestSortedKeys(t *testing.T) {
	t.Parallel()
	assert.Equal(t, []string{"a", "b", "c"}, SortedKeys(map[string]float64{"c": 1, "a": 2, "b": 3}))
	assert.Equal(t, []string{"x", "y"}, SortedTimerKeys(map[string]TimerData{"y": {}, "x": {}}))
	assert.Empty(t, SortedKeys(nil))
}
