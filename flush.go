package aistatsd

import (
	"sort"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// TimerData is the aggregate the host daemon computes for a single timer over a flush interval.
type TimerData struct {
	Sum   float64 `json:"sum" msgpack:"sum"`
	Count float64 `json:"count" msgpack:"count"`
	Lower float64 `json:"lower" msgpack:"lower"`
	Upper float64 `json:"upper" msgpack:"upper"`
	Std   float64 `json:"std" msgpack:"std"`
}

// FlushPayload is the snapshot of aggregated metrics delivered with every flush event.
// It is owned by the emitter and must not be modified by handlers.
type FlushPayload struct {
	// Timestamp is the flush time in unix seconds, only present on transported payloads.
	Timestamp int64                `json:"timestamp,omitempty" msgpack:"timestamp,omitempty"`
	Counters  map[string]float64   `json:"counters" msgpack:"counters"`
	Timers    map[string]TimerData `json:"timer_data" msgpack:"timer_data"`
	Gauges    map[string]float64   `json:"gauges" msgpack:"gauges"`
}

// NewFlushPayload returns an empty FlushPayload with all categories allocated.
func NewFlushPayload() *FlushPayload {
	return &FlushPayload{
		Counters: map[string]float64{},
		Timers:   map[string]TimerData{},
		Gauges:   map[string]float64{},
	}
}

// UnmarshalFlushPayload parses a JSON encoded FlushPayload. Missing categories are left nil.
func UnmarshalFlushPayload(b []byte) (*FlushPayload, error) {
	fp := &FlushPayload{}
	if err := json.Unmarshal(b, fp); err != nil {
		return nil, err
	}
	return fp, nil
}

// Encode returns the JSON encoding of the payload.
func (fp *FlushPayload) Encode() ([]byte, error) {
	return json.Marshal(fp)
}

// Len returns the total number of metrics across all categories.
func (fp *FlushPayload) Len() int {
	if fp == nil {
		return 0
	}
	return len(fp.Counters) + len(fp.Timers) + len(fp.Gauges)
}

// Time returns the payload timestamp, or def if the payload carries none.
func (fp *FlushPayload) Time(def time.Time) time.Time {
	if fp == nil || fp.Timestamp <= 0 {
		return def
	}
	return time.Unix(fp.Timestamp, 0)
}

// SortedKeys returns the keys of a counter or gauge map in lexical order.
func SortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// SortedTimerKeys returns the keys of a timer map in lexical order.
func SortedTimerKeys(m map[string]TimerData) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
