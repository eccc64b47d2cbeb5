package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/aistatsd/aistatsd"
	"github.com/aistatsd/aistatsd/pkg/keycodec"
)

func buildPayload(opts commandOptions) (*aistatsd.FlushPayload, error) {
	props := make(map[string]string, len(opts.Props))
	for _, prop := range opts.Props {
		k, v, err := splitPair(prop)
		if err != nil {
			return nil, fmt.Errorf("invalid prop: %v", err)
		}
		props[k] = v
	}

	fp := aistatsd.NewFlushPayload()
	fp.Timestamp = opts.Timestamp

	keyFor := func(name string) (string, error) {
		if opts.Prefix != "" {
			name = opts.Prefix + "." + name
		}
		return keycodec.EncodeKey(name, props)
	}

	for _, counter := range opts.Metrics.Counters {
		key, value, err := parseValue(counter, keyFor)
		if err != nil {
			return nil, fmt.Errorf("invalid counter: %v", err)
		}
		fp.Counters[key] = value
	}
	for _, gauge := range opts.Metrics.Gauges {
		key, value, err := parseValue(gauge, keyFor)
		if err != nil {
			return nil, fmt.Errorf("invalid gauge: %v", err)
		}
		fp.Gauges[key] = value
	}
	for _, timer := range opts.Metrics.Timers {
		name, raw, err := splitPair(timer)
		if err != nil {
			return nil, fmt.Errorf("invalid timer: %v", err)
		}
		td, err := parseTimerData(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid timer %s: %v", name, err)
		}
		key, err := keyFor(name)
		if err != nil {
			return nil, err
		}
		fp.Timers[key] = td
	}
	return fp, nil
}

func splitPair(s string) (string, string, error) {
	k, v, found := strings.Cut(s, "=")
	if !found || k == "" {
		return "", "", fmt.Errorf("%q is not in the form name=value", s)
	}
	return k, v, nil
}

func parseValue(s string, keyFor func(string) (string, error)) (string, float64, error) {
	name, raw, err := splitPair(s)
	if err != nil {
		return "", 0, err
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return "", 0, fmt.Errorf("value of %s: %v", name, err)
	}
	key, err := keyFor(name)
	if err != nil {
		return "", 0, err
	}
	return key, value, nil
}

func parseTimerData(s string) (aistatsd.TimerData, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 5 {
		return aistatsd.TimerData{}, fmt.Errorf("expected sum,count,lower,upper,std but got %q", s)
	}
	values := make([]float64, len(parts))
	for i, part := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return aistatsd.TimerData{}, err
		}
		values[i] = f
	}
	return aistatsd.TimerData{
		Sum:   values[0],
		Count: values[1],
		Lower: values[2],
		Upper: values[3],
		Std:   values[4],
	}, nil
}
