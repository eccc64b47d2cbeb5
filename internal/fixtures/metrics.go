package fixtures

import (
	"github.com/aistatsd/aistatsd"
)

type PayloadOpt func(fp *aistatsd.FlushPayload)

// MakePayload provides a way to build a flush payload for tests.
func MakePayload(opts ...PayloadOpt) *aistatsd.FlushPayload {
	fp := aistatsd.NewFlushPayload()
	for _, opt := range opts {
		opt(fp)
	}
	return fp
}

func Counter(key string, value float64) PayloadOpt {
	return func(fp *aistatsd.FlushPayload) {
		fp.Counters[key] = value
	}
}

func Gauge(key string, value float64) PayloadOpt {
	return func(fp *aistatsd.FlushPayload) {
		fp.Gauges[key] = value
	}
}

func Timer(key string, sum, count, lower, upper, std float64) PayloadOpt {
	return func(fp *aistatsd.FlushPayload) {
		fp.Timers[key] = aistatsd.TimerData{
			Sum:   sum,
			Count: count,
			Lower: lower,
			Upper: upper,
			Std:   std,
		}
	}
}

func At(unixSeconds int64) PayloadOpt {
	return func(fp *aistatsd.FlushPayload) {
		fp.Timestamp = unixSeconds
	}
}
