package events

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aistatsd/aistatsd"
)

func TestEmitterCallsInOrder(t *testing.T) {
	t.Parallel()
	e := NewEmitter()

	var calls []string
	e.On(aistatsd.EventFlush, func(time.Time, *aistatsd.FlushPayload) { calls = append(calls, "first") })
	e.On(aistatsd.EventFlush, func(time.Time, *aistatsd.FlushPayload) { calls = append(calls, "second") })
	e.On("other", func(time.Time, *aistatsd.FlushPayload) { calls = append(calls, "other") })

	n := e.Emit(aistatsd.EventFlush, time.Unix(1, 0), aistatsd.NewFlushPayload())
	require.Equal(t, 2, n)
	assert.Equal(t, []string{"first", "second"}, calls)
}

func TestEmitterPassesArguments(t *testing.T) {
	t.Parallel()
	var e Emitter

	ts := time.Unix(123, 0)
	payload := aistatsd.NewFlushPayload()
	payload.Counters["c"] = 1

	called := false
	e.On(aistatsd.EventFlush, func(timestamp time.Time, p *aistatsd.FlushPayload) {
		called = true
		assert.Equal(t, ts, timestamp)
		assert.Same(t, payload, p)
	})
	e.Emit(aistatsd.EventFlush, ts, payload)
	assert.True(t, called)
}

func TestEmitterNoListeners(t *testing.T) {
	t.Parallel()
	e := NewEmitter()
	assert.Equal(t, 0, e.Emit(aistatsd.EventFlush, time.Time{}, nil))
	assert.Equal(t, 0, e.ListenerCount(aistatsd.EventFlush))
}

func TestEmitterListenerCount(t *testing.T) {
	t.Parallel()
	e := NewEmitter()
	h := func(time.Time, *aistatsd.FlushPayload) {}
	e.On(aistatsd.EventFlush, h)
	e.On(aistatsd.EventFlush, h)
	e.On("other", h)
	assert.Equal(t, 2, e.ListenerCount(aistatsd.EventFlush))
	assert.Equal(t, 1, e.ListenerCount("other"))
}

func TestEmitterSerialisesEmits(t *testing.T) {
	t.Parallel()
	e := NewEmitter()

	var inFlight, maxInFlight int
	var mu sync.Mutex
	e.On(aistatsd.EventFlush, func(time.Time, *aistatsd.FlushPayload) {
		mu.Lock()
		inFlight++
		if inFlight > maxInFlight {
			maxInFlight = inFlight
		}
		mu.Unlock()
		time.Sleep(time.Millisecond)
		mu.Lock()
		inFlight--
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.Emit(aistatsd.EventFlush, time.Time{}, nil)
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, maxInFlight)
}
