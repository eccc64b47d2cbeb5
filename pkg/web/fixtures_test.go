package web_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/aistatsd/aistatsd"
)

type flush struct {
	timestamp time.Time
	payload   *aistatsd.FlushPayload
}

type capturingEmitter struct {
	mu      sync.Mutex
	flushes []flush
}

func (ce *capturingEmitter) On(event string, handler aistatsd.FlushHandler) {
	panic("capturingEmitter does not support listeners")
}

func (ce *capturingEmitter) Emit(event string, timestamp time.Time, payload *aistatsd.FlushPayload) int {
	ce.mu.Lock()
	defer ce.mu.Unlock()
	if event == aistatsd.EventFlush {
		ce.flushes = append(ce.flushes, flush{timestamp: timestamp, payload: payload})
	}
	return 1
}

func (ce *capturingEmitter) Flushes() []flush {
	ce.mu.Lock()
	defer ce.mu.Unlock()
	f := make([]flush, len(ce.flushes))
	copy(f, ce.flushes)
	return f
}

// testContext returns a context for a test, and panics if the test does not complete within a second.
func testContext(t *testing.T) (context.Context, func()) {
	ctxTest, completeTest := context.WithTimeout(context.Background(), 1100*time.Millisecond)
	go func() {
		after := time.NewTimer(1 * time.Second)
		select {
		case <-ctxTest.Done():
			after.Stop()
		case <-after.C:
			panic(t.Name() + " timed out")
		}
	}()
	return ctxTest, completeTest
}
