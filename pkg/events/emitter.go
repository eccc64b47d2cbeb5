package events

import (
	"sync"
	"time"

	"github.com/aistatsd/aistatsd"
)

// Emitter is a registry of named event listeners. The zero value is ready to use.
type Emitter struct {
	lock      sync.RWMutex
	listeners map[string][]aistatsd.FlushHandler

	emitLock sync.Mutex
}

var _ aistatsd.FlushEmitter = (*Emitter)(nil)

// NewEmitter returns an Emitter with no listeners.
func NewEmitter() *Emitter {
	return &Emitter{}
}

// On registers handler for event. Registering the same handler twice results in it being called
// twice per event. Thread-safe.
func (e *Emitter) On(event string, handler aistatsd.FlushHandler) {
	e.lock.Lock()
	defer e.lock.Unlock()
	if e.listeners == nil {
		e.listeners = map[string][]aistatsd.FlushHandler{}
	}
	e.listeners[event] = append(e.listeners[event], handler)
}

// Emit calls every listener registered for event, in registration order, and returns how many
// were called. Only one Emit runs listeners at a time.
func (e *Emitter) Emit(event string, timestamp time.Time, payload *aistatsd.FlushPayload) int {
	e.lock.RLock()
	handlers := make([]aistatsd.FlushHandler, len(e.listeners[event]))
	copy(handlers, e.listeners[event])
	e.lock.RUnlock()

	e.emitLock.Lock()
	defer e.emitLock.Unlock()
	for _, handler := range handlers {
		handler(timestamp, payload)
	}
	return len(handlers)
}

// ListenerCount returns the number of listeners registered for event.
func (e *Emitter) ListenerCount(event string) int {
	e.lock.RLock()
	defer e.lock.RUnlock()
	return len(e.listeners[event])
}
