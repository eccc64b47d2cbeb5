package aistatsd

import (
	"time"
)

// EventFlush is the name of the event emitted once per flush interval.
const EventFlush = "flush"

// FlushHandler handles a single flush. It is called synchronously by the emitter and must not
// retain the payload after returning.
type FlushHandler func(timestamp time.Time, payload *FlushPayload)

// EventSource is anything a FlushHandler can be registered with.
type EventSource interface {
	On(event string, handler FlushHandler)
}

// FlushEmitter is an EventSource which can also deliver events. Transports depend on this.
type FlushEmitter interface {
	EventSource
	Emit(event string, timestamp time.Time, payload *FlushPayload) int
}
