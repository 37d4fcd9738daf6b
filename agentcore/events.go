package agentcore

import (
	"sync"
	"sync/atomic"
	"time"
)

// EventKind identifies the type of run event.
type EventKind string

const (
	EventTurnStarted       EventKind = "turn-started"
	EventDirectiveDetected EventKind = "directive-detected"
	EventActionCompleted   EventKind = "action-completed"
	EventTurnFinished      EventKind = "turn-finished"
)

// Event is one observer notification. Delivery is best-effort; payloads
// are minimal by design.
type Event struct {
	Kind      EventKind              `json:"kind"`
	RunID     string                 `json:"run_id"`
	Iteration int                    `json:"iteration"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

// Observer receives run events. Publish must never block the engine; an
// implementation that cannot keep up drops events.
type Observer interface {
	Publish(ev Event)
}

// EventEmitter delivers events to a host application over a buffered
// channel. When the buffer is full the newest event is dropped rather
// than stalling the run.
type EventEmitter struct {
	ch      chan Event
	dropped atomic.Int64
	mu      sync.Mutex
	closed  bool
}

// NewEventEmitter creates an emitter with the given buffer size.
func NewEventEmitter(bufferSize int) *EventEmitter {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	return &EventEmitter{ch: make(chan Event, bufferSize)}
}

// Publish sends an event without blocking. Events published after Close,
// or while the buffer is full, are dropped.
func (e *EventEmitter) Publish(ev Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	select {
	case e.ch <- ev:
	default:
		e.dropped.Add(1)
	}
}

// Events returns the receive side of the emitter.
func (e *EventEmitter) Events() <-chan Event {
	return e.ch
}

// Dropped returns the number of events discarded because the buffer was
// full.
func (e *EventEmitter) Dropped() int64 {
	return e.dropped.Load()
}

// Close closes the channel. Further publishes are no-ops.
func (e *EventEmitter) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.closed = true
	close(e.ch)
}

// nopObserver discards all events.
type nopObserver struct{}

func (nopObserver) Publish(Event) {}
