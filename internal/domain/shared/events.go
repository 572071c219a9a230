package shared

import (
	"sync"
	"time"
)

// DomainEvent represents an event that has occurred in the domain
type DomainEvent interface {
	EventName() string
	OccurredAt() time.Time
	// Fields flattens the event into the key/value payload shipped to analytics.
	Fields() map[string]any
}

// EventRecorder collects events raised while a single request is processed
// so they can be emitted once the outcome is known.
type EventRecorder struct {
	mu     sync.Mutex
	events []DomainEvent
}

// Record appends an event
func (r *EventRecorder) Record(event DomainEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

// Drain returns and clears pending events
func (r *EventRecorder) Drain() []DomainEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	events := r.events
	r.events = nil
	return events
}

// Len reports how many events are pending
func (r *EventRecorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}
