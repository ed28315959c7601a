package audit

import (
	"context"
	"sync"
	"time"
)

// InMemoryRecorder is an in-memory implementation of Recorder.
// This is intended for testing. Production should use PostgresRecorder.
type InMemoryRecorder struct {
	mu     sync.RWMutex
	events []Event
}

// NewInMemoryRecorder creates a new in-memory audit recorder.
func NewInMemoryRecorder() *InMemoryRecorder {
	return &InMemoryRecorder{}
}

// Record appends an event to the in-memory log.
func (r *InMemoryRecorder) Record(_ context.Context, event Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if event.ID == "" {
		event.ID = NewEventID()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}
	r.events = append(r.events, event)
	return nil
}

// Events returns a copy of the recorded events.
func (r *InMemoryRecorder) Events() []Event {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// EventsOfType returns the recorded events with the given type.
func (r *InMemoryRecorder) EventsOfType(t EventType) []Event {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Event
	for _, e := range r.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// Ensure InMemoryRecorder implements Recorder.
var _ Recorder = (*InMemoryRecorder)(nil)
