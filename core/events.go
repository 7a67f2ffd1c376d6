package core

import (
	"context"
	"fmt"
	"sync"
)

// EventKind distinguishes the records in a simulation event stream.
type EventKind int

const (
	EventCollision EventKind = iota
	EventStatus
)

func (k EventKind) String() string {
	switch k {
	case EventCollision:
		return "collision"
	case EventStatus:
		return "status"
	default:
		return "unknown"
	}
}

// Event is one record of the per-step output stream.
//
// For EventCollision, AircraftA and AircraftB are the IDs of the conflicting
// pair in registration order. For EventStatus, AircraftA is the aircraft ID
// and Band its fuel band; AircraftB is unused.
type Event struct {
	Kind      EventKind
	Step      int
	AircraftA int
	AircraftB int
	Band      FuelBand
}

// CollisionEvent builds a collision record for the pair (a, b).
func CollisionEvent(step, a, b int) Event {
	return Event{Kind: EventCollision, Step: step, AircraftA: a, AircraftB: b}
}

// StatusEvent builds a fuel status record.
func StatusEvent(step, id int, band FuelBand) Event {
	return Event{Kind: EventStatus, Step: step, AircraftA: id, Band: band}
}

func (e Event) String() string {
	switch e.Kind {
	case EventCollision:
		return fmt.Sprintf("step=%d collision %d<->%d", e.Step, e.AircraftA, e.AircraftB)
	case EventStatus:
		return fmt.Sprintf("step=%d status %d %s", e.Step, e.AircraftA, e.Band)
	default:
		return fmt.Sprintf("step=%d kind=%d", e.Step, e.Kind)
	}
}

// EventSink consumes the events of each completed step, in emission order.
type EventSink interface {
	HandleEvents(ctx context.Context, events []Event) error
}

// EventSinkFunc adapts a function to EventSink.
type EventSinkFunc func(ctx context.Context, events []Event) error

// HandleEvents calls f.
func (f EventSinkFunc) HandleEvents(ctx context.Context, events []Event) error {
	return f(ctx, events)
}

// EventRecorder is an in-memory EventSink, mainly for tests and replay.
type EventRecorder struct {
	mu     sync.Mutex
	events []Event
}

// HandleEvents appends events to the recording.
func (r *EventRecorder) HandleEvents(_ context.Context, events []Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, events...)
	return nil
}

// Events returns a copy of everything recorded so far.
func (r *EventRecorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}
