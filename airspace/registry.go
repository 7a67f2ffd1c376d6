package airspace

import (
	"errors"
	"fmt"
	"iter"
	"slices"
	"sync"

	"github.com/signalsfoundry/airspace-simulator/model"
)

var (
	// ErrInvalidCapacity indicates a registry was requested with capacity <= 0.
	ErrInvalidCapacity = errors.New("registry capacity must be positive")
	// ErrCapacityExceeded indicates a registration on a full registry.
	ErrCapacityExceeded = errors.New("registry capacity exceeded")
	// ErrIndexOutOfRange indicates a lookup past the registered count.
	ErrIndexOutOfRange = errors.New("aircraft index out of range")
	// ErrDuplicateID indicates a registration reused an aircraft ID while
	// WithUniqueIDs is in effect.
	ErrDuplicateID = errors.New("aircraft ID already registered")
)

// EventType indicates what kind of change happened in the registry.
type EventType int

const (
	EventAircraftRegistered EventType = iota
)

// Event is emitted to subscribers when the registry changes.
type Event struct {
	Type     EventType
	Index    int
	Aircraft model.Aircraft
	Count    int
}

// Registry is a fixed-capacity, insertion-ordered store of aircraft.
//
// Storage is allocated once at construction and never grows, so pointers
// handed out by Iterate stay valid for the registry's lifetime.
type Registry struct {
	mu sync.RWMutex

	capacity  int
	aircraft  []model.Aircraft
	uniqueIDs bool

	subs    map[uint64]func(Event)
	nextSub uint64
}

// RegistryOption customises Registry construction.
type RegistryOption func(*Registry)

// WithUniqueIDs makes Register reject an aircraft ID that is already present.
func WithUniqueIDs() RegistryOption {
	return func(r *Registry) {
		r.uniqueIDs = true
	}
}

// WithSubscriber subscribes fn at construction, so it also sees the first
// registration.
func WithSubscriber(fn func(Event)) RegistryOption {
	return func(r *Registry) {
		if fn != nil {
			r.Subscribe(fn)
		}
	}
}

// NewRegistry constructs an empty registry able to hold capacity aircraft.
func NewRegistry(capacity int, opts ...RegistryOption) (*Registry, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidCapacity, capacity)
	}
	r := &Registry{
		capacity: capacity,
		aircraft: make([]model.Aircraft, 0, capacity),
		subs:     make(map[uint64]func(Event)),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r, nil
}

// Register appends a new aircraft built from spec and returns its index.
func (r *Registry) Register(spec model.AircraftSpec) (int, error) {
	r.mu.Lock()
	if len(r.aircraft) == r.capacity {
		r.mu.Unlock()
		return -1, fmt.Errorf("%w: capacity %d, aircraft %d", ErrCapacityExceeded, r.capacity, spec.ID)
	}
	if r.uniqueIDs {
		for i := range r.aircraft {
			if r.aircraft[i].ID == spec.ID {
				r.mu.Unlock()
				return -1, fmt.Errorf("%w: %d", ErrDuplicateID, spec.ID)
			}
		}
	}

	ac := model.NewAircraft(spec)
	r.aircraft = append(r.aircraft, ac)
	idx := len(r.aircraft) - 1
	event := Event{
		Type:     EventAircraftRegistered,
		Index:    idx,
		Aircraft: ac,
		Count:    len(r.aircraft),
	}
	subs := r.subscribersLocked()
	r.mu.Unlock()

	// Notify subscribers outside the lock so they may call back into the registry.
	for _, sub := range subs {
		sub(event)
	}
	return idx, nil
}

// Count returns the number of registered aircraft.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.aircraft)
}

// Capacity returns the maximum number of aircraft the registry can hold.
func (r *Registry) Capacity() int {
	return r.capacity
}

// Get returns a copy of the aircraft at index.
func (r *Registry) Get(index int) (model.Aircraft, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if index < 0 || index >= len(r.aircraft) {
		return model.Aircraft{}, fmt.Errorf("%w: index %d, count %d", ErrIndexOutOfRange, index, len(r.aircraft))
	}
	return r.aircraft[index], nil
}

// Iterate yields every registered aircraft in registration order as a
// mutable reference. The set iterated is the one present when iteration
// starts. Callers mutating aircraft must own the registry for the duration
// of the pass; the registry does not lock individual records.
func (r *Registry) Iterate() iter.Seq2[int, *model.Aircraft] {
	return func(yield func(int, *model.Aircraft) bool) {
		r.mu.RLock()
		aircraft := r.aircraft
		r.mu.RUnlock()

		for i := range aircraft {
			if !yield(i, &aircraft[i]) {
				return
			}
		}
	}
}

// Snapshot returns a copy of every registered aircraft in registration order.
func (r *Registry) Snapshot() []model.Aircraft {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]model.Aircraft, len(r.aircraft))
	copy(out, r.aircraft)
	return out
}

// Restore overwrites the registered aircraft with snap, which must come
// from Snapshot on this registry and cover every registered aircraft.
func (r *Registry) Restore(snap []model.Aircraft) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(snap) != len(r.aircraft) {
		return fmt.Errorf("restore snapshot of %d aircraft into registry of %d", len(snap), len(r.aircraft))
	}
	copy(r.aircraft, snap)
	return nil
}

// Subscribe registers a callback for registry events. Callbacks run in
// subscription order. It returns an unsubscribe function; calling it more
// than once is harmless.
func (r *Registry) Subscribe(fn func(Event)) (unsubscribe func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextSub++
	id := r.nextSub
	r.subs[id] = fn

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.subs, id)
	}
}

// subscribersLocked returns the callbacks ordered by subscription. r.mu must be held.
func (r *Registry) subscribersLocked() []func(Event) {
	ids := make([]uint64, 0, len(r.subs))
	for id := range r.subs {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	out := make([]func(Event), 0, len(ids))
	for _, id := range ids {
		out = append(out, r.subs[id])
	}
	return out
}
