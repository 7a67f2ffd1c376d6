package timectrl

import (
	"context"
	"sync"
	"time"
)

// SimClock is an interface for accessing simulation time, so consumers can
// depend on a clock abstraction rather than the concrete controller.
type SimClock interface {
	// Now returns the current simulation time.
	Now() time.Time
}

// Mode describes how the TimeController advances simulation time.
type Mode int

const (
	// RealTime paces steps on a wall-clock ticker, one step per Tick.
	RealTime Mode = iota
	// Accelerated runs steps back to back while still advancing sim time by Tick.
	Accelerated
)

func (m Mode) String() string {
	switch m {
	case RealTime:
		return "realtime"
	case Accelerated:
		return "accelerated"
	default:
		return "unknown"
	}
}

// TimeController drives discrete simulation steps and notifies registered
// listeners. It implements SimClock.
type TimeController struct {
	mu        sync.RWMutex
	StartTime time.Time
	Tick      time.Duration
	Mode      Mode

	// currentTime tracks the current simulation time. It is updated
	// as the controller advances time.
	currentTime time.Time

	listeners []func(step int, simTime time.Time)
}

// NewTimeController constructs a controller. A non-positive tick defaults
// to one second.
func NewTimeController(start time.Time, tick time.Duration, mode Mode) *TimeController {
	if tick <= 0 {
		tick = time.Second
	}
	return &TimeController{
		StartTime:   start,
		Tick:        tick,
		Mode:        mode,
		currentTime: start,
	}
}

// Now returns the current simulation time. Implements SimClock.
func (tc *TimeController) Now() time.Time {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return tc.currentTime
}

// AddListener registers a callback invoked after every step.
func (tc *TimeController) AddListener(fn func(step int, simTime time.Time)) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.listeners = append(tc.listeners, fn)
}

// Run drives steps calls of fn. Each call receives the simulation time the
// step ends at, one Tick past Now; the clock moves there only when fn
// succeeds, so a failed step leaves Now unchanged. In RealTime mode each
// call waits for the next wall-clock tick. Run stops early when ctx is done
// or fn returns an error, and returns that error. Listeners run after each
// successful call.
func (tc *TimeController) Run(ctx context.Context, steps int, fn func(step int, simTime time.Time) error) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var ticks <-chan time.Time
	if tc.Mode == RealTime {
		ticker := time.NewTicker(tc.Tick)
		defer ticker.Stop()
		ticks = ticker.C
	}

	for step := 0; step < steps; step++ {
		if ticks != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticks:
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}

		tc.mu.RLock()
		simTime := tc.currentTime.Add(tc.Tick)
		tc.mu.RUnlock()

		if fn != nil {
			if err := fn(step, simTime); err != nil {
				return err
			}
		}

		tc.mu.Lock()
		tc.currentTime = simTime
		listeners := append([]func(int, time.Time){}, tc.listeners...)
		tc.mu.Unlock()
		for _, l := range listeners {
			l(step, simTime)
		}
	}
	return nil
}
