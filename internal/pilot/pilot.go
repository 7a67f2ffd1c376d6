// Package pilot provides core.VelocityCorrector implementations: a no-op
// pilot, a pilot replaying scripted corrections, and an interactive pilot
// that prompts on a terminal.
package pilot

import (
	"context"
	"sync"
	"time"

	"github.com/signalsfoundry/airspace-simulator/core"
	"github.com/signalsfoundry/airspace-simulator/model"
)

// Noop returns a corrector that always declines.
func Noop() core.VelocityCorrector {
	return core.VelocityCorrectorFunc(func(_ context.Context, _ int, v model.Vec3) (model.Vec3, error) {
		return v, nil
	})
}

type scriptKey struct {
	step int
	id   int
}

// Scripted replays corrections keyed by (step, aircraft id). The current
// step is advanced by registering Advance as an engine tick listener.
type Scripted struct {
	mu      sync.Mutex
	step    int
	entries map[scriptKey]model.Vec3
}

// NewScripted indexes corrections. A later entry for the same step and
// aircraft replaces an earlier one.
func NewScripted(corrections []core.Correction) *Scripted {
	s := &Scripted{entries: make(map[scriptKey]model.Vec3, len(corrections))}
	for _, c := range corrections {
		s.entries[scriptKey{step: c.Step, id: c.AircraftID}] = c.Velocity
	}
	return s
}

// Advance records that completedStep has finished.
func (s *Scripted) Advance(completedStep int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.step = completedStep + 1
}

// CorrectVelocity implements core.VelocityCorrector.
func (s *Scripted) CorrectVelocity(_ context.Context, aircraftID int, v model.Vec3) (model.Vec3, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if nv, ok := s.entries[scriptKey{step: s.step, id: aircraftID}]; ok {
		return nv, nil
	}
	return v, nil
}

// CorrectionRecorder receives one observation per hook call.
type CorrectionRecorder interface {
	ObserveCorrection(d time.Duration, changed bool)
}

// Instrument wraps c so every call is timed and reported to rec.
func Instrument(c core.VelocityCorrector, rec CorrectionRecorder) core.VelocityCorrector {
	if c == nil {
		c = Noop()
	}
	if rec == nil {
		return c
	}
	return core.VelocityCorrectorFunc(func(ctx context.Context, aircraftID int, v model.Vec3) (model.Vec3, error) {
		start := time.Now()
		nv, err := c.CorrectVelocity(ctx, aircraftID, v)
		rec.ObserveCorrection(time.Since(start), err == nil && nv != v)
		return nv, err
	})
}
