package core

import (
	"context"

	"github.com/signalsfoundry/airspace-simulator/model"
)

// VelocityCorrector is the pilot-side hook offered every aircraft once per
// step, after collision resolution. The returned vector replaces the
// aircraft's velocity; returning velocity unchanged declines the correction.
//
// Implementations may block (for instance while waiting on an operator) and
// should return promptly once ctx is done. A non-nil error aborts the step.
type VelocityCorrector interface {
	CorrectVelocity(ctx context.Context, aircraftID int, velocity model.Vec3) (model.Vec3, error)
}

// VelocityCorrectorFunc adapts a function to VelocityCorrector.
type VelocityCorrectorFunc func(ctx context.Context, aircraftID int, velocity model.Vec3) (model.Vec3, error)

// CorrectVelocity calls f.
func (f VelocityCorrectorFunc) CorrectVelocity(ctx context.Context, aircraftID int, velocity model.Vec3) (model.Vec3, error) {
	return f(ctx, aircraftID, velocity)
}
