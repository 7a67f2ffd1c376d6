package pilot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/signalsfoundry/airspace-simulator/core"
	"github.com/signalsfoundry/airspace-simulator/internal/logging"
	"github.com/signalsfoundry/airspace-simulator/model"
)

// Interactive asks an operator for each aircraft's new velocity every step.
// Register it as a conflict sink as well so the operator sees the step's
// collisions before the prompts.
type Interactive struct {
	p *Prompter

	mu        sync.Mutex
	exhausted bool
}

// NewInteractive prompts through p, which may also serve an interactive
// setup phase on the same terminal.
func NewInteractive(p *Prompter) *Interactive {
	return &Interactive{p: p}
}

// HandleEvents implements core.EventSink by announcing collisions.
func (i *Interactive) HandleEvents(_ context.Context, events []core.Event) error {
	for _, e := range events {
		if e.Kind != core.EventCollision {
			continue
		}
		i.p.Printf("[step %d] Conflict: aircraft %d and %d are too close, both reversed.\n",
			e.Step, e.AircraftA, e.AircraftB)
	}
	return nil
}

// CorrectVelocity implements core.VelocityCorrector. A blank answer keeps
// the current velocity; once input reaches EOF every later call declines.
func (i *Interactive) CorrectVelocity(ctx context.Context, aircraftID int, v model.Vec3) (model.Vec3, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.exhausted {
		return v, nil
	}

	prompt := fmt.Sprintf("Enter new velocity for aircraft %d (vx vy vz, blank keeps current): ", aircraftID)
	nv, ok, err := i.p.AskVector(ctx, prompt)
	switch {
	case errors.Is(err, io.EOF):
		i.exhausted = true
		if log := logging.LoggerFromContext(ctx); log != nil {
			log.Info(ctx, "operator input closed, keeping current velocities", logging.Int("aircraft", aircraftID))
		}
		return v, nil
	case err != nil:
		return v, err
	case !ok:
		return v, nil
	}
	return nv, nil
}
