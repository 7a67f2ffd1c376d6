package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/signalsfoundry/airspace-simulator/airspace"
	"github.com/signalsfoundry/airspace-simulator/internal/logging"
	"github.com/signalsfoundry/airspace-simulator/model"
	"github.com/signalsfoundry/airspace-simulator/timectrl"
)

// FuelBurnRate is the fuel consumed per step per unit of |vx|+|vy|+|vz|.
const FuelBurnRate = 0.1

const tracerName = "github.com/signalsfoundry/airspace-simulator/core"

var (
	// ErrInvalidStepCount indicates Run was asked for a negative number of steps.
	ErrInvalidStepCount = errors.New("step count must not be negative")
	// ErrNoRegistry indicates an engine was built without a registry.
	ErrNoRegistry = errors.New("simulation engine has no registry")
)

// StepMetricsRecorder receives per-step measurements. bandCounts is keyed by
// FuelBand.String().
type StepMetricsRecorder interface {
	ObserveStep(d time.Duration, collisions int, bandCounts map[string]int)
	IncStepFailures()
}

type noopMetrics struct{}

func (noopMetrics) ObserveStep(time.Duration, int, map[string]int) {}
func (noopMetrics) IncStepFailures()                               {}

// SimulationEngine advances every aircraft in a registry through the
// integrate / burn / deconflict / correct / classify pipeline, one step at a
// time. It owns the registry for the duration of a run.
type SimulationEngine struct {
	Registry *airspace.Registry

	corrector     VelocityCorrector
	sinks         []EventSink
	conflictSinks []EventSink
	clock         timectrl.SimClock
	threshold     float64
	workers       int

	tracer  trace.Tracer
	metrics StepMetricsRecorder
	log     logging.Logger

	tickListeners []func(int)

	// steps counts completed steps; it is the index of the next step.
	steps int
}

// EngineOption customises SimulationEngine construction.
type EngineOption func(*SimulationEngine)

// WithVelocityCorrector installs the pilot hook. Without one, velocities are
// only changed by collision resolution.
func WithVelocityCorrector(c VelocityCorrector) EngineOption {
	return func(se *SimulationEngine) {
		se.corrector = c
	}
}

// WithEventSink adds a consumer for the events of each completed step.
func WithEventSink(sink EventSink) EngineOption {
	return func(se *SimulationEngine) {
		if sink != nil {
			se.sinks = append(se.sinks, sink)
		}
	}
}

// WithConflictSink adds a consumer for a step's collision events that runs
// after collision resolution and before the velocity corrector, so an
// operator can see the conflicts before being asked for corrections. The
// events are provisional: the step may still be rolled back. An error from
// sink aborts the step.
func WithConflictSink(sink EventSink) EngineOption {
	return func(se *SimulationEngine) {
		if sink != nil {
			se.conflictSinks = append(se.conflictSinks, sink)
		}
	}
}

// WithClock stamps each step's span with the simulation time read from c.
func WithClock(c timectrl.SimClock) EngineOption {
	return func(se *SimulationEngine) {
		se.clock = c
	}
}

// WithCollisionThreshold overrides DefaultCollisionThreshold.
func WithCollisionThreshold(threshold float64) EngineOption {
	return func(se *SimulationEngine) {
		if threshold > 0 {
			se.threshold = threshold
		}
	}
}

// WithCollisionWorkers spreads the pairwise distance scan over n goroutines.
// Event order and resolution are the same as with a single worker.
func WithCollisionWorkers(n int) EngineOption {
	return func(se *SimulationEngine) {
		se.workers = n
	}
}

// WithTracer overrides the tracer taken from the global otel provider.
func WithTracer(t trace.Tracer) EngineOption {
	return func(se *SimulationEngine) {
		if t != nil {
			se.tracer = t
		}
	}
}

// WithMetricsRecorder attaches a recorder for step measurements.
func WithMetricsRecorder(m StepMetricsRecorder) EngineOption {
	return func(se *SimulationEngine) {
		if m != nil {
			se.metrics = m
		}
	}
}

// WithLogger attaches a structured logger.
func WithLogger(l logging.Logger) EngineOption {
	return func(se *SimulationEngine) {
		if l != nil {
			se.log = l
		}
	}
}

// NewSimulationEngine constructs an engine over reg.
func NewSimulationEngine(reg *airspace.Registry, opts ...EngineOption) *SimulationEngine {
	se := &SimulationEngine{
		Registry:      reg,
		threshold:     DefaultCollisionThreshold,
		workers:       1,
		tracer:        otel.Tracer(tracerName),
		metrics:       noopMetrics{},
		log:           logging.Noop(),
		tickListeners: []func(int){},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(se)
		}
	}
	return se
}

// RegisterTickListener adds fn to the callbacks run after every completed
// step, with that step's index.
func (se *SimulationEngine) RegisterTickListener(fn func(int)) {
	se.tickListeners = append(se.tickListeners, fn)
}

// StepsCompleted returns how many steps this engine has committed.
func (se *SimulationEngine) StepsCompleted() int {
	return se.steps
}

// Run executes steps consecutive steps and returns their events in order.
// A zero step count does nothing. If a step fails, the events of the steps
// already committed are returned with the error.
func (se *SimulationEngine) Run(ctx context.Context, steps int) ([]Event, error) {
	if steps < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidStepCount, steps)
	}
	if se.Registry == nil {
		return nil, ErrNoRegistry
	}
	var all []Event
	for i := 0; i < steps; i++ {
		events, err := se.RunStep(ctx)
		all = append(all, events...)
		if err != nil {
			return all, err
		}
	}
	return all, nil
}

// RunStep executes one step of the pipeline and returns its events.
//
// The pipeline is applied all-or-nothing: if the context ends or the
// velocity corrector fails, every aircraft is restored to its pre-step
// state, the step index does not advance and no events are delivered.
// Once the pipeline has committed, sink failures are returned alongside
// the step's events but do not undo the step.
func (se *SimulationEngine) RunStep(ctx context.Context) ([]Event, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if se.Registry == nil {
		return nil, ErrNoRegistry
	}
	step := se.steps
	attrs := []attribute.KeyValue{
		attribute.Int("sim.step", step),
		attribute.Int("sim.aircraft", se.Registry.Count()),
	}
	if se.clock != nil {
		attrs = append(attrs, attribute.String("sim.time", se.clock.Now().UTC().Format(time.RFC3339)))
	}
	ctx, span := se.tracer.Start(ctx, "SimulationEngine.RunStep", trace.WithAttributes(attrs...))
	defer span.End()

	start := time.Now()
	snap := se.Registry.Snapshot()

	events, collisions, bands, err := se.runPipeline(ctx, step)
	if err != nil {
		if rerr := se.Registry.Restore(snap); rerr != nil {
			err = errors.Join(err, rerr)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		se.metrics.IncStepFailures()
		se.log.Warn(ctx, "simulation step aborted",
			logging.Int("step", step),
			logging.String("error", err.Error()),
		)
		return nil, fmt.Errorf("step %d: %w", step, err)
	}

	se.steps++
	se.metrics.ObserveStep(time.Since(start), collisions, bands)
	span.SetAttributes(attribute.Int("sim.collisions", collisions))

	var sinkErr error
	for _, sink := range se.sinks {
		if err := sink.HandleEvents(ctx, events); err != nil {
			sinkErr = errors.Join(sinkErr, err)
		}
	}
	for _, fn := range se.tickListeners {
		fn(step)
	}

	if sinkErr != nil {
		span.RecordError(sinkErr)
		return events, fmt.Errorf("step %d: deliver events: %w", step, sinkErr)
	}
	return events, nil
}

func (se *SimulationEngine) runPipeline(ctx context.Context, step int) ([]Event, int, map[string]int, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, nil, err
	}

	aircraft := make([]*model.Aircraft, 0, se.Registry.Count())
	for _, ac := range se.Registry.Iterate() {
		aircraft = append(aircraft, ac)
	}

	integratePositions(aircraft)
	depleteFuel(aircraft)

	var events []Event
	collisions, err := se.resolveConflicts(ctx, step, aircraft, &events)
	if err != nil {
		return nil, 0, nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, 0, nil, err
	}
	if collisions > 0 {
		conflicts := append([]Event(nil), events...)
		for _, sink := range se.conflictSinks {
			if err := sink.HandleEvents(ctx, conflicts); err != nil {
				return nil, 0, nil, fmt.Errorf("report conflicts: %w", err)
			}
		}
	}
	if err := se.applyCorrections(ctx, aircraft); err != nil {
		return nil, 0, nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, 0, nil, err
	}

	bands := make(map[string]int, len(fuelBandNames))
	for _, ac := range aircraft {
		band := ClassifyFuel(ac.Fuel)
		bands[band.String()]++
		events = append(events, StatusEvent(step, ac.ID, band))
	}
	return events, collisions, bands, nil
}

// integratePositions advances every aircraft by one unit time step.
func integratePositions(aircraft []*model.Aircraft) {
	for _, ac := range aircraft {
		ac.Position = ac.Position.Add(ac.Velocity)
	}
}

// depleteFuel burns fuel in proportion to the L1 norm of velocity,
// regardless of how much is left.
func depleteFuel(aircraft []*model.Aircraft) {
	for _, ac := range aircraft {
		ac.Fuel -= FuelBurnRate * ac.Velocity.L1Norm()
	}
}

// resolveConflicts reverses both aircraft of every conflicting pair, in
// lexicographic pair order. An aircraft in k pairs is reversed k times.
func (se *SimulationEngine) resolveConflicts(ctx context.Context, step int, aircraft []*model.Aircraft, events *[]Event) (int, error) {
	positions := make([]model.Vec3, len(aircraft))
	for i, ac := range aircraft {
		positions[i] = ac.Position
	}

	pairs, err := findConflicts(ctx, positions, se.threshold, se.workers)
	if err != nil {
		return 0, err
	}
	for _, p := range pairs {
		a, b := aircraft[p.i], aircraft[p.j]
		*events = append(*events, CollisionEvent(step, a.ID, b.ID))
		se.log.Debug(ctx, "collision detected",
			logging.Int("step", step),
			logging.Int("aircraft_a", a.ID),
			logging.Int("aircraft_b", b.ID),
			logging.Float64("distance", a.Position.DistanceTo(b.Position)),
		)
		a.Velocity = a.Velocity.Neg()
		b.Velocity = b.Velocity.Neg()
	}
	return len(pairs), nil
}

func (se *SimulationEngine) applyCorrections(ctx context.Context, aircraft []*model.Aircraft) error {
	if se.corrector == nil {
		return nil
	}
	for _, ac := range aircraft {
		v, err := se.corrector.CorrectVelocity(ctx, ac.ID, ac.Velocity)
		if err != nil {
			return fmt.Errorf("velocity correction for aircraft %d: %w", ac.ID, err)
		}
		ac.Velocity = v
	}
	return nil
}
