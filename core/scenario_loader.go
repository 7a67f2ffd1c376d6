// core/scenario_loader.go
package core

import (
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/signalsfoundry/airspace-simulator/airspace"
	"github.com/signalsfoundry/airspace-simulator/model"
)

var (
	// ErrAircraftCountExceedsCapacity indicates a scenario declares more
	// aircraft than its registry capacity. It is reported before any
	// aircraft is created.
	ErrAircraftCountExceedsCapacity = errors.New("number of aircraft exceeds capacity")
	// ErrInvalidScenario indicates a scenario file is structurally wrong.
	ErrInvalidScenario = errors.New("invalid scenario")
)

// Correction is a scripted velocity override for one aircraft at one step.
type Correction struct {
	Step       int
	AircraftID int
	Velocity   model.Vec3
}

// Scenario is everything needed to set up and drive one run.
type Scenario struct {
	Capacity    int
	Steps       int
	Aircraft    []model.AircraftSpec
	Corrections []Correction
}

// internal YAML shapes, unexported so the file format can evolve freely.
type scenarioYAML struct {
	Capacity    int              `yaml:"capacity"`
	Steps       int              `yaml:"steps"`
	Aircraft    []aircraftYAML   `yaml:"aircraft"`
	Corrections []correctionYAML `yaml:"corrections"`
}

type aircraftYAML struct {
	ID       int       `yaml:"id"`
	Position []float64 `yaml:"position"`
	Velocity []float64 `yaml:"velocity"`
}

type correctionYAML struct {
	Step     int       `yaml:"step"`
	ID       int       `yaml:"id"`
	Velocity []float64 `yaml:"velocity"`
}

// LoadScenario reads a YAML scenario from r.
//
// Position and velocity are three-element lists; an omitted list means the
// zero vector. A capacity of zero means "exactly as many as listed".
func LoadScenario(r io.Reader) (*Scenario, error) {
	var payload scenarioYAML
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&payload); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: decode failed: %v", ErrInvalidScenario, err)
	}

	if payload.Steps < 0 {
		return nil, fmt.Errorf("%w: steps must not be negative, got %d", ErrInvalidScenario, payload.Steps)
	}
	if payload.Capacity < 0 {
		return nil, fmt.Errorf("%w: capacity must not be negative, got %d", ErrInvalidScenario, payload.Capacity)
	}

	sc := &Scenario{
		Capacity:    payload.Capacity,
		Steps:       payload.Steps,
		Aircraft:    make([]model.AircraftSpec, 0, len(payload.Aircraft)),
		Corrections: make([]Correction, 0, len(payload.Corrections)),
	}
	if sc.Capacity == 0 {
		sc.Capacity = len(payload.Aircraft)
	}

	for i, a := range payload.Aircraft {
		pos, err := vecFromList(a.Position)
		if err != nil {
			return nil, fmt.Errorf("%w: aircraft[%d] position: %v", ErrInvalidScenario, i, err)
		}
		vel, err := vecFromList(a.Velocity)
		if err != nil {
			return nil, fmt.Errorf("%w: aircraft[%d] velocity: %v", ErrInvalidScenario, i, err)
		}
		sc.Aircraft = append(sc.Aircraft, model.AircraftSpec{ID: a.ID, Position: pos, Velocity: vel})
	}

	for i, c := range payload.Corrections {
		if c.Step < 0 {
			return nil, fmt.Errorf("%w: corrections[%d] step must not be negative", ErrInvalidScenario, i)
		}
		vel, err := vecFromList(c.Velocity)
		if err != nil {
			return nil, fmt.Errorf("%w: corrections[%d] velocity: %v", ErrInvalidScenario, i, err)
		}
		sc.Corrections = append(sc.Corrections, Correction{Step: c.Step, AircraftID: c.ID, Velocity: vel})
	}
	return sc, nil
}

func vecFromList(v []float64) (model.Vec3, error) {
	switch len(v) {
	case 0:
		return model.Vec3{}, nil
	case 3:
		return model.Vec3{X: v[0], Y: v[1], Z: v[2]}, nil
	default:
		return model.Vec3{}, fmt.Errorf("want 3 components, got %d", len(v))
	}
}

// CheckAircraftCount rejects a run that would register more aircraft than
// the registry can hold.
func CheckAircraftCount(numAircraft, capacity int) error {
	if numAircraft > capacity {
		return fmt.Errorf("%w: %d aircraft, capacity %d", ErrAircraftCountExceedsCapacity, numAircraft, capacity)
	}
	return nil
}

// BuildRegistry creates a registry of the scenario's capacity and registers
// every aircraft in file order. The aircraft count is checked against the
// capacity before anything is allocated.
func (sc *Scenario) BuildRegistry(opts ...airspace.RegistryOption) (*airspace.Registry, error) {
	if err := CheckAircraftCount(len(sc.Aircraft), sc.Capacity); err != nil {
		return nil, err
	}
	reg, err := airspace.NewRegistry(sc.Capacity, opts...)
	if err != nil {
		return nil, err
	}
	for i, spec := range sc.Aircraft {
		if _, err := reg.Register(spec); err != nil {
			return nil, fmt.Errorf("register aircraft[%d] id %d: %w", i, spec.ID, err)
		}
	}
	return reg, nil
}
