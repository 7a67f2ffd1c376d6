// core/scenario_loader_test.go
package core

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/signalsfoundry/airspace-simulator/airspace"
	"github.com/signalsfoundry/airspace-simulator/model"
)

const sampleScenario = `
capacity: 4
steps: 12
aircraft:
  - id: 100
    position: [0, 0, 0]
    velocity: [1, 0, 0]
  - id: 200
    position: [0.5, 0, 0]
    velocity: [-1, 0.5, 2]
  - id: 300
corrections:
  - step: 3
    id: 200
    velocity: [0, 0, 1]
`

func TestLoadScenarioPopulatesRegistry(t *testing.T) {
	sc, err := LoadScenario(strings.NewReader(sampleScenario))
	if err != nil {
		t.Fatalf("LoadScenario: %v", err)
	}
	if sc.Capacity != 4 || sc.Steps != 12 {
		t.Fatalf("capacity/steps = %d/%d, want 4/12", sc.Capacity, sc.Steps)
	}
	if len(sc.Aircraft) != 3 {
		t.Fatalf("aircraft = %d, want 3", len(sc.Aircraft))
	}
	if sc.Aircraft[1].Velocity != (model.Vec3{X: -1, Y: 0.5, Z: 2}) {
		t.Fatalf("aircraft[1] velocity = %+v", sc.Aircraft[1].Velocity)
	}
	if sc.Aircraft[2].Position != (model.Vec3{}) || sc.Aircraft[2].Velocity != (model.Vec3{}) {
		t.Fatalf("omitted vectors should be zero, got %+v", sc.Aircraft[2])
	}
	if len(sc.Corrections) != 1 || sc.Corrections[0] != (Correction{Step: 3, AircraftID: 200, Velocity: model.Vec3{Z: 1}}) {
		t.Fatalf("corrections = %+v", sc.Corrections)
	}

	reg, err := sc.BuildRegistry()
	if err != nil {
		t.Fatalf("BuildRegistry: %v", err)
	}
	if reg.Count() != 3 || reg.Capacity() != 4 {
		t.Fatalf("registry count/capacity = %d/%d, want 3/4", reg.Count(), reg.Capacity())
	}
	first, err := reg.Get(0)
	if err != nil {
		t.Fatalf("Get(0): %v", err)
	}
	if first.ID != 100 || first.Fuel != model.InitialFuel {
		t.Fatalf("first aircraft = %+v", first)
	}
}

func TestLoadScenarioDefaultsCapacityToAircraftCount(t *testing.T) {
	sc, err := LoadScenario(strings.NewReader(`
aircraft:
  - id: 1
  - id: 2
`))
	if err != nil {
		t.Fatalf("LoadScenario: %v", err)
	}
	if sc.Capacity != 2 {
		t.Fatalf("capacity = %d, want 2", sc.Capacity)
	}
}

func TestLoadScenarioRejectsMalformedInput(t *testing.T) {
	cases := map[string]string{
		"short vector":     "aircraft:\n  - id: 1\n    position: [1, 2]\n",
		"unknown field":    "aircraft:\n  - id: 1\n    heading: 90\n",
		"negative steps":   "steps: -1\n",
		"negative cap":     "capacity: -3\n",
		"bad correction":   "corrections:\n  - step: -2\n    id: 1\n",
		"not a mapping":    "- 1\n- 2\n",
		"correction arity": "corrections:\n  - step: 1\n    id: 1\n    velocity: [1, 2, 3, 4]\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := LoadScenario(strings.NewReader(body)); !errors.Is(err, ErrInvalidScenario) {
				t.Fatalf("err = %v, want ErrInvalidScenario", err)
			}
		})
	}
}

func TestLoadScenarioEmptyInput(t *testing.T) {
	sc, err := LoadScenario(strings.NewReader(""))
	if err != nil {
		t.Fatalf("LoadScenario(empty): %v", err)
	}
	if len(sc.Aircraft) != 0 || sc.Capacity != 0 {
		t.Fatalf("empty scenario = %+v", sc)
	}
	if _, err := sc.BuildRegistry(); !errors.Is(err, airspace.ErrInvalidCapacity) {
		t.Fatalf("BuildRegistry(empty) err = %v, want ErrInvalidCapacity", err)
	}
}

func TestBuildRegistryRejectsOverCapacityBeforeCreating(t *testing.T) {
	sc, err := LoadScenario(strings.NewReader(`
capacity: 1
aircraft:
  - id: 1
  - id: 2
`))
	if err != nil {
		t.Fatalf("LoadScenario: %v", err)
	}
	reg, err := sc.BuildRegistry()
	if !errors.Is(err, ErrAircraftCountExceedsCapacity) {
		t.Fatalf("BuildRegistry err = %v, want ErrAircraftCountExceedsCapacity", err)
	}
	if reg != nil {
		t.Fatalf("registry should not be created on over-capacity scenario")
	}
}

func TestBuildRegistryDuplicateIDs(t *testing.T) {
	sc, err := LoadScenario(strings.NewReader("aircraft:\n  - id: 7\n  - id: 7\n"))
	if err != nil {
		t.Fatalf("LoadScenario: %v", err)
	}
	if _, err := sc.BuildRegistry(); err != nil {
		t.Fatalf("duplicate ids are allowed by default: %v", err)
	}
	if _, err := sc.BuildRegistry(airspace.WithUniqueIDs()); !errors.Is(err, airspace.ErrDuplicateID) {
		t.Fatalf("err = %v, want ErrDuplicateID", err)
	}
}

func TestCheckAircraftCount(t *testing.T) {
	if err := CheckAircraftCount(3, 3); err != nil {
		t.Fatalf("CheckAircraftCount(3,3): %v", err)
	}
	if err := CheckAircraftCount(4, 3); !errors.Is(err, ErrAircraftCountExceedsCapacity) {
		t.Fatalf("CheckAircraftCount(4,3) err = %v", err)
	}
}

func TestLoadExampleScenario(t *testing.T) {
	f, err := os.Open("../examples/scenarios/head_on.yaml")
	if err != nil {
		t.Fatalf("open example: %v", err)
	}
	defer f.Close()

	sc, err := LoadScenario(f)
	if err != nil {
		t.Fatalf("LoadScenario: %v", err)
	}
	reg, err := sc.BuildRegistry()
	if err != nil {
		t.Fatalf("BuildRegistry: %v", err)
	}

	events, err := NewSimulationEngine(reg).Run(context.Background(), sc.Steps)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	var collisions []Event
	for _, e := range events {
		if e.Kind == EventCollision {
			collisions = append(collisions, e)
		}
	}
	if len(collisions) == 0 || collisions[0].AircraftA != 101 || collisions[0].AircraftB != 202 {
		t.Fatalf("expected the head-on pair to conflict, got %v", collisions)
	}
}
