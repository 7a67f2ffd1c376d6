package main

import (
	"context"
	"fmt"
	"os"

	"github.com/signalsfoundry/airspace-simulator/airspace"
	"github.com/signalsfoundry/airspace-simulator/core"
	"github.com/signalsfoundry/airspace-simulator/internal/config"
	"github.com/signalsfoundry/airspace-simulator/internal/pilot"
	"github.com/signalsfoundry/airspace-simulator/model"
)

// defaultSteps is used for a scenario file that names no step count.
const defaultSteps = 10

// loadScenario reads cfg.ScenarioPath, or asks for the capacity, the aircraft
// and the step count on the terminal when no scenario file is configured.
// Values already present in cfg are not asked for.
func loadScenario(ctx context.Context, cfg *config.Config, p *pilot.Prompter) (*core.Scenario, error) {
	if cfg.ScenarioPath != "" {
		f, err := os.Open(cfg.ScenarioPath)
		if err != nil {
			return nil, fmt.Errorf("open scenario: %w", err)
		}
		defer f.Close()

		sc, err := core.LoadScenario(f)
		if err != nil {
			return nil, fmt.Errorf("load scenario %s: %w", cfg.ScenarioPath, err)
		}
		if sc.Steps == 0 {
			sc.Steps = defaultSteps
		}
		return sc, nil
	}
	return promptScenario(ctx, cfg, p)
}

func promptScenario(ctx context.Context, cfg *config.Config, p *pilot.Prompter) (*core.Scenario, error) {
	capacity := cfg.Capacity
	if capacity == 0 {
		n, err := p.AskInt(ctx, "Enter the initial capacity: ")
		if err != nil {
			return nil, fmt.Errorf("read capacity: %w", err)
		}
		capacity = n
	}
	if capacity <= 0 {
		return nil, fmt.Errorf("%w: %d", airspace.ErrInvalidCapacity, capacity)
	}

	num := cfg.NumAircraft
	if num == 0 {
		n, err := p.AskInt(ctx, "Enter the number of aircraft: ")
		if err != nil {
			return nil, fmt.Errorf("read aircraft count: %w", err)
		}
		num = n
	}
	if num < 0 {
		return nil, fmt.Errorf("%w: aircraft count must not be negative, got %d", core.ErrInvalidScenario, num)
	}
	// Reject before asking for any aircraft details.
	if err := core.CheckAircraftCount(num, capacity); err != nil {
		return nil, err
	}

	sc := &core.Scenario{Capacity: capacity, Aircraft: make([]model.AircraftSpec, 0, num)}
	for i := 0; i < num; i++ {
		p.Printf("Enter details for aircraft %d:\n", i+1)
		id, err := p.AskInt(ctx, "Aircraft ID: ")
		if err != nil {
			return nil, fmt.Errorf("read aircraft %d: %w", i+1, err)
		}
		pos, err := askRequiredVector(ctx, p, "Initial position (x y z): ")
		if err != nil {
			return nil, fmt.Errorf("read aircraft %d position: %w", i+1, err)
		}
		vel, err := askRequiredVector(ctx, p, "Velocity (vx vy vz): ")
		if err != nil {
			return nil, fmt.Errorf("read aircraft %d velocity: %w", i+1, err)
		}
		sc.Aircraft = append(sc.Aircraft, model.AircraftSpec{ID: id, Position: pos, Velocity: vel})
	}

	if !cfg.StepsSet {
		n, err := p.AskInt(ctx, "Enter the number of simulation steps: ")
		if err != nil {
			return nil, fmt.Errorf("read step count: %w", err)
		}
		if n < 0 {
			return nil, fmt.Errorf("%w: step count must not be negative, got %d", core.ErrInvalidScenario, n)
		}
		sc.Steps = n
	}
	return sc, nil
}

func askRequiredVector(ctx context.Context, p *pilot.Prompter, prompt string) (model.Vec3, error) {
	for {
		v, ok, err := p.AskVector(ctx, prompt)
		if err != nil {
			return model.Vec3{}, err
		}
		if ok {
			return v, nil
		}
	}
}
