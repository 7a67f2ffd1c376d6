package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/signalsfoundry/airspace-simulator/airspace"
	"github.com/signalsfoundry/airspace-simulator/core"
	"github.com/signalsfoundry/airspace-simulator/internal/config"
	"github.com/signalsfoundry/airspace-simulator/internal/logging"
)

func testConfig() *config.Config {
	return &config.Config{
		Capacity:           10,
		Steps:              1,
		StepsSet:           true,
		Tick:               time.Second,
		Accelerated:        true,
		CollisionThreshold: core.DefaultCollisionThreshold,
		CollisionWorkers:   1,
		Pilot:              config.PilotConfig{Mode: "noop"},
		Events:             config.EventsConfig{Format: "text"},
		Log:                config.LogConfig{Level: "info", Format: "text"},
	}
}

func writeScenario(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write scenario: %v", err)
	}
	return path
}

func TestRunScenarioFile(t *testing.T) {
	cfg := testConfig()
	cfg.ScenarioPath = writeScenario(t, `
steps: 2
aircraft:
  - id: 1
    position: [0, 0, 0]
    velocity: [1, 0, 0]
  - id: 2
    position: [0.5, 0, 0]
    velocity: [1, 0, 0]
`)
	cfg.StepsSet = false

	var out strings.Builder
	if err := run(context.Background(), cfg, logging.Noop(), strings.NewReader(""), &out); err != nil {
		t.Fatalf("run: %v", err)
	}

	want := "[step 0] Collision detected between aircraft 1 and 2!\n" +
		"[step 0] Aircraft 1 fuel efficiency: Efficient\n" +
		"[step 0] Aircraft 2 fuel efficiency: Efficient\n" +
		"[step 1] Collision detected between aircraft 1 and 2!\n"
	if !strings.HasPrefix(out.String(), want) {
		t.Fatalf("output:\n%s\nwant prefix:\n%s", out.String(), want)
	}
}

func TestRunScriptedPilotJSON(t *testing.T) {
	cfg := testConfig()
	cfg.Steps = 3
	cfg.Pilot.Mode = "scripted"
	cfg.Events.Format = "json"
	cfg.ScenarioPath = writeScenario(t, `
aircraft:
  - id: 1
    velocity: [1, 0, 0]
  - id: 2
    position: [3.5, 0, 0]
corrections:
  - step: 0
    id: 1
    velocity: [2, 0, 0]
`)

	var out strings.Builder
	if err := run(context.Background(), cfg, logging.Noop(), strings.NewReader(""), &out); err != nil {
		t.Fatalf("run: %v", err)
	}
	// Aircraft 1 reaches x=3 at step 1, 0.5 from aircraft 2.
	if !strings.Contains(out.String(), `{"step":1,"kind":"collision","aircraft_a":1,"aircraft_b":2}`) {
		t.Fatalf("missing scripted collision in:\n%s", out.String())
	}
}

func TestRunPromptedSetupAndInteractivePilot(t *testing.T) {
	cfg := testConfig()
	cfg.Capacity = 2
	cfg.Pilot.Mode = "interactive"

	in := strings.NewReader(strings.Join([]string{
		"2",     // aircraft count
		"7",     // id
		"0 0 0", // position
		"0 0 0", // velocity
		"8",
		"10 0 0",
		"bad",
		"0 0 0",
		"",      // keep aircraft 7
		"1 1 1", // correct aircraft 8
	}, "\n") + "\n")

	var out strings.Builder
	if err := run(context.Background(), cfg, logging.Noop(), in, &out); err != nil {
		t.Fatalf("run: %v", err)
	}

	transcript := out.String()
	for _, want := range []string{
		"Enter the number of aircraft: ",
		"Enter details for aircraft 2:",
		`invalid input "bad"`,
		"Enter new velocity for aircraft 8 (vx vy vz, blank keeps current): ",
		"[step 0] Aircraft 8 fuel efficiency: Efficient",
	} {
		if !strings.Contains(transcript, want) {
			t.Fatalf("transcript missing %q:\n%s", want, transcript)
		}
	}
}

func TestRunConfiguredStepsBeatScenario(t *testing.T) {
	cfg := testConfig()
	cfg.ScenarioPath = writeScenario(t, "steps: 5\naircraft:\n  - id: 1\n")

	var out strings.Builder
	if err := run(context.Background(), cfg, logging.Noop(), strings.NewReader(""), &out); err != nil {
		t.Fatalf("run: %v", err)
	}
	if strings.Contains(out.String(), "[step 1]") {
		t.Fatalf("ran past the configured single step:\n%s", out.String())
	}
}

func TestRunScenarioWithoutStepsUsesDefault(t *testing.T) {
	cfg := testConfig()
	cfg.StepsSet = false
	cfg.ScenarioPath = writeScenario(t, "aircraft:\n  - id: 1\n")

	var out strings.Builder
	if err := run(context.Background(), cfg, logging.Noop(), strings.NewReader(""), &out); err != nil {
		t.Fatalf("run: %v", err)
	}
	last := fmt.Sprintf("[step %d] Aircraft 1", defaultSteps-1)
	if !strings.Contains(out.String(), last) || strings.Contains(out.String(), fmt.Sprintf("[step %d]", defaultSteps)) {
		t.Fatalf("want exactly %d steps:\n%s", defaultSteps, out.String())
	}
}

func TestRunPromptsForCapacityAndSteps(t *testing.T) {
	cfg := testConfig()
	cfg.Capacity = 0
	cfg.StepsSet = false
	cfg.Pilot.Mode = "interactive"

	in := strings.NewReader(strings.Join([]string{
		"3", // capacity
		"2", // aircraft count
		"1",
		"0 0 0",
		"0 0 0",
		"2",
		"0.5 0 0",
		"0 0 0",
		"2", // steps
	}, "\n") + "\n")

	var out strings.Builder
	if err := run(context.Background(), cfg, logging.Noop(), in, &out); err != nil {
		t.Fatalf("run: %v", err)
	}

	transcript := out.String()
	prev := -1
	for _, want := range []string{
		"Enter the initial capacity: ",
		"Enter the number of aircraft: ",
		"Enter details for aircraft 2:",
		"Enter the number of simulation steps: ",
		"[step 0] Conflict: aircraft 1 and 2 are too close",
		"Enter new velocity for aircraft 1",
		"[step 0] Collision detected between aircraft 1 and 2!",
		"[step 1] Collision detected between aircraft 1 and 2!",
	} {
		i := strings.Index(transcript, want)
		if i < 0 {
			t.Fatalf("transcript missing %q:\n%s", want, transcript)
		}
		if i < prev {
			t.Fatalf("%q out of order:\n%s", want, transcript)
		}
		prev = i
	}
	if strings.Contains(transcript, "[step 2]") {
		t.Fatalf("ran past the two prompted steps:\n%s", transcript)
	}
}

func TestRunRejectsPromptedZeroCapacity(t *testing.T) {
	cfg := testConfig()
	cfg.Capacity = 0

	var out strings.Builder
	err := run(context.Background(), cfg, logging.Noop(), strings.NewReader("0\n"), &out)
	if !errors.Is(err, airspace.ErrInvalidCapacity) {
		t.Fatalf("err = %v, want ErrInvalidCapacity", err)
	}
	if strings.Contains(out.String(), "Enter the number of aircraft") {
		t.Fatalf("kept prompting after an invalid capacity:\n%s", out.String())
	}
}

func TestRunRejectsTooManyAircraft(t *testing.T) {
	cfg := testConfig()
	cfg.Capacity = 1
	cfg.NumAircraft = 2

	var out strings.Builder
	err := run(context.Background(), cfg, logging.Noop(), strings.NewReader(""), &out)
	if !errors.Is(err, core.ErrAircraftCountExceedsCapacity) {
		t.Fatalf("err = %v, want ErrAircraftCountExceedsCapacity", err)
	}
	if strings.Contains(out.String(), "Aircraft ID") {
		t.Fatalf("aircraft details requested before the capacity check:\n%s", out.String())
	}
}

func TestRunScenarioOverCapacity(t *testing.T) {
	cfg := testConfig()
	cfg.ScenarioPath = writeScenario(t, "capacity: 1\naircraft:\n  - id: 1\n  - id: 2\n")
	err := run(context.Background(), cfg, logging.Noop(), strings.NewReader(""), &strings.Builder{})
	if !errors.Is(err, core.ErrAircraftCountExceedsCapacity) {
		t.Fatalf("err = %v, want ErrAircraftCountExceedsCapacity", err)
	}
}

func TestRunMissingScenario(t *testing.T) {
	cfg := testConfig()
	cfg.ScenarioPath = filepath.Join(t.TempDir(), "missing.yaml")
	if err := run(context.Background(), cfg, logging.Noop(), strings.NewReader(""), &strings.Builder{}); err == nil {
		t.Fatalf("expected error for missing scenario file")
	}
}

func TestRunCancelled(t *testing.T) {
	cfg := testConfig()
	cfg.Steps = 100
	cfg.ScenarioPath = writeScenario(t, "aircraft:\n  - id: 1\n")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := run(ctx, cfg, logging.Noop(), strings.NewReader(""), &strings.Builder{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}
