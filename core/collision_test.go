package core

import (
	"context"
	"testing"

	"github.com/signalsfoundry/airspace-simulator/model"
)

func TestFindConflictsLexicographic(t *testing.T) {
	positions := []model.Vec3{
		{X: 0},
		{X: 10},
		{X: 0.5},
		{X: 10.2},
		{X: 0.9},
	}
	pairs, err := findConflicts(context.Background(), positions, 1.0, 1)
	if err != nil {
		t.Fatalf("findConflicts: %v", err)
	}
	want := []conflictPair{{0, 2}, {0, 4}, {1, 3}, {2, 4}}
	if len(pairs) != len(want) {
		t.Fatalf("pairs = %v, want %v", pairs, want)
	}
	for i := range want {
		if pairs[i] != want[i] {
			t.Fatalf("pairs = %v, want %v", pairs, want)
		}
	}
}

func TestFindConflictsThresholdIsExclusive(t *testing.T) {
	positions := []model.Vec3{{X: 0}, {X: 1}}
	pairs, err := findConflicts(context.Background(), positions, 1.0, 1)
	if err != nil {
		t.Fatalf("findConflicts: %v", err)
	}
	if len(pairs) != 0 {
		t.Fatalf("aircraft exactly 1.0 apart should not conflict, got %v", pairs)
	}
}

func TestFindConflictsParallelMatchesSequential(t *testing.T) {
	var positions []model.Vec3
	for i := 0; i < 40; i++ {
		positions = append(positions, model.Vec3{
			X: float64(i%5) * 0.6,
			Y: float64(i%3) * 0.7,
			Z: float64(i%7) * 0.4,
		})
	}

	seq, err := findConflicts(context.Background(), positions, 1.0, 1)
	if err != nil {
		t.Fatalf("sequential: %v", err)
	}
	par, err := findConflicts(context.Background(), positions, 1.0, 6)
	if err != nil {
		t.Fatalf("parallel: %v", err)
	}
	if len(seq) == 0 {
		t.Fatalf("fixture should produce conflicts")
	}
	if len(seq) != len(par) {
		t.Fatalf("parallel found %d pairs, sequential %d", len(par), len(seq))
	}
	for i := range seq {
		if seq[i] != par[i] {
			t.Fatalf("pair %d differs: sequential %v, parallel %v", i, seq[i], par[i])
		}
	}
}

func TestFindConflictsParallelCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	positions := []model.Vec3{{}, {}, {}}
	if _, err := findConflicts(ctx, positions, 1.0, 2); err == nil {
		t.Fatalf("expected cancelled scan to fail")
	}
}
