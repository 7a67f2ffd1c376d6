package core

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/signalsfoundry/airspace-simulator/model"
)

// DefaultCollisionThreshold is the separation below which two aircraft
// are in conflict.
const DefaultCollisionThreshold = 1.0

// conflictPair holds registry indices i < j of two aircraft in conflict.
type conflictPair struct {
	i, j int
}

// findConflicts returns every pair (i, j), i < j, whose positions are closer
// than threshold, in lexicographic order.
//
// With workers > 1 the rows of the scan are spread over an errgroup. Each
// row writes only its own slot and the rows are concatenated in index
// order afterwards, so the result is identical to the sequential scan.
func findConflicts(ctx context.Context, positions []model.Vec3, threshold float64, workers int) ([]conflictPair, error) {
	n := len(positions)
	if n < 2 {
		return nil, nil
	}

	if workers <= 1 {
		var pairs []conflictPair
		for i := 0; i < n; i++ {
			pairs = appendRowConflicts(pairs, positions, i, threshold)
		}
		return pairs, nil
	}

	rows := make([][]conflictPair, n)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := 0; i < n-1; i++ {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rows[i] = appendRowConflicts(nil, positions, i, threshold)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var pairs []conflictPair
	for _, row := range rows {
		pairs = append(pairs, row...)
	}
	return pairs, nil
}

func appendRowConflicts(dst []conflictPair, positions []model.Vec3, i int, threshold float64) []conflictPair {
	for j := i + 1; j < len(positions); j++ {
		if positions[i].DistanceTo(positions[j]) < threshold {
			dst = append(dst, conflictPair{i: i, j: j})
		}
	}
	return dst
}
