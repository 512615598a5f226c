package replay

import (
	"context"
	"fmt"

	"github.com/banshee-data/crash-analysis/internal/kfunction"
	"github.com/banshee-data/crash-analysis/internal/netk"
)

// RunSource reads a recorded run back, e.g. a *db.Store.
type RunSource interface {
	GetRun(ctx context.Context, runID string) (*kfunction.Run, error)
	ODCMIterations(ctx context.Context, runID string) ([]int, error)
	ODCM(ctx context.Context, runID string, iteration int) ([]netk.DistanceRecord, error)
}

// LoadRun loads every recorded iteration of a run. The network length is
// taken from the run.
func LoadRun(ctx context.Context, src RunSource, runID string) (*Table, *kfunction.Run, error) {
	run, err := src.GetRun(ctx, runID)
	if err != nil {
		return nil, nil, err
	}
	iterations, err := src.ODCMIterations(ctx, runID)
	if err != nil {
		return nil, nil, err
	}

	t := NewTable()
	t.SetNetworkLength(run.NetworkLength)
	for _, it := range iterations {
		recs, err := src.ODCM(ctx, runID, it)
		if err != nil {
			return nil, nil, fmt.Errorf("load iteration %d: %w", it, err)
		}
		t.Add(it, recs...)
	}
	// Iterations without any distance store no rows but still ran.
	t.fillThrough(run.Iterations - 1)
	if _, ok := t.iterations[0]; !ok {
		return nil, nil, fmt.Errorf("%w: run %s has no observed iteration", netk.ErrInvalidInput, runID)
	}
	return t, run, nil
}
