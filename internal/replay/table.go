// Package replay serves recorded OD cost matrices through the permutation
// provider contracts, so a finished run can be analysed again with other
// band parameters without solving any routes.
package replay

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/banshee-data/crash-analysis/internal/netk"
	"github.com/banshee-data/crash-analysis/internal/permutation"
)

// ErrIterationMissing is returned when a trial asks for an iteration the
// recording does not hold.
var ErrIterationMissing = errors.New("iteration not recorded")

// Table holds the OD distances of every recorded iteration. Iteration 0 is
// the observed trial. A Table implements permutation.DistanceProvider,
// permutation.PointGenerator and permutation.LengthProvider.
type Table struct {
	iterations map[int][]netk.DistanceRecord
	length     float64

	mu          sync.Mutex
	outstanding map[string]bool
}

// NewTable creates an empty Table.
func NewTable() *Table {
	return &Table{
		iterations:  make(map[int][]netk.DistanceRecord),
		outstanding: make(map[string]bool),
	}
}

// Add appends records to an iteration. It is not safe to call while the
// table is serving a run.
func (t *Table) Add(iteration int, records ...netk.DistanceRecord) {
	t.iterations[iteration] = append(t.iterations[iteration], records...)
}

// SetNetworkLength sets the length reported by NetworkLength.
func (t *Table) SetNetworkLength(length float64) { t.length = length }

// Iterations returns the recorded iterations in ascending order.
func (t *Table) Iterations() []int {
	out := make([]int, 0, len(t.iterations))
	for it := range t.iterations {
		out = append(out, it)
	}
	sort.Ints(out)
	return out
}

// Permutations returns the number of permutations recorded after the
// observed trial, counting up to the highest recorded iteration.
func (t *Table) Permutations() int {
	n := 0
	for it := range t.iterations {
		n = max(n, it)
	}
	return n
}

// fillThrough records an empty iteration for every gap up to last. A
// permutation with no pair inside the cutoff writes no rows but still ran.
func (t *Table) fillThrough(last int) {
	for it := 0; it <= last; it++ {
		if _, ok := t.iterations[it]; !ok {
			t.iterations[it] = nil
		}
	}
}

// Records returns a copy of one iteration's records.
func (t *Table) Records(iteration int) ([]netk.DistanceRecord, bool) {
	recs, ok := t.iterations[iteration]
	if !ok {
		return nil, false
	}
	return append([]netk.DistanceRecord(nil), recs...), true
}

// Outstanding returns the number of generated point sets not yet released.
func (t *Table) Outstanding() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.outstanding)
}

// NetworkLength implements permutation.LengthProvider.
func (t *Table) NetworkLength(ctx context.Context, network permutation.Network, coordinateSystem string) (float64, error) {
	if !(t.length > 0) {
		return 0, fmt.Errorf("network length of %q was not recorded", network)
	}
	return t.length, nil
}

// Points is a recorded random point set. Its only content is the iteration
// whose distances it stands for.
type Points struct {
	Iteration int
	table     *Table
}

// Name returns the name the recorded run gave the random points.
func (p *Points) Name() string {
	return fmt.Sprintf("TEMP_RANDOM_POINTS_%d", p.Iteration)
}

// Release implements permutation.GeneratedPoints.
func (p *Points) Release(ctx context.Context) error {
	p.table.mu.Lock()
	defer p.table.mu.Unlock()
	if !p.table.outstanding[p.Name()] {
		return fmt.Errorf("%s already released", p.Name())
	}
	delete(p.table.outstanding, p.Name())
	return nil
}

// Generate implements permutation.PointGenerator by handing out the
// recording of the requested iteration.
func (t *Table) Generate(ctx context.Context, req permutation.GenerateRequest) (permutation.GeneratedPoints, error) {
	if _, ok := t.iterations[req.Iteration]; !ok || req.Iteration < 1 {
		return nil, fmt.Errorf("%w: %d", ErrIterationMissing, req.Iteration)
	}
	p := &Points{Iteration: req.Iteration, table: t}
	t.mu.Lock()
	t.outstanding[p.Name()] = true
	t.mu.Unlock()
	return p, nil
}

// ComputeDistances implements permutation.DistanceProvider. Requests that
// involve a recorded random set return that iteration; all others return
// the observed iteration. Cutoff and Self are applied to the recording.
func (t *Table) ComputeDistances(ctx context.Context, req permutation.DistanceRequest) ([]netk.DistanceRecord, error) {
	iteration := 0
	if p, ok := req.Destinations.(*Points); ok {
		iteration = p.Iteration
	} else if p, ok := req.Sources.(*Points); ok {
		iteration = p.Iteration
	}
	recs, ok := t.iterations[iteration]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrIterationMissing, iteration)
	}

	out := make([]netk.DistanceRecord, 0, len(recs))
	for _, r := range recs {
		if req.Self && r.OriginID == r.DestinationID {
			continue
		}
		if req.Cutoff != nil && r.Distance > *req.Cutoff {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}
