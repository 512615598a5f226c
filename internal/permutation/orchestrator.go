package permutation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/crash-analysis/internal/monitoring"
	"github.com/banshee-data/crash-analysis/internal/netk"
	"github.com/banshee-data/crash-analysis/internal/timeutil"
)

// Config controls an Orchestrator.
type Config struct {
	// Clock measures elapsed time (default: real clock).
	Clock timeutil.Clock
	// Progress receives one message per completed permutation (default:
	// monitoring.Logf with a "[permutation]" prefix).
	Progress ProgressSink
	// Workers is the number of permutations measured at once. Values below
	// 2 run them one after another.
	Workers int
}

// Request describes one run of observed plus random trials.
type Request struct {
	AnalysisType netk.AnalysisType
	Network      Network
	// Sources are the observed points. For a global analysis they are also
	// the destinations.
	Sources PointSet
	// Destinations are the observed destination points of a cross analysis.
	Destinations     PointSet
	SnapDistance     float64
	Cutoff           *float64
	NumPermutations  int
	CoordinateSystem string
	// NumPointsField is passed through to the PointGenerator.
	NumPointsField string
	// NumPoints is the number of random points per permutation. 0 uses the
	// distinct destinations of the observed trial.
	NumPoints int
}

// RunStats summarises a completed run.
type RunStats struct {
	Iterations      int // observed + permutations
	NumDestinations int // distinct destinations in the observed trial
	Elapsed         time.Duration
}

// Orchestrator runs the iterate-and-aggregate protocol.
type Orchestrator struct {
	distances DistanceProvider
	points    PointGenerator
	clock     timeutil.Clock
	progress  ProgressSink
	workers   int
}

// NewOrchestrator creates an Orchestrator over the given providers.
func NewOrchestrator(distances DistanceProvider, points PointGenerator, cfg Config) *Orchestrator {
	o := &Orchestrator{
		distances: distances,
		points:    points,
		clock:     cfg.Clock,
		progress:  cfg.Progress,
		workers:   cfg.Workers,
	}
	if o.clock == nil {
		o.clock = timeutil.RealClock{}
	}
	if o.progress == nil {
		o.progress = &monitoring.LogSink{Prefix: "[permutation]"}
	}
	return o
}

// Cutoff returns numBands*increment + begin, the largest distance any band
// can use, or nil when the band count is not known up front.
func Cutoff(numBands int, increment, begin float64) *float64 {
	if numBands <= 0 {
		return nil
	}
	c := float64(numBands)*increment + begin
	return &c
}

func (r Request) validate() error {
	switch r.AnalysisType {
	case netk.Global:
	case netk.Cross:
		if r.Destinations == nil {
			return fmt.Errorf("%w: cross analysis needs destination points", netk.ErrInvalidInput)
		}
	default:
		return fmt.Errorf("%w: unknown analysis type %q", netk.ErrInvalidInput, r.AnalysisType)
	}
	if r.Sources == nil {
		return fmt.Errorf("%w: no source points", netk.ErrInvalidInput)
	}
	if r.NumPermutations < 0 {
		return fmt.Errorf("%w: number of permutations must be non-negative, got %d", netk.ErrInvalidInput, r.NumPermutations)
	}
	if r.NumPoints < 0 {
		return fmt.Errorf("%w: number of points must be non-negative, got %d", netk.ErrInvalidInput, r.NumPoints)
	}
	if r.SnapDistance < 0 {
		return fmt.Errorf("%w: snap distance must be non-negative, got %v", netk.ErrInvalidInput, r.SnapDistance)
	}
	return nil
}

// Run computes the observed distances (iteration 0) and then
// req.NumPermutations random trials, calling fn once per iteration. Calls to
// fn never overlap. Any provider or callback error aborts the run; nothing
// is retried.
func (o *Orchestrator) Run(ctx context.Context, req Request, fn IterationFunc) (RunStats, error) {
	if fn == nil {
		return RunStats{}, fmt.Errorf("%w: nil iteration callback", netk.ErrInvalidInput)
	}
	if err := req.validate(); err != nil {
		return RunStats{}, err
	}
	start := o.clock.Now()

	dests := req.Sources
	if req.AnalysisType == netk.Cross {
		dests = req.Destinations
	}
	observed, err := o.distances.ComputeDistances(ctx, DistanceRequest{
		Network:      req.Network,
		Sources:      req.Sources,
		Destinations: dests,
		Self:         req.AnalysisType == netk.Global,
		SnapDistance: req.SnapDistance,
		Cutoff:       req.Cutoff,
	})
	if err != nil {
		return RunStats{}, providerErr("compute observed distances", 0, err)
	}
	if err := fn(observed, 0); err != nil {
		return RunStats{}, fmt.Errorf("iteration 0: %w", err)
	}

	// Each permutation places as many random points as there are observed
	// destinations.
	numDests := netk.CountDistinctDestinations(observed)
	stats := RunStats{Iterations: 1, NumDestinations: numDests}
	if req.NumPoints > 0 {
		numDests = req.NumPoints
	}
	if req.NumPermutations == 0 {
		stats.Elapsed = o.clock.Since(start)
		return stats, nil
	}
	if numDests == 0 && req.NumPointsField == "" {
		return stats, fmt.Errorf("%w: observed trial has no destinations to permute", netk.ErrInvalidInput)
	}

	timer := NewTimer(o.clock, req.NumPermutations)
	var mu sync.Mutex
	emit := func(records []netk.DistanceRecord, iteration int) error {
		mu.Lock()
		defer mu.Unlock()
		if err := fn(records, iteration); err != nil {
			return fmt.Errorf("iteration %d: %w", iteration, err)
		}
		timer.Increment()
		o.progress.Report(timer.Message(iteration))
		return nil
	}

	if o.workers > 1 {
		err = o.runParallel(ctx, req, numDests, emit)
	} else {
		err = o.runSequential(ctx, req, numDests, emit)
	}
	stats.Iterations += timer.Completed()
	stats.Elapsed = o.clock.Since(start)
	return stats, err
}

func (o *Orchestrator) runSequential(ctx context.Context, req Request, numDests int, emit IterationFunc) error {
	for i := 1; i <= req.NumPermutations; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := o.permutation(ctx, req, i, numDests, emit); err != nil {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) runParallel(ctx context.Context, req Request, numDests int, emit IterationFunc) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.workers)
	for i := 1; i <= req.NumPermutations; i++ {
		if gctx.Err() != nil {
			break
		}
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return o.permutation(gctx, req, i, numDests, emit)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	// errgroup cancels gctx only on error; a cancelled parent with no
	// failing worker still has to be reported.
	return ctx.Err()
}

// permutation runs one random trial. The generated points are released on
// every path out of this function.
func (o *Orchestrator) permutation(ctx context.Context, req Request, iteration, numDests int, emit IterationFunc) (err error) {
	points, err := o.points.Generate(ctx, GenerateRequest{
		Network:          req.Network,
		CoordinateSystem: req.CoordinateSystem,
		Count:            numDests,
		CountField:       req.NumPointsField,
		Iteration:        iteration,
	})
	if err != nil {
		return providerErr("generate random points", iteration, err)
	}
	if points == nil {
		return providerErr("generate random points", iteration, errors.New("generator returned no point set"))
	}
	defer func() {
		if rerr := points.Release(context.WithoutCancel(ctx)); rerr != nil {
			if err == nil {
				err = providerErr("release random points", iteration, rerr)
				return
			}
			monitoring.Logf("[permutation] iteration %d: release %s: %v", iteration, points.Name(), rerr)
		}
	}()

	// Cross: observed sources to the random points. Global: random points
	// among themselves.
	var sources PointSet = points
	if req.AnalysisType == netk.Cross {
		sources = req.Sources
	}
	records, err := o.distances.ComputeDistances(ctx, DistanceRequest{
		Network:      req.Network,
		Sources:      sources,
		Destinations: points,
		Self:         req.AnalysisType == netk.Global,
		SnapDistance: req.SnapDistance,
		Cutoff:       req.Cutoff,
	})
	if err != nil {
		return providerErr("compute distances", iteration, err)
	}
	return emit(records, iteration)
}
