package permutation

import (
	"context"

	"github.com/banshee-data/crash-analysis/internal/netk"
)

// Network is an opaque reference to a network dataset understood by the
// providers (a path, a table name, a URL).
type Network string

// PointSet is a set of points a DistanceProvider can measure.
type PointSet interface {
	// Name identifies the set to the providers.
	Name() string
}

// GeneratedPoints is a temporary point set owned by one iteration. The
// orchestrator always calls Release before the iteration completes.
type GeneratedPoints interface {
	PointSet
	Release(ctx context.Context) error
}

// DistanceRequest asks for the network distances from Sources to
// Destinations.
type DistanceRequest struct {
	Network      Network
	Sources      PointSet
	Destinations PointSet
	// Self is set when Sources and Destinations are the same set. The
	// provider must then drop origin == destination pairs.
	Self         bool
	SnapDistance float64
	// Cutoff bounds the search radius when set.
	Cutoff *float64
}

// DistanceProvider computes OD distances on a network.
type DistanceProvider interface {
	ComputeDistances(ctx context.Context, req DistanceRequest) ([]netk.DistanceRecord, error)
}

// GenerateRequest asks for uniformly random points on a network.
type GenerateRequest struct {
	Network          Network
	CoordinateSystem string
	Count            int
	// CountField names a numeric edge attribute from which the generator
	// derives per-edge point counts. When set, Count is advisory.
	CountField string
	// Iteration is the permutation the points are generated for.
	Iteration int
}

// PointGenerator places random points on a network.
type PointGenerator interface {
	Generate(ctx context.Context, req GenerateRequest) (GeneratedPoints, error)
}

// LengthProvider measures the total length of a network.
type LengthProvider interface {
	NetworkLength(ctx context.Context, network Network, coordinateSystem string) (float64, error)
}

// ProgressSink receives human readable progress messages.
type ProgressSink interface {
	Report(msg string)
}

// ProgressFunc adapts a function to ProgressSink.
type ProgressFunc func(msg string)

// Report calls f(msg).
func (f ProgressFunc) Report(msg string) { f(msg) }

// IterationFunc is called once per iteration with that iteration's
// distances. Iteration 0 is the observed data.
type IterationFunc func(records []netk.DistanceRecord, iteration int) error

// NamedPoints is a PointSet that is only a name, e.g. a feature class the
// caller owns.
type NamedPoints string

// Name returns the set name.
func (n NamedPoints) Name() string { return string(n) }

// CountedPoints is a PointSet that knows how many features it holds.
type CountedPoints interface {
	PointSet
	Count() int
}
