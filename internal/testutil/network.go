package testutil

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync"

	"github.com/banshee-data/crash-analysis/internal/netk"
	"github.com/banshee-data/crash-analysis/internal/permutation"
)

// LinePoints is a point set on a LineNetwork, given as positions along a
// single straight edge.
type LinePoints struct {
	name      string
	Positions []float64
	network   *LineNetwork
}

// NewLinePoints creates an observed point set owned by the caller.
func NewLinePoints(name string, positions ...float64) *LinePoints {
	return &LinePoints{name: name, Positions: positions}
}

// Name returns the set name.
func (p *LinePoints) Name() string { return p.name }

// Count implements permutation.CountedPoints.
func (p *LinePoints) Count() int { return len(p.Positions) }

// Release hands a generated set back to its network.
func (p *LinePoints) Release(ctx context.Context) error {
	if p.network == nil {
		return fmt.Errorf("%s was not generated", p.name)
	}
	return p.network.release(p)
}

// LineNetwork is an in-memory fake of the GIS collaborators: a single edge
// of the given length where the network distance between two points is the
// difference of their positions. It records every call and can inject
// failures.
type LineNetwork struct {
	Length float64

	// DistanceErr, GenerateErr and ReleaseErr inject failures. A nil hook
	// never fails.
	DistanceErr func(req permutation.DistanceRequest) error
	GenerateErr func(req permutation.GenerateRequest) error
	ReleaseErr  func(p *LinePoints) error

	mu          sync.Mutex
	rng         *rand.Rand
	outstanding map[string]bool
	generated   int
	released    int
	distanceReq []permutation.DistanceRequest
	generateReq []permutation.GenerateRequest
}

// NewLineNetwork creates a LineNetwork with a seeded generator.
func NewLineNetwork(length float64, seed int64) *LineNetwork {
	return &LineNetwork{
		Length:      length,
		rng:         rand.New(rand.NewSource(seed)),
		outstanding: make(map[string]bool),
	}
}

// NetworkLength implements permutation.LengthProvider.
func (n *LineNetwork) NetworkLength(ctx context.Context, network permutation.Network, coordinateSystem string) (float64, error) {
	return n.Length, nil
}

// Generate implements permutation.PointGenerator.
func (n *LineNetwork) Generate(ctx context.Context, req permutation.GenerateRequest) (permutation.GeneratedPoints, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.generateReq = append(n.generateReq, req)
	if n.GenerateErr != nil {
		if err := n.GenerateErr(req); err != nil {
			return nil, err
		}
	}
	p := &LinePoints{
		name:      fmt.Sprintf("TEMP_RANDOM_POINTS_%d", req.Iteration),
		Positions: make([]float64, req.Count),
		network:   n,
	}
	for i := range p.Positions {
		p.Positions[i] = n.rng.Float64() * n.Length
	}
	n.generated++
	n.outstanding[p.name] = true
	return p, nil
}

func (n *LineNetwork) release(p *LinePoints) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.outstanding[p.name] {
		return fmt.Errorf("%s released twice", p.name)
	}
	delete(n.outstanding, p.name)
	n.released++
	if n.ReleaseErr != nil {
		return n.ReleaseErr(p)
	}
	return nil
}

// ComputeDistances implements permutation.DistanceProvider.
func (n *LineNetwork) ComputeDistances(ctx context.Context, req permutation.DistanceRequest) ([]netk.DistanceRecord, error) {
	n.mu.Lock()
	n.distanceReq = append(n.distanceReq, req)
	hook := n.DistanceErr
	n.mu.Unlock()
	if hook != nil {
		if err := hook(req); err != nil {
			return nil, err
		}
	}

	src, ok := req.Sources.(*LinePoints)
	if !ok {
		return nil, errors.New("sources are not line points")
	}
	dst, ok := req.Destinations.(*LinePoints)
	if !ok {
		return nil, errors.New("destinations are not line points")
	}

	var out []netk.DistanceRecord
	for i, a := range src.Positions {
		for j, b := range dst.Positions {
			if req.Self && i == j {
				continue
			}
			d := math.Abs(a - b)
			if req.Cutoff != nil && d > *req.Cutoff {
				continue
			}
			out = append(out, netk.DistanceRecord{
				Distance:      d,
				OriginID:      int64(i + 1),
				DestinationID: int64(j + 1),
			})
		}
	}
	return out, nil
}

// Outstanding returns the number of generated sets not yet released.
func (n *LineNetwork) Outstanding() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.outstanding)
}

// Generated returns how many point sets were generated and released.
func (n *LineNetwork) Generated() (generated, released int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.generated, n.released
}

// DistanceRequests returns a copy of the recorded distance requests.
func (n *LineNetwork) DistanceRequests() []permutation.DistanceRequest {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]permutation.DistanceRequest(nil), n.distanceReq...)
}

// GenerateRequests returns a copy of the recorded generate requests.
func (n *LineNetwork) GenerateRequests() []permutation.GenerateRequest {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]permutation.GenerateRequest(nil), n.generateReq...)
}
