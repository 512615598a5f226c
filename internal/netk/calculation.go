package netk

import "math"

// Params configures one K-function calculation.
type Params struct {
	NetworkLength     float64
	BeginDistance     float64
	DistanceIncrement float64

	// NumBands is the explicit number of distance bands; 0 derives it from
	// the largest distance.
	NumBands int
	// Policy decides how an explicit NumBands meets the data. The zero value
	// is ClampToData.
	Policy BandCountPolicy

	// NumPoints is the number of points used for the density; 0 counts the
	// distinct origins in the records.
	NumPoints int

	// DiscountBelowBegin drops records closer than BeginDistance from the
	// cumulative bands. Independent bands always drop them.
	DiscountBelowBegin bool
}

// Calculation holds the result of one K-function trial. It is computed once
// on construction and never mutated.
type Calculation struct {
	analysisType AnalysisType
	params       Params
	distances    []DistanceRecord
	numBands     int
	numPoints    int
	density      float64
	bands        []DistanceBand
}

// NewNetworkKCalculation computes the global (cumulative) K-function of one
// point set. records must already exclude self pairs.
func NewNetworkKCalculation(p Params, records []DistanceRecord) (*Calculation, error) {
	return newCalculation(Global, p, records)
}

// NewCrossKCalculation computes the cross K-function between a source and a
// destination point set, using independent distance bands.
func NewCrossKCalculation(p Params, records []DistanceRecord) (*Calculation, error) {
	return newCalculation(Cross, p, records)
}

// NewCalculation dispatches on the analysis type.
func NewCalculation(t AnalysisType, p Params, records []DistanceRecord) (*Calculation, error) {
	switch t {
	case Global:
		return NewNetworkKCalculation(p, records)
	case Cross:
		return NewCrossKCalculation(p, records)
	}
	return nil, invalidInputf("unknown analysis type %q", t)
}

func newCalculation(t AnalysisType, p Params, records []DistanceRecord) (*Calculation, error) {
	if !(p.DistanceIncrement > 0) || math.IsInf(p.DistanceIncrement, 0) {
		return nil, invalidInputf("distance increment must be positive, got %v", p.DistanceIncrement)
	}
	if p.BeginDistance < 0 || math.IsNaN(p.BeginDistance) {
		return nil, invalidInputf("beginning distance must be non-negative, got %v", p.BeginDistance)
	}
	if p.NumPoints < 0 {
		return nil, invalidInputf("number of points must be non-negative, got %d", p.NumPoints)
	}
	for _, r := range records {
		if r.Distance < 0 || math.IsNaN(r.Distance) {
			return nil, invalidInputf("distance from %d to %d is %v", r.OriginID, r.DestinationID, r.Distance)
		}
	}

	sorted := sortedCopy(records)

	numBands, err := resolveBandCount(sorted, p.BeginDistance, p.DistanceIncrement, p.NumBands, p.Policy)
	if err != nil {
		return nil, err
	}

	numPoints := p.NumPoints
	if numPoints == 0 {
		numPoints = CountDistinctOrigins(sorted)
	}
	density, err := PointNetworkDensity(p.NetworkLength, numPoints)
	if err != nil {
		return nil, err
	}

	var bands []DistanceBand
	if t == Cross {
		bands = countIndependent(sorted, p.BeginDistance, p.DistanceIncrement, numBands)
	} else {
		bands = countCumulative(sorted, p.BeginDistance, p.DistanceIncrement, numBands, p.DiscountBelowBegin)
	}
	for i := range bands {
		bands[i].KFunction = float64(bands[i].Count) * density
	}

	return &Calculation{
		analysisType: t,
		params:       p,
		distances:    sorted,
		numBands:     numBands,
		numPoints:    numPoints,
		density:      density,
		bands:        bands,
	}, nil
}

// AnalysisType reports which binning strategy produced the bands.
func (c *Calculation) AnalysisType() AnalysisType { return c.analysisType }

// NetworkLength returns the network length used for the density.
func (c *Calculation) NetworkLength() float64 { return c.params.NetworkLength }

// Distances returns a copy of the records sorted by ascending distance.
func (c *Calculation) Distances() []DistanceRecord {
	out := make([]DistanceRecord, len(c.distances))
	copy(out, c.distances)
	return out
}

// BeginningDistance returns the start of the first band.
func (c *Calculation) BeginningDistance() float64 { return c.params.BeginDistance }

// DistanceIncrement returns the width of each band.
func (c *Calculation) DistanceIncrement() float64 { return c.params.DistanceIncrement }

// NumberOfDistanceBands returns the resolved band count.
func (c *Calculation) NumberOfDistanceBands() int { return c.numBands }

// NumberOfPoints returns the point count used for the density.
func (c *Calculation) NumberOfPoints() int { return c.numPoints }

// PointNetworkDensity returns length / (n*(n-1)).
func (c *Calculation) PointNetworkDensity() float64 { return c.density }

// DistanceBands returns a copy of the computed bands.
func (c *Calculation) DistanceBands() []DistanceBand {
	out := make([]DistanceBand, len(c.bands))
	copy(out, c.bands)
	return out
}
