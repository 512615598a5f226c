package netk

import (
	"math"
	"sort"
)

// Analysis holds the confidence envelope of a set of trials. Trial 0 is the
// observed data; trials 1..N are random permutations.
type Analysis struct {
	confidence   float64
	numBands     int
	numPerms     int
	envelopeSize int
	lowerIndex   int
	upperIndex   int
	lower        []DistanceBand
	upper        []DistanceBand
}

// EnvelopeIndices returns the envelope size and the 0-based indices of the
// lower and upper envelope in the ascending order statistics of numPerms
// permutation counts. When the number of excluded permutations is odd the
// extra one is excluded from the top.
func EnvelopeIndices(numPerms int, confidence float64) (size, lower, upper int, err error) {
	if numPerms < 1 {
		return 0, 0, 0, invalidInputf("confidence envelope needs at least 1 permutation, got %d", numPerms)
	}
	if !(confidence > 0 && confidence < 1) {
		return 0, 0, 0, invalidInputf("confidence level must be in (0, 1), got %v", confidence)
	}
	size = int(math.Round(float64(numPerms) * confidence))
	if size < 1 {
		return 0, 0, 0, invalidInputf("%d permutations are too few for a %v confidence envelope", numPerms, confidence)
	}
	excluded := numPerms - size
	onTop := (excluded + 1) / 2
	onBottom := excluded / 2
	return size, onBottom, numPerms - onTop - 1, nil
}

// NewNetworkKAnalysis computes the lower and upper confidence envelopes, band
// by band, from trials[1:]. All trials must have the same number of bands.
func NewNetworkKAnalysis(confidence float64, trials [][]DistanceBand) (*Analysis, error) {
	if len(trials) < 2 {
		return nil, invalidInputf("confidence envelope needs the observed trial and at least 1 permutation, got %d trials", len(trials))
	}
	numBands := len(trials[0])
	if numBands == 0 {
		return nil, invalidInputf("observed trial has no distance bands")
	}
	for i, trial := range trials {
		if len(trial) != numBands {
			return nil, invalidInputf("trial %d has %d distance bands, observed trial has %d", i, len(trial), numBands)
		}
	}

	numPerms := len(trials) - 1
	size, lowerIdx, upperIdx, err := EnvelopeIndices(numPerms, confidence)
	if err != nil {
		return nil, err
	}

	a := &Analysis{
		confidence:   confidence,
		numBands:     numBands,
		numPerms:     numPerms,
		envelopeSize: size,
		lowerIndex:   lowerIdx,
		upperIndex:   upperIdx,
		lower:        make([]DistanceBand, 0, numBands),
		upper:        make([]DistanceBand, 0, numBands),
	}

	column := make([]DistanceBand, numPerms)
	for band := 0; band < numBands; band++ {
		for i, trial := range trials[1:] {
			column[i] = trial[band]
		}
		sort.SliceStable(column, func(i, j int) bool {
			return column[i].Count < column[j].Count
		})
		a.lower = append(a.lower, column[lowerIdx])
		a.upper = append(a.upper, column[upperIdx])
	}
	return a, nil
}

// ConfidenceLevel returns the requested confidence level.
func (a *Analysis) ConfidenceLevel() float64 { return a.confidence }

// NumberOfBands returns the number of distance bands per trial.
func (a *Analysis) NumberOfBands() int { return a.numBands }

// NumberOfPermutations returns the number of random trials.
func (a *Analysis) NumberOfPermutations() int { return a.numPerms }

// EnvelopeSize returns how many permutations lie on or within the envelope.
func (a *Analysis) EnvelopeSize() int { return a.envelopeSize }

// LowerIndex returns the order-statistic index of the lower envelope.
func (a *Analysis) LowerIndex() int { return a.lowerIndex }

// UpperIndex returns the order-statistic index of the upper envelope.
func (a *Analysis) UpperIndex() int { return a.upperIndex }

// LowerConfidenceEnvelope returns a copy of the lower envelope bands.
func (a *Analysis) LowerConfidenceEnvelope() []DistanceBand {
	out := make([]DistanceBand, len(a.lower))
	copy(out, a.lower)
	return out
}

// UpperConfidenceEnvelope returns a copy of the upper envelope bands.
func (a *Analysis) UpperConfidenceEnvelope() []DistanceBand {
	out := make([]DistanceBand, len(a.upper))
	copy(out, a.upper)
	return out
}
