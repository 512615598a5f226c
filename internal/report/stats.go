// Package report turns a finished K-function run into per-band statistics
// and charts: an interactive HTML page and a static PNG.
package report

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/crash-analysis/internal/netk"
)

// BandStats summarises the permutation distribution of one distance band.
type BandStats struct {
	DistanceBand float64 `json:"distance_band"`
	Observed     int     `json:"observed"`
	Mean         float64 `json:"mean"`
	StdDev       float64 `json:"std_dev"`
	Min          float64 `json:"min"`
	Median       float64 `json:"median"`
	Max          float64 `json:"max"`
	// PValue is the pseudo p-value (k+1)/(N+1), where k counts the
	// permutations with at least the observed count. Small values mean
	// the observed points cluster at this distance.
	PValue float64 `json:"p_value"`
}

// PermutationStats computes BandStats for every band. trials[0] is the
// observed trial and at least one permutation is required.
func PermutationStats(trials [][]netk.DistanceBand) ([]BandStats, error) {
	if len(trials) < 2 {
		return nil, fmt.Errorf("%w: statistics need at least 1 permutation", netk.ErrInvalidInput)
	}
	numBands := len(trials[0])
	for i, trial := range trials {
		if len(trial) != numBands {
			return nil, fmt.Errorf("%w: trial %d has %d bands, observed trial has %d", netk.ErrInvalidInput, i, len(trial), numBands)
		}
	}

	perms := len(trials) - 1
	counts := make([]float64, perms)
	out := make([]BandStats, numBands)
	for b := 0; b < numBands; b++ {
		observed := trials[0][b].Count
		atLeast := 0
		for i, trial := range trials[1:] {
			counts[i] = float64(trial[b].Count)
			if trial[b].Count >= observed {
				atLeast++
			}
		}
		mean, std := stat.MeanStdDev(counts, nil)
		sorted := append([]float64(nil), counts...)
		sort.Float64s(sorted)

		out[b] = BandStats{
			DistanceBand: trials[0][b].DistanceBand,
			Observed:     observed,
			Mean:         mean,
			StdDev:       std,
			Min:          floats.Min(sorted),
			Median:       stat.Quantile(0.5, stat.Empirical, sorted, nil),
			Max:          floats.Max(sorted),
			PValue:       float64(atLeast+1) / float64(perms+1),
		}
	}
	return out, nil
}
