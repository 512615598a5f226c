package kfunction

import (
	"math"
	"strconv"
	"time"

	"github.com/banshee-data/crash-analysis/internal/netk"
)

// PermutationChoices are the permutation counts offered to users. Each
// non-zero choice makes N*C an integer for the default confidence levels.
var PermutationChoices = []int{0, 9, 99, 999}

// DefaultConfidenceLevels are the envelopes reported when none are given.
var DefaultConfidenceLevels = []float64{0.95, 0.90}

// ObservedDescription labels the summary rows of the observed trial.
const ObservedDescription = "Observed"

// IsPermutationChoice reports whether n is one of PermutationChoices.
func IsPermutationChoice(n int) bool {
	for _, c := range PermutationChoices {
		if c == n {
			return true
		}
	}
	return false
}

// EnvelopeDescription labels the summary rows of one envelope, e.g.
// "2.5% Lower Bound" for the lower envelope at 95% confidence.
func EnvelopeDescription(confidence float64, upper bool) string {
	tail := math.Round((1-confidence)/2*100*1e4) / 1e4
	side := "Lower"
	if upper {
		side = "Upper"
	}
	return strconv.FormatFloat(tail, 'f', -1, 64) + "% " + side + " Bound"
}

// Run describes one analysis as persisted by a ResultWriter.
type Run struct {
	ID                string
	AnalysisType      netk.AnalysisType
	Network           string
	NetworkLength     float64
	BeginDistance     float64
	DistanceIncrement float64
	SnapDistance      float64
	// NumBands is the requested band count when the run starts and the
	// count resolved by the observed trial once it completes.
	NumBands         int
	NumPoints        int
	NumPermutations  int
	ConfidenceLevels []float64
	StartedAt        time.Time
	Iterations       int
	Elapsed          time.Duration
}

// RawRow is the K-function of one band in one iteration.
type RawRow struct {
	Iteration    int     `json:"iteration"`
	DistanceBand float64 `json:"distance_band"`
	Count        int     `json:"count"`
	KFunction    float64 `json:"k_function"`
}

// SummaryRow is one band of the observed K-function or of an envelope.
type SummaryRow struct {
	Description  string  `json:"description"`
	DistanceBand float64 `json:"distance_band"`
	Count        int     `json:"count"`
	KFunction    float64 `json:"k_function"`
}

func rawRows(iteration int, bands []netk.DistanceBand) []RawRow {
	rows := make([]RawRow, len(bands))
	for i, b := range bands {
		rows[i] = RawRow{Iteration: iteration, DistanceBand: b.DistanceBand, Count: b.Count, KFunction: b.KFunction}
	}
	return rows
}

func summaryRows(description string, bands []netk.DistanceBand) []SummaryRow {
	rows := make([]SummaryRow, len(bands))
	for i, b := range bands {
		rows[i] = SummaryRow{Description: description, DistanceBand: b.DistanceBand, Count: b.Count, KFunction: b.KFunction}
	}
	return rows
}
