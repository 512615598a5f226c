package netk

import (
	"math"
	"sort"
)

// bandTolerance absorbs floating-point noise when (max-begin)/increment is
// an exact integer, e.g. 0.3/0.1.
const bandTolerance = 1e-9

// sortedCopy returns the records ordered by ascending distance. Ties keep
// their input order.
func sortedCopy(records []DistanceRecord) []DistanceRecord {
	out := make([]DistanceRecord, len(records))
	copy(out, records)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Distance < out[j].Distance
	})
	return out
}

// DeriveBandCount returns the number of bands needed to reach maxDistance
// from begin in steps of increment: ceil((max-begin)/increment + 1), never
// less than one.
func DeriveBandCount(maxDistance, begin, increment float64) (int, error) {
	if !(increment > 0) || math.IsInf(increment, 0) {
		return 0, invalidInputf("distance increment must be positive, got %v", increment)
	}
	if math.IsNaN(maxDistance) || math.IsNaN(begin) {
		return 0, invalidInputf("distance is NaN")
	}
	n := math.Ceil((maxDistance-begin)/increment + 1 - bandTolerance)
	if n < 1 {
		return 1, nil
	}
	return int(n), nil
}

// resolveBandCount applies policy to an explicit band count. explicit == 0
// means the count is derived from the data. sorted must be ascending.
func resolveBandCount(sorted []DistanceRecord, begin, increment float64, explicit int, policy BandCountPolicy) (int, error) {
	if explicit < 0 {
		return 0, invalidInputf("number of distance bands must be at least 1, got %d", explicit)
	}
	if explicit > 0 && policy == UserExact {
		return explicit, nil
	}
	if len(sorted) == 0 {
		return 0, invalidInputf("no distances: cannot derive the number of distance bands")
	}
	derived, err := DeriveBandCount(sorted[len(sorted)-1].Distance, begin, increment)
	if err != nil {
		return 0, err
	}
	if explicit == 0 {
		return derived, nil
	}
	switch policy {
	case ClampToData:
		if explicit > derived {
			return derived, nil
		}
		return explicit, nil
	default:
		return 0, invalidInputf("unknown band count policy %v", policy)
	}
}
