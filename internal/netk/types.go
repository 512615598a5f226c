package netk

import (
	"fmt"
	"strings"
)

// DistanceRecord is one origin-destination pair from an OD cost matrix.
type DistanceRecord struct {
	Distance      float64 `json:"total_length"`
	OriginID      int64   `json:"origin_id"`
	DestinationID int64   `json:"destination_id"`
}

// DistanceBand is one step on the K-function distance axis.
type DistanceBand struct {
	DistanceBand float64 `json:"distance_band"` // band start
	Count        int     `json:"count"`
	KFunction    float64 `json:"k_function"`
}

// AnalysisType selects between a single point set and two point sets.
type AnalysisType string

const (
	// Global analyses distances between points of one set.
	Global AnalysisType = "GLOBAL"
	// Cross analyses distances from a source set to a destination set.
	Cross AnalysisType = "CROSS"
)

// ParseAnalysisType accepts either the short form ("GLOBAL", "CROSS") or the
// descriptive form ("Global Analysis", "Cross Analysis"), case-insensitively.
func ParseAnalysisType(s string) (AnalysisType, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "GLOBAL", "GLOBAL ANALYSIS":
		return Global, nil
	case "CROSS", "CROSS ANALYSIS":
		return Cross, nil
	}
	return "", fmt.Errorf("%w: unknown analysis type %q", ErrInvalidInput, s)
}

// Description returns the human readable name of the analysis type.
func (a AnalysisType) Description() string {
	switch a {
	case Global:
		return "Global Analysis"
	case Cross:
		return "Cross Analysis"
	}
	return string(a)
}

// BandCountPolicy decides how an explicit band count interacts with the
// count the data can support.
type BandCountPolicy int

const (
	// ClampToData lowers an explicit band count to the data-derived count.
	ClampToData BandCountPolicy = iota
	// UserExact uses an explicit band count as given, even past the data.
	UserExact
)

func (p BandCountPolicy) String() string {
	switch p {
	case ClampToData:
		return "clamp_to_data"
	case UserExact:
		return "user_exact"
	}
	return fmt.Sprintf("BandCountPolicy(%d)", int(p))
}

// CountDistinctOrigins returns the number of distinct origin IDs.
func CountDistinctOrigins(records []DistanceRecord) int {
	seen := make(map[int64]struct{}, len(records))
	for _, r := range records {
		seen[r.OriginID] = struct{}{}
	}
	return len(seen)
}

// CountDistinctDestinations returns the number of distinct destination IDs.
func CountDistinctDestinations(records []DistanceRecord) int {
	seen := make(map[int64]struct{}, len(records))
	for _, r := range records {
		seen[r.DestinationID] = struct{}{}
	}
	return len(seen)
}
