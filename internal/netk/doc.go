// Package netk computes the Network K-function for point patterns on a linear
// network and the Monte-Carlo confidence envelopes used to judge it.
//
// The package is pure computation. Distances between points arrive as
// DistanceRecord slices produced elsewhere (an OD cost matrix solver); the
// package bins them into distance bands, normalises the counts by the
// point-network density and extracts order-statistic envelopes from the
// random permutations.
//
// Two binning strategies exist and are deliberately kept apart:
//
//   - NewNetworkKCalculation bins cumulatively (a record is counted in every
//     band whose threshold it does not exceed). This is the global K-function
//     over a single point set.
//   - NewCrossKCalculation bins into independent half-open bands
//     [start, start+increment) and discards records below the beginning
//     distance. This is the cross K-function between two point sets.
package netk
