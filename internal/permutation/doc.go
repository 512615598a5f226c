// Package permutation drives the observed trial and the Monte-Carlo random
// trials of a Network K-function analysis.
//
// Routing, random point placement and network measurement are external
// collaborators reached through the DistanceProvider, PointGenerator and
// LengthProvider interfaces. The Orchestrator owns the iteration protocol:
// iteration 0 uses the real points, iterations 1..N each generate a fresh
// random point set, measure it, hand the distances to the caller and release
// the point set before the iteration ends.
package permutation
