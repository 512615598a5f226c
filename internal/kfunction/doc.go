// Package kfunction runs a complete network K-function analysis: it measures
// the network, drives the permutation orchestrator, computes one K-function
// per iteration and reduces the permutations to confidence envelopes.
//
// Results are returned as a Report and, when a ResultWriter is configured,
// streamed to it as raw OD distances, raw K rows and summary rows.
package kfunction
