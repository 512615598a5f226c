// Package testutil provides shared test utilities and fixtures.
//
// This package centralises common test helpers to reduce code duplication
// across test files and improve test maintainability.
package testutil

import (
	"testing"

	"github.com/banshee-data/crash-analysis/internal/netk"
)

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// BandCounts extracts the Count of every band, for compact assertions.
func BandCounts(bands []netk.DistanceBand) []int {
	out := make([]int, len(bands))
	for i, b := range bands {
		out[i] = b.Count
	}
	return out
}
