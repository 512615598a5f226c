package permutation

import (
	"fmt"

	"github.com/banshee-data/crash-analysis/internal/netk"
)

// ProviderError records which provider call failed and on which iteration.
// It matches netk.ErrProviderFailure with errors.Is.
type ProviderError struct {
	Op        string
	Iteration int
	Err       error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("iteration %d: %s: %v", e.Iteration, e.Op, e.Err)
}

// Unwrap exposes both the provider failure class and the cause.
func (e *ProviderError) Unwrap() []error {
	return []error{netk.ErrProviderFailure, e.Err}
}

func providerErr(op string, iteration int, err error) error {
	return &ProviderError{Op: op, Iteration: iteration, Err: err}
}
