package netk

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput reports malformed or inconsistent parameters.
	ErrInvalidInput = errors.New("invalid input")

	// ErrProviderFailure reports a failure in an injected distance, point or
	// length provider. It is fatal for the run that observed it.
	ErrProviderFailure = errors.New("provider failure")
)

func invalidInputf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}
