package permutation

import (
	"fmt"
	"time"

	"github.com/banshee-data/crash-analysis/internal/timeutil"
)

// Timer tracks elapsed time and estimates the time remaining over a fixed
// number of iterations. It is not safe for concurrent use.
type Timer struct {
	clock timeutil.Clock
	start time.Time
	total int
	done  int
}

// NewTimer starts a timer for total iterations.
func NewTimer(clock timeutil.Clock, total int) *Timer {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Timer{clock: clock, start: clock.Now(), total: total}
}

// Increment records one completed iteration.
func (t *Timer) Increment() { t.done++ }

// Completed returns the number of completed iterations.
func (t *Timer) Completed() int { return t.done }

// Elapsed returns the time since the timer started.
func (t *Timer) Elapsed() time.Duration { return t.clock.Since(t.start) }

// ETA returns elapsed / completed * remaining, or zero before the first
// iteration completes.
func (t *Timer) ETA() time.Duration {
	if t.done == 0 {
		return 0
	}
	remaining := t.total - t.done
	if remaining <= 0 {
		return 0
	}
	return time.Duration(float64(t.Elapsed()) / float64(t.done) * float64(remaining))
}

// Message formats the progress line for iteration.
func (t *Timer) Message(iteration int) string {
	return fmt.Sprintf("Iteration %d complete.  Elapsed time: %s.  ETA: %s.",
		iteration, timeutil.FormatHMS(t.Elapsed()), timeutil.FormatHMS(t.ETA()))
}
