// Package monitoring holds the diagnostic logger shared by the analysis
// packages and the progress sink that forwards to it.
package monitoring

import (
	"log"
	"sync"
)

// Logf is the package-level diagnostic logger. It defaults to log.Printf but may
// be replaced by SetLogger. Tests or production code can redirect or mute it.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// LogSink reports progress messages through Logf with a fixed prefix, and
// keeps the most recent message for status queries.
type LogSink struct {
	Prefix string

	mu   sync.Mutex
	last string
	n    int
}

// Report logs msg.
func (s *LogSink) Report(msg string) {
	s.mu.Lock()
	s.last = msg
	s.n++
	s.mu.Unlock()
	if s.Prefix != "" {
		Logf("%s %s", s.Prefix, msg)
		return
	}
	Logf("%s", msg)
}

// Last returns the most recent message and how many have been reported.
func (s *LogSink) Last() (string, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last, s.n
}
