package timeutil

import (
	"testing"
	"time"
)

func TestRealClock(t *testing.T) {
	var c Clock = RealClock{}
	start := c.Now()
	if c.Since(start) < 0 {
		t.Error("Since returned a negative duration")
	}
}

func TestMockClock(t *testing.T) {
	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	c := NewMockClock(start)

	if !c.Now().Equal(start) {
		t.Errorf("Now() = %v, want %v", c.Now(), start)
	}

	c.Advance(90 * time.Second)
	if got := c.Since(start); got != 90*time.Second {
		t.Errorf("Since() = %v, want 90s", got)
	}

	later := start.Add(time.Hour)
	c.Set(later)
	if got := c.Since(start); got != time.Hour {
		t.Errorf("Since() after Set = %v, want 1h", got)
	}
}

func TestFormatHMS(t *testing.T) {
	testCases := []struct {
		name string
		in   time.Duration
		want string
	}{
		{"zero", 0, "00:00:00"},
		{"sub_second", 900 * time.Millisecond, "00:00:00"},
		{"seconds", 59 * time.Second, "00:00:59"},
		{"minutes", 61 * time.Second, "00:01:01"},
		{"hours", 3*time.Hour + 25*time.Minute + 7*time.Second, "03:25:07"},
		{"past_a_day", 26 * time.Hour, "26:00:00"},
		{"negative", -time.Second, "00:00:00"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := FormatHMS(tc.in); got != tc.want {
				t.Errorf("FormatHMS(%v) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}
