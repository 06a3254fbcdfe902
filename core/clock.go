package core

import "time"

// Clock supplies the wall-clock time all freshness math goes through.
// Tests inject a fixed clock for determinism.
type Clock func() time.Time

var wallClock Clock = time.Now

// FixedClock returns a clock frozen at t.
func FixedClock(t time.Time) Clock {
	return func() time.Time { return t }
}
