package chronos

import "time"

// Clock abstracts wall time so the watcher can be driven deterministically
// in tests.
type Clock interface {
	Now() time.Time
}

// RealClock reads the system clock.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }
