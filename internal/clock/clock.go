// Package clock provides the firmware's monotonic millisecond clock and the
// software countdown timers that drive every timeout in the core. All
// timeout decisions are made against Millis values from a single Clock so
// that tests can substitute a manually advanced time source.
package clock

import (
	"sync"
	"time"
)

// Millis is a monotonic timestamp in milliseconds since an arbitrary epoch
// (typically firmware boot). Wall-clock time is never consulted: the wall
// clock can be set externally and is not trustworthy for security windows.
type Millis int64

// Clock is a monotonic millisecond time source.
type Clock interface {
	Now() Millis
}

type systemClock struct {
	start time.Time
}

// System returns a Clock backed by the runtime's monotonic clock, rooted at
// the moment of the call.
func System() Clock {
	return &systemClock{start: time.Now()}
}

func (c *systemClock) Now() Millis {
	// time.Since uses the monotonic reading, so process-external wall clock
	// changes cannot move this backwards.
	return Millis(time.Since(c.start) / time.Millisecond)
}

// Manual is a Clock advanced explicitly by tests.
type Manual struct {
	mu  sync.Mutex
	now Millis
}

func NewManual() *Manual {
	return &Manual{}
}

func (m *Manual) Now() Millis {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Advance moves the clock forward by d. Negative durations are ignored.
func (m *Manual) Advance(d time.Duration) {
	if d < 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now += Millis(d / time.Millisecond)
}
