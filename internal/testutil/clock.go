package testutil

import (
	"sync"
	"time"
)

// Clock is a settable time source for tests.
//
// It only moves when Advance or Set is called, so timestamps written by
// the code under test are predictable.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock creates a clock reading start. A zero start reads
// 2024-01-02T03:04:05Z.
func NewClock(start time.Time) *Clock {
	if start.IsZero() {
		start = time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	}
	return &Clock{now: start}
}

// Now returns the current reading.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Set moves the clock to t.
func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}
