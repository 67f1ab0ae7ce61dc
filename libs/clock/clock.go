// Package clock wraps time access so components can be tested against a
// hand-managed clock.
package clock

import (
	"sync"
	"time"
)

// Clock provides the current time.
type Clock interface {
	Now() time.Time
}

type clock struct{}

// New returns a Clock backed by the system time.
func New() Clock {
	return clock{}
}

func (clock) Now() time.Time {
	return time.Now()
}

// Managed is a Clock whose time only moves when told to. Intended for tests.
type Managed struct {
	mu     sync.Mutex
	start  time.Time
	offset time.Duration
}

// NewManaged returns a Managed clock starting at the provided time.
func NewManaged(start time.Time) *Managed {
	return &Managed{start: start}
}

// Now returns the current managed time.
func (c *Managed) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.start.Add(c.offset)
}

// Advance moves time forward by d and returns the new time. Time never moves
// backwards, in tests least of all.
func (c *Managed) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.offset += d
	return c.start.Add(c.offset)
}
