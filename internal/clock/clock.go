// Package clock provides the logical clock the review engine schedules
// against. Every component that needs time takes a Clock; nothing reads
// wall-clock time directly, which keeps scheduling deterministic under test
// and stable across timezones.
package clock

import (
	"sync"
	"time"
)

// DateLayout is the calendar-day format used for review log action dates.
const DateLayout = "2006-01-02"

// Clock supplies the current instant and the current calendar day, both in
// the operating timezone.
type Clock interface {
	Now() time.Time
	// Today returns the current calendar day as YYYY-MM-DD.
	Today() string
}

type systemClock struct {
	loc *time.Location
}

// New returns a Clock backed by the system clock, pinned to loc.
func New(loc *time.Location) Clock {
	if loc == nil {
		loc = time.UTC
	}
	return &systemClock{loc: loc}
}

func (c *systemClock) Now() time.Time {
	return time.Now().In(c.loc)
}

func (c *systemClock) Today() string {
	return c.Now().Format(DateLayout)
}

// Fixed is a Clock frozen at a settable instant, for tests.
type Fixed struct {
	mu  sync.RWMutex
	now time.Time
}

// NewFixed returns a Clock frozen at t.
func NewFixed(t time.Time) *Fixed {
	return &Fixed{now: t}
}

func (c *Fixed) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.now
}

func (c *Fixed) Today() string {
	return c.Now().Format(DateLayout)
}

// Advance moves the frozen instant forward by d.
func (c *Fixed) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Set pins the frozen instant to t.
func (c *Fixed) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}
