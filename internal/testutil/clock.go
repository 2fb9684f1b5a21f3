// Package testutil provides deterministic helpers for tests and the
// scenario harness.
package testutil

import (
	"sync"
	"time"
)

// Epoch is the fixed starting timestamp for deterministic clocks.
var Epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// Clock is a thread-safe deterministic time source. Each reading advances
// by a fixed step, so a test run always sees the same timestamp sequence.
//
// Now satisfies the clock function the log accepts, making commit
// timestamps reproducible for golden trace comparison.
type Clock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

// NewClock creates a clock starting at Epoch advancing 1ms per reading.
func NewClock() *Clock {
	return NewClockAt(Epoch, time.Millisecond)
}

// NewClockAt creates a clock with an explicit start and step.
func NewClockAt(start time.Time, step time.Duration) *Clock {
	return &Clock{now: start, step: step}
}

// Now returns the current reading and advances the clock by one step.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now
	c.now = c.now.Add(c.step)
	return t
}

// Peek returns the next reading without advancing.
func (c *Clock) Peek() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Reset rewinds the clock to its start. After Reset the next reading
// equals the first reading of a fresh clock.
func (c *Clock) Reset(start time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = start
}
