package testutil

import "sync"

// FrozenClock is a thread-safe wall-clock source for tests. It hands out a
// fixed millisecond timestamp, optionally ticking forward a constant step
// per call so that recorded timestamps stay distinct but reproducible.
//
// Ledger timestamps are informational and never hashed, so a frozen clock
// only affects display output, not chain identity.
type FrozenClock struct {
	mu   sync.Mutex
	now  int64
	step int64
}

// NewFrozenClock creates a clock pinned at the given unix-millisecond
// instant.
func NewFrozenClock(at int64) *FrozenClock {
	return &FrozenClock{now: at}
}

// NewTickingClock creates a clock starting at the given instant that moves
// forward by step milliseconds on every call.
func NewTickingClock(at, step int64) *FrozenClock {
	return &FrozenClock{now: at, step: step}
}

// Now returns the current instant and advances by the configured step.
func (c *FrozenClock) Now() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now
	c.now += c.step
	return now
}

// Set repins the clock. The next Now() returns at.
func (c *FrozenClock) Set(at int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = at
}
