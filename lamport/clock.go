// Package lamport implements a process-local Lamport logical clock.
//
// Each ring participant owns exactly one Clock and never shares it; the only
// cross-node interaction is the timestamp carried inside a message envelope,
// merged by value on receipt. The mutex exists because observers (the TUI,
// tests) may read the clock while the node loop advances it.
package lamport

import "sync"

// Clock maintains a thread-safe Lamport logical clock.
type Clock struct {
	mu    sync.Mutex
	value int64
}

// NewClock constructs a clock initialized to zero.
func NewClock() *Clock {
	return &Clock{}
}

// Tick increments the clock for a local send event and returns the new value.
func (c *Clock) Tick() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value++
	return c.value
}

// Observe merges a remote timestamp and increments the clock, preserving the
// happened-before order: the result is max(local, remote) + 1. It must run
// before the received payload is interpreted.
func (c *Clock) Observe(remote int64) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if remote > c.value {
		c.value = remote
	}
	c.value++
	return c.value
}

// Now returns the current logical time without advancing it.
func (c *Clock) Now() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value
}
