// Package clock implements the Lamport logical clock shared by every
// component in the federation.
package clock

import "sync"

// Logical is a mutex-guarded Lamport clock. The zero value starts at 0.
type Logical struct {
	mu  sync.Mutex
	val uint64
}

// Next advances the clock for an outbound event (local+1) and returns the
// stamped value.
func (c *Logical) Next() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.val++
	return c.val
}

// Observe folds a remote clock value into the local one: local <-
// max(local, remote)+1. Used on every inbound frame before it is handled.
func (c *Logical) Observe(remote uint64) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if remote > c.val {
		c.val = remote
	}
	c.val++
	return c.val
}

// Value returns the current clock without advancing it.
func (c *Logical) Value() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.val
}
