// Package waitcond provides a context-cancellable condition variable.
// sync.Cond has no way to wake on context cancellation or deadline, which
// every blocking wait in this module needs so node loops can re-check
// their running flag between waits. Broadcast closes and replaces a
// generation channel that every waiter selects against alongside
// ctx.Done().
package waitcond

import (
	"context"
	"sync"
)

// Cond is a broadcast-only condition variable bound to an external mutex,
// the same shape as sync.Cond but context-aware. The zero value is not
// usable; construct with New.
type Cond struct {
	mu *sync.Mutex

	genMu sync.Mutex
	gen   chan struct{}
}

// New returns a Cond whose Wait releases and reacquires mu.
func New(mu *sync.Mutex) *Cond {
	return &Cond{mu: mu, gen: make(chan struct{})}
}

// Broadcast wakes every goroutine currently blocked in Wait. Callers
// normally hold the associated mutex, matching sync.Cond's convention,
// though it is not required.
func (c *Cond) Broadcast() {
	c.genMu.Lock()
	close(c.gen)
	c.gen = make(chan struct{})
	c.genMu.Unlock()
}

// Wait releases the associated mutex, blocks until the next Broadcast or
// until ctx is done, then reacquires the mutex before returning. Callers
// must re-check their predicate in a loop, exactly as with sync.Cond.Wait:
// a Broadcast wakes every waiter regardless of whether the condition they
// care about holds.
func (c *Cond) Wait(ctx context.Context) error {
	c.genMu.Lock()
	gen := c.gen
	c.genMu.Unlock()

	c.mu.Unlock()
	defer c.mu.Lock()

	select {
	case <-gen:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
