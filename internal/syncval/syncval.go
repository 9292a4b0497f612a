// Package syncval implements a typed value-condition cell: Update notifies
// waiters iff the value actually changed; Wait blocks until the cell's
// value equals the awaited one, returning immediately if it already does.
// Named syncval, not sync, to avoid shadowing the standard library package
// this module otherwise imports everywhere.
package syncval

import (
	"context"
	"sync"

	"github.com/xinyang-go/tos/internal/waitcond"
)

// Sync is a typed cell with "wait until value == v" semantics.
type Sync[T comparable] struct {
	mu      sync.Mutex
	cond    *waitcond.Cond
	current T
}

// New constructs a Sync cell with the given initial value.
func New[T comparable](initial T) *Sync[T] {
	s := &Sync[T]{current: initial}
	s.cond = waitcond.New(&s.mu)
	return s
}

// Update sets the cell to v, broadcasting to waiters only if the value
// actually changed (compared by !=).
func (s *Sync[T]) Update(v T) {
	s.mu.Lock()
	changed := v != s.current
	if changed {
		s.current = v
	}
	s.mu.Unlock()
	if changed {
		s.cond.Broadcast()
	}
}

// Get returns the current value.
func (s *Sync[T]) Get() T {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Wait blocks until the cell's value equals v, returning immediately if it
// already does (not edge-triggered: a waiter already inside Wait when
// Update(v) runs wakes; one that arrives after v is already set returns
// right away). Returns ctx.Err() if ctx is done first.
func (s *Sync[T]) Wait(ctx context.Context, v T) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for s.current != v {
		if err := s.cond.Wait(ctx); err != nil {
			return err
		}
	}
	return nil
}
