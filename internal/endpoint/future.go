package endpoint

import (
	"context"
	"errors"
	"sync"
)

// ErrRequestLost is the broken-promise outcome: a client's Future resolves
// to this when its pending request was evicted from the Endpoint buffer
// before a Server could complete it. Recoverable by retry.
var ErrRequestLost = errors.New("endpoint: request lost")

type result[B any] struct {
	val B
	err error
}

// Responder is the one-shot write side of a request's response. Set
// completes it with a value; Close (called by the Endpoint when
// overwrite-on-full evicts this request) completes it with ErrRequestLost.
// Exactly one of the two ever takes effect.
type Responder[B any] struct {
	mu   sync.Mutex
	done bool
	ch   chan result[B]
}

// Set completes the response with b. A no-op if the Responder was already
// resolved (by a prior Set or by eviction).
func (r *Responder[B]) Set(b B) {
	r.resolve(result[B]{val: b})
}

// Close resolves the response to ErrRequestLost if not already resolved.
// Called by Endpoint at the moment overwrite-on-full evicts the pending
// request this Responder belongs to.
func (r *Responder[B]) Close() {
	var zero B
	r.resolve(result[B]{val: zero, err: ErrRequestLost})
}

func (r *Responder[B]) resolve(res result[B]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.done {
		return
	}
	r.done = true
	r.ch <- res
	close(r.ch)
}

// Future is the one-shot read side of a request's response.
type Future[B any] struct {
	ch chan result[B]
}

// Get blocks until the Responder resolves or ctx is done. A resolved
// Responder yields either the server's value or ErrRequestLost; an expired
// ctx yields ctx.Err().
func (f *Future[B]) Get(ctx context.Context) (B, error) {
	select {
	case res := <-f.ch:
		return res.val, res.err
	case <-ctx.Done():
		var zero B
		return zero, ctx.Err()
	}
}

func newPair[B any]() (*Responder[B], *Future[B]) {
	ch := make(chan result[B], 1)
	return &Responder[B]{ch: ch}, &Future[B]{ch: ch}
}
