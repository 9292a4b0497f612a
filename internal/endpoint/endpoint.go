// Package endpoint implements the typed request/response queue: clients
// push a payload and receive a one-shot Future; servers pop
// (payload, Responder) pairs and complete them. Overwrite-on-full evicts
// the oldest pending request, resolving its Future to ErrRequestLost
// instead of silently dropping it.
package endpoint

import (
	"context"
	"errors"
	"sync"

	"github.com/xinyang-go/tos/internal/buffer"
	"github.com/xinyang-go/tos/internal/metrics"
	"github.com/xinyang-go/tos/internal/waitcond"
)

var ErrNotAttached = errors.New("endpoint: handle not attached")

// ErrWouldBlock is returned by Push (not PushCtx) on a full buffer under
// the Block OverwritePolicy: Push never blocks, so it reports the
// condition instead.
var ErrWouldBlock = errors.New("endpoint: would block")

// OverwritePolicy selects what Client.Push does when the buffer is full.
// DropOldest evicts the oldest pending request and resolves its Future to
// ErrRequestLost; Block is the backpressure variant — PushCtx waits for
// room instead of evicting, bounded by the caller's context.
type OverwritePolicy int

const (
	DropOldest OverwritePolicy = iota
	Block
)

type pending[S, B any] struct {
	payload   S
	responder *Responder[B]
}

// Endpoint is a named, bounded, typed request/response queue.
type Endpoint[S, B any] struct {
	mu     sync.Mutex
	cond   *waitcond.Cond
	policy OverwritePolicy

	name string // registry name, for the tos_endpoint_drops_total label; see SetName
	buf  buffer.Buffer[pending[S, B]]

	clientCount int
	serverCount int
}

// New constructs an Endpoint with a FIFO queue of capacity n. Request
// queues are FIFO for fairness among pending calls, so there is no
// container parameter. policy is optional and defaults to DropOldest.
func New[S, B any](n int, policy ...OverwritePolicy) *Endpoint[S, B] {
	e := &Endpoint[S, B]{buf: buffer.NewFifo[pending[S, B]](n)}
	if len(policy) > 0 {
		e.policy = policy[0]
	}
	e.cond = waitcond.New(&e.mu)
	return e
}

// SetName records the registry name this endpoint was opened under, for the
// tos_endpoint_drops_total metric label (Node's factory methods call this
// every time they open the endpoint, whatever the OpenMode).
func (e *Endpoint[S, B]) SetName(name string) {
	e.mu.Lock()
	e.name = name
	e.mu.Unlock()
}

func (e *Endpoint[S, B]) ClientCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.clientCount
}

func (e *Endpoint[S, B]) ServerCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.serverCount
}

// Client is the push side of an Endpoint.
type Client[S, B any] struct {
	ep       *Endpoint[S, B]
	attached bool
}

// NewClient attaches a new client, incrementing the client count.
func (e *Endpoint[S, B]) NewClient() *Client[S, B] {
	e.mu.Lock()
	e.clientCount++
	e.mu.Unlock()
	return &Client[S, B]{ep: e, attached: true}
}

// Push enqueues s and returns a Future for the eventual response. Under
// the default DropOldest policy, a full buffer evicts the oldest pending
// request and resolves its Future to ErrRequestLost before s is enqueued.
// Under Block, a full buffer instead returns ErrWouldBlock without
// enqueuing — use PushCtx to wait for room.
func (c *Client[S, B]) Push(s S) (*Future[B], error) {
	if !c.attached {
		return nil, ErrNotAttached
	}
	e := c.ep
	e.mu.Lock()
	if e.policy == Block && e.buf.Full() {
		e.mu.Unlock()
		return nil, ErrWouldBlock
	}
	responder, future := newPair[B]()
	e.pushLocked(s, responder)
	e.mu.Unlock()
	return future, nil
}

// PushCtx is Push's blocking-capable counterpart. Under DropOldest it
// behaves exactly like Push; under Block it waits for room in the buffer
// before enqueuing, bounded by ctx.
func (c *Client[S, B]) PushCtx(ctx context.Context, s S) (*Future[B], error) {
	if !c.attached {
		return nil, ErrNotAttached
	}
	e := c.ep
	e.mu.Lock()
	defer e.mu.Unlock()
	for e.policy == Block && e.buf.Full() {
		if err := e.cond.Wait(ctx); err != nil {
			return nil, err
		}
	}
	responder, future := newPair[B]()
	e.pushLocked(s, responder)
	return future, nil
}

// pushLocked evicts (and resolves to ErrRequestLost) the oldest pending
// request if the buffer is full, enqueues the new one, and wakes waiters.
// e.mu must be held.
func (e *Endpoint[S, B]) pushLocked(s S, responder *Responder[B]) {
	if e.buf.Full() {
		victim, _ := e.buf.Pop()
		victim.responder.Close()
		metrics.EndpointDropsTotal.WithLabelValues(e.name).Inc()
	}
	_ = e.buf.Push(pending[S, B]{payload: s, responder: responder})
	e.cond.Broadcast()
}

// Detach decrements the client count. Idempotent.
func (c *Client[S, B]) Detach() {
	if !c.attached {
		return
	}
	c.attached = false
	e := c.ep
	e.mu.Lock()
	e.clientCount--
	e.mu.Unlock()
}

// Server is the pop side of an Endpoint.
type Server[S, B any] struct {
	ep       *Endpoint[S, B]
	attached bool
}

// NewServer attaches a new server, incrementing the server count.
func (e *Endpoint[S, B]) NewServer() *Server[S, B] {
	e.mu.Lock()
	e.serverCount++
	e.mu.Unlock()
	return &Server[S, B]{ep: e, attached: true}
}

// Pop waits for a pending request or for ctx to be done. Unlike Channel's
// Subscriber.Pop, it does not exit early when the client count reaches
// zero — servers idle silently if nobody is asking. On ctx expiry it
// returns ok=false with no error; the caller should treat that as a
// timeout and loop to re-check Node.Running.
func (s *Server[S, B]) Pop(ctx context.Context) (S, *Responder[B], bool, error) {
	var zeroS S
	if !s.attached {
		return zeroS, nil, false, ErrNotAttached
	}
	e := s.ep
	e.mu.Lock()
	defer e.mu.Unlock()

	for {
		if !e.buf.Empty() {
			p, _ := e.buf.Pop()
			if e.policy == Block {
				// wake any client parked in PushCtx waiting for room
				e.cond.Broadcast()
			}
			return p.payload, p.responder, true, nil
		}
		if err := e.cond.Wait(ctx); err != nil {
			return zeroS, nil, false, nil
		}
	}
}

// Detach decrements the server count. Idempotent.
func (s *Server[S, B]) Detach() {
	if !s.attached {
		return
	}
	s.attached = false
	e := s.ep
	e.mu.Lock()
	e.serverCount--
	e.mu.Unlock()
}
