// Package channel implements the typed pub/sub bus: a Channel built on one
// or more bounded buffers, with overwrite-on-full push, blocking pop with
// timeout, and SingleConsumer/MultiConsumer distribution modes.
package channel

import (
	"context"
	"errors"
	"sync"

	"github.com/xinyang-go/tos/internal/buffer"
	"github.com/xinyang-go/tos/internal/metrics"
	"github.com/xinyang-go/tos/internal/waitcond"
)

// Mode selects how pushed elements are distributed to subscribers.
type Mode int

const (
	// SingleConsumer: one shared buffer; the first waiter to wake on a
	// push consumes it. With several attached subscribers, elements are
	// partitioned among them non-deterministically.
	SingleConsumer Mode = iota
	// MultiConsumer: one buffer per attached subscriber; every subscriber
	// sees every push made between its attach and detach.
	MultiConsumer
)

// Container selects the BoundedBuffer kind backing the channel.
type Container int

const (
	Fifo Container = iota
	Lifo
)

// Status is the outcome of a Subscriber.Pop.
type Status int

const (
	StatusOK Status = iota
	StatusTimeout
	// StatusNoProducers: the buffer was (and remains) empty and every
	// publisher has detached; nothing more will ever arrive.
	StatusNoProducers
)

// OverwritePolicy selects what a Publisher does when a targeted buffer is
// full. DropOldest keeps push non-blocking and infallible by evicting;
// Block is the backpressure variant: PushCtx waits for room instead of
// evicting, bounded by the caller's context.
type OverwritePolicy int

const (
	DropOldest OverwritePolicy = iota
	Block
)

var ErrNotAttached = errors.New("channel: handle not attached")

// ErrWouldBlock is returned by Push (not PushCtx) on a full buffer under
// the Block policy: Push never blocks, so it reports the condition instead.
var ErrWouldBlock = errors.New("channel: would block")

func newBuffer[T any](container Container, n int) buffer.Buffer[T] {
	switch container {
	case Lifo:
		return buffer.NewLifo[T](n)
	default:
		return buffer.NewFifo[T](n)
	}
}

// Channel is a named, bounded, typed message bus. Construct with New;
// obtain Publisher/Subscriber handles with NewPublisher/NewSubscriber.
type Channel[T any] struct {
	mu   sync.Mutex
	cond *waitcond.Cond

	name      string // registry name, for metrics labels only; see SetName
	capacity  int
	container Container
	mode      Mode
	policy    OverwritePolicy

	pubCount int
	subCount int

	single buffer.Buffer[T]           // SingleConsumer
	multi  map[uint64]buffer.Buffer[T] // MultiConsumer, keyed by subscriber id
	nextID uint64
}

// New constructs a Channel of element type T, capacity n, backed by the
// given container kind, in the given mode. policy is optional and defaults
// to DropOldest; pass Block to opt into backpressure.
func New[T any](n int, container Container, mode Mode, policy ...OverwritePolicy) *Channel[T] {
	c := &Channel[T]{capacity: n, container: container, mode: mode}
	if len(policy) > 0 {
		c.policy = policy[0]
	}
	c.cond = waitcond.New(&c.mu)
	if mode == SingleConsumer {
		c.single = newBuffer[T](container, n)
	} else {
		c.multi = make(map[uint64]buffer.Buffer[T])
	}
	return c
}

// SetName records the registry name this channel was opened under, for the
// tos_channel_buffer_depth/tos_channel_drops_total metric labels (Node's
// factory methods call this every time they open the channel, whatever the
// OpenMode). Never required for correctness; an unnamed Channel just
// reports under the empty label.
func (c *Channel[T]) SetName(name string) {
	c.mu.Lock()
	c.name = name
	c.mu.Unlock()
}

// PublisherCount returns the current publisher count. Advisory only: it
// may change before the caller acts on it.
func (c *Channel[T]) PublisherCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pubCount
}

// SubscriberCount returns the current subscriber count.
func (c *Channel[T]) SubscriberCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.subCount
}

// Publisher is the push side of a Channel.
type Publisher[T any] struct {
	ch       *Channel[T]
	attached bool
}

// NewPublisher attaches a new publisher, incrementing publisher_count.
func (c *Channel[T]) NewPublisher() *Publisher[T] {
	c.mu.Lock()
	c.pubCount++
	c.mu.Unlock()
	return &Publisher[T]{ch: c, attached: true}
}

// Push enqueues v, evicting the oldest (Fifo) or topmost (Lifo) element
// from every affected buffer if full. Never blocks, never fails except on
// a detached publisher or (under the additive Block OverwritePolicy) a
// full buffer, which returns ErrWouldBlock — use PushCtx to actually wait.
func (p *Publisher[T]) Push(v T) error {
	if !p.attached {
		return ErrNotAttached
	}
	c := p.ch
	c.mu.Lock()
	if c.policy == Block && c.anyFull() {
		c.mu.Unlock()
		return ErrWouldBlock
	}
	c.pushLocked(v)
	c.mu.Unlock()
	return nil
}

// PushCtx is Push's blocking-capable counterpart. Under the default
// DropOldest policy it behaves exactly like Push. Under Block it waits
// for room in every targeted buffer instead of evicting, bounded by ctx.
func (p *Publisher[T]) PushCtx(ctx context.Context, v T) error {
	if !p.attached {
		return ErrNotAttached
	}
	c := p.ch
	c.mu.Lock()
	defer c.mu.Unlock()
	for c.policy == Block && c.anyFull() {
		if err := c.cond.Wait(ctx); err != nil {
			return err
		}
	}
	c.pushLocked(v)
	return nil
}

// pushLocked enqueues v into every targeted buffer, evicting per
// OverwritePolicy DropOldest if full, and wakes waiters. c.mu must be held.
func (c *Channel[T]) pushLocked(v T) {
	if c.mode == SingleConsumer {
		if c.single.Full() {
			metrics.ChannelDropsTotal.WithLabelValues(c.name).Inc()
		}
		c.single.EvictPush(v)
		metrics.ChannelBufferDepth.WithLabelValues(c.name).Set(float64(c.single.Size()))
	} else {
		for _, buf := range c.multi {
			if buf.Full() {
				metrics.ChannelDropsTotal.WithLabelValues(c.name).Inc()
			}
			buf.EvictPush(v)
			metrics.ChannelBufferDepth.WithLabelValues(c.name).Set(float64(buf.Size()))
		}
	}
	// Broadcast even in SingleConsumer mode: there is no single-waiter
	// wake on a generation channel, so every waiter re-checks its
	// predicate and one wins the pop race.
	c.cond.Broadcast()
}

// anyFull reports whether at least one of the buffers a push would target
// is currently full. c.mu must be held.
func (c *Channel[T]) anyFull() bool {
	if c.mode == SingleConsumer {
		return c.single.Full()
	}
	for _, buf := range c.multi {
		if buf.Full() {
			return true
		}
	}
	return false
}

// Detach decrements the publisher count. If it reaches zero, every blocked
// subscriber is woken so none can hang waiting on a dead topic. Idempotent.
func (p *Publisher[T]) Detach() {
	if !p.attached {
		return
	}
	p.attached = false
	c := p.ch
	c.mu.Lock()
	c.pubCount--
	woken := c.pubCount == 0
	c.mu.Unlock()
	if woken {
		c.cond.Broadcast()
	}
}

// Subscriber is the pop side of a Channel.
type Subscriber[T any] struct {
	ch       *Channel[T]
	id       uint64 // valid only in MultiConsumer mode
	attached bool
}

// NewSubscriber attaches a new subscriber. In MultiConsumer mode this also
// allocates a fresh, empty per-subscriber buffer.
func (c *Channel[T]) NewSubscriber() *Subscriber[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subCount++
	s := &Subscriber[T]{ch: c, attached: true}
	if c.mode == MultiConsumer {
		s.id = c.nextID
		c.nextID++
		c.multi[s.id] = newBuffer[T](c.container, c.capacity)
	}
	return s
}

// Detach removes this subscriber. In MultiConsumer mode its buffer is
// destroyed. Idempotent.
func (s *Subscriber[T]) Detach() {
	if !s.attached {
		return
	}
	s.attached = false
	c := s.ch
	c.mu.Lock()
	if c.mode == MultiConsumer {
		delete(c.multi, s.id)
	}
	c.subCount--
	c.mu.Unlock()
}

// Pop waits for an element, for publisher_count to drop to zero, or for ctx
// to be done, whichever happens first. On ctx expiry it returns
// StatusTimeout. If woken with the buffer still empty and no publishers
// left, it returns StatusNoProducers. Otherwise it returns StatusOK with
// the popped element.
func (s *Subscriber[T]) Pop(ctx context.Context) (T, Status, error) {
	var zero T
	if !s.attached {
		return zero, StatusTimeout, ErrNotAttached
	}
	c := s.ch
	c.mu.Lock()
	defer c.mu.Unlock()

	for {
		buf := c.bufferFor(s)
		if !buf.Empty() {
			v, _ := buf.Pop()
			metrics.ChannelBufferDepth.WithLabelValues(c.name).Set(float64(buf.Size()))
			if c.policy == Block {
				// wake any publisher parked in PushCtx waiting for room
				c.cond.Broadcast()
			}
			return v, StatusOK, nil
		}
		if c.pubCount == 0 {
			return zero, StatusNoProducers, nil
		}
		if err := c.cond.Wait(ctx); err != nil {
			return zero, StatusTimeout, nil
		}
	}
}

func (c *Channel[T]) bufferFor(s *Subscriber[T]) buffer.Buffer[T] {
	if c.mode == SingleConsumer {
		return c.single
	}
	return c.multi[s.id]
}
