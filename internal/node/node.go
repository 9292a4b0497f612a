// Package node implements per-task identity and the factory helpers that
// open Registry objects on a task's behalf. Goroutines have no addressable
// per-thread storage, so "the current node" travels as a context.Context
// value, threaded from the runner down through the entry function — and
// the same context carries the cancellation/deadline every blocking
// primitive takes.
package node

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/xinyang-go/tos/internal/channel"
	"github.com/xinyang-go/tos/internal/endpoint"
	"github.com/xinyang-go/tos/internal/logger"
	"github.com/xinyang-go/tos/internal/objkind"
	"github.com/xinyang-go/tos/internal/registry"
	"github.com/xinyang-go/tos/internal/syncval"
)

// Node is a logical task identity: a unique name and a cooperative running
// flag any other task may clear via the shell's stop command.
type Node struct {
	name    string
	running atomic.Bool
	reg     *registry.Registry
}

var nextID atomic.Uint64

// CreateNode registers a new Node named "<name>-<id>" in the Node kind and
// returns a handle to it. id is a process-wide monotonic counter, so node
// names are unique by construction.
func CreateNode(reg *registry.Registry, name string) (registry.Handle[*Node], error) {
	id := nextID.Add(1)
	fullName := fmt.Sprintf("%s-%d", name, id)
	return registry.CreateTyped[*Node](reg, objkind.Node, fullName, func() (*Node, error) {
		n := &Node{name: fullName, reg: reg}
		n.running.Store(true)
		return n, nil
	})
}

// Name returns the node's unique "<entry>-<id>" name.
func (n *Node) Name() string { return n.name }

// Running reports whether the node has not yet been asked to stop.
func (n *Node) Running() bool { return n.running.Load() }

// Stop clears the running flag. Idempotent; safe to call from any
// goroutine (typically the shell's `stop` command).
func (n *Node) Stop() { n.running.Store(false) }

type ctxKey struct{}

// NewContext returns a context carrying n as the current node.
func NewContext(ctx context.Context, n *Node) context.Context {
	return context.WithValue(ctx, ctxKey{}, n)
}

// FromContext returns the Node bound to ctx, and false if none is bound.
func FromContext(ctx context.Context) (*Node, bool) {
	n, ok := ctx.Value(ctxKey{}).(*Node)
	return n, ok
}

// MakeObject opens a UserObject-kind entry under the given OpenMode, for
// anything not already covered by a dedicated factory method below.
func MakeObject[T any](n *Node, mode registry.OpenMode, name string, ctor func() (T, error)) (registry.Handle[T], error) {
	switch mode {
	case registry.Find:
		return registry.FindTyped[T](n.reg, objkind.UserObject, name)
	case registry.Create:
		return registry.CreateTyped[T](n.reg, objkind.UserObject, name, ctor)
	default:
		return registry.FindOrCreateTyped[T](n.reg, objkind.UserObject, name, ctor)
	}
}

// channelCtor builds the Create/FindOrCreate constructor for a Message-kind
// entry: a *channel.Channel[T] of the given shape.
func channelCtor[T any](n int, container channel.Container, mode channel.Mode) func() (*channel.Channel[T], error) {
	return func() (*channel.Channel[T], error) {
		return channel.New[T](n, container, mode), nil
	}
}

// MakePublisher opens (per openMode) the Message-kind channel named name
// with the given shape, and returns an attached Publisher handle plus the
// channel Registry handle (the caller must hold the latter for the
// Publisher's lifetime — releasing it detaches nothing by itself, but lets
// the entry be destroyed once every handle, including this one, drops).
func MakePublisher[T any](n *Node, openMode registry.OpenMode, name string, capacity int, container channel.Container, mode channel.Mode) (registry.Handle[*channel.Channel[T]], *channel.Publisher[T], error) {
	h, err := openChannel[T](n, openMode, name, capacity, container, mode)
	if err != nil {
		return registry.Handle[*channel.Channel[T]]{}, nil, err
	}
	ch, _ := h.Get()
	ch.SetName(name)
	return h, ch.NewPublisher(), nil
}

// MakeSubscriber is the Subscriber analogue of MakePublisher.
func MakeSubscriber[T any](n *Node, openMode registry.OpenMode, name string, capacity int, container channel.Container, mode channel.Mode) (registry.Handle[*channel.Channel[T]], *channel.Subscriber[T], error) {
	h, err := openChannel[T](n, openMode, name, capacity, container, mode)
	if err != nil {
		return registry.Handle[*channel.Channel[T]]{}, nil, err
	}
	ch, _ := h.Get()
	ch.SetName(name)
	return h, ch.NewSubscriber(), nil
}

func openChannel[T any](n *Node, openMode registry.OpenMode, name string, capacity int, container channel.Container, mode channel.Mode) (registry.Handle[*channel.Channel[T]], error) {
	ctor := channelCtor[T](capacity, container, mode)
	switch openMode {
	case registry.Find:
		return registry.FindTyped[*channel.Channel[T]](n.reg, objkind.Message, name)
	case registry.Create:
		return registry.CreateTyped[*channel.Channel[T]](n.reg, objkind.Message, name, ctor)
	default:
		return registry.FindOrCreateTyped[*channel.Channel[T]](n.reg, objkind.Message, name, ctor)
	}
}

func endpointCtor[S, B any](n int) func() (*endpoint.Endpoint[S, B], error) {
	return func() (*endpoint.Endpoint[S, B], error) {
		return endpoint.New[S, B](n), nil
	}
}

func openEndpoint[S, B any](n *Node, openMode registry.OpenMode, name string, capacity int) (registry.Handle[*endpoint.Endpoint[S, B]], error) {
	ctor := endpointCtor[S, B](capacity)
	switch openMode {
	case registry.Find:
		return registry.FindTyped[*endpoint.Endpoint[S, B]](n.reg, objkind.Request, name)
	case registry.Create:
		return registry.CreateTyped[*endpoint.Endpoint[S, B]](n.reg, objkind.Request, name, ctor)
	default:
		return registry.FindOrCreateTyped[*endpoint.Endpoint[S, B]](n.reg, objkind.Request, name, ctor)
	}
}

// MakeClient opens the Request-kind endpoint named name and returns an
// attached Client handle.
func MakeClient[S, B any](n *Node, openMode registry.OpenMode, name string, capacity int) (registry.Handle[*endpoint.Endpoint[S, B]], *endpoint.Client[S, B], error) {
	h, err := openEndpoint[S, B](n, openMode, name, capacity)
	if err != nil {
		return registry.Handle[*endpoint.Endpoint[S, B]]{}, nil, err
	}
	ep, _ := h.Get()
	ep.SetName(name)
	return h, ep.NewClient(), nil
}

// MakeServer is the Server analogue of MakeClient.
func MakeServer[S, B any](n *Node, openMode registry.OpenMode, name string, capacity int) (registry.Handle[*endpoint.Endpoint[S, B]], *endpoint.Server[S, B], error) {
	h, err := openEndpoint[S, B](n, openMode, name, capacity)
	if err != nil {
		return registry.Handle[*endpoint.Endpoint[S, B]]{}, nil, err
	}
	ep, _ := h.Get()
	ep.SetName(name)
	return h, ep.NewServer(), nil
}

// MakeLogger returns this node's Logger, creating it on first call
// (FindOrCreate keyed by the node's own name) and returning the same
// instance on every subsequent call, so a node shares one logger across
// all call sites.
func MakeLogger(n *Node, format logger.Format) (registry.Handle[*logger.Logger], error) {
	ctor := func() (*logger.Logger, error) { return logger.New(n.name, format), nil }
	return registry.FindOrCreateTyped[*logger.Logger](n.reg, objkind.Logger, n.name, ctor)
}

// MakeSync opens (or creates, with the given initial value) the Sync cell
// named name. Sync cells live in the UserObject kind; there is no separate
// Sync kind.
func MakeSync[T comparable](n *Node, openMode registry.OpenMode, name string, initial T) (registry.Handle[*syncval.Sync[T]], error) {
	ctor := func() (*syncval.Sync[T], error) { return syncval.New(initial), nil }
	switch openMode {
	case registry.Find:
		return registry.FindTyped[*syncval.Sync[T]](n.reg, objkind.UserObject, name)
	case registry.Create:
		return registry.CreateTyped[*syncval.Sync[T]](n.reg, objkind.UserObject, name, ctor)
	default:
		return registry.FindOrCreateTyped[*syncval.Sync[T]](n.reg, objkind.UserObject, name, ctor)
	}
}
