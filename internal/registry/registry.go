// Package registry implements the process-wide named-object service: a map
// of (ObjectKind, name) to a reference-counted, type-erased object,
// partitioned one mutex-guarded map per kind.
//
// The per-kind mutex is held across the full span of object construction
// and destruction so no goroutine ever observes a half-installed or
// half-torn-down name.
package registry

import (
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/xinyang-go/tos/internal/metrics"
	"github.com/xinyang-go/tos/internal/objkind"
)

// OpenMode dictates Registry behavior on a name lookup.
type OpenMode int

const (
	Find OpenMode = iota
	Create
	FindOrCreate
)

// entry is the type-erased, refcounted object installed in a shard. Only
// the Registry holding the shard mutex and handles constructed from it ever
// touch its fields directly.
type entry struct {
	value any
	typ   reflect.Type
	refs  int64
	// onZero runs once, with the shard mutex held, when refs reaches zero
	// and the entry is about to be evicted. Set only through SetOnRelease;
	// no channel, endpoint or sync object installs one, and nothing in this
	// package requires it, but Handle.Release plumbs it through for
	// callers that do.
	onZero func(value any)
}

type shard struct {
	mu      sync.Mutex
	entries map[string]*entry
}

// Registry is the process-wide named-object map, partitioned by ObjectKind.
type Registry struct {
	shards []*shard
}

// New returns an empty Registry with one independent shard per ObjectKind.
func New() *Registry {
	r := &Registry{shards: make([]*shard, len(objkind.All()))}
	for _, k := range objkind.All() {
		r.shards[k] = &shard{entries: make(map[string]*entry)}
	}
	return r
}

func (r *Registry) shardFor(kind objkind.Kind) (*shard, error) {
	if !objkind.Valid(kind) || int(kind) >= len(r.shards) {
		return nil, ErrInvalidKind
	}
	return r.shards[kind], nil
}

// Handle is a reference-counted reference to a registry entry, parameterized
// by the static type the holder expects. A zero-value Handle is empty.
type Handle[T any] struct {
	reg   *Registry
	kind  objkind.Kind
	name  string
	e     *entry
	valid bool
}

// Valid reports whether h points at a live entry.
func (h Handle[T]) Valid() bool { return h.valid }

// Name returns the entry's name, or "" for an empty handle.
func (h Handle[T]) Name() string { return h.name }

// Kind returns the entry's ObjectKind.
func (h Handle[T]) Kind() objkind.Kind { return h.kind }

// RefCount returns the entry's current refcount, or 0 for an empty handle.
// Advisory only: by the time the caller observes it, it may have changed.
func (h Handle[T]) RefCount() int64 {
	if !h.valid {
		return 0
	}
	return atomic.LoadInt64(&h.e.refs)
}

// Get dereferences the handle, returning ErrEmptyHandle if it is empty.
func (h Handle[T]) Get() (T, error) {
	var zero T
	if !h.valid {
		return zero, ErrEmptyHandle
	}
	v, ok := h.e.value.(T)
	if !ok {
		return zero, ErrTypeMismatch
	}
	return v, nil
}

// MustGet dereferences the handle, panicking on an empty handle or a type
// mismatch. Reserved for call sites that have already checked Valid().
func (h Handle[T]) MustGet() T {
	v, err := h.Get()
	if err != nil {
		panic(fmt.Sprintf("registry: MustGet on %v: %v", h, err))
	}
	return v
}

// clone increments the refcount and returns an independent handle to the
// same entry. The shard mutex must be held by the caller.
func (h Handle[T]) clone() Handle[T] {
	atomic.AddInt64(&h.e.refs, 1)
	return h
}

// Clone returns a second handle to the same entry, incrementing its
// refcount. Safe to call concurrently with other handle operations.
func (h Handle[T]) Clone() Handle[T] {
	if !h.valid {
		return h
	}
	sh := mustShard(h.reg, h.kind)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	return h.clone()
}

// Release decrements the refcount, evicting and destroying the entry from
// its shard when it reaches zero. Calling Release on an empty handle is a
// no-op. The returned Handle is always empty, so callers can write
// `h = h.Release()`; Handle is a value, so Release does not empty h itself,
// and calling Release twice on the same copy decrements the refcount twice.
func (h Handle[T]) Release() Handle[T] {
	if !h.valid {
		return Handle[T]{}
	}
	sh := mustShard(h.reg, h.kind)
	sh.mu.Lock()
	remaining := atomic.AddInt64(&h.e.refs, -1)
	if remaining == 0 {
		delete(sh.entries, h.name)
		if h.e.onZero != nil {
			h.e.onZero(h.e.value)
		}
		metrics.ObjectsActive.WithLabelValues(h.kind.String()).Dec()
	}
	sh.mu.Unlock()
	return Handle[T]{}
}

func mustShard(r *Registry, kind objkind.Kind) *shard {
	sh, err := r.shardFor(kind)
	if err != nil {
		panic(err)
	}
	return sh
}

// FindTyped looks up (kind, name), returning an empty handle and
// ErrNotFound if absent, or ErrTypeMismatch if present under a different
// Go type than T.
func FindTyped[T any](r *Registry, kind objkind.Kind, name string) (Handle[T], error) {
	sh, err := r.shardFor(kind)
	if err != nil {
		return Handle[T]{}, err
	}
	sh.mu.Lock()
	defer sh.mu.Unlock()

	e, ok := sh.entries[name]
	if !ok {
		return Handle[T]{}, ErrNotFound
	}
	if e.typ != typeOf[T]() {
		return Handle[T]{}, ErrTypeMismatch
	}
	atomic.AddInt64(&e.refs, 1)
	return Handle[T]{reg: r, kind: kind, name: name, e: e, valid: true}, nil
}

// CreateTyped constructs a new object via ctor and installs it at
// (kind, name), returning ErrAlreadyExists if the name is already taken.
// ctor runs with the shard mutex held, so no other goroutine can observe a
// half-installed name.
func CreateTyped[T any](r *Registry, kind objkind.Kind, name string, ctor func() (T, error)) (Handle[T], error) {
	sh, err := r.shardFor(kind)
	if err != nil {
		return Handle[T]{}, err
	}
	sh.mu.Lock()
	defer sh.mu.Unlock()

	if _, ok := sh.entries[name]; ok {
		return Handle[T]{}, ErrAlreadyExists
	}
	v, err := ctor()
	if err != nil {
		return Handle[T]{}, err
	}
	e := &entry{value: v, typ: typeOf[T](), refs: 1}
	sh.entries[name] = e
	metrics.ObjectsActive.WithLabelValues(kind.String()).Inc()
	return Handle[T]{reg: r, kind: kind, name: name, e: e, valid: true}, nil
}

// FindOrCreateTyped returns the existing entry's handle if (kind, name) is
// present, else behaves like CreateTyped. ctor is never invoked on the hit
// path; callers must not rely on it running when an entry already exists.
func FindOrCreateTyped[T any](r *Registry, kind objkind.Kind, name string, ctor func() (T, error)) (Handle[T], error) {
	sh, err := r.shardFor(kind)
	if err != nil {
		return Handle[T]{}, err
	}
	sh.mu.Lock()
	defer sh.mu.Unlock()

	if e, ok := sh.entries[name]; ok {
		if e.typ != typeOf[T]() {
			return Handle[T]{}, ErrTypeMismatch
		}
		atomic.AddInt64(&e.refs, 1)
		return Handle[T]{reg: r, kind: kind, name: name, e: e, valid: true}, nil
	}
	v, err := ctor()
	if err != nil {
		return Handle[T]{}, err
	}
	e := &entry{value: v, typ: typeOf[T](), refs: 1}
	sh.entries[name] = e
	metrics.ObjectsActive.WithLabelValues(kind.String()).Inc()
	return Handle[T]{reg: r, kind: kind, name: name, e: e, valid: true}, nil
}

// ListTyped returns a live handle (refcount incremented) to every entry of
// kind, for callers that need to act on the objects themselves rather than
// just their names — the shell's `stop <glob>` and `logger <glob>` sweeps
// over Node/Logger entries. Callers must Release each handle once done.
// Entries under a different Go type than T are skipped rather than erroring:
// a mixed-type kind (UserObject) is expected, and a type-safe sweep should
// simply not touch entries it can't type-assert.
func ListTyped[T any](r *Registry, kind objkind.Kind) ([]Handle[T], error) {
	sh, err := r.shardFor(kind)
	if err != nil {
		return nil, err
	}
	sh.mu.Lock()
	defer sh.mu.Unlock()

	out := make([]Handle[T], 0, len(sh.entries))
	for name, e := range sh.entries {
		if e.typ != typeOf[T]() {
			continue
		}
		atomic.AddInt64(&e.refs, 1)
		out = append(out, Handle[T]{reg: r, kind: kind, name: name, e: e, valid: true})
	}
	return out, nil
}

// SetOnRelease attaches a cleanup callback invoked (once, under the shard
// mutex) when the entry's refcount reaches zero. Must be called before any
// other handle to the same entry is released; typically called once,
// immediately after CreateTyped succeeds.
func SetOnRelease[T any](h Handle[T], fn func(T)) {
	if !h.valid {
		return
	}
	h.e.onZero = func(v any) { fn(v.(T)) }
}

// List returns (name, refcount) pairs for every live entry in kind, for the
// shell's `list -o` introspection. Order is unspecified.
func (r *Registry) List(kind objkind.Kind) ([]Entry, error) {
	sh, err := r.shardFor(kind)
	if err != nil {
		return nil, err
	}
	sh.mu.Lock()
	defer sh.mu.Unlock()

	out := make([]Entry, 0, len(sh.entries))
	for name, e := range sh.entries {
		out = append(out, Entry{Kind: kind, Name: name, RefCount: atomic.LoadInt64(&e.refs)})
	}
	return out, nil
}

// Entry is a snapshot of one live registry object, for introspection.
type Entry struct {
	Kind     objkind.Kind
	Name     string
	RefCount int64
}

func typeOf[T any]() reflect.Type {
	var zero T
	return reflect.TypeOf(&zero).Elem()
}
