// Package cache implements the normalized query cache engine: writing
// nested responses into the flat record store, re-reading query shapes out
// of it, and notifying watches whose dependencies changed.
//
// The engine is synchronous. Every public method serializes on one mutex,
// so a reader never observes a half-merged record and writes apply in the
// order they arrive. Watch callbacks fire after the mutex is released;
// re-entering the cache from a callback is allowed.
package cache

import (
	"sync"

	"github.com/google/uuid"

	store "github.com/hanpama/graphcache/internal/store"
)

type Options struct {
	// TypePolicies declares identifying fields per type. Types without a
	// policy fall back to the "id" convention; see store.Identifier.
	TypePolicies map[string]store.Policy

	// AtomicWrites requests all-or-nothing write semantics: a structural
	// conflict or identity failure anywhere in a response leaves the store
	// untouched. The default commits the fields resolved before the
	// failure.
	AtomicWrites bool
}

type Option func(*Options)

// WithTypePolicy declares the identifying fields for one type. An object
// of a declared type that lacks any of its key fields fails the write.
func WithTypePolicy(typeName string, keyFields ...string) Option {
	return func(o *Options) {
		if o.TypePolicies == nil {
			o.TypePolicies = map[string]store.Policy{}
		}
		o.TypePolicies[typeName] = store.Policy{KeyFields: keyFields}
	}
}

func WithAtomicWrites() Option { return func(o *Options) { o.AtomicWrites = true } }

// Cache owns the record store, the identity resolver and the watch
// registry. The store is the only shared mutable state; all mutation goes
// through the writer's field-wise merge and all observation through the
// reader.
type Cache struct {
	mu      sync.Mutex
	store   *store.Store
	ident   *store.Identifier
	watches map[uuid.UUID]*watchEntry
	pinned  map[store.EntityKey]struct{}
	atomic  bool

	// pending holds watch notifications accumulated while the mutex is
	// held; they are fired by the public entry point after unlocking.
	pending []func()
}

func New(opts ...Option) *Cache {
	var o Options
	for _, f := range opts {
		f(&o)
	}
	c := &Cache{
		store:   store.New(),
		ident:   store.NewIdentifier(o.TypePolicies),
		watches: make(map[uuid.UUID]*watchEntry),
		pinned:  make(map[store.EntityKey]struct{}),
		atomic:  o.AtomicWrites,
	}
	c.store.OnChange(c.revalidate)
	return c
}

// Len reports the number of entity records currently stored.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.Len()
}

// Snapshot deep-copies the record table.
func (c *Cache) Snapshot() map[store.EntityKey]store.EntityRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.Snapshot()
}

// firePending drains and invokes watch notifications accumulated during a
// mutation. Public entry points defer it before taking the mutex, so
// callbacks run strictly after the lock is released.
func (c *Cache) firePending() {
	c.mu.Lock()
	notes := c.pending
	c.pending = nil
	c.mu.Unlock()
	for _, fire := range notes {
		fire()
	}
}
