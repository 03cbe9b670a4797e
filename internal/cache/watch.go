package cache

import (
	"reflect"

	"github.com/google/uuid"

	language "github.com/hanpama/graphcache/internal/language"
	store "github.com/hanpama/graphcache/internal/store"
)

// watchState tracks one watch through its revalidation cycle. With the
// engine serialized on one mutex the states collapse into straight-line
// code, but keeping them explicit makes the protocol checkable in tests.
type watchState uint8

const (
	watchIdle watchState = iota
	watchDirty
	watchRevalidating
	watchDisposed
)

type watchEntry struct {
	id       uuid.UUID
	doc      *language.QueryDocument
	opName   string
	vars     map[string]any
	onUpdate func(ReadResult)

	state    watchState
	deps     map[store.EntityKey]struct{}
	snapshot ReadResult
}

// Watch registers a live subscription for a query shape. The initial read
// runs immediately and its result is returned; onUpdate fires afterwards
// whenever a write changes an entity the last read depended on AND the new
// result differs structurally from the previous one. The returned function
// disposes the watch; after it returns no further notifications occur.
func (c *Cache) Watch(doc *language.QueryDocument, operationName string, variables map[string]any, onUpdate func(ReadResult)) (func(), ReadResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry := &watchEntry{
		id:       uuid.New(),
		doc:      doc,
		opName:   operationName,
		vars:     variables,
		onUpdate: onUpdate,
		state:    watchRevalidating,
	}
	res, err := c.read(doc, operationName, variables)
	if err != nil {
		return nil, ReadResult{}, err
	}
	entry.deps = res.Dependencies
	entry.snapshot = res
	entry.state = watchIdle
	c.watches[entry.id] = entry

	id := entry.id
	unsubscribe := func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if e, ok := c.watches[id]; ok {
			e.state = watchDisposed
			delete(c.watches, id)
		}
	}
	return unsubscribe, res, nil
}

// WatchCount reports the number of live watches.
func (c *Cache) WatchCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.watches)
}

// revalidate is the store's change listener: it receives one batch of
// changed keys per write call, marks every watch whose dependency set
// intersects the batch, re-reads those watches, and queues a callback for
// each whose result actually differs. Runs with the cache mutex held.
func (c *Cache) revalidate(changed map[store.EntityKey]struct{}) {
	for _, entry := range c.watches {
		if entry.state != watchIdle {
			continue
		}
		for key := range entry.deps {
			if _, ok := changed[key]; ok {
				entry.state = watchDirty
				break
			}
		}
	}

	for _, entry := range c.watches {
		if entry.state != watchDirty {
			continue
		}
		entry.state = watchRevalidating
		res, err := c.read(entry.doc, entry.opName, entry.vars)
		entry.state = watchIdle
		if err != nil {
			// Variable resolution succeeded at registration; a re-read
			// cannot newly fail. Skip rather than drop the watch.
			continue
		}
		entry.deps = res.Dependencies
		if resultEqual(entry.snapshot, res) {
			continue
		}
		entry.snapshot = res
		id, snapshot := entry.id, res
		// Deliver only if the watch is still registered when the batch
		// drains: an earlier callback in the same batch may have disposed
		// it, and a disposed watch receives nothing.
		c.pending = append(c.pending, func() {
			c.mu.Lock()
			e, ok := c.watches[id]
			c.mu.Unlock()
			if !ok || e.state == watchDisposed {
				return
			}
			e.onUpdate(snapshot)
		})
	}
}

// resultEqual compares two read results behaviorally: same data, same
// completeness.
func resultEqual(a, b ReadResult) bool {
	return a.Complete == b.Complete && reflect.DeepEqual(a.Data, b.Data)
}
