package cache

import (
	store "github.com/hanpama/graphcache/internal/store"
)

// Pin marks keys as GC roots, keeping their records (and everything they
// reference) alive without a live watch.
func (c *Cache) Pin(keys ...store.EntityKey) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		c.pinned[k] = struct{}{}
	}
}

// Unpin removes previously pinned keys.
func (c *Cache) Unpin(keys ...store.EntityKey) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.pinned, k)
	}
}

// Collect removes every entity record not reachable from a live watch's
// dependency set or a pinned key, and returns the removed keys. Reachable
// means: in the union of those sets, or referenced (transitively) by a
// record in it. The synthetic root records are never removed, but fields
// on them do not by themselves keep their targets alive; only watches and
// pins do.
//
// Collect runs only on demand, never implicitly inside a read or write.
func (c *Cache) Collect() []store.EntityKey {
	c.mu.Lock()
	defer c.mu.Unlock()

	reachable := map[store.EntityKey]struct{}{
		store.RootQuery:    {},
		store.RootMutation: {},
	}
	frontier := make([]store.EntityKey, 0, len(c.pinned))
	mark := func(k store.EntityKey) {
		if _, ok := reachable[k]; !ok {
			reachable[k] = struct{}{}
			frontier = append(frontier, k)
		}
	}
	for k := range c.pinned {
		mark(k)
	}
	for _, entry := range c.watches {
		for k := range entry.deps {
			mark(k)
		}
	}
	for len(frontier) > 0 {
		key := frontier[len(frontier)-1]
		frontier = frontier[:len(frontier)-1]
		rec, ok := c.store.Get(key)
		if !ok {
			continue
		}
		for _, v := range rec {
			markRefs(v, mark)
		}
	}

	var removed []store.EntityKey
	for _, key := range c.store.Keys() {
		if _, ok := reachable[key]; ok {
			continue
		}
		if c.store.Delete(key) {
			removed = append(removed, key)
		}
	}
	return removed
}

func markRefs(v store.Value, mark func(store.EntityKey)) {
	switch v.Kind {
	case store.KindRef:
		mark(v.Ref)
	case store.KindList:
		for _, item := range v.List {
			markRefs(item, mark)
		}
	case store.KindEmbedded:
		for _, item := range v.Embedded.Fields {
			markRefs(item, mark)
		}
	}
}
