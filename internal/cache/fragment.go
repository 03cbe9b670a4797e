package cache

import (
	language "github.com/hanpama/graphcache/internal/language"
	store "github.com/hanpama/graphcache/internal/store"
)

// fragmentFor picks the named fragment definition, or the only one when
// name is empty.
func fragmentFor(doc *language.QueryDocument, name string) *language.FragmentDefinition {
	if name == "" && len(doc.Fragments) == 1 {
		return doc.Fragments[0]
	}
	return doc.Fragments.ForName(name)
}

// ReadFragment materializes a fragment's selection directly against one
// entity record, without going through a root query. Reading a key with no
// record returns ErrNoRecord.
func (c *Cache) ReadFragment(key store.EntityKey, doc *language.QueryDocument, fragmentName string, variables map[string]any) (ReadResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	frag := fragmentFor(doc, fragmentName)
	if frag == nil {
		return ReadResult{}, ErrNoFragment
	}
	if _, ok := c.store.Get(key); !ok {
		return ReadResult{}, ErrNoRecord
	}

	rs := &readState{cache: c, doc: doc, vars: variables, deps: make(map[store.EntityKey]struct{})}
	data := rs.readEntity(key, frag.TypeCondition, frag.SelectionSet, Path{})
	return ReadResult{
		Data:         data,
		Complete:     len(rs.missing) == 0,
		Missing:      rs.missing,
		Dependencies: rs.deps,
	}, nil
}

// WriteFragment is the local-patch entry point: it writes data shaped like
// the fragment's selection directly into key's record, bypassing identity
// resolution for the top object. Nested objects normalize as usual. The
// change is published like any network write, so watches depending on the
// key revalidate.
func (c *Cache) WriteFragment(key store.EntityKey, doc *language.QueryDocument, fragmentName string, variables map[string]any, data map[string]any) (map[store.EntityKey]struct{}, error) {
	defer c.firePending()
	c.mu.Lock()
	defer c.mu.Unlock()

	frag := fragmentFor(doc, fragmentName)
	if frag == nil {
		return nil, ErrNoFragment
	}

	ws := c.newWriteState(doc, variables)
	patch, werr := ws.objectPatch(frag.SelectionSet, data, frag.TypeCondition, Path{})
	if werr == nil {
		werr = ws.apply(key, patch)
	} else {
		ws.discard()
	}
	changed, ferr := ws.flush()
	if werr == nil {
		werr = ferr
	}
	c.store.Publish(changed)
	return changed, werr
}

// ReadField returns the stored value at one field storage key. The bool
// reports whether the record holds the field.
func (c *Cache) ReadField(key store.EntityKey, field string, args map[string]any) (store.Value, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	rec, ok := c.store.Get(key)
	if !ok {
		return store.Value{}, false
	}
	v, ok := rec[store.FieldKey(field, args)]
	return v, ok
}

// WriteField writes one field of one record directly, bypassing any
// document walk. Callers appending to list fields should read-merge-write
// through ReadField/WriteField; lists are whole-field replacements and two
// concurrent appenders race destructively otherwise.
func (c *Cache) WriteField(key store.EntityKey, field string, args map[string]any, value store.Value) (map[store.EntityKey]struct{}, error) {
	defer c.firePending()
	c.mu.Lock()
	defer c.mu.Unlock()

	patch := []store.FieldPatch{{Field: store.FieldKey(field, args), Value: value}}
	changed, err := c.store.Merge(key, patch)
	if changed {
		set := map[store.EntityKey]struct{}{key: {}}
		c.store.Publish(set)
		return set, err
	}
	return nil, err
}
