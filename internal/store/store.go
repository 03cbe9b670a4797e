// Package store holds the flat, identity-keyed record table at the core of
// the cache, together with the tagged value variant and the identity
// resolver that feed it.
//
// All mutation is field-wise: merging a patch overwrites exactly the fields
// it names and leaves the rest of the record untouched, so partial
// responses never erase previously known data. Exactly one record exists
// per entity key; merges never create duplicates.
package store

// FieldPatch is one field assignment inside a merge. Patches are ordered so
// that a structural conflict commits exactly the fields preceding it.
type FieldPatch struct {
	Field string
	Value Value
}

// Store is the normalized record table. It is not safe for concurrent use;
// the cache engine serializes access so readers never observe a
// half-merged record.
type Store struct {
	records  map[EntityKey]EntityRecord
	onChange func(changed map[EntityKey]struct{})
}

func New() *Store {
	return &Store{records: make(map[EntityKey]EntityRecord)}
}

// OnChange installs the change listener. Publish forwards each batch of
// changed keys to it. Only one listener is supported; the watch registry
// owns fan-out.
func (s *Store) OnChange(fn func(changed map[EntityKey]struct{})) {
	s.onChange = fn
}

// Get returns the record for key. The returned record is live store state;
// callers must not mutate it.
func (s *Store) Get(key EntityKey) (EntityRecord, bool) {
	r, ok := s.records[key]
	return r, ok
}

// Merge applies patch to key's record field by field, creating the record
// if needed. It reports whether any field actually differed from its
// previous value, by deep structural comparison.
//
// On a structural conflict the fields preceding the conflicting one remain
// committed and a *ConflictError is returned; changed still reflects them.
func (s *Store) Merge(key EntityKey, patch []FieldPatch) (changed bool, err error) {
	rec, ok := s.records[key]
	if !ok {
		rec = make(EntityRecord, len(patch))
		s.records[key] = rec
	}
	for _, p := range patch {
		old, exists := rec[p.Field]
		if exists && old.Kind != KindNull && p.Value.Kind != KindNull && old.Kind != p.Value.Kind {
			return changed, &ConflictError{Key: key, Field: p.Field, Have: old.Kind, Want: p.Value.Kind}
		}
		if exists && old.Equal(p.Value) {
			continue
		}
		rec[p.Field] = p.Value
		changed = true
	}
	return changed, nil
}

// Delete removes key's record. References pointing at the key become
// dangling, which readers report as missing data.
func (s *Store) Delete(key EntityKey) bool {
	if _, ok := s.records[key]; !ok {
		return false
	}
	delete(s.records, key)
	return true
}

// Publish delivers one batch of changed keys to the change listener. The
// writer calls it once per write call, not once per field, so a
// multi-field write triggers at most one revalidation per affected watch.
func (s *Store) Publish(changed map[EntityKey]struct{}) {
	if len(changed) == 0 || s.onChange == nil {
		return
	}
	s.onChange(changed)
}

// Keys lists every entity key currently in the store.
func (s *Store) Keys() []EntityKey {
	out := make([]EntityKey, 0, len(s.records))
	for k := range s.records {
		out = append(out, k)
	}
	return out
}

func (s *Store) Len() int { return len(s.records) }

// Snapshot deep-copies the record table. This is the natural persistence
// layout; watches are never part of it.
func (s *Store) Snapshot() map[EntityKey]EntityRecord {
	out := make(map[EntityKey]EntityRecord, len(s.records))
	for k, r := range s.records {
		out[k] = r.clone()
	}
	return out
}
