package cache

import (
	language "github.com/hanpama/graphcache/internal/language"
	store "github.com/hanpama/graphcache/internal/store"
)

// Write normalizes a raw response into the store, walking the document's
// selection set in lock-step with the response shape. Nested keyed objects
// become their own records referenced by key; unkeyed objects embed inline
// in their owner. It returns the set of entity keys whose records actually
// changed, by deep structural comparison.
//
// Fields absent from the response are left untouched (partial updates
// never erase known data). List-valued fields are replaced whole; see the
// store documentation for the last-writer-wins caveat on lists.
func (c *Cache) Write(doc *language.QueryDocument, operationName string, variables map[string]any, data map[string]any) (map[store.EntityKey]struct{}, error) {
	defer c.firePending()
	c.mu.Lock()
	defer c.mu.Unlock()

	operation := getOperation(doc, operationName)
	if operation == nil {
		return nil, ErrNoOperation
	}
	rootKey, rootType, err := rootFor(operation)
	if err != nil {
		return nil, err
	}
	vars, err := operationVariables(operation, variables)
	if err != nil {
		return nil, err
	}

	ws := c.newWriteState(doc, vars)
	patch, werr := ws.objectPatch(operation.SelectionSet, data, rootType, Path{})
	if werr == nil {
		werr = ws.apply(rootKey, patch)
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

type writeState struct {
	cache *Cache
	doc   *language.QueryDocument
	vars  map[string]any

	changed map[store.EntityKey]struct{}
	// staged holds merges for all-or-nothing writes; nil in streaming mode.
	staged []stagedMerge
}

type stagedMerge struct {
	key   store.EntityKey
	patch []store.FieldPatch
}

func (c *Cache) newWriteState(doc *language.QueryDocument, vars map[string]any) *writeState {
	ws := &writeState{cache: c, doc: doc, vars: vars, changed: make(map[store.EntityKey]struct{})}
	if c.atomic {
		ws.staged = []stagedMerge{}
	}
	return ws
}

// apply merges a patch into one record, either immediately or staged.
func (ws *writeState) apply(key store.EntityKey, patch []store.FieldPatch) error {
	if len(patch) == 0 {
		return nil
	}
	if ws.staged != nil {
		ws.staged = append(ws.staged, stagedMerge{key: key, patch: patch})
		return nil
	}
	changed, err := ws.cache.store.Merge(key, patch)
	if changed {
		ws.changed[key] = struct{}{}
	}
	return err
}

// discard drops staged merges after a failed document walk, so an
// all-or-nothing write that errors partway commits nothing. Streaming mode
// has already merged and keeps its partial-commit semantics.
func (ws *writeState) discard() {
	if ws.staged != nil {
		ws.staged = ws.staged[:0]
	}
}

// flush commits staged merges for all-or-nothing writes. Conflicts are
// checked against both the store and earlier staged fields before any
// merge happens, so a failed write leaves the store untouched.
func (ws *writeState) flush() (map[store.EntityKey]struct{}, error) {
	if ws.staged == nil {
		return ws.changed, nil
	}
	type slot struct {
		key   store.EntityKey
		field string
	}
	kinds := make(map[slot]store.Kind)
	for _, m := range ws.staged {
		for _, p := range m.patch {
			sl := slot{m.key, p.Field}
			have, ok := kinds[sl]
			if !ok {
				if rec, exists := ws.cache.store.Get(m.key); exists {
					if old, present := rec[p.Field]; present {
						have, ok = old.Kind, true
					}
				}
			}
			if ok && have != store.KindNull && p.Value.Kind != store.KindNull && have != p.Value.Kind {
				return nil, &store.ConflictError{Key: m.key, Field: p.Field, Have: have, Want: p.Value.Kind}
			}
			kinds[sl] = p.Value.Kind
		}
	}
	for _, m := range ws.staged {
		changed, err := ws.cache.store.Merge(m.key, m.patch)
		if changed {
			ws.changed[m.key] = struct{}{}
		}
		if err != nil {
			// Unreachable after the pre-check; surface it anyway.
			return ws.changed, err
		}
	}
	return ws.changed, nil
}

// objectPatch normalizes one object's selected fields into an ordered
// field patch. Keyed children are written to their own records through
// apply and replaced by references.
func (ws *writeState) objectPatch(sel language.SelectionSet, data map[string]any, typeName string, path Path) ([]store.FieldPatch, error) {
	if tn, ok := data[store.TypenameField].(string); ok && tn != "" {
		typeName = tn
	}
	grouped := collectFields(ws.doc, sel, typeName, ws.vars)

	patch := make([]store.FieldPatch, 0, len(grouped.orderedFields())+1)
	if typeName != "" {
		patch = append(patch, store.FieldPatch{Field: store.TypenameField, Value: store.Scalar(typeName)})
	}
	for _, cf := range grouped.orderedFields() {
		field := cf.Fields[0]
		if field.Name == store.TypenameField {
			continue // stored once above, from the raw object
		}
		raw, present := data[cf.ResponseName]
		if !present {
			continue // point-in-time: absent fields stay as they were
		}
		fieldPath := appendPath(path, cf.ResponseName)
		value, err := ws.normalizeValue(cf.Fields, raw, fieldPath)
		if err != nil {
			return nil, err
		}
		patch = append(patch, store.FieldPatch{
			Field: store.FieldKey(field.Name, argumentValues(field, ws.vars)),
			Value: value,
		})
	}
	return patch, nil
}

// normalizeValue converts one raw response value into its stored form.
func (ws *writeState) normalizeValue(fields []*language.Field, raw any, path Path) (store.Value, error) {
	switch v := raw.(type) {
	case nil:
		return store.Null(), nil
	case []any:
		list := make([]store.Value, len(v))
		for i, item := range v {
			nv, err := ws.normalizeValue(fields, item, appendPath(path, i))
			if err != nil {
				return store.Value{}, err
			}
			list[i] = nv
		}
		return store.List(list), nil
	case map[string]any:
		sel := mergeSelectionSets(fields)
		if len(sel) == 0 {
			// Object-valued field selected without a sub-selection (custom
			// scalar); store the blob opaquely.
			return store.Scalar(raw), nil
		}
		return ws.normalizeObject(sel, v, path)
	default:
		return store.Scalar(raw), nil
	}
}

// normalizeObject decides between a reference (keyed) and inline embedding
// (unkeyed) for one nested object.
func (ws *writeState) normalizeObject(sel language.SelectionSet, data map[string]any, path Path) (store.Value, error) {
	typeName, _ := data[store.TypenameField].(string)
	key, keyed, err := ws.cache.ident.ResolveKey(typeName, data)
	if err != nil {
		return store.Value{}, &WriteError{Path: path, Err: err}
	}

	patch, err := ws.objectPatch(sel, data, typeName, path)
	if err != nil {
		return store.Value{}, err
	}

	if keyed {
		if err := ws.apply(key, patch); err != nil {
			return store.Value{}, &WriteError{Path: path, Err: err}
		}
		return store.Ref(key), nil
	}

	fields := make(map[string]store.Value, len(patch))
	for _, p := range patch {
		fields[p.Field] = p.Value
	}
	return store.Embed(typeName, fields), nil
}

// rootFor maps an operation to its synthetic root record.
func rootFor(operation *language.OperationDefinition) (store.EntityKey, string, error) {
	switch operation.Operation {
	case language.Query:
		return store.RootQuery, "Query", nil
	case language.Mutation:
		return store.RootMutation, "Mutation", nil
	default:
		return "", "", ErrUnsupportedOperation
	}
}
