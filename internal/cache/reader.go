package cache

import (
	language "github.com/hanpama/graphcache/internal/language"
	store "github.com/hanpama/graphcache/internal/store"
)

// ReadResult is the outcome of reassembling a query shape from the store.
type ReadResult struct {
	// Data is the nested result. Branches that could not be satisfied are
	// absent from it; their locations are listed in Missing.
	Data map[string]any

	// Complete is true only if no branch was missing.
	Complete bool

	// Missing lists the concrete paths that could not be satisfied.
	Missing []Path

	// Dependencies holds every entity key visited during the read,
	// including keys whose records were absent, so a later write to any of
	// them correctly triggers re-evaluation.
	Dependencies map[store.EntityKey]struct{}
}

// Read reconstructs a nested result for the document by walking the store.
// An incomplete result is not an error: missing branches are reported in
// the result and siblings still populate. A dangling reference is missing
// data, never a fault.
func (c *Cache) Read(doc *language.QueryDocument, operationName string, variables map[string]any) (ReadResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.read(doc, operationName, variables)
}

// read is the lock-free implementation shared with watch revalidation.
func (c *Cache) read(doc *language.QueryDocument, operationName string, variables map[string]any) (ReadResult, error) {
	operation := getOperation(doc, operationName)
	if operation == nil {
		return ReadResult{}, ErrNoOperation
	}
	rootKey, rootType, err := rootFor(operation)
	if err != nil {
		return ReadResult{}, err
	}
	vars, err := operationVariables(operation, variables)
	if err != nil {
		return ReadResult{}, err
	}

	rs := &readState{cache: c, doc: doc, vars: vars, deps: make(map[store.EntityKey]struct{})}
	data := rs.readEntity(rootKey, rootType, operation.SelectionSet, Path{})
	return ReadResult{
		Data:         data,
		Complete:     len(rs.missing) == 0,
		Missing:      rs.missing,
		Dependencies: rs.deps,
	}, nil
}

type readState struct {
	cache   *Cache
	doc     *language.QueryDocument
	vars    map[string]any
	deps    map[store.EntityKey]struct{}
	missing []Path
}

func (rs *readState) miss(path Path) {
	rs.missing = append(rs.missing, path)
}

// readEntity materializes a selection set against one record. The key is
// registered as a dependency whether or not a record exists for it.
func (rs *readState) readEntity(key store.EntityKey, typeName string, sel language.SelectionSet, path Path) map[string]any {
	rs.deps[key] = struct{}{}
	rec, ok := rs.cache.store.Get(key)
	if !ok {
		rs.miss(path)
		return nil
	}
	if tn, ok := rec[store.TypenameField]; ok {
		if s, ok := tn.Scalar.(string); ok && s != "" {
			typeName = s
		}
	}
	return rs.readFields(map[string]store.Value(rec), typeName, sel, path)
}

// readFields materializes a selection set against a flat field table,
// which is either an entity record or an embedded object's fields.
func (rs *readState) readFields(fields map[string]store.Value, typeName string, sel language.SelectionSet, path Path) map[string]any {
	grouped := collectFields(rs.doc, sel, typeName, rs.vars)
	result := make(map[string]any, len(grouped.orderedFields()))

	for _, cf := range grouped.orderedFields() {
		field := cf.Fields[0]
		fieldPath := appendPath(path, cf.ResponseName)

		if field.Name == store.TypenameField {
			if typeName == "" {
				rs.miss(fieldPath)
				continue
			}
			result[cf.ResponseName] = typeName
			continue
		}

		storageKey := store.FieldKey(field.Name, argumentValues(field, rs.vars))
		v, ok := fields[storageKey]
		if !ok {
			rs.miss(fieldPath)
			continue
		}
		result[cf.ResponseName] = rs.materialize(v, cf.Fields, fieldPath)
	}
	return result
}

// materialize denormalizes one stored value back into response shape.
func (rs *readState) materialize(v store.Value, fields []*language.Field, path Path) any {
	switch v.Kind {
	case store.KindNull:
		return nil
	case store.KindScalar:
		return v.Scalar
	case store.KindList:
		out := make([]any, len(v.List))
		for i, item := range v.List {
			out[i] = rs.materialize(item, fields, appendPath(path, i))
		}
		return out
	case store.KindRef:
		sel := mergeSelectionSets(fields)
		if len(sel) == 0 {
			rs.miss(path)
			return nil
		}
		return rs.readEntity(v.Ref, "", sel, path)
	case store.KindEmbedded:
		sel := mergeSelectionSets(fields)
		if len(sel) == 0 {
			rs.miss(path)
			return nil
		}
		return rs.readFields(v.Embedded.Fields, v.Embedded.TypeName, sel, path)
	default:
		rs.miss(path)
		return nil
	}
}
