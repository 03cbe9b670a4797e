package store

import (
	jsoniter "github.com/json-iterator/go"
)

// EntityKey uniquely identifies one logical entity in the store.
type EntityKey string

// Root keys are synthetic records whose fields are the entry points into
// the graph. They have no declared identity beyond their fixed role.
const (
	RootQuery    EntityKey = "ROOT_QUERY"
	RootMutation EntityKey = "ROOT_MUTATION"
)

// TypenameField is the storage key under which an entity's type name is
// recorded. It doubles as the GraphQL meta field name.
const TypenameField = "__typename"

// EntityRecord is a flat map from field storage key to value.
type EntityRecord map[string]Value

func (r EntityRecord) clone() EntityRecord {
	out := make(EntityRecord, len(r))
	for k, v := range r {
		out[k] = v.clone()
	}
	return out
}

// json sorts map keys, so serialized arguments are stable across calls.
var json = jsoniter.ConfigCompatibleWithStandardLibrary

// FieldKey derives the storage key for a field invocation. Fields without
// arguments store under their plain name; argument-bearing fields append a
// stable sorted-key JSON serialization so that distinct argument sets never
// collide and identical ones always do.
func FieldKey(field string, args map[string]any) string {
	if len(args) == 0 {
		return field
	}
	b, err := json.Marshal(args)
	if err != nil {
		// Argument values originate from AST conversion and JSON input;
		// both are marshalable. Degrade to the bare name rather than panic.
		return field
	}
	return field + "(" + string(b) + ")"
}
