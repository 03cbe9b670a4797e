package store

import "fmt"

// ConflictError reports a structural conflict: a merge tried to change the
// shape of an existing field (scalar vs list vs ref vs embedded).
type ConflictError struct {
	Key   EntityKey
	Field string
	Have  Kind
	Want  Kind
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("store: structural conflict on %s.%s: have %s, incoming %s", e.Key, e.Field, e.Have, e.Want)
}

// IdentityError reports an object of a declared-identifiable type that is
// missing one of its identifying fields.
type IdentityError struct {
	TypeName     string
	MissingField string
}

func (e *IdentityError) Error() string {
	return fmt.Sprintf("store: cannot identify %s: missing key field %q", e.TypeName, e.MissingField)
}
