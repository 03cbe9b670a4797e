package store

import (
	"fmt"
	"strconv"
	"strings"
)

// Policy declares how instances of one type are identified. KeyFields are
// joined in order into the entity key, so the same logical entity yields
// the same key regardless of which query fetched it.
type Policy struct {
	KeyFields []string
}

// Identifier computes entity keys from raw response objects.
//
// Resolution rules:
//   - An object without a type name is never independently identifiable.
//   - A type with an explicitly declared policy MUST carry every key field;
//     a missing key field is a hard IdentityError, never a silent fallback
//     to a constant or partial key.
//   - A type without a declared policy uses the default key fields (id);
//     if they are absent the object embeds inline.
type Identifier struct {
	policies      map[string]Policy
	defaultFields []string
}

func NewIdentifier(policies map[string]Policy) *Identifier {
	cp := make(map[string]Policy, len(policies))
	for t, p := range policies {
		cp[t] = p
	}
	return &Identifier{policies: cp, defaultFields: []string{"id"}}
}

// ResolveKey returns the entity key for a raw object, or ok=false when the
// object must be embedded inline instead of stored as its own record.
func (r *Identifier) ResolveKey(typeName string, raw map[string]any) (EntityKey, bool, error) {
	if typeName == "" {
		return "", false, nil
	}
	policy, declared := r.policies[typeName]
	fields := policy.KeyFields
	if !declared {
		fields = r.defaultFields
	}

	parts := make([]string, 0, len(fields)+1)
	parts = append(parts, typeName)
	for _, f := range fields {
		v, ok := raw[f]
		if !ok || v == nil {
			if declared {
				return "", false, &IdentityError{TypeName: typeName, MissingField: f}
			}
			return "", false, nil
		}
		parts = append(parts, keyScalar(v))
	}
	return EntityKey(strings.Join(parts, ":")), true, nil
}

func keyScalar(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case float64:
		// JSON numbers decode as float64; integral ids print without a
		// fractional part so "1" and 1 key identically.
		if s == float64(int64(s)) {
			return strconv.FormatInt(int64(s), 10)
		}
		return strconv.FormatFloat(s, 'g', -1, 64)
	case int:
		return strconv.Itoa(s)
	case int64:
		return strconv.FormatInt(s, 10)
	case bool:
		return strconv.FormatBool(s)
	default:
		return fmt.Sprintf("%v", v)
	}
}
