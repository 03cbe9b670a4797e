package store

import "reflect"

// Kind discriminates the shapes a stored field value can take. Structural
// conflict detection is a tag comparison between two Kinds.
type Kind uint8

const (
	// KindNull is an explicit null. Null is compatible with every other
	// kind: it may overwrite and be overwritten freely.
	KindNull Kind = iota
	// KindScalar holds a leaf value (string, bool, number, or an opaque
	// JSON blob for object-valued fields selected without a sub-selection).
	KindScalar
	// KindList holds an ordered list of values. Lists are replaced as a
	// whole on merge, never spliced element-wise.
	KindList
	// KindRef points at another entity record by key. References are
	// non-owning: the target record may be absent or evicted.
	KindRef
	// KindEmbedded holds an unkeyed object inlined into its owning record.
	KindEmbedded
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindScalar:
		return "scalar"
	case KindList:
		return "list"
	case KindRef:
		return "ref"
	case KindEmbedded:
		return "embedded"
	default:
		return "unknown"
	}
}

// Value is the tagged variant stored in entity record fields. Exactly one
// of the payload fields is meaningful, selected by Kind.
type Value struct {
	Kind     Kind
	Scalar   any
	List     []Value
	Ref      EntityKey
	Embedded *Embedded
}

// Embedded is an unkeyed sub-object stored inline inside its owning record.
// Its fields use the same storage-key scheme as entity records.
type Embedded struct {
	TypeName string
	Fields   map[string]Value
}

func Null() Value             { return Value{Kind: KindNull} }
func Scalar(v any) Value      { return Value{Kind: KindScalar, Scalar: v} }
func List(vs []Value) Value   { return Value{Kind: KindList, List: vs} }
func Ref(key EntityKey) Value { return Value{Kind: KindRef, Ref: key} }

func Embed(typeName string, fields map[string]Value) Value {
	return Value{Kind: KindEmbedded, Embedded: &Embedded{TypeName: typeName, Fields: fields}}
}

// Equal reports deep structural equality. It is the basis for no-op write
// detection: a merge that leaves every field Equal emits no change.
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindNull:
		return true
	case KindScalar:
		return scalarEqual(v.Scalar, o.Scalar)
	case KindList:
		if len(v.List) != len(o.List) {
			return false
		}
		for i := range v.List {
			if !v.List[i].Equal(o.List[i]) {
				return false
			}
		}
		return true
	case KindRef:
		return v.Ref == o.Ref
	case KindEmbedded:
		return v.Embedded.equal(o.Embedded)
	default:
		return false
	}
}

func (e *Embedded) equal(o *Embedded) bool {
	if e == nil || o == nil {
		return e == o
	}
	if e.TypeName != o.TypeName || len(e.Fields) != len(o.Fields) {
		return false
	}
	for k, v := range e.Fields {
		ov, ok := o.Fields[k]
		if !ok || !v.Equal(ov) {
			return false
		}
	}
	return true
}

// scalarEqual compares leaf values. Scalars come from JSON decoding or
// local patches, so most are comparable; reflect covers opaque blobs.
func scalarEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == b
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta == tb && ta.Comparable() {
		return a == b
	}
	return reflect.DeepEqual(a, b)
}

// clone returns a copy that shares no mutable state with v, so records
// handed out of the store cannot be corrupted by callers.
func (v Value) clone() Value {
	switch v.Kind {
	case KindList:
		list := make([]Value, len(v.List))
		for i := range v.List {
			list[i] = v.List[i].clone()
		}
		return Value{Kind: KindList, List: list}
	case KindEmbedded:
		fields := make(map[string]Value, len(v.Embedded.Fields))
		for k, fv := range v.Embedded.Fields {
			fields[k] = fv.clone()
		}
		return Embed(v.Embedded.TypeName, fields)
	default:
		return v
	}
}
