package store

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestFieldKey(t *testing.T) {
	t.Run("no arguments stores under the bare name", func(t *testing.T) {
		require.Equal(t, "title", FieldKey("title", nil))
		require.Equal(t, "title", FieldKey("title", map[string]any{}))
	})

	t.Run("identical arguments always collide", func(t *testing.T) {
		a := FieldKey("messages", map[string]any{"first": 10, "after": "m1"})
		b := FieldKey("messages", map[string]any{"after": "m1", "first": 10})
		require.Equal(t, a, b)
	})

	t.Run("distinct arguments never collide", func(t *testing.T) {
		a := FieldKey("messages", map[string]any{"first": 10})
		b := FieldKey("messages", map[string]any{"first": 20})
		require.NotEqual(t, a, b)
	})
}

func TestMerge(t *testing.T) {
	t.Run("field-wise: absent fields stay untouched", func(t *testing.T) {
		s := New()
		_, err := s.Merge("User:1", []FieldPatch{
			{Field: "name", Value: Scalar("Ann")},
			{Field: "age", Value: Scalar(float64(30))},
		})
		require.NoError(t, err)

		changed, err := s.Merge("User:1", []FieldPatch{
			{Field: "age", Value: Scalar(float64(31))},
		})
		require.NoError(t, err)
		require.True(t, changed)

		rec, ok := s.Get("User:1")
		require.True(t, ok)
		require.Equal(t, Scalar("Ann"), rec["name"])
		require.Equal(t, Scalar(float64(31)), rec["age"])
	})

	t.Run("merging identical values reports no change", func(t *testing.T) {
		s := New()
		patch := []FieldPatch{
			{Field: "name", Value: Scalar("Ann")},
			{Field: "friends", Value: List([]Value{Ref("User:2"), Ref("User:3")})},
		}
		changed, err := s.Merge("User:1", patch)
		require.NoError(t, err)
		require.True(t, changed)

		changed, err = s.Merge("User:1", patch)
		require.NoError(t, err)
		require.False(t, changed)
	})

	t.Run("structural conflict commits preceding fields only", func(t *testing.T) {
		s := New()
		_, err := s.Merge("User:1", []FieldPatch{{Field: "tags", Value: List(nil)}})
		require.NoError(t, err)

		changed, err := s.Merge("User:1", []FieldPatch{
			{Field: "name", Value: Scalar("Ann")},
			{Field: "tags", Value: Scalar("oops")},
			{Field: "age", Value: Scalar(float64(30))},
		})
		require.True(t, changed)

		var conflict *ConflictError
		require.ErrorAs(t, err, &conflict)
		require.Equal(t, EntityKey("User:1"), conflict.Key)
		require.Equal(t, "tags", conflict.Field)
		require.Equal(t, KindList, conflict.Have)
		require.Equal(t, KindScalar, conflict.Want)

		rec, _ := s.Get("User:1")
		require.Equal(t, Scalar("Ann"), rec["name"])
		_, hasAge := rec["age"]
		require.False(t, hasAge)
	})

	t.Run("null is compatible in both directions", func(t *testing.T) {
		s := New()
		_, err := s.Merge("User:1", []FieldPatch{{Field: "bio", Value: Scalar("hi")}})
		require.NoError(t, err)
		_, err = s.Merge("User:1", []FieldPatch{{Field: "bio", Value: Null()}})
		require.NoError(t, err)
		_, err = s.Merge("User:1", []FieldPatch{{Field: "bio", Value: List(nil)}})
		require.NoError(t, err)
	})
}

func TestPublish(t *testing.T) {
	s := New()
	var got []map[EntityKey]struct{}
	s.OnChange(func(changed map[EntityKey]struct{}) { got = append(got, changed) })

	s.Publish(map[EntityKey]struct{}{"User:1": {}, "User:2": {}})
	s.Publish(nil)

	require.Len(t, got, 1, "empty batches must not reach the listener")
	require.Len(t, got[0], 2)
}

func TestSnapshotIsDeepCopy(t *testing.T) {
	s := New()
	_, err := s.Merge("Chat:1", []FieldPatch{
		{Field: "messages", Value: List([]Value{Ref("Message:10")})},
	})
	require.NoError(t, err)

	snap := s.Snapshot()
	snap["Chat:1"]["messages"].List[0] = Ref("Message:99")

	rec, _ := s.Get("Chat:1")
	if diff := cmp.Diff(EntityKey("Message:10"), rec["messages"].List[0].Ref); diff != "" {
		t.Fatalf("store state mutated through snapshot (-want +got):\n%s", diff)
	}
}

func TestIdentifier(t *testing.T) {
	t.Run("default id convention", func(t *testing.T) {
		r := NewIdentifier(nil)
		key, keyed, err := r.ResolveKey("User", map[string]any{"id": "1", "name": "Ann"})
		require.NoError(t, err)
		require.True(t, keyed)
		require.Equal(t, EntityKey("User:1"), key)
	})

	t.Run("numeric ids key identically across JSON decodings", func(t *testing.T) {
		r := NewIdentifier(nil)
		a, _, err := r.ResolveKey("User", map[string]any{"id": float64(1)})
		require.NoError(t, err)
		b, _, err := r.ResolveKey("User", map[string]any{"id": 1})
		require.NoError(t, err)
		require.Equal(t, a, b)
	})

	t.Run("no type name embeds", func(t *testing.T) {
		r := NewIdentifier(nil)
		_, keyed, err := r.ResolveKey("", map[string]any{"id": "1"})
		require.NoError(t, err)
		require.False(t, keyed)
	})

	t.Run("undeclared type without id embeds", func(t *testing.T) {
		r := NewIdentifier(nil)
		_, keyed, err := r.ResolveKey("Stats", map[string]any{"count": float64(3)})
		require.NoError(t, err)
		require.False(t, keyed)
	})

	t.Run("declared type missing a key field is a hard error", func(t *testing.T) {
		r := NewIdentifier(map[string]Policy{"User": {KeyFields: []string{"email"}}})
		_, _, err := r.ResolveKey("User", map[string]any{"id": "1"})
		var ierr *IdentityError
		require.ErrorAs(t, err, &ierr)
		require.Equal(t, "User", ierr.TypeName)
		require.Equal(t, "email", ierr.MissingField)
	})

	t.Run("composite keys join in policy order", func(t *testing.T) {
		r := NewIdentifier(map[string]Policy{"Membership": {KeyFields: []string{"userId", "orgId"}}})
		key, keyed, err := r.ResolveKey("Membership", map[string]any{"userId": "u1", "orgId": "o2"})
		require.NoError(t, err)
		require.True(t, keyed)
		require.Equal(t, EntityKey("Membership:u1:o2"), key)
	})
}

func TestValueEqual(t *testing.T) {
	cases := []struct {
		name string
		a, b Value
		want bool
	}{
		{"same scalar", Scalar("x"), Scalar("x"), true},
		{"different scalar", Scalar("x"), Scalar("y"), false},
		{"kind mismatch", Scalar("x"), List(nil), false},
		{"same ref", Ref("User:1"), Ref("User:1"), true},
		{"different ref", Ref("User:1"), Ref("User:2"), false},
		{"nulls", Null(), Null(), true},
		{
			"equal lists",
			List([]Value{Scalar(float64(1)), Ref("User:1")}),
			List([]Value{Scalar(float64(1)), Ref("User:1")}),
			true,
		},
		{
			"list length differs",
			List([]Value{Scalar(float64(1))}),
			List(nil),
			false,
		},
		{
			"equal embedded",
			Embed("Stats", map[string]Value{"count": Scalar(float64(3))}),
			Embed("Stats", map[string]Value{"count": Scalar(float64(3))}),
			true,
		},
		{
			"embedded field differs",
			Embed("Stats", map[string]Value{"count": Scalar(float64(3))}),
			Embed("Stats", map[string]Value{"count": Scalar(float64(4))}),
			false,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, tc.a.Equal(tc.b))
			require.Equal(t, tc.want, tc.b.Equal(tc.a))
		})
	}
}

func TestDelete(t *testing.T) {
	s := New()
	_, err := s.Merge("User:1", []FieldPatch{{Field: "name", Value: Scalar("Ann")}})
	require.NoError(t, err)

	require.True(t, s.Delete("User:1"))
	require.False(t, s.Delete("User:1"))
	_, ok := s.Get("User:1")
	require.False(t, ok)
}

func TestConflictErrorMessage(t *testing.T) {
	err := &ConflictError{Key: "User:1", Field: "tags", Have: KindList, Want: KindScalar}
	require.True(t, errors.As(error(err), new(*ConflictError)))
	require.Contains(t, err.Error(), "User:1")
	require.Contains(t, err.Error(), "tags")
}
