package cache

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	store "github.com/hanpama/graphcache/internal/store"
)

func TestReadFragment(t *testing.T) {
	c := New()
	writeChat(t, c)

	doc := mustParseQuery(t, `fragment Header on Chat { __typename title }`)
	res, err := c.ReadFragment("Chat:c1", doc, "Header", nil)
	require.NoError(t, err)
	require.True(t, res.Complete)

	want := map[string]any{"__typename": "Chat", "title": "general"}
	if diff := cmp.Diff(want, res.Data); diff != "" {
		t.Fatalf("result mismatch (-want +got):\n%s", diff)
	}
}

func TestReadFragment_DefaultsToOnlyFragment(t *testing.T) {
	c := New()
	writeChat(t, c)

	doc := mustParseQuery(t, `fragment Header on Chat { title }`)
	res, err := c.ReadFragment("Chat:c1", doc, "", nil)
	require.NoError(t, err)
	require.Equal(t, "general", res.Data["title"])
}

func TestReadFragment_Errors(t *testing.T) {
	c := New()
	writeChat(t, c)
	doc := mustParseQuery(t, `fragment Header on Chat { title }`)

	_, err := c.ReadFragment("Chat:c1", doc, "Nope", nil)
	require.ErrorIs(t, err, ErrNoFragment)

	_, err = c.ReadFragment("Chat:zzz", doc, "Header", nil)
	require.ErrorIs(t, err, ErrNoRecord)
}

func TestWriteFragment(t *testing.T) {
	c := New()
	writeChat(t, c)

	doc := mustParseQuery(t, `fragment Header on Chat { title }`)
	changed, err := c.WriteFragment("Chat:c1", doc, "Header", nil,
		map[string]any{"title": "renamed"})
	require.NoError(t, err)
	_, ok := changed["Chat:c1"]
	require.True(t, ok)

	rec := c.Snapshot()["Chat:c1"]
	require.Equal(t, store.Scalar("renamed"), rec["title"])
	require.Equal(t, store.Scalar("Chat"), rec["__typename"],
		"the fragment's type condition lands in the record")
}

func TestWriteFragment_NestedObjectsNormalize(t *testing.T) {
	c := New()
	writeChat(t, c)

	doc := mustParseQuery(t, `fragment WithAuthor on Message { author { id name } }`)
	_, err := c.WriteFragment("Message:m10", doc, "WithAuthor", nil, map[string]any{
		"author": map[string]any{"__typename": "User", "id": "u1", "name": "Ann"},
	})
	require.NoError(t, err)

	msg := c.Snapshot()["Message:m10"]
	require.Equal(t, store.Ref("User:u1"), msg["author"])
	require.Equal(t, store.Scalar("Ann"), c.Snapshot()["User:u1"]["name"])
}

func TestWriteFragment_AtomicWalkFailureCommitsNothing(t *testing.T) {
	c := New(WithAtomicWrites(), WithTypePolicy("User", "email"))
	doc := mustParseQuery(t, `fragment Meta on Message { author { id email } editor { id email } }`)
	_, err := c.WriteFragment("Message:m1", doc, "Meta", nil, map[string]any{
		"author": map[string]any{"__typename": "User", "id": "u1", "email": "a@x.com"},
		"editor": map[string]any{"__typename": "User", "id": "u2"},
	})

	var ierr *store.IdentityError
	require.ErrorAs(t, err, &ierr)
	require.Zero(t, c.Len(), "the author staged before the failing editor must not commit")
}

func TestWriteFragment_NotifiesWatches(t *testing.T) {
	c := New()
	writeChat(t, c)

	fired := 0
	unsubscribe, _, err := c.Watch(mustParseQuery(t, chatQuery), "GetChat", chatVars,
		func(ReadResult) { fired++ })
	require.NoError(t, err)
	defer unsubscribe()

	doc := mustParseQuery(t, `fragment Edit on Message { text }`)
	_, err = c.WriteFragment("Message:m10", doc, "Edit", nil,
		map[string]any{"text": "patched"})
	require.NoError(t, err)
	require.Equal(t, 1, fired)
}

func TestReadWriteField(t *testing.T) {
	c := New()
	writeChat(t, c)

	t.Run("plain field", func(t *testing.T) {
		v, ok := c.ReadField("Chat:c1", "title", nil)
		require.True(t, ok)
		require.Equal(t, store.Scalar("general"), v)
	})

	t.Run("absent field and record", func(t *testing.T) {
		_, ok := c.ReadField("Chat:c1", "archived", nil)
		require.False(t, ok)
		_, ok = c.ReadField("Chat:zzz", "title", nil)
		require.False(t, ok)
	})

	t.Run("arguments address distinct slots", func(t *testing.T) {
		_, err := c.WriteField("Chat:c1", "members", map[string]any{"first": 2},
			store.List([]store.Value{store.Ref("User:u1")}))
		require.NoError(t, err)

		_, ok := c.ReadField("Chat:c1", "members", nil)
		require.False(t, ok)
		v, ok := c.ReadField("Chat:c1", "members", map[string]any{"first": 2})
		require.True(t, ok)
		require.Equal(t, store.KindList, v.Kind)
	})

	t.Run("no-op write publishes nothing", func(t *testing.T) {
		changed, err := c.WriteField("Chat:c1", "title", nil, store.Scalar("general"))
		require.NoError(t, err)
		require.Empty(t, changed)
	})

	t.Run("conflicting kind fails", func(t *testing.T) {
		_, err := c.WriteField("Chat:c1", "title", nil, store.List(nil))
		var conflict *store.ConflictError
		require.ErrorAs(t, err, &conflict)
	})
}
