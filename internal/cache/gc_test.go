package cache

import (
	"testing"

	"github.com/stretchr/testify/require"

	store "github.com/hanpama/graphcache/internal/store"
)

func TestCollect_RemovesUnwatchedEntities(t *testing.T) {
	c := New()
	writeChat(t, c)

	removed := c.Collect()
	require.ElementsMatch(t,
		[]store.EntityKey{"Chat:c1", "Message:m10"}, removed,
		"root fields alone do not retain their targets")

	_, hasRoot := c.Snapshot()[store.RootQuery]
	require.True(t, hasRoot, "synthetic roots are never removed")
}

func TestCollect_WatchDependenciesRetain(t *testing.T) {
	c := New()
	writeChat(t, c)

	unsubscribe, _, err := c.Watch(mustParseQuery(t, chatQuery), "GetChat", chatVars,
		func(ReadResult) {})
	require.NoError(t, err)

	require.Empty(t, c.Collect(), "everything the watch read stays alive")

	unsubscribe()
	removed := c.Collect()
	require.ElementsMatch(t, []store.EntityKey{"Chat:c1", "Message:m10"}, removed)
}

func TestCollect_PinnedKeysRetainTransitively(t *testing.T) {
	c := New()
	writeChat(t, c)

	c.Pin("Chat:c1")
	require.Empty(t, c.Collect(), "pins retain their whole reference closure")

	c.Unpin("Chat:c1")
	c.Pin("Message:m10")
	removed := c.Collect()
	require.Equal(t, []store.EntityKey{"Chat:c1"}, removed,
		"a leaf pin keeps only the leaf")

	c.Unpin("Message:m10")
	removed = c.Collect()
	require.Equal(t, []store.EntityKey{"Message:m10"}, removed)
}

func TestCollect_IsIdempotent(t *testing.T) {
	c := New()
	writeChat(t, c)

	require.NotEmpty(t, c.Collect())
	require.Empty(t, c.Collect())
}

func TestCollect_ReachabilityFollowsRecordRefsNotSelections(t *testing.T) {
	c := New()
	writeChat(t, c)

	// The watch never selects messages, but Chat:c1's record still holds the
	// reference, so the closure keeps the message alive.
	unsubscribe, _, err := c.Watch(mustParseQuery(t, `{ chat(id: "c1") { title } }`), "", nil,
		func(ReadResult) {})
	require.NoError(t, err)
	defer unsubscribe()

	require.Empty(t, c.Collect())
}
