package cache

import (
	"testing"

	language "github.com/hanpama/graphcache/internal/language"
	store "github.com/hanpama/graphcache/internal/store"
)

// mustParseQuery parses a GraphQL query and fails the test on error.
func mustParseQuery(t *testing.T, q string) *language.QueryDocument {
	t.Helper()
	d, err := language.ParseQuery(q)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	return d
}

const chatQuery = `query GetChat($id: ID!) {
	chat(id: $id) {
		id
		title
		messages {
			id
			text
		}
	}
}`

var chatVars = map[string]any{"id": "c1"}

func chatData() map[string]any {
	return map[string]any{
		"chat": map[string]any{
			"__typename": "Chat",
			"id":         "c1",
			"title":      "general",
			"messages": []any{
				map[string]any{"__typename": "Message", "id": "m10", "text": "hello"},
			},
		},
	}
}

// writeChat seeds the standard chat fixture and fails on error.
func writeChat(t *testing.T, c *Cache) map[store.EntityKey]struct{} {
	t.Helper()
	doc := mustParseQuery(t, chatQuery)
	changed, err := c.Write(doc, "GetChat", chatVars, chatData())
	if err != nil {
		t.Fatalf("write error: %v", err)
	}
	return changed
}
