// Demo GraphQL chat service speaking the HTTP protocol the httplink
// transport expects. It backs the CLI examples and manual cache testing:
// query chats and messages, send messages, watch the cache pick up the
// overlap between query shapes.
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"sync"

	"github.com/hanpama/graphcache/internal/language"
)

type user struct {
	ID   string
	Name string
}

type message struct {
	ID       string
	Text     string
	AuthorID string
}

type chat struct {
	ID       string
	Title    string
	Messages []string
}

type server struct {
	mu       sync.Mutex
	users    map[string]*user
	messages map[string]*message
	chats    map[string]*chat
	chatIDs  []string
	nextID   int
}

func newServer() *server {
	s := &server{
		users:    map[string]*user{},
		messages: map[string]*message{},
		chats:    map[string]*chat{},
		nextID:   100,
	}
	s.users["u1"] = &user{ID: "u1", Name: "Ann"}
	s.users["u2"] = &user{ID: "u2", Name: "Ben"}
	s.messages["m1"] = &message{ID: "m1", Text: "hello", AuthorID: "u1"}
	s.messages["m2"] = &message{ID: "m2", Text: "hi there", AuthorID: "u2"}
	s.chats["c1"] = &chat{ID: "c1", Title: "general", Messages: []string{"m1", "m2"}}
	s.chats["c2"] = &chat{ID: "c2", Title: "random"}
	s.chatIDs = []string{"c1", "c2"}
	return s
}

func (s *server) userMap(id string) map[string]any {
	u, ok := s.users[id]
	if !ok {
		return nil
	}
	return map[string]any{"__typename": "User", "id": u.ID, "name": u.Name}
}

func (s *server) messageMap(id string) map[string]any {
	m, ok := s.messages[id]
	if !ok {
		return nil
	}
	return map[string]any{
		"__typename": "Message",
		"id":         m.ID,
		"text":       m.Text,
		"author":     s.userMap(m.AuthorID),
	}
}

func (s *server) chatMap(id string) map[string]any {
	c, ok := s.chats[id]
	if !ok {
		return nil
	}
	msgs := make([]any, len(c.Messages))
	for i, mid := range c.Messages {
		msgs[i] = s.messageMap(mid)
	}
	return map[string]any{
		"__typename": "Chat",
		"id":         c.ID,
		"title":      c.Title,
		"messages":   msgs,
	}
}

// resolveRoot produces the value for one root field; nested fields project
// straight off the eagerly built maps.
func (s *server) resolveRoot(opType language.Operation, f *language.Field, vars map[string]any) (any, error) {
	switch opType {
	case language.Query:
		switch f.Name {
		case "chats":
			out := make([]any, len(s.chatIDs))
			for i, id := range s.chatIDs {
				out[i] = s.chatMap(id)
			}
			return out, nil
		case "chat":
			id, _ := argValue(f, "id", vars).(string)
			return s.chatMap(id), nil
		case "user":
			id, _ := argValue(f, "id", vars).(string)
			return s.userMap(id), nil
		}
	case language.Mutation:
		if f.Name == "sendMessage" {
			chatID, _ := argValue(f, "chatId", vars).(string)
			text, _ := argValue(f, "text", vars).(string)
			authorID, _ := argValue(f, "authorId", vars).(string)
			c, ok := s.chats[chatID]
			if !ok {
				return nil, fmt.Errorf("unknown chat %q", chatID)
			}
			if _, ok := s.users[authorID]; !ok {
				return nil, fmt.Errorf("unknown user %q", authorID)
			}
			s.nextID++
			m := &message{ID: "m" + strconv.Itoa(s.nextID), Text: text, AuthorID: authorID}
			s.messages[m.ID] = m
			c.Messages = append(c.Messages, m.ID)
			return s.messageMap(m.ID), nil
		}
	}
	return nil, fmt.Errorf("cannot resolve %s on %s", f.Name, opType)
}

// project filters a resolved value down to the requested selection.
func project(val any, sel language.SelectionSet) any {
	obj, ok := val.(map[string]any)
	if !ok {
		if list, ok := val.([]any); ok {
			out := make([]any, len(list))
			for i, item := range list {
				out[i] = project(item, sel)
			}
			return out
		}
		return val
	}
	if len(sel) == 0 {
		return obj
	}
	out := map[string]any{}
	for _, selection := range sel {
		f, ok := selection.(*language.Field)
		if !ok {
			continue // demo server: no fragment support
		}
		name := f.Alias
		if name == "" {
			name = f.Name
		}
		out[name] = project(obj[f.Name], f.SelectionSet)
	}
	return out
}

func argValue(f *language.Field, name string, vars map[string]any) any {
	for _, arg := range f.Arguments {
		if arg.Name != name {
			continue
		}
		if arg.Value.Kind == language.Variable {
			return vars[arg.Value.Raw]
		}
		var out any
		_ = json.Unmarshal([]byte(arg.Value.String()), &out)
		return out
	}
	return nil
}

type graphqlRequest struct {
	Query         string         `json:"query"`
	OperationName string         `json:"operationName"`
	Variables     map[string]any `json:"variables"`
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}
	var req graphqlRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeErrors(w, "invalid JSON")
		return
	}
	doc, err := language.ParseQuery(req.Query)
	if err != nil {
		writeParseError(w, err)
		return
	}
	var op *language.OperationDefinition
	for _, o := range doc.Operations {
		if req.OperationName == "" || o.Name == req.OperationName {
			op = o
			break
		}
	}
	if op == nil {
		writeErrors(w, "operation not found")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data := map[string]any{}
	for _, selection := range op.SelectionSet {
		f, ok := selection.(*language.Field)
		if !ok {
			continue
		}
		name := f.Alias
		if name == "" {
			name = f.Name
		}
		if f.Name == "__typename" {
			if op.Operation == language.Mutation {
				data[name] = "Mutation"
			} else {
				data[name] = "Query"
			}
			continue
		}
		val, err := s.resolveRoot(op.Operation, f, req.Variables)
		if err != nil {
			writeErrors(w, err.Error())
			return
		}
		data[name] = project(val, f.SelectionSet)
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"data": data})
}

// writeParseError keeps the parser's message and source locations in the
// response instead of flattening them to a bare string.
func writeParseError(w http.ResponseWriter, err error) {
	var perr *language.Error
	if errors.As(err, &perr) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"errors": []any{perr}})
		return
	}
	writeErrors(w, err.Error())
}

func writeErrors(w http.ResponseWriter, msgs ...string) {
	errs := make([]map[string]any, len(msgs))
	for i, m := range msgs {
		errs[i] = map[string]any{"message": m}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"errors": errs})
}

func main() {
	addr := flag.String("addr", ":8081", "HTTP listen address")
	flag.Parse()

	mux := http.NewServeMux()
	mux.Handle("/graphql", newServer())
	log.Printf("demo chat server listening on %s", *addr)
	log.Fatal(http.ListenAndServe(*addr, mux))
}
