package client

import (
	"context"
	"strings"

	language "github.com/hanpama/graphcache/internal/language"
)

// Transport executes one GraphQL operation against a backing service and
// returns the raw response. It is a collaborator of the cache, not part of
// it: the client calls Execute once a caller needs data the store cannot
// satisfy, and forwards a successful payload to the writer.
//
// Contract:
//   - Execute returns (response, nil) when the service answered, even if
//     the answer carries GraphQL errors; response.Data may be nil.
//   - Execute returns (nil, err) for transport-level failures (network,
//     timeouts, malformed payloads). The client surfaces such errors to
//     its caller untouched and never mutates the store for them.
//   - Implementations must respect ctx cancellation.
//   - Implementations must not retain or mutate the variables map.
type Transport interface {
	Execute(ctx context.Context, doc *language.QueryDocument, operationName string, variables map[string]any) (*Response, error)
}

// Response is the raw outcome of one transport call.
type Response struct {
	Data   map[string]any `json:"data"`
	Errors ErrorList      `json:"errors,omitempty"`
}

// ResponseError is one GraphQL error as reported by the service.
type ResponseError struct {
	Message string `json:"message"`
	Path    []any  `json:"path,omitempty"`
}

func (e ResponseError) Error() string { return e.Message }

type ErrorList []ResponseError

func (l ErrorList) Error() string {
	msgs := make([]string, len(l))
	for i, e := range l {
		msgs[i] = e.Message
	}
	return strings.Join(msgs, "; ")
}
