// Package httplink implements the client.Transport contract over the
// standard GraphQL HTTP protocol: POST application/json with query,
// operationName and variables, answered by the standard data/errors body.
package httplink

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	backoff "github.com/cenkalti/backoff/v5"
	jsoniter "github.com/json-iterator/go"
	"github.com/vektah/gqlparser/v2/formatter"

	client "github.com/hanpama/graphcache/internal/client"
	eventbus "github.com/hanpama/graphcache/internal/eventbus"
	events "github.com/hanpama/graphcache/internal/events"
	language "github.com/hanpama/graphcache/internal/language"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Link is an HTTP client.Transport bound to one endpoint.
type Link struct {
	endpoint string
	opt      *Options
}

func New(endpoint string, opts ...Option) *Link {
	o := defaultOptions()
	for _, f := range opts {
		f(o)
	}
	return &Link{endpoint: endpoint, opt: o}
}

type request struct {
	Query         string         `json:"query"`
	OperationName string         `json:"operationName,omitempty"`
	Variables     map[string]any `json:"variables,omitempty"`
}

// Execute sends one operation and decodes the response. Transient
// failures (network errors, 5xx, 429) retry with exponential backoff up
// to MaxTries; everything else fails immediately.
func (l *Link) Execute(ctx context.Context, doc *language.QueryDocument, operationName string, variables map[string]any) (*client.Response, error) {
	if _, ok := ctx.Deadline(); !ok && l.opt.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.opt.Timeout)
		defer cancel()
	}

	body, err := json.Marshal(request{
		Query:         formatDocument(doc),
		OperationName: operationName,
		Variables:     variables,
	})
	if err != nil {
		return nil, err
	}

	start := time.Now()
	eventbus.Publish(ctx, events.TransportStart{Endpoint: l.endpoint, OperationName: operationName})

	attempts := 0
	lastStatus := 0
	resp, err := backoff.Retry(ctx, func() (*client.Response, error) {
		attempts++
		r, status, aerr := l.attempt(ctx, body)
		lastStatus = status
		return r, aerr
	}, backoff.WithBackOff(backoff.NewExponentialBackOff()), backoff.WithMaxTries(l.opt.MaxTries))

	eventbus.Publish(ctx, events.TransportFinish{
		Endpoint:      l.endpoint,
		OperationName: operationName,
		Status:        lastStatus,
		Attempts:      attempts,
		Err:           err,
		Duration:      time.Since(start),
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// attempt performs one HTTP round trip. Permanent errors are wrapped so
// the retry loop stops immediately.
func (l *Link) attempt(ctx context.Context, body []byte) (*client.Response, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, 0, backoff.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for k, v := range l.opt.Headers {
		req.Header.Set(k, v)
	}

	httpResp, err := l.opt.HTTPClient.Do(req)
	if err != nil {
		// Network-level failure: retryable.
		return nil, 0, err
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		serr := &StatusError{Status: httpResp.StatusCode}
		if retryableStatus(httpResp.StatusCode) {
			return nil, httpResp.StatusCode, serr
		}
		return nil, httpResp.StatusCode, backoff.Permanent(serr)
	}

	reader := io.Reader(httpResp.Body)
	if l.opt.MaxResponseBytes > 0 {
		reader = io.LimitReader(httpResp.Body, l.opt.MaxResponseBytes+1)
	}
	raw, err := io.ReadAll(reader)
	if err != nil {
		return nil, httpResp.StatusCode, err
	}
	if l.opt.MaxResponseBytes > 0 && int64(len(raw)) > l.opt.MaxResponseBytes {
		return nil, httpResp.StatusCode, backoff.Permanent(ErrBodyTooLarge)
	}

	var out client.Response
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, httpResp.StatusCode, backoff.Permanent(err)
	}
	return &out, httpResp.StatusCode, nil
}

func retryableStatus(status int) bool {
	return status >= 500 || status == http.StatusTooManyRequests
}

func formatDocument(doc *language.QueryDocument) string {
	var sb strings.Builder
	formatter.NewFormatter(&sb).FormatQueryDocument(doc)
	return sb.String()
}
