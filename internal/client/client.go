// Package client is the read-through facade over the cache engine and a
// transport: queries try the store first and fall back to the network,
// mutations always hit the network, and both write responses back through
// the normalizing writer.
package client

import (
	"context"
	"time"

	cache "github.com/hanpama/graphcache/internal/cache"
	eventbus "github.com/hanpama/graphcache/internal/eventbus"
	events "github.com/hanpama/graphcache/internal/events"
	language "github.com/hanpama/graphcache/internal/language"
	opid "github.com/hanpama/graphcache/internal/opid"
	store "github.com/hanpama/graphcache/internal/store"
)

const (
	SourceCache   = "cache"
	SourceNetwork = "network"
)

type Options struct {
	// Cache injects a pre-built engine; when nil one is constructed from
	// CacheOptions.
	Cache        *cache.Cache
	CacheOptions []cache.Option
}

type Option func(*Options)

func WithCache(c *cache.Cache) Option { return func(o *Options) { o.Cache = c } }
func WithCacheOptions(opts ...cache.Option) Option {
	return func(o *Options) { o.CacheOptions = append(o.CacheOptions, opts...) }
}

type Client struct {
	cache     *cache.Cache
	transport Transport
}

func New(transport Transport, opts ...Option) *Client {
	var o Options
	for _, f := range opts {
		f(&o)
	}
	c := o.Cache
	if c == nil {
		c = cache.New(o.CacheOptions...)
	}
	return &Client{cache: c, transport: transport}
}

// Cache exposes the underlying engine for fragment access, pinning and GC.
func (c *Client) Cache() *cache.Cache { return c.cache }

// Result is the outcome of a query or mutation.
type Result struct {
	Data map[string]any
	// Errors carries GraphQL errors from a partial response whose data
	// portion was still written field-wise.
	Errors ErrorList
	// Source reports whether Data came from the store or the network.
	Source   string
	Complete bool
}

type QueryOptions struct {
	// BypassCache skips the store read and always executes the transport.
	BypassCache bool
}

type QueryOption func(*QueryOptions)

func BypassCache() QueryOption { return func(o *QueryOptions) { o.BypassCache = true } }

// Query resolves a query read-through: a complete store read answers
// immediately; otherwise the transport executes, the response is written,
// and the store is re-read so the caller sees normalized data.
func (c *Client) Query(ctx context.Context, doc *language.QueryDocument, operationName string, variables map[string]any, opts ...QueryOption) (res *Result, err error) {
	var qo QueryOptions
	for _, f := range opts {
		f(&qo)
	}

	ctx, finish := c.beginOperation(ctx, operationName, "query")
	defer func() { finish(res, err) }()

	if !qo.BypassCache {
		rr, rerr := c.cache.Read(doc, operationName, variables)
		if rerr != nil {
			return nil, rerr
		}
		if rr.Complete {
			return &Result{Data: rr.Data, Source: SourceCache, Complete: true}, nil
		}
	}

	resp, terr := c.execute(ctx, doc, operationName, variables)
	if terr != nil {
		return nil, terr
	}

	rr, rerr := c.cache.Read(doc, operationName, variables)
	if rerr != nil {
		return nil, rerr
	}
	return &Result{Data: rr.Data, Errors: resp.Errors, Source: SourceNetwork, Complete: rr.Complete}, nil
}

// Mutate always executes the transport, then writes the response so every
// rendered view of the touched entities updates.
func (c *Client) Mutate(ctx context.Context, doc *language.QueryDocument, operationName string, variables map[string]any) (res *Result, err error) {
	ctx, finish := c.beginOperation(ctx, operationName, "mutation")
	defer func() { finish(res, err) }()

	resp, terr := c.execute(ctx, doc, operationName, variables)
	if terr != nil {
		return nil, terr
	}
	return &Result{Data: resp.Data, Errors: resp.Errors, Source: SourceNetwork, Complete: len(resp.Errors) == 0}, nil
}

// execute runs the transport and merges a successful data payload. An
// error payload without data surfaces as *OperationError with the store
// untouched; a partial payload is written field-wise and its errors are
// returned alongside.
func (c *Client) execute(ctx context.Context, doc *language.QueryDocument, operationName string, variables map[string]any) (*Response, error) {
	resp, err := c.transport.Execute(ctx, doc, operationName, variables)
	if err != nil {
		return nil, err
	}
	if resp.Data == nil {
		return nil, &OperationError{Errors: resp.Errors}
	}

	start := time.Now()
	changed, werr := c.cache.Write(doc, operationName, variables, resp.Data)
	eventbus.Publish(ctx, events.StoreWrite{
		OperationName: operationName,
		ChangedKeys:   len(changed),
		Duration:      time.Since(start),
	})
	if werr != nil {
		return nil, werr
	}
	return resp, nil
}

// Watch registers a live subscription. The initial read result is
// returned; onUpdate fires when a later write changes data the query
// depends on and the result differs structurally.
func (c *Client) Watch(doc *language.QueryDocument, operationName string, variables map[string]any, onUpdate func(cache.ReadResult)) (func(), cache.ReadResult, error) {
	wrapped := func(rr cache.ReadResult) {
		eventbus.Publish(context.Background(), events.WatchNotify{
			OperationName: operationName,
			Complete:      rr.Complete,
		})
		onUpdate(rr)
	}
	return c.cache.Watch(doc, operationName, variables, wrapped)
}

// ReadFragment reads a fragment's selection directly from one record.
func (c *Client) ReadFragment(key store.EntityKey, doc *language.QueryDocument, fragmentName string, variables map[string]any) (cache.ReadResult, error) {
	return c.cache.ReadFragment(key, doc, fragmentName, variables)
}

// WriteFragment applies a local-only patch without a round trip.
func (c *Client) WriteFragment(key store.EntityKey, doc *language.QueryDocument, fragmentName string, variables map[string]any, data map[string]any) (map[store.EntityKey]struct{}, error) {
	return c.cache.WriteFragment(key, doc, fragmentName, variables, data)
}

// Collect runs an on-demand garbage collection pass.
func (c *Client) Collect(ctx context.Context) []store.EntityKey {
	start := time.Now()
	removed := c.cache.Collect()
	eventbus.Publish(ctx, events.GCFinish{Removed: len(removed), Duration: time.Since(start)})
	return removed
}

// beginOperation stamps an operation ID and publishes the start/finish
// event pair around one query or mutation.
func (c *Client) beginOperation(ctx context.Context, operationName, operationType string) (context.Context, func(*Result, error)) {
	if _, ok := opid.FromContext(ctx); !ok {
		ctx, _ = opid.NewContext(ctx)
	}
	start := time.Now()
	eventbus.Publish(ctx, events.OperationStart{OperationName: operationName, OperationType: operationType})
	return ctx, func(res *Result, err error) {
		fin := events.OperationFinish{
			OperationName: operationName,
			OperationType: operationType,
			Err:           err,
			Duration:      time.Since(start),
		}
		if res != nil {
			fin.Source = res.Source
			fin.Complete = res.Complete
		}
		eventbus.Publish(ctx, fin)
	}
}
