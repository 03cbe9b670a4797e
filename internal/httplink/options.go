package httplink

import (
	"net/http"
	"time"
)

// Options configures the HTTP transport behavior.
//
// Defaults:
// - Timeout:          10s (used only if the incoming context has no deadline)
// - MaxTries:         3 (1 initial attempt + 2 retries on transient failures)
// - MaxResponseBytes: 8 MiB
// - HTTPClient:       http.DefaultClient
//
// All options are safe to leave zero-valued to use defaults.
type Options struct {
	HTTPClient *http.Client

	Timeout          time.Duration
	MaxTries         uint
	MaxResponseBytes int64

	// Headers are added to every request (authorization, tracing, ...).
	Headers map[string]string
}

// Option mutates Options
//
// Use WithX helpers below.
type Option func(*Options)

func defaultOptions() *Options {
	return &Options{
		HTTPClient:       http.DefaultClient,
		Timeout:          10 * time.Second,
		MaxTries:         3,
		MaxResponseBytes: 8 << 20,
	}
}

func WithHTTPClient(c *http.Client) Option  { return func(o *Options) { o.HTTPClient = c } }
func WithTimeout(d time.Duration) Option    { return func(o *Options) { o.Timeout = d } }
func WithMaxTries(n uint) Option            { return func(o *Options) { o.MaxTries = n } }
func WithMaxResponseBytes(n int64) Option   { return func(o *Options) { o.MaxResponseBytes = n } }
func WithHeader(name, value string) Option {
	return func(o *Options) {
		if o.Headers == nil {
			o.Headers = map[string]string{}
		}
		o.Headers[name] = value
	}
}
