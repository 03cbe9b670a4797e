package httplink

import (
	"errors"
	"fmt"
)

var (
	// ErrBodyTooLarge indicates the response exceeded MaxResponseBytes.
	ErrBodyTooLarge = errors.New("httplink: response body too large")
)

// StatusError reports a non-2xx HTTP response. Server-side statuses (5xx)
// and 429 are retried up to MaxTries; client errors are permanent.
type StatusError struct {
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("httplink: unexpected status %d", e.Status)
}
