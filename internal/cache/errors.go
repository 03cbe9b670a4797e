package cache

import (
	"errors"
	"fmt"
)

var (
	// ErrNoOperation indicates the document holds no operation matching the
	// requested name.
	ErrNoOperation = errors.New("cache: operation not found")

	// ErrUnsupportedOperation indicates an operation type the cache cannot
	// store (subscriptions).
	ErrUnsupportedOperation = errors.New("cache: unsupported operation type")

	// ErrNoFragment indicates the document holds no fragment definition
	// matching the requested name.
	ErrNoFragment = errors.New("cache: fragment not found")

	// ErrNoRecord indicates a fragment read against a key with no record.
	ErrNoRecord = errors.New("cache: no record for key")
)

// WriteError locates a store-level failure (structural conflict, identity
// resolution) within the response being written.
type WriteError struct {
	Path Path
	Err  error
}

func (e *WriteError) Error() string {
	if len(e.Path) == 0 {
		return e.Err.Error()
	}
	return fmt.Sprintf("at %s: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }
