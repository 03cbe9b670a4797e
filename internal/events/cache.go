package events

import "time"

// OperationStart is emitted before the client runs a query or mutation.
type OperationStart struct {
	OperationName string
	OperationType string
}

// OperationFinish is emitted after a query or mutation completes.
type OperationFinish struct {
	OperationName string
	OperationType string
	// Source reports where the result came from: "cache" or "network".
	Source   string
	Complete bool
	Err      error
	Duration time.Duration
}

// StoreWrite is emitted after a response or local patch is merged.
type StoreWrite struct {
	OperationName string
	ChangedKeys   int
	Duration      time.Duration
}

// WatchNotify is emitted when a watch callback fires.
type WatchNotify struct {
	OperationName string
	Complete      bool
}

// GCFinish is emitted after an on-demand collection pass.
type GCFinish struct {
	Removed  int
	Duration time.Duration
}
