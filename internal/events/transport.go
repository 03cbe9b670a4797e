package events

import "time"

// TransportStart is emitted before a transport call leaves the process.
type TransportStart struct {
	Endpoint      string
	OperationName string
}

// TransportFinish is emitted after a transport call resolves.
type TransportFinish struct {
	Endpoint      string
	OperationName string
	Status        int
	Attempts      int
	Err           error
	Duration      time.Duration
}
