package client

import "fmt"

// OperationError is returned when the service answered an operation with
// errors and no usable data. The store is left unmodified.
type OperationError struct {
	Errors ErrorList
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("client: operation failed: %s", e.Errors.Error())
}
