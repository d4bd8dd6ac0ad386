package prescription

import (
	"errors"
	"fmt"
)

// Error kinds for caller-facing operations. Handlers map these to HTTP
// statuses; everything else degrades to best-effort logging.
var (
	// ErrValidation marks missing or malformed required input.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound marks a record lookup miss.
	ErrNotFound = errors.New("prescription not found")
)

// UpstreamError reports a failed call to the generative AI service. The call
// is not retried; the underlying message is surfaced to the caller.
type UpstreamError struct {
	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("ai service call failed: %v", e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// PersistenceError reports that both the remote registry write and the local
// store write failed. A single-sink failure is never fatal.
type PersistenceError struct {
	RemoteErr error
	LocalErr  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("save failed on all sinks: remote: %v; local: %v", e.RemoteErr, e.LocalErr)
}
