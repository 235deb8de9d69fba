package app

import (
	"errors"
	"fmt"
)

// Error taxonomy for daemon calls. The client never recovers these; callers
// decide what to surface.

// APIError reports a non-2xx response from the daemon.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("server returned status code %d", e.Status)
}

// DecodeError reports a response body that did not match the expected schema.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string { return fmt.Sprintf("decode response: %v", e.Err) }
func (e *DecodeError) Unwrap() error { return e.Err }

// NetworkError reports a transport-level failure, including timeouts.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string { return fmt.Sprintf("network error: %v", e.Err) }
func (e *NetworkError) Unwrap() error { return e.Err }

// ErrUnknown covers failures that fit none of the categories above.
var ErrUnknown = errors.New("unknown error")
