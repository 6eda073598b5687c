package gateway

import (
	"errors"
	"fmt"
)

// ErrEmptyID is returned when a required path identifier is empty.
// No network call is made.
var ErrEmptyID = errors.New("gateway: empty identifier")

// ErrBodyTooLarge is wrapped by a TransportError when a response exceeds
// the client's body limit.
var ErrBodyTooLarge = errors.New("response body too large")

// TransportError reports a failure to reach the gateway or read its response.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("gateway: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// DecodeError reports a response body that is not in the expected shape.
type DecodeError struct {
	Op  string
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("gateway: %s: decoding response: %v", e.Op, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// StatusError reports a non-2xx response. Body holds a bounded excerpt.
type StatusError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("gateway: %s: status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("gateway: %s: status %d: %s", e.Op, e.StatusCode, e.Body)
}
