package commentapi

import (
	"errors"
	"fmt"
)

// RejectedError means the server answered but declined the request, either
// with success=false or with a non-2xx status and a JSON body.
type RejectedError struct {
	StatusCode int
	Message    string
}

func (e *RejectedError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("comment rejected (status %d)", e.StatusCode)
	}
	return fmt.Sprintf("comment rejected (status %d): %s", e.StatusCode, e.Message)
}

// TransportError means no usable answer was received: the server was
// unreachable, the request timed out or the body was not valid JSON.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func IsRejected(err error) bool {
	var r *RejectedError
	return errors.As(err, &r)
}

func IsTransport(err error) bool {
	var t *TransportError
	return errors.As(err, &t)
}
