package server

import (
	"errors"
	"fmt"

	"mrpc/message"
)

var (
	// ErrServiceNotFound is returned when no registered target matches the
	// request's descriptor.
	ErrServiceNotFound = errors.New("service not found")
	// ErrBadParameters is returned when the arguments cannot be bound to the
	// target's parameter list.
	ErrBadParameters = errors.New("bad parameters")
)

// InvocationError wraps an error returned by (or a panic raised in) a
// registered target.
type InvocationError struct {
	Service message.ServiceDescriptor
	Err     error
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("%s: %v", e.Service.Method, e.Err)
}

func (e *InvocationError) Unwrap() error { return e.Err }

func (e *InvocationError) Kind() string { return "invocation failed" }
