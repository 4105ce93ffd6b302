package client

import (
	"fmt"

	"mrpc/message"
)

// CallError is the single error type a remote call returns.
//
// Remote failures (the server answered with a non-zero code) carry the
// server's message and a nil Err. Local failures (no connection, transport or
// codec error) carry the cause in Err, so errors.Is works through it.
type CallError struct {
	Service message.ServiceDescriptor
	Code    int
	Message string
	Err     error
}

func (e *CallError) Error() string {
	return fmt.Sprintf("rpc %s.%s: %s", e.Service.Class, e.Service.Method, e.Message)
}

func (e *CallError) Unwrap() error { return e.Err }

// Remote reports whether the server produced the failure.
func (e *CallError) Remote() bool { return e.Err == nil }
