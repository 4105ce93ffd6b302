// Package message defines the RPC envelope exchanged between client and server.
//
// A Request names the remote operation with a ServiceDescriptor and carries the
// call arguments; a Response carries a status code, a human-readable message and
// the result. Both are serialized by the codec layer and moved as opaque bytes by
// the transport layer.
package message

import (
	"errors"
	"fmt"
)

// Response codes. Anything other than CodeOK is a failed call.
const (
	CodeOK     = 0
	CodeFailed = 1
)

// DefaultMessage is the message carried by a successful Response.
const DefaultMessage = "ok"

// Request carries one remote call.
//
//   - ID is assigned by the caller for log correlation only.
//   - Service identifies the operation on the server side.
//   - Parameters holds the call arguments in declaration order.
type Request struct {
	ID         string            `json:"id,omitempty"`
	Service    ServiceDescriptor `json:"service"`
	Parameters []any             `json:"parameters"`
}

// Response carries the outcome of one remote call.
type Response struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// NewResponse returns a successful, empty Response.
func NewResponse() *Response {
	return &Response{Code: CodeOK, Message: DefaultMessage}
}

// OK reports whether the response represents a successful call.
func (r *Response) OK() bool {
	return r != nil && r.Code == CodeOK
}

// Failure builds a failed Response whose message describes err.
// Errors implementing Kind() string are rendered as "<kind>: <text>".
func Failure(err error) *Response {
	return &Response{Code: CodeFailed, Message: Describe(err)}
}

// Failuref builds a failed Response with a formatted message.
func Failuref(format string, args ...any) *Response {
	return &Response{Code: CodeFailed, Message: fmt.Sprintf(format, args...)}
}

// Describe renders err as "<kind>: <text>" when some error in its chain names a
// kind, and as plain text otherwise.
func Describe(err error) string {
	if err == nil {
		return ""
	}
	var k interface{ Kind() string }
	if errors.As(err, &k) {
		return k.Kind() + ": " + err.Error()
	}
	return err.Error()
}
