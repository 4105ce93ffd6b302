// Package transport moves opaque request bytes to a peer and response bytes back.
//
// The RPC core never looks inside a transport: a Client performs one synchronous
// round trip per Write, and a Server hands each inbound payload to a
// RequestHandler and sends back whatever the handler writes. Two implementations
// ship with the package: HTTP (POST to "/") and TCP (length-prefixed frames from
// the protocol package).
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
)

var (
	ErrNotConnected = errors.New("transport: not connected")
	ErrClosed       = errors.New("transport: closed")
	ErrNotInit      = errors.New("transport: server not initialized")
)

// Error is a failed exchange with a peer: dial, write or read.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return "transport: " + e.Op + ": " + e.Err.Error() }

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Kind() string { return "transport error" }

// AsError returns err unchanged if it already carries an *Error, and wraps it
// as op's failure otherwise.
func AsError(op string, err error) error {
	var te *Error
	if err == nil || errors.As(err, &te) {
		return err
	}
	return &Error{Op: op, Err: err}
}

// Peer is the address of a remote server.
type Peer struct {
	Host string `yaml:"host" json:"host"`
	Port int    `yaml:"port" json:"port"`
}

func (p Peer) String() string {
	return net.JoinHostPort(p.Host, strconv.Itoa(p.Port))
}

// Validate reports whether p can be dialed.
func (p Peer) Validate() error {
	if p.Host == "" {
		return fmt.Errorf("transport: peer %q has no host", p.String())
	}
	if p.Port <= 0 || p.Port > 65535 {
		return fmt.Errorf("transport: peer %q has invalid port", p.String())
	}
	return nil
}

// ParsePeer parses "host:port".
func ParsePeer(s string) (Peer, error) {
	host, port, err := net.SplitHostPort(s)
	if err != nil {
		return Peer{}, fmt.Errorf("transport: parse peer %q: %w", s, err)
	}
	n, err := strconv.Atoi(port)
	if err != nil {
		return Peer{}, fmt.Errorf("transport: parse peer %q: %w", s, err)
	}
	p := Peer{Host: host, Port: n}
	return p, p.Validate()
}

// Client is one connection to one peer. A Client carries at most one
// in-flight Write at a time; the selector guarantees exclusive use.
type Client interface {
	// Connect binds the client to peer. It is called once, before any Write.
	Connect(ctx context.Context, peer Peer) error
	// Write sends request and returns the peer's reply. There is no built-in
	// deadline: a stuck peer blocks the caller until ctx ends.
	Write(ctx context.Context, request []byte) ([]byte, error)
	Close() error
}

// ClientFactory creates unconnected Clients.
type ClientFactory func() Client

// RequestHandler processes one inbound payload. Whatever it writes to out is
// the response body.
type RequestHandler interface {
	OnRequest(ctx context.Context, in io.Reader, out io.Writer)
}

// HandlerFunc adapts a function to RequestHandler.
type HandlerFunc func(ctx context.Context, in io.Reader, out io.Writer)

func (f HandlerFunc) OnRequest(ctx context.Context, in io.Reader, out io.Writer) {
	f(ctx, in, out)
}

// Server listens for requests and dispatches them to a RequestHandler.
type Server interface {
	// Init binds the listener on port (0 picks a free port) and installs handler.
	Init(port int, handler RequestHandler) error
	// Start serves until Stop is called. It returns nil after a clean stop.
	Start() error
	Stop() error
	// Addr is the bound listen address; valid after Init.
	Addr() string
}

// NewClientFactory returns the factory registered under name ("http" or "tcp").
// An empty name selects HTTP.
func NewClientFactory(name string, opts ...Option) (ClientFactory, error) {
	switch name {
	case "", "http":
		return func() Client { return NewHTTPClient(opts...) }, nil
	case "tcp":
		return func() Client { return NewTCPClient(opts...) }, nil
	default:
		return nil, fmt.Errorf("transport: unknown transport %q", name)
	}
}

// NewServer returns the server registered under name ("http" or "tcp").
// An empty name selects HTTP.
func NewServer(name string, opts ...Option) (Server, error) {
	switch name {
	case "", "http":
		return NewHTTPServer(opts...), nil
	case "tcp":
		return NewTCPServer(opts...), nil
	default:
		return nil, fmt.Errorf("transport: unknown transport %q", name)
	}
}
