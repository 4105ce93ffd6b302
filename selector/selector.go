// Package selector owns the client's pool of connected transports.
//
// A call checks a connection out with Select, uses it exclusively for one round
// trip, and checks it back in with Release. Connections are never shared by two
// in-flight calls.
package selector

import (
	"context"

	"mrpc/transport"
)

var (
	// ErrPoolExhausted is returned when no connection is available: immediately
	// in fail-fast mode, or once the caller's context ends while waiting.
	ErrPoolExhausted error = &Error{kind: "pool exhausted", msg: "selector: connection pool exhausted"}
	// ErrUnknownConnection is returned by Release for a connection that is not
	// currently checked out.
	ErrUnknownConnection error = &Error{kind: "selector error", msg: "selector: connection is not checked out"}
	ErrSelectorClosed    error = &Error{kind: "selector error", msg: "selector: closed"}
	ErrAlreadyInit       error = &Error{kind: "selector error", msg: "selector: already initialized"}
	ErrNotInitialized    error = &Error{kind: "selector error", msg: "selector: not initialized"}
	ErrNoPeers           error = &Error{kind: "selector error", msg: "selector: no peers configured"}
)

// Error is a selector failure. Compare with errors.Is against the Err values.
type Error struct {
	kind string
	msg  string
}

func (e *Error) Error() string { return e.msg }

func (e *Error) Kind() string { return e.kind }

// Stats is a snapshot of the pool. Available + CheckedOut == Total.
type Stats struct {
	Total      int
	Available  int
	CheckedOut int
}

// Selector hands out pooled transport connections under mutual exclusion.
type Selector interface {
	// Init connects max(countPerPeer, 1) clients to every peer.
	Init(ctx context.Context, peers []transport.Peer, countPerPeer int, factory transport.ClientFactory) error
	// Select checks out one connection.
	Select(ctx context.Context) (transport.Client, error)
	// Release checks a connection back in.
	Release(c transport.Client) error
	// Close closes every pooled connection. Checked-out connections are closed
	// when they are released.
	Close() error
	Stats() Stats
}
