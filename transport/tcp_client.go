package transport

import (
	"context"
	"fmt"
	"net"
	"sync"

	"mrpc/protocol"

	"go.uber.org/zap"
)

// TCPClient keeps one persistent TCP connection to a peer and performs one
// framed request/response exchange per Write.
type TCPClient struct {
	opts options

	mu   sync.Mutex // serializes Write; a pooled client sees one call at a time anyway
	conn net.Conn
	seq  uint32
}

func NewTCPClient(opts ...Option) *TCPClient {
	return &TCPClient{opts: applyOptions(opts)}
}

func (c *TCPClient) Connect(ctx context.Context, peer Peer) error {
	if err := peer.Validate(); err != nil {
		return err
	}
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", peer.String())
	if err != nil {
		return &Error{Op: "dial " + peer.String(), Err: err}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		c.conn.Close()
	}
	c.conn = conn
	c.opts.logger.Debug("tcp transport connected", zap.String("peer", peer.String()))
	return nil
}

// Write sends one request frame and waits for the response with the same seq.
//
// If ctx ends before the response arrives, the connection is closed to unblock
// the read. Any failed exchange (cancellation, I/O error, unexpected frame)
// leaves the stream in an unknown state, so the connection is dropped and
// every later Write returns ErrNotConnected. There is no reconnect: a pooled
// client is unusable after its first failure until Connect is called again.
func (c *TCPClient) Write(ctx context.Context, request []byte) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil, ErrNotConnected
	}

	// Unblock the read when ctx ends.
	if ctx.Done() != nil {
		conn := c.conn
		stop := context.AfterFunc(ctx, func() { conn.Close() })
		defer stop()
	}

	c.seq++
	header := protocol.Header{
		CodecType: c.opts.codecType,
		MsgType:   protocol.MsgTypeRequest,
		Seq:       c.seq,
	}
	if err := protocol.Encode(c.conn, &header, request); err != nil {
		return nil, c.fail(ctx, "write request", err)
	}

	for {
		reply, body, err := protocol.Decode(c.conn)
		if err != nil {
			return nil, c.fail(ctx, "read reply", err)
		}
		if reply.MsgType == protocol.MsgTypeHeartbeat {
			continue
		}
		if reply.MsgType != protocol.MsgTypeResponse || reply.Seq != header.Seq {
			return nil, c.fail(ctx, "read reply", fmt.Errorf("unexpected frame type=%d seq=%d, want response seq=%d",
				reply.MsgType, reply.Seq, header.Seq))
		}
		return body, nil
	}
}

// fail drops the connection and reports err, or ctx's error if ctx ended.
// Callers hold c.mu.
func (c *TCPClient) fail(ctx context.Context, op string, err error) error {
	c.conn.Close()
	c.conn = nil
	if ctxErr := ctx.Err(); ctxErr != nil {
		err = ctxErr
	}
	c.opts.logger.Debug("tcp transport dropped connection", zap.String("op", op), zap.Error(err))
	return &Error{Op: op, Err: err}
}

func (c *TCPClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

func (c *TCPClient) String() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return "tcp:<unconnected>"
	}
	return "tcp:" + c.conn.RemoteAddr().String()
}
