package transport

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"mrpc/protocol"

	"go.uber.org/zap"
)

// TCPServer accepts framed requests over persistent TCP connections.
//
// Request pipeline:
//
//	Accept conn → handleConn (single goroutine reads frames)
//	  → for each request: go handleRequest (parallel processing)
//	    → RequestHandler.OnRequest → write response frame with the same seq
type TCPServer struct {
	opts options

	mu       sync.Mutex
	listener net.Listener
	handler  RequestHandler
	conns    map[net.Conn]struct{}

	wg       sync.WaitGroup // in-flight requests
	shutdown atomic.Bool    // set before the listener closes so Accept errors are expected
	ctx      context.Context
	cancel   context.CancelFunc
}

func NewTCPServer(opts ...Option) *TCPServer {
	ctx, cancel := context.WithCancel(context.Background())
	return &TCPServer{
		opts:   applyOptions(opts),
		conns:  make(map[net.Conn]struct{}),
		ctx:    ctx,
		cancel: cancel,
	}
}

func (s *TCPServer) Init(port int, handler RequestHandler) error {
	listener, err := net.Listen("tcp", ":"+strconv.Itoa(port))
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listener = listener
	s.handler = handler
	s.opts.logger.Info("tcp transport listening", zap.String("addr", listener.Addr().String()))
	return nil
}

// Start runs the accept loop: one goroutine per connection.
func (s *TCPServer) Start() error {
	s.mu.Lock()
	listener := s.listener
	s.mu.Unlock()
	if listener == nil {
		return ErrNotInit
	}

	for {
		conn, err := listener.Accept()
		if err != nil {
			if s.shutdown.Load() {
				return nil
			}
			return err
		}
		if !s.track(conn) {
			conn.Close()
			return nil
		}
		go s.handleConn(conn)
	}
}

func (s *TCPServer) track(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.shutdown.Load() {
		return false
	}
	s.conns[conn] = struct{}{}
	return true
}

// handleConn reads frames sequentially (frame boundaries require a single
// reader) and dispatches each request to its own goroutine. writeMu keeps
// concurrent responses on the same connection from interleaving.
func (s *TCPServer) handleConn(conn net.Conn) {
	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		conn.Close()
	}()

	writeMu := &sync.Mutex{}
	for {
		header, body, err := protocol.Decode(conn)
		if err != nil {
			if !s.shutdown.Load() {
				s.opts.logger.Debug("tcp connection closed",
					zap.String("remote", conn.RemoteAddr().String()), zap.Error(err))
			}
			return
		}
		if header.MsgType == protocol.MsgTypeHeartbeat {
			continue
		}
		if header.MsgType != protocol.MsgTypeRequest {
			s.opts.logger.Warn("dropping unexpected frame", zap.Uint8("msgType", uint8(header.MsgType)))
			continue
		}

		s.wg.Add(1)
		go s.handleRequest(header, body, conn, writeMu)
	}
}

func (s *TCPServer) handleRequest(header *protocol.Header, body []byte, conn net.Conn, writeMu *sync.Mutex) {
	defer s.wg.Done()

	var out bytes.Buffer
	s.handler.OnRequest(s.ctx, bytes.NewReader(body), &out)

	reply := protocol.Header{
		CodecType: header.CodecType,
		MsgType:   protocol.MsgTypeResponse,
		Seq:       header.Seq,
	}

	writeMu.Lock()
	defer writeMu.Unlock()
	if err := protocol.Encode(conn, &reply, out.Bytes()); err != nil {
		s.opts.logger.Warn("failed to write response frame", zap.Uint32("seq", header.Seq), zap.Error(err))
	}
}

// Stop closes the listener, waits for in-flight requests (bounded by the
// shutdown timeout), then closes the remaining connections.
func (s *TCPServer) Stop() error {
	s.mu.Lock()
	listener := s.listener
	if listener == nil {
		s.mu.Unlock()
		return ErrNotInit
	}
	// Set the flag before closing so Start sees an expected Accept error.
	s.shutdown.Store(true)
	s.mu.Unlock()

	listener.Close()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-time.After(s.opts.shutdownTimeout):
		err = fmt.Errorf("transport: timeout waiting for ongoing requests to finish")
	}

	s.cancel()
	s.mu.Lock()
	for conn := range s.conns {
		conn.Close()
	}
	s.mu.Unlock()
	return err
}

func (s *TCPServer) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}
