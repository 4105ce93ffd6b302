package transport

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"sync"

	"github.com/julienschmidt/httprouter"
	"go.uber.org/zap"
)

// HTTPServer serves POST / and hands the body to the RequestHandler.
// Every request runs on its own goroutine (net/http's model).
type HTTPServer struct {
	opts options

	mu       sync.Mutex
	listener net.Listener
	server   *http.Server
}

func NewHTTPServer(opts ...Option) *HTTPServer {
	return &HTTPServer{opts: applyOptions(opts)}
}

func (s *HTTPServer) Init(port int, handler RequestHandler) error {
	listener, err := net.Listen("tcp", ":"+strconv.Itoa(port))
	if err != nil {
		return err
	}

	router := httprouter.New()
	router.POST("/", func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		w.Header().Set("Content-Type", "application/octet-stream")
		handler.OnRequest(r.Context(), r.Body, w)
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	s.listener = listener
	s.server = &http.Server{Handler: router}
	s.opts.logger.Info("http transport listening", zap.String("addr", listener.Addr().String()))
	return nil
}

func (s *HTTPServer) Start() error {
	s.mu.Lock()
	srv, listener := s.server, s.listener
	s.mu.Unlock()
	if srv == nil {
		return ErrNotInit
	}

	err := srv.Serve(listener)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *HTTPServer) Stop() error {
	s.mu.Lock()
	srv, listener := s.server, s.listener
	s.mu.Unlock()
	if srv == nil {
		return ErrNotInit
	}
	// Shutdown only closes listeners Serve has seen.
	defer listener.Close()

	ctx, cancel := context.WithTimeout(context.Background(), s.opts.shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		s.opts.logger.Warn("http transport shutdown", zap.Error(err))
		return err
	}
	return nil
}

func (s *HTTPServer) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}
