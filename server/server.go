// Package server exposes registered Go interfaces to remote callers.
//
// Request processing pipeline:
//
//	transport → OnRequest: read body → Codec.Decode
//	  → middleware chain → dispatch: registry lookup → Dispatcher.Invoke
//	  → Codec.Encode(Response) → transport writes the bytes back
//
// Every request gets its own Response. Failures at any stage become a
// code 1 Response whose message names the failure kind.
package server

import (
	"context"
	"fmt"
	"io"
	"reflect"
	"sync"

	"mrpc/codec"
	"mrpc/message"
	"mrpc/middleware"
	"mrpc/transport"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const tracerName = "mrpc/server"

type Server struct {
	cfg            Config
	logger         *zap.Logger
	tracerProvider trace.TracerProvider
	tracer         trace.Tracer
	codec          codec.Codec
	transport      transport.Server
	registry       *ServiceRegistry
	dispatcher     *Dispatcher

	mu          sync.Mutex
	middlewares []middleware.Middleware
	handler     middleware.HandlerFunc // middleware(middleware(...(dispatch)))
	listening   bool
}

// New builds a server from cfg. Nothing is bound until Listen or Start.
func New(cfg Config, opts ...Option) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &Server{
		cfg:    cfg,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.tracerProvider == nil {
		s.tracerProvider = otel.GetTracerProvider()
	}
	s.tracer = s.tracerProvider.Tracer(tracerName)

	if s.codec == nil {
		c, err := codec.ByName(cfg.Codec)
		if err != nil {
			return nil, err
		}
		s.codec = c
	}
	if s.transport == nil {
		t, err := transport.NewServer(cfg.Transport,
			transport.WithLogger(s.logger),
			transport.WithFrameCodec(byte(s.codec.Type())),
			transport.WithShutdownTimeout(cfg.ShutdownTimeout),
		)
		if err != nil {
			return nil, err
		}
		s.transport = t
	}

	s.registry = NewServiceRegistry(s.logger)
	s.dispatcher = NewDispatcher(s.codec)
	s.handler = s.dispatch

	if cfg.LogRequests {
		s.Use(middleware.LoggingMiddleware(s.logger))
	}
	if cfg.RateLimit > 0 {
		s.Use(middleware.RateLimitMiddleware(cfg.RateLimit, max(cfg.RateBurst, 1)))
	}
	if cfg.HandlerTimeout > 0 {
		s.Use(middleware.TimeOutMiddleware(cfg.HandlerTimeout))
	}
	return s, nil
}

// Register exposes impl under the interface type iface.
func (s *Server) Register(iface reflect.Type, impl any) error {
	return s.registry.Register(iface, impl)
}

// RegisterService exposes impl under the interface type T.
//
//	server.RegisterService[calc.Calc](srv, calc.Service{})
func RegisterService[T any](s *Server, impl T) error {
	return s.Register(reflect.TypeOf((*T)(nil)).Elem(), impl)
}

// Registry gives access to the registered services.
func (s *Server) Registry() *ServiceRegistry {
	return s.registry
}

// Use adds a middleware. Middlewares apply in the order they are added and
// must be added before Listen.
func (s *Server) Use(mw middleware.Middleware) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.middlewares = append(s.middlewares, mw)
	// Rebuild once per Use, never per request.
	s.handler = middleware.Chain(s.middlewares...)(s.dispatch)
}

// Listen binds the transport to the configured port.
func (s *Server) Listen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listening {
		return nil
	}
	if err := s.transport.Init(s.cfg.Port, s); err != nil {
		return fmt.Errorf("server: listen on port %d: %w", s.cfg.Port, err)
	}
	s.listening = true
	s.logger.Info("server listening",
		zap.String("addr", s.transport.Addr()),
		zap.String("codec", s.codec.Type().String()),
		zap.Int("services", len(s.registry.Services())),
	)
	return nil
}

// Start listens if needed and serves until Stop. It returns nil after a
// clean Stop.
func (s *Server) Start() error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.transport.Start()
}

// Stop stops accepting requests and waits, bounded by the shutdown timeout,
// for in-flight ones.
func (s *Server) Stop() error {
	s.logger.Info("server stopping")
	return s.transport.Stop()
}

// Addr is the bound listener address, or "" before Listen.
func (s *Server) Addr() string {
	return s.transport.Addr()
}

// OnRequest implements transport.RequestHandler.
func (s *Server) OnRequest(ctx context.Context, in io.Reader, out io.Writer) {
	resp := s.handle(ctx, in)

	data, err := s.codec.Encode(resp)
	if err != nil {
		s.logger.Warn("failed to encode response", zap.Error(err))
		data, err = s.codec.Encode(message.Failure(err))
		if err != nil {
			s.logger.Error("failed to encode failure response", zap.Error(err))
			return
		}
	}
	if _, err := out.Write(data); err != nil {
		s.logger.Warn("failed to write response", zap.Error(err))
	}
}

func (s *Server) handle(ctx context.Context, in io.Reader) *message.Response {
	body, err := io.ReadAll(in)
	if err != nil {
		return message.Failure(&transport.Error{Op: "read request", Err: err})
	}
	var req message.Request
	if err := s.codec.Decode(body, &req); err != nil {
		s.logger.Debug("undecodable request", zap.Int("bytes", len(body)), zap.Error(err))
		return message.Failure(err)
	}
	return s.handler(ctx, &req)
}

// dispatch is the innermost handler: lookup, invoke, wrap the result.
func (s *Server) dispatch(ctx context.Context, req *message.Request) *message.Response {
	ctx, span := s.tracer.Start(ctx, req.Service.Class+"/"+req.Service.Method,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("rpc.system", "mrpc"),
			attribute.String("rpc.service", req.Service.Class),
			attribute.String("rpc.method", req.Service.Method),
			attribute.String("rpc.request_id", req.ID),
		),
	)
	defer span.End()

	result, err := s.invoke(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger.Debug("dispatch failed", zap.String("id", req.ID), zap.Error(err))
		return message.Failure(err)
	}

	resp := message.NewResponse()
	resp.Data = result
	return resp
}

func (s *Server) invoke(ctx context.Context, req *message.Request) (any, error) {
	inst, err := s.registry.Lookup(req)
	if err != nil {
		return nil, err
	}
	return s.dispatcher.Invoke(ctx, inst, req)
}
