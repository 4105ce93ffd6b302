// Package client invokes remote services.
//
// Each call checks a pooled connection out of the selector, encodes a Request,
// performs one transport round trip, decodes the Response and checks the
// connection back in. Local failures are turned into a failed Response on the
// way, so callers see a single error type, *CallError, for everything.
package client

import (
	"context"
	"fmt"

	"mrpc/codec"
	"mrpc/message"
	"mrpc/selector"
	"mrpc/transport"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const tracerName = "mrpc/client"

type Client struct {
	cfg            Config
	logger         *zap.Logger
	tracerProvider trace.TracerProvider
	tracer         trace.Tracer
	codec          codec.Codec
	factory        transport.ClientFactory
	selector       selector.Selector
}

// New connects the connection pool to every configured peer. It fails if any
// connection cannot be established.
func New(ctx context.Context, cfg Config, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c := &Client{
		cfg:    cfg,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.tracerProvider == nil {
		c.tracerProvider = otel.GetTracerProvider()
	}
	c.tracer = c.tracerProvider.Tracer(tracerName)

	if c.codec == nil {
		cd, err := codec.ByName(cfg.Codec)
		if err != nil {
			return nil, err
		}
		c.codec = cd
	}
	if c.factory == nil {
		f, err := transport.NewClientFactory(cfg.Transport,
			transport.WithLogger(c.logger),
			transport.WithFrameCodec(byte(c.codec.Type())),
		)
		if err != nil {
			return nil, err
		}
		c.factory = f
	}
	if c.selector == nil {
		sopts := []selector.Option{selector.WithLogger(c.logger)}
		if cfg.FailFast {
			sopts = append(sopts, selector.WithFailFast())
		}
		c.selector = selector.NewRandomSelector(sopts...)
	}

	if err := c.selector.Init(ctx, cfg.Peers, cfg.ConnectCount, c.factory); err != nil {
		return nil, fmt.Errorf("client: %w", err)
	}
	return c, nil
}

// Invoke calls the operation desc with args and returns the opaque result:
// whatever the codec decoded, e.g. float64 for a JSON number. Use Call or a
// Stub to get typed results.
func (c *Client) Invoke(ctx context.Context, desc message.ServiceDescriptor, args ...any) (any, error) {
	if args == nil {
		args = []any{}
	}
	req := &message.Request{
		ID:         uuid.NewString(),
		Service:    desc,
		Parameters: args,
	}

	ctx, span := c.tracer.Start(ctx, desc.Class+"/"+desc.Method,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("rpc.system", "mrpc"),
			attribute.String("rpc.service", desc.Class),
			attribute.String("rpc.method", desc.Method),
			attribute.String("rpc.request_id", req.ID),
		),
	)
	defer span.End()

	resp, cause := c.invokeRemote(ctx, req)
	if !resp.OK() {
		err := &CallError{Service: desc, Code: resp.Code, Message: resp.Message, Err: cause}
		span.RecordError(err)
		span.SetStatus(codes.Error, resp.Message)
		c.logger.Debug("rpc failed", zap.String("id", req.ID), zap.Stringer("service", desc), zap.Error(err))
		return nil, err
	}
	return resp.Data, nil
}

// invokeRemote performs one round trip on one pooled connection. It always
// returns a Response; local failures are synthesized as code 1 and their cause
// is returned alongside.
func (c *Client) invokeRemote(ctx context.Context, req *message.Request) (*message.Response, error) {
	conn, err := c.selector.Select(ctx)
	if err != nil {
		return message.Failure(err), err
	}
	defer func() {
		if err := c.selector.Release(conn); err != nil {
			c.logger.Warn("failed to release connection", zap.Error(err))
		}
	}()

	data, err := c.codec.Encode(req)
	if err != nil {
		return message.Failure(err), err
	}
	reply, err := conn.Write(ctx, data)
	if err != nil {
		err = transport.AsError("write "+req.Service.Method, err)
		return message.Failure(err), err
	}

	var resp message.Response
	if err := c.codec.Decode(reply, &resp); err != nil {
		return message.Failure(err), err
	}
	return &resp, nil
}

// Codec is the codec requests are encoded with.
func (c *Client) Codec() codec.Codec {
	return c.codec
}

// Stats reports the connection pool state.
func (c *Client) Stats() selector.Stats {
	return c.selector.Stats()
}

// Close closes the connection pool. Calls in flight finish on their
// connection, which is closed when released.
func (c *Client) Close() error {
	return c.selector.Close()
}
