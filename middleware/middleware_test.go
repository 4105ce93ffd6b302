package middleware

import (
	"context"
	"testing"
	"time"

	"mrpc/message"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

var addRequest = &message.Request{
	ID:      "req-1",
	Service: message.ServiceDescriptor{Class: "calc.Calc", Method: "Add"},
}

func echoHandler(ctx context.Context, req *message.Request) *message.Response {
	resp := message.NewResponse()
	resp.Data = req.Service.Method
	return resp
}

func slowHandler(ctx context.Context, req *message.Request) *message.Response {
	time.Sleep(200 * time.Millisecond)
	return message.NewResponse()
}

func failingHandler(ctx context.Context, req *message.Request) *message.Response {
	return message.Failuref("invocation failed: boom")
}

func TestLogging(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	handler := LoggingMiddleware(zap.New(core))(echoHandler)

	resp := handler(context.Background(), addRequest)
	require.True(t, resp.OK())
	require.Equal(t, "Add", resp.Data)

	entries := logs.All()
	require.Len(t, entries, 1)
	require.Equal(t, "rpc", entries[0].Message)
	require.Equal(t, "Add", entries[0].ContextMap()["method"])
}

func TestLoggingFailure(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	handler := LoggingMiddleware(zap.New(core))(failingHandler)

	resp := handler(context.Background(), addRequest)
	require.False(t, resp.OK())

	entries := logs.FilterMessage("rpc failed").All()
	require.Len(t, entries, 1)
	require.Equal(t, zap.WarnLevel, entries[0].Level)
	require.Equal(t, "invocation failed: boom", entries[0].ContextMap()["error"])
}

func TestTimeoutPass(t *testing.T) {
	handler := TimeOutMiddleware(500 * time.Millisecond)(echoHandler)

	resp := handler(context.Background(), addRequest)
	require.True(t, resp.OK(), resp.Message)
}

func TestTimeoutExceeded(t *testing.T) {
	handler := TimeOutMiddleware(50 * time.Millisecond)(slowHandler)

	resp := handler(context.Background(), addRequest)
	require.Equal(t, message.CodeFailed, resp.Code)
	require.Equal(t, "request timed out", resp.Message)
}

func TestRateLimit(t *testing.T) {
	// rate=1 per second, burst=2: the first two pass, the third is rejected
	handler := RateLimitMiddleware(1, 2)(echoHandler)

	for i := 0; i < 2; i++ {
		resp := handler(context.Background(), addRequest)
		require.True(t, resp.OK(), "request %d: %s", i, resp.Message)
	}

	resp := handler(context.Background(), addRequest)
	require.Equal(t, "rate limit exceeded", resp.Message)
}

func TestChainOrder(t *testing.T) {
	var order []string
	mark := func(name string) Middleware {
		return func(next HandlerFunc) HandlerFunc {
			return func(ctx context.Context, req *message.Request) *message.Response {
				order = append(order, name+".before")
				resp := next(ctx, req)
				order = append(order, name+".after")
				return resp
			}
		}
	}

	handler := Chain(mark("A"), mark("B"))(echoHandler)
	resp := handler(context.Background(), addRequest)

	require.True(t, resp.OK())
	require.Equal(t, []string{"A.before", "B.before", "B.after", "A.after"}, order)
}

func TestChainEmpty(t *testing.T) {
	resp := Chain()(echoHandler)(context.Background(), addRequest)
	require.Equal(t, "Add", resp.Data)
}
