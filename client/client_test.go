package client

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"mrpc/codec"
	"mrpc/message"
	"mrpc/selector"
	"mrpc/server"
	"mrpc/transport"

	"github.com/stretchr/testify/require"
	otelcodes "go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

type Arith interface {
	Add(ctx context.Context, a, b int) (int, error)
	Div(a, b int) (int, error)
	Sleep(ctx context.Context, d time.Duration) error
}

type arith struct{}

func (arith) Add(_ context.Context, a, b int) (int, error) { return a + b, nil }

func (arith) Div(a, b int) (int, error) {
	if b == 0 {
		return 0, errors.New("divide by zero")
	}
	return a / b, nil
}

func (arith) Sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

var arithType = reflect.TypeOf((*Arith)(nil)).Elem()

// startServer runs an Arith server on an ephemeral port.
func startServer(t *testing.T, transportName, codecName string) transport.Peer {
	t.Helper()
	cfg := server.DefaultConfig()
	cfg.Port = 0
	cfg.Transport = transportName
	cfg.Codec = codecName
	cfg.ShutdownTimeout = time.Second

	srv, err := server.New(cfg)
	require.NoError(t, err)
	require.NoError(t, server.RegisterService[Arith](srv, arith{}))
	require.NoError(t, srv.Listen())

	done := make(chan error, 1)
	go func() { done <- srv.Start() }()
	t.Cleanup(func() {
		srv.Stop()
		<-done
	})

	peer, err := transport.ParsePeer(srv.Addr())
	require.NoError(t, err)
	peer.Host = "127.0.0.1"
	return peer
}

func newClient(t *testing.T, peer transport.Peer, mutate func(*Config), opts ...Option) *Client {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Peers = []transport.Peer{peer}
	if mutate != nil {
		mutate(&cfg)
	}
	c, err := New(context.Background(), cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestCall(t *testing.T) {
	for _, tc := range []struct{ transport, codec string }{
		{"http", "json"},
		{"http", "gob"},
		{"tcp", "json"},
		{"tcp", "gob"},
	} {
		t.Run(tc.transport+"/"+tc.codec, func(t *testing.T) {
			peer := startServer(t, tc.transport, tc.codec)
			c := newClient(t, peer, func(cfg *Config) {
				cfg.Transport = tc.transport
				cfg.Codec = tc.codec
			})
			stub, err := StubFor[Arith](c)
			require.NoError(t, err)

			sum, err := Call[int](context.Background(), stub, "Add", 1, 2)
			require.NoError(t, err)
			require.Equal(t, 3, sum)

			var quotient int
			require.NoError(t, stub.Invoke(context.Background(), "Div", &quotient, 9, 3))
			require.Equal(t, 3, quotient)
		})
	}
}

func TestInvokeReturnsOpaqueData(t *testing.T) {
	c := newClient(t, startServer(t, "http", "json"), nil)
	stub, err := StubFor[Arith](c)
	require.NoError(t, err)
	desc, ok := stub.Descriptor("Add")
	require.True(t, ok)

	data, err := c.Invoke(context.Background(), desc, 1, 2)
	require.NoError(t, err)
	require.Equal(t, json.Number("3"), data)
}

func TestRemoteFailure(t *testing.T) {
	c := newClient(t, startServer(t, "http", "json"), nil)
	stub, err := StubFor[Arith](c)
	require.NoError(t, err)

	_, err = Call[int](context.Background(), stub, "Div", 1, 0)
	var ce *CallError
	require.ErrorAs(t, err, &ce)
	require.True(t, ce.Remote())
	require.Equal(t, message.CodeFailed, ce.Code)
	require.Equal(t, "invocation failed: Div: divide by zero", ce.Message)

	// the failure does not stick to the pool
	got, err := Call[int](context.Background(), stub, "Div", 8, 2)
	require.NoError(t, err)
	require.Equal(t, 4, got)
}

func TestServiceNotFound(t *testing.T) {
	c := newClient(t, startServer(t, "http", "json"), nil)
	desc := message.ServiceDescriptor{
		Class:          message.ClassName(arithType),
		Method:         "Pow",
		ParameterTypes: []string{"int", "int"},
		ReturnType:     "int",
	}

	_, err := c.Invoke(context.Background(), desc, 2, 8)
	var ce *CallError
	require.ErrorAs(t, err, &ce)
	require.True(t, ce.Remote())
	require.Contains(t, ce.Message, "service not found")
}

func TestUnknownStubMethod(t *testing.T) {
	c := newClient(t, startServer(t, "http", "json"), nil)
	stub, err := StubFor[Arith](c)
	require.NoError(t, err)

	_, err = Call[int](context.Background(), stub, "Pow", 2, 8)
	require.ErrorContains(t, err, `no method "Pow"`)
	require.Error(t, stub.Invoke(context.Background(), "Pow", nil))
}

func TestNewFailsWithoutServer(t *testing.T) {
	peer := startServer(t, "tcp", "json")
	cfg := DefaultConfig()
	cfg.Transport = "tcp"
	cfg.Peers = []transport.Peer{peer, {Host: "127.0.0.1", Port: 1}}

	_, err := New(context.Background(), cfg)
	require.Error(t, err)
}

func TestConfigValidation(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Peers = nil
	_, err := New(context.Background(), cfg)
	require.Error(t, err)

	cfg = DefaultConfig()
	cfg.Codec = "xml"
	_, err = New(context.Background(), cfg)
	require.Error(t, err)
}

func TestConcurrentCallsShareSmallPool(t *testing.T) {
	c := newClient(t, startServer(t, "tcp", "json"), func(cfg *Config) {
		cfg.Transport = "tcp"
		cfg.ConnectCount = 2
	})
	stub, err := StubFor[Arith](c)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got, err := Call[int](context.Background(), stub, "Add", i, i)
			if err != nil {
				t.Error(err)
				return
			}
			if got != 2*i {
				t.Errorf("Add(%d, %d) = %d", i, i, got)
			}
		}(i)
	}
	wg.Wait()

	require.Equal(t, selector.Stats{Total: 2, Available: 2}, c.Stats())
}

func TestFailFastWhenPoolBusy(t *testing.T) {
	c := newClient(t, startServer(t, "http", "json"), func(cfg *Config) {
		cfg.FailFast = true
	})
	stub, err := StubFor[Arith](c)
	require.NoError(t, err)

	started := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		close(started)
		done <- stub.Invoke(context.Background(), "Sleep", nil, int64(300*time.Millisecond))
	}()
	<-started
	require.Eventually(t, func() bool { return c.Stats().CheckedOut == 1 }, time.Second, 5*time.Millisecond)

	_, err = Call[int](context.Background(), stub, "Add", 1, 1)
	var ce *CallError
	require.ErrorAs(t, err, &ce)
	require.False(t, ce.Remote())
	require.ErrorIs(t, err, selector.ErrPoolExhausted)
	require.Equal(t, "pool exhausted: selector: connection pool exhausted", ce.Message)

	require.NoError(t, <-done)
}

func TestCallHonoursContext(t *testing.T) {
	c := newClient(t, startServer(t, "http", "json"), nil)
	stub, err := StubFor[Arith](c)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err = stub.Invoke(ctx, "Sleep", nil, int64(time.Second))
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Equal(t, 0, c.Stats().CheckedOut)
}

func TestClientSpans(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	c := newClient(t, startServer(t, "http", "json"), nil, WithTracerProvider(tp))
	stub, err := StubFor[Arith](c)
	require.NoError(t, err)

	_, err = Call[int](context.Background(), stub, "Add", 1, 2)
	require.NoError(t, err)
	_, err = Call[int](context.Background(), stub, "Div", 1, 0)
	require.Error(t, err)

	spans := sr.Ended()
	require.Len(t, spans, 2)
	require.Equal(t, message.ClassName(arithType)+"/Add", spans[0].Name())
	require.Equal(t, otelcodes.Unset, spans[0].Status().Code)
	require.Equal(t, otelcodes.Error, spans[1].Status().Code)
}

// scriptedConn answers every Write with reply.
type scriptedConn struct {
	reply func(req []byte) ([]byte, error)
}

func (s *scriptedConn) Connect(context.Context, transport.Peer) error { return nil }

func (s *scriptedConn) Write(_ context.Context, req []byte) ([]byte, error) {
	return s.reply(req)
}

func (s *scriptedConn) Close() error { return nil }

// countingSelector records checkouts and checkins around a RandomSelector.
type countingSelector struct {
	*selector.RandomSelector
	selects, releases atomic.Int32
}

func (s *countingSelector) Select(ctx context.Context) (transport.Client, error) {
	c, err := s.RandomSelector.Select(ctx)
	if err == nil {
		s.selects.Add(1)
	}
	return c, err
}

func (s *countingSelector) Release(c transport.Client) error {
	s.releases.Add(1)
	return s.RandomSelector.Release(c)
}

func TestLocalFailuresReleaseOnce(t *testing.T) {
	writeErr := errors.New("connection reset")
	for _, tc := range []struct {
		name  string
		reply func([]byte) ([]byte, error)
		check func(t *testing.T, err error)
	}{
		{
			name:  "transport error",
			reply: func([]byte) ([]byte, error) { return nil, writeErr },
			check: func(t *testing.T, err error) {
				require.ErrorIs(t, err, writeErr)
				var ce *CallError
				require.ErrorAs(t, err, &ce)
				require.Equal(t, "transport error: transport: write Div: connection reset", ce.Message)
			},
		},
		{
			name:  "undecodable reply",
			reply: func([]byte) ([]byte, error) { return []byte("<html>"), nil },
			check: func(t *testing.T, err error) {
				var de *codec.DecodeError
				require.ErrorAs(t, err, &de)
				var ce *CallError
				require.ErrorAs(t, err, &ce)
				require.True(t, strings.HasPrefix(ce.Message, "decode error: "), ce.Message)
			},
		},
		{
			name: "success",
			reply: func([]byte) ([]byte, error) {
				return []byte(`{"code":0,"message":"ok","data":5}`), nil
			},
			check: func(t *testing.T, err error) { require.NoError(t, err) },
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			sel := &countingSelector{RandomSelector: selector.NewRandomSelector()}
			factory := func() transport.Client { return &scriptedConn{reply: tc.reply} }
			c, err := New(context.Background(), DefaultConfig(), WithSelector(sel), WithClientFactory(factory))
			require.NoError(t, err)
			defer c.Close()

			stub, err := StubFor[Arith](c)
			require.NoError(t, err)
			_, err = Call[int](context.Background(), stub, "Div", 10, 2)

			tc.check(t, err)
			if err != nil {
				var ce *CallError
				require.ErrorAs(t, err, &ce)
				require.False(t, ce.Remote())
			}
			require.EqualValues(t, 1, sel.selects.Load())
			require.EqualValues(t, 1, sel.releases.Load())
			require.Equal(t, selector.Stats{Total: 1, Available: 1}, c.Stats())
		})
	}
}
