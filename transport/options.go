package transport

import (
	"time"

	"go.uber.org/zap"
)

type options struct {
	logger          *zap.Logger
	codecType       byte
	shutdownTimeout time.Duration
}

func defaultOptions() options {
	return options{
		logger:          zap.NewNop(),
		shutdownTimeout: 5 * time.Second,
	}
}

// Option configures transport clients and servers.
type Option func(*options)

func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithFrameCodec sets the codec byte stamped into TCP frame headers. It has no
// effect on HTTP.
func WithFrameCodec(codecType byte) Option {
	return func(o *options) { o.codecType = codecType }
}

// WithShutdownTimeout bounds how long Stop waits for in-flight requests.
func WithShutdownTimeout(d time.Duration) Option {
	return func(o *options) { o.shutdownTimeout = d }
}

func applyOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
