package server

import (
	"fmt"
	"time"

	"mrpc/codec"
	"mrpc/transport"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Config holds the server settings that can come from a config document.
type Config struct {
	// Port to listen on; 0 picks an ephemeral port.
	Port      int    `yaml:"port"`
	Codec     string `yaml:"codec"`
	Transport string `yaml:"transport"`

	LogRequests bool `yaml:"log_requests"`
	// RateLimit is the accepted requests per second; 0 disables limiting.
	RateLimit       float64       `yaml:"rate_limit"`
	RateBurst       int           `yaml:"rate_burst"`
	HandlerTimeout  time.Duration `yaml:"handler_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

func DefaultConfig() Config {
	return Config{
		Port:            3000,
		Codec:           "json",
		Transport:       "http",
		ShutdownTimeout: 5 * time.Second,
	}
}

func (c Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("server: invalid port %d", c.Port)
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("server: invalid rate limit %v", c.RateLimit)
	}
	return nil
}

type Option func(*Server)

func WithLogger(l *zap.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Server) { s.tracerProvider = tp }
}

// WithCodec overrides the codec named in Config.
func WithCodec(c codec.Codec) Option {
	return func(s *Server) { s.codec = c }
}

// WithTransport overrides the transport named in Config.
func WithTransport(t transport.Server) Option {
	return func(s *Server) { s.transport = t }
}
