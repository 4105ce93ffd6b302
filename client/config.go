package client

import (
	"errors"

	"mrpc/codec"
	"mrpc/selector"
	"mrpc/transport"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Config holds the client settings that can come from a config document.
type Config struct {
	Peers []transport.Peer `yaml:"peers"`
	// ConnectCount is the number of pooled connections per peer (at least 1).
	ConnectCount int    `yaml:"connect_count"`
	Codec        string `yaml:"codec"`
	Transport    string `yaml:"transport"`
	// FailFast makes a call fail immediately when every pooled connection is
	// busy, instead of waiting for one to be released.
	FailFast bool `yaml:"fail_fast"`
}

func DefaultConfig() Config {
	return Config{
		Peers:        []transport.Peer{{Host: "127.0.0.1", Port: 3000}},
		ConnectCount: 1,
		Codec:        "json",
		Transport:    "http",
	}
}

func (c Config) Validate() error {
	if len(c.Peers) == 0 {
		return errors.New("client: no peers configured")
	}
	for _, p := range c.Peers {
		if err := p.Validate(); err != nil {
			return err
		}
	}
	return nil
}

type Option func(*Client)

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Client) { c.tracerProvider = tp }
}

// WithCodec overrides the codec named in Config.
func WithCodec(cd codec.Codec) Option {
	return func(c *Client) { c.codec = cd }
}

// WithClientFactory overrides the transport named in Config.
func WithClientFactory(f transport.ClientFactory) Option {
	return func(c *Client) { c.factory = f }
}

// WithSelector replaces the default random selector. The client calls Init on
// it during New.
func WithSelector(s selector.Selector) Option {
	return func(c *Client) { c.selector = s }
}
