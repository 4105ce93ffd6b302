package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"

	"go.uber.org/zap"
)

// HTTPClient sends each request as a POST to http://host:port/.
//
// Connect only validates and records the peer; sockets are opened lazily by
// net/http and kept alive between calls.
type HTTPClient struct {
	opts   options
	client *http.Client

	mu     sync.Mutex
	url    string
	closed bool
}

func NewHTTPClient(opts ...Option) *HTTPClient {
	return &HTTPClient{
		opts: applyOptions(opts),
		client: &http.Client{
			Transport: http.DefaultTransport.(*http.Transport).Clone(),
		},
	}
}

func (c *HTTPClient) Connect(ctx context.Context, peer Peer) error {
	if err := peer.Validate(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	c.url = "http://" + peer.String() + "/"
	c.opts.logger.Debug("http transport connected", zap.String("url", c.url))
	return nil
}

func (c *HTTPClient) Write(ctx context.Context, request []byte) ([]byte, error) {
	c.mu.Lock()
	url, closed := c.url, c.closed
	c.mu.Unlock()
	if closed {
		return nil, ErrClosed
	}
	if url == "" {
		return nil, ErrNotConnected
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(request))
	if err != nil {
		return nil, &Error{Op: "build request", Err: err}
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &Error{Op: "post " + url, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Op: "read reply", Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &Error{Op: "post " + url, Err: fmt.Errorf("received status code %d", resp.StatusCode)}
	}
	return body, nil
}

func (c *HTTPClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	c.client.CloseIdleConnections()
	return nil
}

func (c *HTTPClient) String() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return "http:" + c.url
}
