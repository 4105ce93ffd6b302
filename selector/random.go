package selector

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"

	"mrpc/transport"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// RandomSelector picks uniformly at random among the available connections.
//
// The pool is a slice of available clients plus the set of checked-out ones,
// both guarded by mu. sem holds one token per available connection, so an
// empty pool makes Select wait (or fail fast) instead of indexing into nothing.
type RandomSelector struct {
	failFast bool
	logger   *zap.Logger

	mu          sync.Mutex
	sem         *semaphore.Weighted
	total       int
	available   []transport.Client
	checkedOut  map[transport.Client]struct{}
	initialized bool
	closed      bool
}

type Option func(*RandomSelector)

// WithFailFast makes Select return ErrPoolExhausted immediately when every
// connection is checked out, instead of waiting for a Release.
func WithFailFast() Option {
	return func(s *RandomSelector) { s.failFast = true }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *RandomSelector) {
		if l != nil {
			s.logger = l
		}
	}
}

func NewRandomSelector(opts ...Option) *RandomSelector {
	s := &RandomSelector{
		logger:     zap.NewNop(),
		checkedOut: make(map[transport.Client]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Init connects max(countPerPeer, 1) clients to every peer, concurrently. If
// any connect fails, the clients that did connect are closed and the first
// error is returned.
func (s *RandomSelector) Init(ctx context.Context, peers []transport.Peer, countPerPeer int, factory transport.ClientFactory) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case s.closed:
		return ErrSelectorClosed
	case s.initialized:
		return ErrAlreadyInit
	case len(peers) == 0:
		return ErrNoPeers
	}

	count := max(countPerPeer, 1)
	conns := make([]transport.Client, len(peers)*count)
	g, gctx := errgroup.WithContext(ctx)
	for i, peer := range peers {
		for j := 0; j < count; j++ {
			slot := i*count + j
			peer, j := peer, j
			g.Go(func() error {
				c := factory()
				if err := c.Connect(gctx, peer); err != nil {
					c.Close()
					return fmt.Errorf("selector: connect %s: %w", peer, err)
				}
				s.logger.Debug("pooled connection", zap.String("peer", peer.String()), zap.Int("index", j))
				conns[slot] = c
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		for _, opened := range conns {
			if opened != nil {
				opened.Close()
			}
		}
		return err
	}

	s.available = conns
	s.total = len(conns)
	s.sem = semaphore.NewWeighted(int64(len(conns)))
	s.initialized = true
	s.logger.Info("connection pool ready", zap.Int("peers", len(peers)), zap.Int("connections", s.total))
	return nil
}

func (s *RandomSelector) Select(ctx context.Context) (transport.Client, error) {
	s.mu.Lock()
	switch {
	case s.closed:
		s.mu.Unlock()
		return nil, ErrSelectorClosed
	case !s.initialized:
		s.mu.Unlock()
		return nil, ErrNotInitialized
	}
	sem := s.sem
	s.mu.Unlock()

	if s.failFast {
		if !sem.TryAcquire(1) {
			return nil, ErrPoolExhausted
		}
	} else if err := sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPoolExhausted, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		sem.Release(1)
		return nil, ErrSelectorClosed
	}
	n := len(s.available)
	if n == 0 {
		// unreachable while the token count tracks len(available)
		sem.Release(1)
		return nil, ErrPoolExhausted
	}

	i := rand.Intn(n)
	c := s.available[i]
	s.available[i] = s.available[n-1]
	s.available[n-1] = nil
	s.available = s.available[:n-1]
	s.checkedOut[c] = struct{}{}
	return c, nil
}

func (s *RandomSelector) Release(c transport.Client) error {
	s.mu.Lock()
	if _, ok := s.checkedOut[c]; !ok {
		s.mu.Unlock()
		return ErrUnknownConnection
	}
	delete(s.checkedOut, c)

	if s.closed {
		s.total--
		s.mu.Unlock()
		// wake a waiter so it observes the close
		s.sem.Release(1)
		return c.Close()
	}

	s.available = append(s.available, c)
	s.mu.Unlock()
	s.sem.Release(1)
	return nil
}

func (s *RandomSelector) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	var errs []error
	for _, c := range s.available {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	s.total -= len(s.available)
	s.available = nil
	s.logger.Info("connection pool closed", zap.Int("checkedOut", len(s.checkedOut)))
	return errors.Join(errs...)
}

func (s *RandomSelector) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		Total:      s.total,
		Available:  len(s.available),
		CheckedOut: len(s.checkedOut),
	}
}
