package config

import (
	"context"
	"errors"
	"fmt"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
	"go.uber.org/zap"
)

// DefaultEtcdKey is where the document lives when no key is given.
const DefaultEtcdKey = "/mrpc/config"

var ErrNoDocument = errors.New("config: no document stored")

// EtcdStore keeps one config document under a single etcd key.
//
// The document is read when a process starts; changes made afterwards are
// picked up on the next start.
type EtcdStore struct {
	client *clientv3.Client // thread-safe, shared across goroutines
	key    string
	logger *zap.Logger
}

type EtcdOption func(*etcdOptions)

type etcdOptions struct {
	key         string
	dialTimeout time.Duration
	logger      *zap.Logger
}

func WithKey(key string) EtcdOption {
	return func(o *etcdOptions) { o.key = key }
}

func WithDialTimeout(d time.Duration) EtcdOption {
	return func(o *etcdOptions) { o.dialTimeout = d }
}

func WithLogger(l *zap.Logger) EtcdOption {
	return func(o *etcdOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// NewEtcdStore creates a store backed by the etcd cluster at endpoints.
func NewEtcdStore(endpoints []string, opts ...EtcdOption) (*EtcdStore, error) {
	o := etcdOptions{
		key:         DefaultEtcdKey,
		dialTimeout: 5 * time.Second,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	c, err := clientv3.New(clientv3.Config{
		Endpoints:   endpoints,
		DialTimeout: o.dialTimeout,
		Logger:      o.logger.Named("etcd"),
	})
	if err != nil {
		return nil, fmt.Errorf("config: connect etcd: %w", err)
	}
	return &EtcdStore{client: c, key: o.key, logger: o.logger}, nil
}

// Load fetches and parses the stored document.
func (s *EtcdStore) Load(ctx context.Context) (Document, error) {
	resp, err := s.client.Get(ctx, s.key)
	if err != nil {
		return Document{}, fmt.Errorf("config: get %s: %w", s.key, err)
	}
	if len(resp.Kvs) == 0 {
		return Document{}, fmt.Errorf("%w at %s", ErrNoDocument, s.key)
	}
	doc, err := Parse(resp.Kvs[0].Value)
	if err != nil {
		return Document{}, err
	}
	s.logger.Info("loaded config from etcd", zap.String("key", s.key), zap.Int64("revision", resp.Kvs[0].ModRevision))
	return doc, nil
}

// Save validates doc and stores it, replacing the previous document.
func (s *EtcdStore) Save(ctx context.Context, doc Document) error {
	if err := doc.Validate(); err != nil {
		return err
	}
	data, err := doc.Marshal()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if _, err := s.client.Put(ctx, s.key, string(data)); err != nil {
		return fmt.Errorf("config: put %s: %w", s.key, err)
	}
	s.logger.Info("saved config to etcd", zap.String("key", s.key))
	return nil
}

// Delete removes the stored document.
func (s *EtcdStore) Delete(ctx context.Context) error {
	if _, err := s.client.Delete(ctx, s.key); err != nil {
		return fmt.Errorf("config: delete %s: %w", s.key, err)
	}
	return nil
}

func (s *EtcdStore) Close() error {
	return s.client.Close()
}
