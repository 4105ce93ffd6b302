package client

import (
	"context"
	"fmt"
	"reflect"

	"mrpc/codec"
	"mrpc/message"
)

// Stub invokes the methods of one remote interface by name. Hand-written
// typed wrappers embed a Stub and forward to Call:
//
//	func (s *CalcStub) Add(ctx context.Context, a, b int) (int, error) {
//		return client.Call[int](ctx, s.stub, "Add", a, b)
//	}
type Stub struct {
	client  *Client
	class   string
	methods map[string]message.ServiceDescriptor
}

// NewStub derives the descriptors of every exported method of iface.
func NewStub(c *Client, iface reflect.Type) (*Stub, error) {
	descs, err := message.DescriptorsOf(iface)
	if err != nil {
		return nil, err
	}
	return &Stub{client: c, class: message.ClassName(iface), methods: descs}, nil
}

// StubFor is NewStub for the interface type T.
func StubFor[T any](c *Client) (*Stub, error) {
	return NewStub(c, reflect.TypeOf((*T)(nil)).Elem())
}

// Descriptor returns the descriptor of method.
func (s *Stub) Descriptor(method string) (message.ServiceDescriptor, bool) {
	d, ok := s.methods[method]
	return d, ok
}

// Invoke calls method with args and stores the result in reply, which must be
// a pointer (or nil to discard the result).
func (s *Stub) Invoke(ctx context.Context, method string, reply any, args ...any) error {
	desc, ok := s.methods[method]
	if !ok {
		return fmt.Errorf("client: %s has no method %q", s.class, method)
	}
	data, err := s.client.Invoke(ctx, desc, args...)
	if err != nil {
		return err
	}
	if reply == nil || data == nil {
		return nil
	}
	if err := codec.Convert(s.client.codec, data, reply); err != nil {
		return &CallError{Service: desc, Code: message.CodeFailed, Message: message.Describe(err), Err: err}
	}
	return nil
}

// Call invokes method through s and converts the result to T.
func Call[T any](ctx context.Context, s *Stub, method string, args ...any) (T, error) {
	var out T
	desc, ok := s.methods[method]
	if !ok {
		return out, fmt.Errorf("client: %s has no method %q", s.class, method)
	}
	data, err := s.client.Invoke(ctx, desc, args...)
	if err != nil || data == nil {
		return out, err
	}
	if v, ok := data.(T); ok {
		return v, nil
	}
	if err := codec.Convert(s.client.codec, data, &out); err != nil {
		return out, &CallError{Service: desc, Code: message.CodeFailed, Message: message.Describe(err), Err: err}
	}
	return out, nil
}
