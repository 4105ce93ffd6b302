// Package calc is a small service used to exercise the framework end to end.
package calc

import (
	"context"
	"errors"
	"reflect"

	"mrpc/client"
)

var ErrDivideByZero = errors.New("divide by zero")

// Calc is the remote interface. Client and server derive the same
// descriptors from it.
type Calc interface {
	Add(ctx context.Context, a, b int) (int, error)
	Minus(ctx context.Context, a, b int) (int, error)
	Divide(ctx context.Context, a, b int) (int, error)
}

// Type is the reflect.Type of Calc.
var Type = reflect.TypeOf((*Calc)(nil)).Elem()

// Service implements Calc.
type Service struct{}

func (Service) Add(_ context.Context, a, b int) (int, error) { return a + b, nil }

func (Service) Minus(_ context.Context, a, b int) (int, error) { return a - b, nil }

func (Service) Divide(_ context.Context, a, b int) (int, error) {
	if b == 0 {
		return 0, ErrDivideByZero
	}
	return a / b, nil
}

// Stub calls a remote Calc.
type Stub struct {
	stub *client.Stub
}

var _ Calc = (*Stub)(nil)

func NewStub(c *client.Client) (*Stub, error) {
	s, err := client.NewStub(c, Type)
	if err != nil {
		return nil, err
	}
	return &Stub{stub: s}, nil
}

func (s *Stub) Add(ctx context.Context, a, b int) (int, error) {
	return client.Call[int](ctx, s.stub, "Add", a, b)
}

func (s *Stub) Minus(ctx context.Context, a, b int) (int, error) {
	return client.Call[int](ctx, s.stub, "Minus", a, b)
}

func (s *Stub) Divide(ctx context.Context, a, b int) (int, error) {
	return client.Call[int](ctx, s.stub, "Divide", a, b)
}
