package server

import (
	"context"
	"fmt"
	"reflect"

	"mrpc/codec"
	"mrpc/message"
)

// Dispatcher invokes a registered target with a request's arguments.
type Dispatcher struct {
	codec codec.Codec
}

// NewDispatcher returns a Dispatcher that reshapes decoded arguments with c.
func NewDispatcher(c codec.Codec) *Dispatcher {
	return &Dispatcher{codec: c}
}

// Invoke binds req.Parameters to inst's parameter types in declaration order
// and calls the target. An error returned by the target, or a panic inside it,
// comes back as *InvocationError.
func (d *Dispatcher) Invoke(ctx context.Context, inst *ServiceInstance, req *message.Request) (result any, err error) {
	if len(req.Parameters) != len(inst.params) {
		return nil, fmt.Errorf("%w: %s takes %d arguments, got %d",
			ErrBadParameters, inst.Descriptor.Method, len(inst.params), len(req.Parameters))
	}

	args := make([]reflect.Value, 0, len(inst.params)+1)
	if inst.withContext {
		args = append(args, reflect.ValueOf(ctx))
	}
	for i, p := range req.Parameters {
		v, err := d.bind(p, inst.params[i])
		if err != nil {
			return nil, fmt.Errorf("%w: argument %d: %v", ErrBadParameters, i, err)
		}
		args = append(args, v)
	}

	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = &InvocationError{Service: inst.Descriptor, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	var outs []reflect.Value
	if inst.variadic {
		outs = inst.fn.CallSlice(args)
	} else {
		outs = inst.fn.Call(args)
	}

	if errv := outs[len(outs)-1]; !errv.IsNil() {
		return nil, &InvocationError{Service: inst.Descriptor, Err: errv.Interface().(error)}
	}
	if inst.withResult {
		return outs[0].Interface(), nil
	}
	return nil, nil
}

// bind turns one decoded argument into a value of type t. Values that already
// have a usable type (gob keeps concrete types) are passed through.
func (d *Dispatcher) bind(arg any, t reflect.Type) (reflect.Value, error) {
	if arg == nil {
		return reflect.Zero(t), nil
	}
	if v := reflect.ValueOf(arg); v.Type().AssignableTo(t) {
		return v, nil
	}
	ptr := reflect.New(t)
	if err := codec.Convert(d.codec, arg, ptr.Interface()); err != nil {
		return reflect.Value{}, err
	}
	return ptr.Elem(), nil
}
