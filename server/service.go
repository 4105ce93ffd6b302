package server

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"sync"

	"mrpc/message"

	"go.uber.org/zap"
)

var (
	contextType = reflect.TypeOf((*context.Context)(nil)).Elem()
	errorType   = reflect.TypeOf((*error)(nil)).Elem()
)

// ServiceInstance binds one descriptor to the method value that serves it.
type ServiceInstance struct {
	Descriptor message.ServiceDescriptor

	fn          reflect.Value  // method bound to the registered implementation
	params      []reflect.Type // declared parameters, without a leading context
	withContext bool
	withResult  bool
	variadic    bool
}

// ServiceRegistry maps descriptors to callable targets. Lookups run
// concurrently with each other and with registration.
type ServiceRegistry struct {
	services sync.Map // descriptor Key() → *ServiceInstance
	logger   *zap.Logger
}

func NewServiceRegistry(logger *zap.Logger) *ServiceRegistry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ServiceRegistry{logger: logger}
}

// Register publishes every exported method of iface, served by impl.
//
// Each method may take a leading context.Context and must return error last,
// with at most one value before it. Nothing is registered unless every method
// qualifies. Registering a descriptor again replaces its target.
func (r *ServiceRegistry) Register(iface reflect.Type, impl any) error {
	if iface == nil || iface.Kind() != reflect.Interface {
		return fmt.Errorf("server: %v is not an interface type", iface)
	}
	if impl == nil {
		return errors.New("server: nil implementation")
	}
	implType := reflect.TypeOf(impl)
	if !implType.Implements(iface) {
		return fmt.Errorf("server: %s does not implement %s", implType, message.ClassName(iface))
	}

	target := reflect.ValueOf(impl)
	instances := make([]*ServiceInstance, 0, iface.NumMethod())
	for i := 0; i < iface.NumMethod(); i++ {
		m := iface.Method(i)
		if !m.IsExported() {
			continue
		}
		inst, err := newInstance(iface, m, target)
		if err != nil {
			return err
		}
		instances = append(instances, inst)
	}
	if len(instances) == 0 {
		return fmt.Errorf("server: %s has no exported methods", message.ClassName(iface))
	}

	for _, inst := range instances {
		r.services.Store(inst.Descriptor.Key(), inst)
		r.logger.Info("registered service", zap.Stringer("service", inst.Descriptor))
	}
	return nil
}

func newInstance(iface reflect.Type, m reflect.Method, target reflect.Value) (*ServiceInstance, error) {
	mt := m.Type
	desc := message.DescriptorOf(iface, m)

	if mt.NumOut() == 0 || mt.NumOut() > 2 || mt.Out(mt.NumOut()-1) != errorType {
		return nil, fmt.Errorf("server: %s must return (T, error) or error", desc)
	}

	inst := &ServiceInstance{
		Descriptor: desc,
		fn:         target.MethodByName(m.Name),
		withResult: mt.NumOut() == 2,
		variadic:   mt.IsVariadic(),
	}
	for i := 0; i < mt.NumIn(); i++ {
		in := mt.In(i)
		if i == 0 && in == contextType {
			inst.withContext = true
			continue
		}
		inst.params = append(inst.params, in)
	}
	return inst, nil
}

// Lookup returns the target registered for req's descriptor.
func (r *ServiceRegistry) Lookup(req *message.Request) (*ServiceInstance, error) {
	v, ok := r.services.Load(req.Service.Key())
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrServiceNotFound, req.Service)
	}
	return v.(*ServiceInstance), nil
}

// Services lists the registered descriptors in a stable order.
func (r *ServiceRegistry) Services() []message.ServiceDescriptor {
	var descs []message.ServiceDescriptor
	r.services.Range(func(_, v any) bool {
		descs = append(descs, v.(*ServiceInstance).Descriptor)
		return true
	})
	sort.Slice(descs, func(i, j int) bool { return descs[i].Key() < descs[j].Key() })
	return descs
}
