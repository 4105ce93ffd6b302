package message

import (
	"context"
	"fmt"
	"reflect"
	"slices"
	"strings"
)

var (
	contextType = reflect.TypeOf((*context.Context)(nil)).Elem()
	errorType   = reflect.TypeOf((*error)(nil)).Elem()
)

// ServiceDescriptor is the structural identity of one remotely callable method.
// Two descriptors name the same operation iff all four fields are equal.
type ServiceDescriptor struct {
	Class          string   `json:"class"`
	Method         string   `json:"method"`
	ParameterTypes []string `json:"parameterTypes"`
	ReturnType     string   `json:"returnType"`
}

// DescriptorOf derives the descriptor of method m declared on the interface iface.
//
// A leading context.Context parameter and a trailing error result are transport
// concerns and are left out, so a client stub and a server registration built
// from the same interface always agree.
func DescriptorOf(iface reflect.Type, m reflect.Method) ServiceDescriptor {
	mt := m.Type
	params := make([]string, 0, mt.NumIn())
	for i := 0; i < mt.NumIn(); i++ {
		in := mt.In(i)
		if i == 0 && in == contextType {
			continue
		}
		params = append(params, in.String())
	}

	ret := ""
	for i := 0; i < mt.NumOut(); i++ {
		out := mt.Out(i)
		if i == mt.NumOut()-1 && out == errorType {
			continue
		}
		ret = out.String()
	}

	return ServiceDescriptor{
		Class:          ClassName(iface),
		Method:         m.Name,
		ParameterTypes: params,
		ReturnType:     ret,
	}
}

// DescriptorsOf returns the descriptors of every exported method of iface,
// keyed by method name.
func DescriptorsOf(iface reflect.Type) (map[string]ServiceDescriptor, error) {
	if iface == nil || iface.Kind() != reflect.Interface {
		return nil, fmt.Errorf("message: %v is not an interface type", iface)
	}
	descs := make(map[string]ServiceDescriptor, iface.NumMethod())
	for i := 0; i < iface.NumMethod(); i++ {
		m := iface.Method(i)
		if !m.IsExported() {
			continue
		}
		descs[m.Name] = DescriptorOf(iface, m)
	}
	return descs, nil
}

// ClassName is the fully qualified name of t ("import/path.Name").
func ClassName(t reflect.Type) string {
	if t.Name() == "" || t.PkgPath() == "" {
		return t.String()
	}
	return t.PkgPath() + "." + t.Name()
}

// Equal reports whether d and o describe the same operation.
func (d ServiceDescriptor) Equal(o ServiceDescriptor) bool {
	return d.Class == o.Class &&
		d.Method == o.Method &&
		d.ReturnType == o.ReturnType &&
		slices.Equal(d.ParameterTypes, o.ParameterTypes)
}

// keySep never appears in a Go type string.
const keySep = "\x1f"

// Key is the canonical string form of d. Equal descriptors have equal keys.
func (d ServiceDescriptor) Key() string {
	var b strings.Builder
	b.WriteString(d.Class)
	b.WriteString(keySep)
	b.WriteString(d.Method)
	b.WriteString(keySep)
	b.WriteString(d.ReturnType)
	for _, p := range d.ParameterTypes {
		b.WriteString(keySep)
		b.WriteString(p)
	}
	return b.String()
}

func (d ServiceDescriptor) String() string {
	return fmt.Sprintf("%s.%s(%s) %s", d.Class, d.Method, strings.Join(d.ParameterTypes, ", "), d.ReturnType)
}
