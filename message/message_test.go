package message

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

type Adder interface {
	Add(a, b int) (int, error)
	AddCtx(ctx context.Context, a, b int) (int, error)
	Reset() error
	Names(prefix string, n []int) ([]string, error)
}

type otherAdder interface {
	Add(a, b int) (int, error)
}

func TestDescriptorOfDeterministic(t *testing.T) {
	iface := reflect.TypeOf((*Adder)(nil)).Elem()
	m, ok := iface.MethodByName("Add")
	require.True(t, ok)

	d1 := DescriptorOf(iface, m)
	d2 := DescriptorOf(iface, m)

	want := ServiceDescriptor{
		Class:          "mrpc/message.Adder",
		Method:         "Add",
		ParameterTypes: []string{"int", "int"},
		ReturnType:     "int",
	}
	if diff := cmp.Diff(want, d1); diff != "" {
		t.Fatalf("descriptor mismatch (-want +got):\n%s", diff)
	}
	require.True(t, d1.Equal(d2))
	require.Equal(t, d1.Key(), d2.Key())
}

func TestDescriptorSkipsContextAndError(t *testing.T) {
	descs, err := DescriptorsOf(reflect.TypeOf((*Adder)(nil)).Elem())
	require.NoError(t, err)
	require.Len(t, descs, 4)

	require.Equal(t, []string{"int", "int"}, descs["AddCtx"].ParameterTypes)
	require.Equal(t, "int", descs["AddCtx"].ReturnType)
	require.Empty(t, descs["Reset"].ParameterTypes)
	require.Equal(t, "", descs["Reset"].ReturnType)
	require.Equal(t, []string{"string", "[]int"}, descs["Names"].ParameterTypes)
	require.Equal(t, "[]string", descs["Names"].ReturnType)
}

func TestDescriptorStructuralEquality(t *testing.T) {
	iface := reflect.TypeOf((*Adder)(nil)).Elem()
	other := reflect.TypeOf((*otherAdder)(nil)).Elem()

	m1, _ := iface.MethodByName("Add")
	m2, _ := other.MethodByName("Add")

	// same shape, different owning type
	require.False(t, DescriptorOf(iface, m1).Equal(DescriptorOf(other, m2)))

	// built by hand, compared by value
	manual := ServiceDescriptor{
		Class:          ClassName(iface),
		Method:         "Add",
		ParameterTypes: []string{"int", "int"},
		ReturnType:     "int",
	}
	require.True(t, manual.Equal(DescriptorOf(iface, m1)))
	require.Equal(t, manual.Key(), DescriptorOf(iface, m1).Key())

	manual.ParameterTypes = []string{"int"}
	require.False(t, manual.Equal(DescriptorOf(iface, m1)))
	require.NotEqual(t, manual.Key(), DescriptorOf(iface, m1).Key())
}

func TestDescriptorsOfRejectsNonInterface(t *testing.T) {
	_, err := DescriptorsOf(reflect.TypeOf(42))
	require.Error(t, err)
}

func TestRequestResponse(t *testing.T) {
	req := &Request{
		ID: "req-1",
		Service: ServiceDescriptor{
			Class:          "calc.Calc",
			Method:         "Add",
			ParameterTypes: []string{"int", "int"},
			ReturnType:     "int",
		},
		Parameters: []any{1.0, 2.0},
	}

	data, err := json.Marshal(req)
	require.NoError(t, err)

	var req2 Request
	require.NoError(t, json.Unmarshal(data, &req2))
	if diff := cmp.Diff(req, &req2); diff != "" {
		t.Fatalf("request mismatch (-want +got):\n%s", diff)
	}
}

type kindErr struct{}

func (kindErr) Error() string { return "boom" }
func (kindErr) Kind() string  { return "invocation failed" }

func TestFailure(t *testing.T) {
	resp := NewResponse()
	require.True(t, resp.OK())
	require.Equal(t, DefaultMessage, resp.Message)

	resp = Failure(errors.New("plain"))
	require.False(t, resp.OK())
	require.Equal(t, CodeFailed, resp.Code)
	require.Equal(t, "plain", resp.Message)

	resp = Failure(kindErr{})
	require.Equal(t, "invocation failed: boom", resp.Message)

	var nilResp *Response
	require.False(t, nilResp.OK())
}
