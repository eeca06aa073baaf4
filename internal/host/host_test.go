package host_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"j5.nz/gml/internal/host"
	"j5.nz/gml/internal/ssa"
	"j5.nz/gml/internal/symbol"
	"j5.nz/gml/internal/value"
	"j5.nz/gml/internal/vm"
)

func TestRegisterScriptRejectsDuplicateName(t *testing.T) {
	h := host.New(nil)
	name := symbol.Intern("foo")
	require.NoError(t, h.RegisterScript(name, "{ return 1 }"))
	require.Error(t, h.RegisterScript(name, "{ return 2 }"))
}

func TestRegisterNativeInfersArityAndVariadic(t *testing.T) {
	h := host.New(nil)
	require.NoError(t, h.RegisterNative(symbol.Intern("add"), func(a, b float64) float64 { return a + b }))
	require.NoError(t, h.RegisterNative(symbol.Intern("maxOf"), func(first value.Value, rest ...value.Value) value.Value {
		return first
	}))

	protos := h.Prototypes(nil)

	add := protos[symbol.Intern("add")]
	require.Equal(t, ssa.PrototypeNative, add.Kind)
	require.Equal(t, 2, add.Arity)
	require.False(t, add.Variadic)

	maxProto := protos[symbol.Intern("maxOf")]
	require.Equal(t, ssa.PrototypeNative, maxProto.Kind)
	require.Equal(t, 1, maxProto.Arity)
	require.True(t, maxProto.Variadic)
}

func TestRegisterNativeRejectsUnsupportedSignature(t *testing.T) {
	h := host.New(nil)
	err := h.RegisterNative(symbol.Intern("bad"), func(x int) int { return x })
	require.Error(t, err)
}

func TestScriptNamesAreSortedByID(t *testing.T) {
	h := host.New(nil)
	require.NoError(t, h.RegisterScript(symbol.Intern("zzz"), "{ return 0 }"))
	require.NoError(t, h.RegisterScript(symbol.Intern("aaa"), "{ return 0 }"))
	require.NoError(t, h.RegisterScript(symbol.Intern("mmm"), "{ return 0 }"))

	names := h.ScriptNames()
	require.Len(t, names, 3)
	for i := 1; i < len(names); i++ {
		require.Less(t, names[i-1].ID(), names[i].ID())
	}
}

func TestRegisterMemberOptionalGetterOrSetter(t *testing.T) {
	h := host.New(nil)
	set := func(e vm.Entity, index int32, v value.Value) {}
	require.NoError(t, h.RegisterMember(symbol.Intern("writeOnly"), nil, set))

	_, ok := h.Getter(symbol.Intern("writeOnly"))
	require.False(t, ok)
	_, ok = h.Setter(symbol.Intern("writeOnly"))
	require.True(t, ok)
}

func TestNamesAreUniqueAcrossRegistrationKinds(t *testing.T) {
	h := host.New(nil)
	name := symbol.Intern("thing")
	require.NoError(t, h.RegisterScript(name, "{ return 0 }"))
	require.Error(t, h.RegisterNative(name, func() float64 { return 0 }))
	require.Error(t, h.RegisterMember(name, nil, nil))
}
