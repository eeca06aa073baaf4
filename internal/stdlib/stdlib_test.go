package stdlib_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"j5.nz/gml/internal/build"
	"j5.nz/gml/internal/host"
	"j5.nz/gml/internal/stdlib"
	"j5.nz/gml/internal/symbol"
	"j5.nz/gml/internal/value"
	"j5.nz/gml/internal/vm"
)

func run(t *testing.T, source string, args ...float64) float64 {
	t.Helper()
	h := host.New(nil)
	require.NoError(t, stdlib.Register(h))
	require.NoError(t, h.RegisterScript(symbol.Intern("main"), source))

	assets, _, err := build.Build(context.Background(), h)
	require.NoError(t, err)
	program := build.NewProgram(h, assets)

	arguments := make([]value.Value, len(args))
	for i, a := range args {
		arguments[i] = value.FromFloat64(a)
	}

	result, err := vm.NewThread().Execute(program, vm.NewWorld(), symbol.Intern("main"), arguments)
	require.NoError(t, err)
	r, ok := result.Real()
	require.True(t, ok, "result is not a real: %#v", result)
	return r
}

func TestAbsAndSign(t *testing.T) {
	require.Equal(t, float64(5), run(t, "{ return abs(-5) }"))
	require.Equal(t, float64(1), run(t, "{ return sign(12) }"))
	require.Equal(t, float64(-1), run(t, "{ return sign(-3) }"))
	require.Equal(t, float64(0), run(t, "{ return sign(0) }"))
}

func TestStringNatives(t *testing.T) {
	got := run(t, `{ return string_length(string_upper("abc")) }`)
	require.Equal(t, float64(3), got)
}

func TestMaxIsVariadicWithArityOne(t *testing.T) {
	require.Equal(t, float64(5), run(t, "{ return max(5) }"))
	require.Equal(t, float64(9), run(t, "{ return max(5,9,2) }"))
}

func TestPositionMemberPairStoresAndLoads(t *testing.T) {
	h := host.New(nil)
	require.NoError(t, stdlib.Register(h))
	require.NoError(t, h.RegisterScript(symbol.Intern("main"), "{ x=3; y=4; return x+y }"))

	assets, _, err := build.Build(context.Background(), h)
	require.NoError(t, err)
	program := build.NewProgram(h, assets)

	world := vm.NewWorld()
	thread := vm.NewThread()
	instance := world.CreateInstance(0, 1)
	thread.SetSelf(instance)

	result, err := thread.Execute(program, world, symbol.Intern("main"), nil)
	require.NoError(t, err)
	r, ok := result.Real()
	require.True(t, ok)
	require.Equal(t, float64(7), r)
}
