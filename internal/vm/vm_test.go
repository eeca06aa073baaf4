package vm_test

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/tools/txtar"

	"j5.nz/gml/internal/build"
	"j5.nz/gml/internal/diag"
	"j5.nz/gml/internal/host"
	"j5.nz/gml/internal/stdlib"
	"j5.nz/gml/internal/symbol"
	"j5.nz/gml/internal/value"
	"j5.nz/gml/internal/vm"
)

// loadScenarios builds a Host carrying internal/stdlib's natives plus
// every script in testdata/scenarios.txtar, keyed by archive filename, and
// compiles the whole thing into a runnable Program.
func loadScenarios(t *testing.T) (*build.Program, *build.Debug, *vm.World, *vm.Thread) {
	t.Helper()

	data, err := os.ReadFile("testdata/scenarios.txtar")
	require.NoError(t, err)
	archive := txtar.Parse(data)

	h := host.New(nil)
	require.NoError(t, stdlib.Register(h))
	for _, f := range archive.Files {
		require.NoError(t, h.RegisterScript(symbol.Intern(f.Name), string(f.Data)))
	}

	assets, debug, err := build.Build(context.Background(), h)
	require.NoError(t, err)

	program := build.NewProgram(h, assets)
	return program, debug, vm.NewWorld(), vm.NewThread()
}

func runScript(t *testing.T, name string, args ...float64) (value.Value, error) {
	t.Helper()
	program, _, world, thread := loadScenarios(t)

	arguments := make([]value.Value, len(args))
	for i, a := range args {
		arguments[i] = value.FromFloat64(a)
	}
	return thread.Execute(program, world, symbol.Intern(name), arguments)
}

func requireReal(t *testing.T, v value.Value, err error, want float64) {
	t.Helper()
	require.NoError(t, err)
	got, ok := v.Real()
	require.True(t, ok, "result is not a real: %#v", v)
	require.Equal(t, want, got)
}

func TestArrayAndRowScenario(t *testing.T) {
	v, err := runScript(t, "arrays")
	requireReal(t, v, err, 50)
}

func TestForLoopFactorial(t *testing.T) {
	v, err := runScript(t, "factorial")
	requireReal(t, v, err, 24)
}

func TestSwitchScenario(t *testing.T) {
	cases := []struct {
		input float64
		want  float64
	}{
		{3, 5},
		{8, 13},
		{21, 21},
		{34, 21},
	}
	for _, c := range cases {
		v, err := runScript(t, "classify", c.input)
		requireReal(t, v, err, c.want)
	}
}

func TestRecursiveScript(t *testing.T) {
	v, err := runScript(t, "fibonacci", 6)
	requireReal(t, v, err, 13)
}

func TestNativeCall(t *testing.T) {
	v, err := runScript(t, "adder")
	requireReal(t, v, err, 16)
}

func TestReentrantExecute(t *testing.T) {
	v, err := runScript(t, "caller")
	requireReal(t, v, err, 29)
}

// TestReusedThreadLeavesNoResidualState runs several unrelated scripts in
// sequence on the same Thread, covering spec's "the register stack length
// equals its length on entry" invariant indirectly: if execute leaked
// stack slots across calls, later calls in this sequence would read stale
// registers and return the wrong value.
func TestReusedThreadLeavesNoResidualState(t *testing.T) {
	program, _, world, thread := loadScenarios(t)

	v, err := thread.Execute(program, world, symbol.Intern("caller"), nil)
	requireReal(t, v, err, 29)

	v, err = thread.Execute(program, world, symbol.Intern("fibonacci"), []value.Value{value.FromFloat64(6)})
	requireReal(t, v, err, 13)

	v, err = thread.Execute(program, world, symbol.Intern("arrays"), nil)
	requireReal(t, v, err, 50)
}

func TestNegativeIndexRaisesBoundsError(t *testing.T) {
	v, err := runScript(t, "negindex")
	require.Error(t, err)
	derr, ok := err.(*diag.Error)
	require.True(t, ok, "error is not *diag.Error: %v", err)
	require.Equal(t, diag.Bounds, derr.Kind)
	require.Equal(t, int32(-1), derr.Index)
	require.Equal(t, value.Value(0), v)
}

func TestWithUnknownInstanceIsNoop(t *testing.T) {
	v, err := runScript(t, "noop")
	requireReal(t, v, err, 1)
}

func TestNativeArityIsACompileError(t *testing.T) {
	h := host.New(nil)
	require.NoError(t, stdlib.Register(h))
	require.NoError(t, h.RegisterScript(symbol.Intern("toomany"), "{ return add(1,2,3) }"))
	require.NoError(t, h.RegisterScript(symbol.Intern("toofew"), "{ return add(1) }"))

	_, _, err := build.Build(context.Background(), h)
	require.Error(t, err)

	berr, ok := err.(*build.BuildError)
	require.True(t, ok)
	require.Len(t, berr.Failures, 2)
}
