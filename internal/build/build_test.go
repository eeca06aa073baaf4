package build_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"j5.nz/gml/internal/build"
	"j5.nz/gml/internal/host"
	"j5.nz/gml/internal/symbol"
	"j5.nz/gml/internal/value"
	"j5.nz/gml/internal/vm"
)

func newBuiltHost(t *testing.T) (*host.Host, *build.Assets, *build.Debug) {
	t.Helper()
	h := host.New(nil)
	require.NoError(t, h.RegisterScript(symbol.Intern("callee"), "{ return argument0*2 }"))
	assets, debug, err := build.Build(context.Background(), h)
	require.NoError(t, err)
	return h, assets, debug
}

func TestBuildAssignsFunctionIDsBeforeCompiling(t *testing.T) {
	h := host.New(nil)
	require.NoError(t, h.RegisterScript(symbol.Intern("a"), "{ return b() }"))
	require.NoError(t, h.RegisterScript(symbol.Intern("b"), "{ return 1 }"))

	assets, _, err := build.Build(context.Background(), h)
	require.NoError(t, err)

	program := build.NewProgram(h, assets)
	result, err := vm.NewThread().Execute(program, vm.NewWorld(), symbol.Intern("a"), nil)
	require.NoError(t, err)
	r, ok := result.Real()
	require.True(t, ok)
	require.Equal(t, float64(1), r)
}

func TestCompileStringRunsAgainstAlreadyBuiltAssets(t *testing.T) {
	h, assets, debug := newBuiltHost(t)

	id, err := build.CompileString(context.Background(), h, assets, debug, "{ return callee(21) }")
	require.NoError(t, err)

	program := build.NewProgram(h, assets)
	result, err := vm.NewThread().ExecuteID(program, vm.NewWorld(), id, nil)
	require.NoError(t, err)
	r, ok := result.Real()
	require.True(t, ok)
	require.Equal(t, float64(42), r)
}

func TestCompileStringReportsErrorsAsBuildError(t *testing.T) {
	h, assets, debug := newBuiltHost(t)

	_, err := build.CompileString(context.Background(), h, assets, debug, "{ return ( }")
	require.Error(t, err)
	_, ok := err.(*build.BuildError)
	require.True(t, ok)
}

func TestBuildReportsBadScriptWithoutFailingTheOthers(t *testing.T) {
	h := host.New(nil)
	require.NoError(t, h.RegisterScript(symbol.Intern("good"), "{ return 1 }"))
	require.NoError(t, h.RegisterScript(symbol.Intern("bad"), "{ return ( }"))

	assets, _, err := build.Build(context.Background(), h)
	require.Error(t, err)

	program := build.NewProgram(h, assets)
	result, err := vm.NewThread().Execute(program, vm.NewWorld(), symbol.Intern("good"), nil)
	require.NoError(t, err)
	r, ok := result.Real()
	require.True(t, ok)
	require.Equal(t, float64(1), r)

	_, ok = program.ScriptID(symbol.Intern("bad"))
	require.False(t, ok)
}
