package lower_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"j5.nz/gml/internal/ast"
	"j5.nz/gml/internal/lexer"
	"j5.nz/gml/internal/lower"
	"j5.nz/gml/internal/parser"
	"j5.nz/gml/internal/ssa"
	"j5.nz/gml/internal/symbol"
	"j5.nz/gml/internal/token"
)

type collectingErrors struct {
	messages []string
}

func (c *collectingErrors) Error(span token.Span, message string) {
	c.messages = append(c.messages, message)
}

func parseSource(t *testing.T, src string) *ast.Stmt {
	t.Helper()
	errs := &collectingErrors{}
	p := parser.New(lexer.New([]byte(src), 0), errs)
	stmt, _ := p.ParseProgram()
	require.Empty(t, errs.messages, "parse errors: %v", errs.messages)
	return stmt
}

func compile(t *testing.T, src string, prototypes map[symbol.Symbol]ssa.Prototype) (*ssa.Function, *collectingErrors) {
	t.Helper()
	stmt := parseSource(t, src)
	errs := &collectingErrors{}
	b := lower.New(prototypes, errs)
	fn := b.CompileProgram(stmt)
	return fn, errs
}

func TestCompileReturnConstant(t *testing.T) {
	fn, errs := compile(t, "return 1 + 2", nil)
	require.Empty(t, errs.messages)

	ret := fn.Terminator(ssa.Exit)
	require.Equal(t, ssa.OpReturn, fn.Op(ret))
}

func TestCompileLocalDeclareAssignReturn(t *testing.T) {
	fn, errs := compile(t, "var x; x = 5; return x", nil)
	require.Empty(t, errs.messages)
	require.NotEmpty(t, fn.Blocks[ssa.Exit].Instructions)
}

func TestCompileIfElse(t *testing.T) {
	fn, errs := compile(t, "var x; if (1) { x = 1 } else { x = 2 } return x", nil)
	require.Empty(t, errs.messages)
	require.Greater(t, len(fn.Blocks), 2)
}

func TestCompileWhileWithBreak(t *testing.T) {
	fn, errs := compile(t, "var i; i = 0; while (i) { break }", nil)
	require.Empty(t, errs.messages)
	require.NotEmpty(t, fn.Blocks)
}

func TestCompileRepeatLoop(t *testing.T) {
	fn, errs := compile(t, "repeat (3) { }", nil)
	require.Empty(t, errs.messages)
	require.NotEmpty(t, fn.Blocks)
}

func TestCompileDoUntilLoop(t *testing.T) {
	fn, errs := compile(t, "var i; i = 0; do { i = i + 1 } until (i)", nil)
	require.Empty(t, errs.messages)
	require.NotEmpty(t, fn.Blocks)
}

func TestCompileForLoop(t *testing.T) {
	fn, errs := compile(t, "var i; for (i = 0; i; i = i + 1) { }", nil)
	require.Empty(t, errs.messages)
	require.NotEmpty(t, fn.Blocks)
}

func TestCompileWithStatement(t *testing.T) {
	fn, errs := compile(t, "with (other) { x = 1 }", nil)
	require.Empty(t, errs.messages)
	require.NotEmpty(t, fn.Blocks)
}

func TestCompileSwitchCaseDefault(t *testing.T) {
	fn, errs := compile(t, `
		var y
		switch (1) {
			case 1: y = 1 break
			default: y = 2 break
		}
	`, nil)
	require.Empty(t, errs.messages)
	require.NotEmpty(t, fn.Blocks)
}

func TestCaseOutsideSwitchReportsError(t *testing.T) {
	_, errs := compile(t, "case 1:", nil)
	require.NotEmpty(t, errs.messages)
}

func TestCompileUnknownCallReportsError(t *testing.T) {
	_, errs := compile(t, "mystery_function(1, 2)", nil)
	require.NotEmpty(t, errs.messages)
}

func TestCompileCallWrongArityReportsError(t *testing.T) {
	prototypes := map[symbol.Symbol]ssa.Prototype{
		symbol.Intern("abs"): {Kind: ssa.PrototypeNative, Arity: 1, Variadic: false},
	}
	_, errs := compile(t, "abs(1, 2)", prototypes)
	require.NotEmpty(t, errs.messages)
}

func TestCompileScriptCallIsVariadic(t *testing.T) {
	prototypes := map[symbol.Symbol]ssa.Prototype{
		symbol.Intern("my_script"): {Kind: ssa.PrototypeScript, ScriptID: 3},
	}
	_, errs := compile(t, "my_script(1, 2, 3, 4)", prototypes)
	require.Empty(t, errs.messages)
}

func TestCompileArgumentReference(t *testing.T) {
	fn, errs := compile(t, "return argument0 + argument1", nil)
	require.Empty(t, errs.messages)
	require.Len(t, fn.Blocks[ssa.Entry].Parameters, 2)
}

func TestCompileArrayIndexAssignAndLoad(t *testing.T) {
	fn, errs := compile(t, "var a; a[0] = 1; a[2,3] = 4; return a[2,3]", nil)
	require.Empty(t, errs.messages)
	require.NotEmpty(t, fn.Blocks)
}

func TestCompileBuiltinFieldAccess(t *testing.T) {
	prototypes := map[symbol.Symbol]ssa.Prototype{
		symbol.Intern("x"): {Kind: ssa.PrototypeMember},
	}
	fn, errs := compile(t, "x = x + 1", prototypes)
	require.Empty(t, errs.messages)
	require.NotEmpty(t, fn.Blocks)
}

func TestCompileScopedFieldAccess(t *testing.T) {
	prototypes := map[symbol.Symbol]ssa.Prototype{
		symbol.Intern("hp"): {Kind: ssa.PrototypeMember},
	}
	fn, errs := compile(t, "var e; e = other; e.hp = e.hp - 1", prototypes)
	require.Empty(t, errs.messages)
	require.NotEmpty(t, fn.Blocks)
}
