package emit_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"j5.nz/gml/internal/bytecode"
	"j5.nz/gml/internal/emit"
	"j5.nz/gml/internal/ssa"
	"j5.nz/gml/internal/symbol"
)

func TestCompileLinearAddReturn(t *testing.T) {
	fn := ssa.New()
	v0 := fn.EmitInstruction(ssa.Entry, ssa.Instruction{Kind: ssa.KindUnaryReal, Op: ssa.OpConstant, Real: 1}, 0)
	v1 := fn.EmitInstruction(ssa.Entry, ssa.Instruction{Kind: ssa.KindUnaryReal, Op: ssa.OpConstant, Real: 2}, 0)
	v2 := fn.EmitInstruction(ssa.Entry, ssa.Instruction{Kind: ssa.KindBinary, Op: ssa.OpAdd, Args: []ssa.Value{v0, v1}}, 0)
	fn.EmitInstruction(ssa.Entry, ssa.Instruction{Kind: ssa.KindUnary, Op: ssa.OpReturn, Args: []ssa.Value{v2}}, 0)

	compiled := emit.Compile(fn, nil)

	require.NotEmpty(t, compiled.Instructions)
	require.Len(t, compiled.Constants, 2)

	last := compiled.Instructions[len(compiled.Instructions)-1]
	op, _, _, _ := last.Decode()
	require.Equal(t, bytecode.Ret, op)
}

func TestCompileCallUsesSymbolForNonScript(t *testing.T) {
	fn := ssa.New()
	param := fn.EmitInstruction(ssa.Entry, ssa.Instruction{Kind: ssa.KindUnaryReal, Op: ssa.OpConstant, Real: 5}, 0)
	call := fn.EmitInstruction(ssa.Entry, ssa.Instruction{
		Kind:           ssa.KindCall,
		Op:             ssa.OpCallAPI,
		CallSymbol:     symbol.Intern("abs"),
		Args:           []ssa.Value{param},
		CallParameters: []ssa.Value{param},
	}, 0)
	fn.EmitInstruction(ssa.Entry, ssa.Instruction{Kind: ssa.KindUnary, Op: ssa.OpReturn, Args: []ssa.Value{call}}, 0)

	compiled := emit.Compile(fn, map[symbol.Symbol]ssa.Prototype{})
	require.Len(t, compiled.Symbols, 1)
}
