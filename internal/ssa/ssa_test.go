package ssa_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"j5.nz/gml/internal/ssa"
)

func TestNewHasEntryAndExit(t *testing.T) {
	fn := ssa.New()
	require.Len(t, fn.Blocks, 2)
	require.Equal(t, ssa.Label(0), ssa.Entry)
	require.Equal(t, ssa.Label(1), ssa.Exit)
}

func TestWithDefinesTwoValues(t *testing.T) {
	fn := ssa.New()
	arg := fn.EmitInstruction(ssa.Entry, ssa.Instruction{Kind: ssa.KindUnarySymbol, Op: ssa.OpLoadScope}, 0)
	with := fn.EmitInstruction(ssa.Entry, ssa.Instruction{Kind: ssa.KindUnary, Op: ssa.OpWith, Args: []ssa.Value{arg}}, 0)

	defs := fn.Defs(with)
	require.Equal(t, 2, defs.Len())
}

func TestJumpUsesAreMutable(t *testing.T) {
	fn := ssa.New()
	v0 := fn.EmitInstruction(ssa.Entry, ssa.Instruction{Kind: ssa.KindUnaryReal, Op: ssa.OpConstant, Real: 1}, 0)
	jump := fn.EmitInstruction(ssa.Entry, ssa.Instruction{Kind: ssa.KindJump, Op: ssa.OpJump, Target: ssa.Exit, Args: []ssa.Value{v0}}, 0)

	uses := fn.Uses(jump)
	require.Len(t, uses, 1)
	uses[0] = 42
	require.Equal(t, ssa.Value(42), fn.Values[jump].Args[0])
}
