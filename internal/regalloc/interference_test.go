package regalloc_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"j5.nz/gml/internal/regalloc"
	"j5.nz/gml/internal/ssa"
)

// buildLinear builds: entry -> v0 = const 1; v1 = add v0, v0; return v1
func buildLinear() *ssa.Function {
	fn := ssa.New()
	v0 := fn.EmitInstruction(ssa.Entry, ssa.Instruction{Kind: ssa.KindUnaryReal, Op: ssa.OpConstant, Real: 1}, 0)
	v1 := fn.EmitInstruction(ssa.Entry, ssa.Instruction{Kind: ssa.KindBinary, Op: ssa.OpAdd, Args: []ssa.Value{v0, v0}}, 0)
	fn.EmitInstruction(ssa.Entry, ssa.Instruction{Kind: ssa.KindUnary, Op: ssa.OpReturn, Args: []ssa.Value{v1}}, 0)
	return fn
}

func TestColorAssignsEveryValueARegister(t *testing.T) {
	fn := buildLinear()
	cf := regalloc.ComputeControlFlow(fn)
	live := regalloc.ComputeLiveness(fn, cf)
	ig := regalloc.BuildInterference(fn, live)

	colors, _, colorCount := ig.Color()
	require.GreaterOrEqual(t, colorCount, 1)
	for _, c := range colors {
		require.GreaterOrEqual(t, c, 0)
	}
}

func TestColorNoConflictsOnInterferingValues(t *testing.T) {
	// entry: v0 = const 1; v1 = const 2; v2 = add v0, v1; return v2
	// v0 and v1 are simultaneously live at v2's definition, so they must
	// never receive the same color.
	fn := ssa.New()
	v0 := fn.EmitInstruction(ssa.Entry, ssa.Instruction{Kind: ssa.KindUnaryReal, Op: ssa.OpConstant, Real: 1}, 0)
	v1 := fn.EmitInstruction(ssa.Entry, ssa.Instruction{Kind: ssa.KindUnaryReal, Op: ssa.OpConstant, Real: 2}, 0)
	v2 := fn.EmitInstruction(ssa.Entry, ssa.Instruction{Kind: ssa.KindBinary, Op: ssa.OpAdd, Args: []ssa.Value{v0, v1}}, 0)
	fn.EmitInstruction(ssa.Entry, ssa.Instruction{Kind: ssa.KindUnary, Op: ssa.OpReturn, Args: []ssa.Value{v2}}, 0)

	cf := regalloc.ComputeControlFlow(fn)
	live := regalloc.ComputeLiveness(fn, cf)
	ig := regalloc.BuildInterference(fn, live)

	colors, _, _ := ig.Color()
	require.NotEqual(t, colors[v0], colors[v1])
}
