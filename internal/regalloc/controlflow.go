// Package regalloc computes liveness and an interference graph over an
// internal/ssa Function and colors it into virtual register slots.
//
// The coloring algorithm (maximum cardinality search for a perfect
// elimination ordering, then greedy lowest-available-slot assignment) relies
// on the interference graph being chordal, which holds for any SSA program
// built over a reducible control flow graph — exactly what internal/ssabuild
// produces.
package regalloc

import "j5.nz/gml/internal/ssa"

// ControlFlow is the successor/predecessor graph of a Function's basic
// blocks, derived from each block's terminator.
type ControlFlow struct {
	Succ map[ssa.Label][]ssa.Label
	Pred map[ssa.Label][]ssa.Label
}

// NewControlFlow returns an empty graph, ready for incremental Insert calls
// (used by internal/ssabuild while it is still discovering edges).
func NewControlFlow() *ControlFlow {
	return &ControlFlow{Succ: make(map[ssa.Label][]ssa.Label), Pred: make(map[ssa.Label][]ssa.Label)}
}

// Insert records a pred -> succ edge.
func (cf *ControlFlow) Insert(pred, succ ssa.Label) {
	cf.Succ[pred] = append(cf.Succ[pred], succ)
	cf.Pred[succ] = append(cf.Pred[succ], pred)
}

// ComputeControlFlow derives the full graph from a finished Function by
// reading every block's terminator.
func ComputeControlFlow(fn *ssa.Function) *ControlFlow {
	cf := NewControlFlow()
	for pred := range fn.Blocks {
		for _, succ := range fn.Successors(ssa.Label(pred)) {
			cf.Insert(ssa.Label(pred), succ)
		}
	}
	return cf
}
