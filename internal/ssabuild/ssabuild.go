// Package ssabuild constructs internal/ssa functions on the fly from a
// single forward pass over source statements, using the on-demand
// (Braun-style) algorithm: a local's value at any point in a not-yet-fully-
// connected control flow graph is resolved lazily, inserting block
// parameters only where a join point turns out to need one, and collapsing
// them back down to a plain alias when it didn't.
package ssabuild

import (
	"j5.nz/gml/internal/regalloc"
	"j5.nz/gml/internal/ssa"
)

// Local names one source-level variable slot for the duration of building a
// single Function. It carries no name of its own; internal/lower keeps the
// symbol -> Local mapping.
type Local uint32

// Builder tracks in-progress definitions while one Function is being
// constructed block by block.
type Builder struct {
	ControlFlow *regalloc.ControlFlow

	nextLocal Local

	currentDefs map[ssa.Label]map[Local]ssa.Value
	currentArgs map[ssa.Label][]localValue
	sealed      map[ssa.Label]bool
}

type localValue struct {
	local Local
	value ssa.Value
}

// New returns a Builder ready to build one Function's worth of blocks.
func New() *Builder {
	return &Builder{
		ControlFlow: regalloc.NewControlFlow(),
		currentDefs: make(map[ssa.Label]map[Local]ssa.Value),
		currentArgs: make(map[ssa.Label][]localValue),
		sealed:      make(map[ssa.Label]bool),
	}
}

// InsertEdge records a predecessor/successor relationship as it is
// discovered, ahead of the target block being sealed.
func (b *Builder) InsertEdge(pred, succ ssa.Label) {
	b.ControlFlow.Insert(pred, succ)
}

// EmitLocal allocates a fresh Local.
func (b *Builder) EmitLocal() Local {
	l := b.nextLocal
	b.nextLocal++
	return l
}

// WriteLocal records that local now holds value at the end of block.
func (b *Builder) WriteLocal(block ssa.Label, local Local, value ssa.Value) {
	defs, ok := b.currentDefs[block]
	if !ok {
		defs = make(map[Local]ssa.Value)
		b.currentDefs[block] = defs
	}
	defs[local] = value
}

// ReadLocal resolves the current value of local as observed from block,
// inserting a block parameter (and recursing into predecessors) if the
// value has not already been determined for this block.
func (b *Builder) ReadLocal(fn *ssa.Function, block ssa.Label, local Local) ssa.Value {
	if defs, ok := b.currentDefs[block]; ok {
		if v, ok := defs[local]; ok {
			return v
		}
	}

	predLen := len(b.ControlFlow.Pred[block])

	var value ssa.Value
	switch {
	case !b.sealed[block]:
		value = fn.EmitParameter(block)
		b.currentArgs[block] = append(b.currentArgs[block], localValue{local, value})

	case predLen == 0:
		value = ssa.Value(0)

	case predLen == 1:
		pred := b.ControlFlow.Pred[block][0]
		value = b.ReadLocal(fn, pred, local)

	default:
		parameter := fn.EmitParameter(block)
		b.WriteLocal(block, local, parameter)
		value = b.readPredecessors(fn, block, parameter, local)
	}

	b.WriteLocal(block, local, value)
	return value
}

type uniqueness int

const (
	uniqueZero uniqueness = iota
	uniqueOne
	uniqueMany
)

// readPredecessors classifies the values a tentative block parameter would
// receive from every predecessor: if they all turn out to be the parameter
// itself (an unreachable or self-referential join), the parameter collapses
// to a garbage constant; if they are all equal to one other value, the
// parameter collapses to an Alias of that value; otherwise the parameter is
// real, and every predecessor's terminator is patched to pass it.
func (b *Builder) readPredecessors(fn *ssa.Function, block ssa.Label, parameter ssa.Value, local Local) ssa.Value {
	preds := b.ControlFlow.Pred[block]

	type predValue struct {
		pred  ssa.Label
		value ssa.Value
	}
	arguments := make([]predValue, 0, len(preds))

	state := uniqueZero
	var unique ssa.Value
	for _, pred := range preds {
		value := b.ReadLocal(fn, pred, local)

		switch state {
		case uniqueZero:
			if value != parameter {
				state = uniqueOne
				unique = value
			}
		case uniqueOne:
			if value != parameter && value != unique {
				state = uniqueMany
			}
		}
		arguments = append(arguments, predValue{pred, value})
	}

	switch state {
	case uniqueZero:
		popParameter(fn, block, parameter)
		fn.Values[parameter] = ssa.Instruction{Kind: ssa.KindUnaryReal, Op: ssa.OpConstant, Real: 0}
		return parameter

	case uniqueOne:
		popParameter(fn, block, parameter)
		fn.Values[parameter] = ssa.Instruction{Kind: ssa.KindAlias, Alias: unique}
		return unique

	default: // uniqueMany
		for _, pv := range arguments {
			jump := fn.Terminator(pv.pred)
			inst := &fn.Values[jump]
			switch inst.Kind {
			case ssa.KindJump:
				inst.Args = append(inst.Args, pv.value)
			case ssa.KindBranch:
				if inst.Targets[0] == block {
					pos := int(1 + inst.ArgLens[0])
					inst.Args = insertAt(inst.Args, pos, pv.value)
					inst.ArgLens[0]++
				}
				if inst.Targets[1] == block {
					pos := int(1 + inst.ArgLens[0] + inst.ArgLens[1])
					inst.Args = insertAt(inst.Args, pos, pv.value)
					inst.ArgLens[1]++
				}
			default:
				panic("ssabuild: corrupt function")
			}
		}
		return parameter
	}
}

func insertAt(s []ssa.Value, pos int, v ssa.Value) []ssa.Value {
	s = append(s, ssa.Value(0))
	copy(s[pos+1:], s[pos:])
	s[pos] = v
	return s
}

func popParameter(fn *ssa.Function, block ssa.Label, parameter ssa.Value) {
	params := fn.Blocks[block].Parameters
	last := params[len(params)-1]
	if last != parameter {
		panic("ssabuild: parameter stack out of order")
	}
	fn.Blocks[block].Parameters = params[:len(params)-1]
}

// SealBlock declares that every predecessor of block is now known, resolving
// any block parameters that were speculatively inserted by ReadLocal before
// sealing.
func (b *Builder) SealBlock(fn *ssa.Function, block ssa.Label) {
	pending := b.currentArgs[block]
	delete(b.currentArgs, block)
	for _, lv := range pending {
		b.readPredecessors(fn, block, lv.value, lv.local)
	}
	b.sealed[block] = true
}

// Finish resolves every Alias left behind by block-parameter collapse,
// rewriting all operand references to point directly at the aliased value.
func Finish(fn *ssa.Function) {
	for block := range fn.Blocks {
		instrs := fn.Blocks[ssa.Label(block)].Instructions
		for _, value := range instrs {
			replaceAliases(fn, value)
		}
	}
}

func replaceAliases(fn *ssa.Function, value ssa.Value) {
	uses := fn.Uses(value)
	for i, arg := range uses {
		resolved := resolveAlias(fn, arg)
		if resolved != arg {
			uses[i] = resolved
		}
	}
}

func resolveAlias(fn *ssa.Function, value ssa.Value) ssa.Value {
	v := value
	budget := len(fn.Values)
	for fn.Values[v].Kind == ssa.KindAlias {
		v = fn.Values[v].Alias
		budget--
		if budget == 0 {
			panic("ssabuild: alias loop")
		}
	}
	return v
}
