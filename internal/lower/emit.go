package lower

import (
	"j5.nz/gml/internal/ssa"
	"j5.nz/gml/internal/ssabuild"
	"j5.nz/gml/internal/symbol"
)

func (b *Builder) makeBlock() ssa.Label {
	return b.fn.MakeBlock()
}

func (b *Builder) sealBlock(block ssa.Label) {
	b.ssab.SealBlock(b.fn, block)
}

func (b *Builder) readLocal(l ssabuild.Local) ssa.Value {
	return b.ssab.ReadLocal(b.fn, b.currentBlock, l)
}

func (b *Builder) writeLocal(l ssabuild.Local, v ssa.Value) {
	b.ssab.WriteLocal(b.currentBlock, l, v)
}

// emitLocal declares a new source-level local: a flag/value pair of
// ssabuild Locals tracking whether it has been assigned yet and its current
// contents. def, if non-nil, is the parameter Value it already holds
// (an argumentN binding); otherwise it starts unassigned, defaulting to 0.
func (b *Builder) emitLocal(def *ssa.Value) localVar {
	flag := b.ssab.EmitLocal()
	local := b.ssab.EmitLocal()

	var flagReal float64
	if def != nil {
		flagReal = 1
	}
	initialFlag := b.emitInitializer(ssa.Instruction{Kind: ssa.KindUnaryReal, Op: ssa.OpConstant, Real: flagReal})
	b.ssab.WriteLocal(ssa.Entry, flag, initialFlag)

	var defaultValue ssa.Value
	if def != nil {
		defaultValue = *def
	} else {
		defaultValue = b.emitInitializer(ssa.Instruction{Kind: ssa.KindUnaryReal, Op: ssa.OpConstant, Real: 0})
	}
	b.ssab.WriteLocal(ssa.Entry, local, defaultValue)

	return localVar{flag: flag, local: local}
}

// emitInitializer inserts inst at the front of the entry block's
// instruction list, ahead of every instruction the body itself emits, and
// advances the insertion point so the next initializer lands right after
// this one in the same front-loaded order.
func (b *Builder) emitInitializer(inst ssa.Instruction) ssa.Value {
	v := b.fn.PushValue(inst)

	entry := &b.fn.Blocks[ssa.Entry]
	entry.Instructions = append(entry.Instructions, 0)
	copy(entry.Instructions[b.initializers+1:], entry.Instructions[b.initializers:])
	entry.Instructions[b.initializers] = v
	b.initializers++

	return v
}

func (b *Builder) emitReal(real float64, loc int) ssa.Value {
	return b.emitUnaryReal(ssa.OpConstant, real, loc)
}

func (b *Builder) emitString(s symbol.Symbol, loc int) ssa.Value {
	return b.emitUnarySymbol(ssa.OpConstant, s, loc)
}

func (b *Builder) emitNullary(op ssa.Op, loc int) ssa.Value {
	return b.fn.EmitInstruction(b.currentBlock, ssa.Instruction{Kind: ssa.KindNullary, Op: op}, loc)
}

func (b *Builder) emitUnary(op ssa.Op, arg ssa.Value, loc int) ssa.Value {
	return b.fn.EmitInstruction(b.currentBlock, ssa.Instruction{Kind: ssa.KindUnary, Op: op, Args: []ssa.Value{arg}}, loc)
}

func (b *Builder) emitUnaryReal(op ssa.Op, real float64, loc int) ssa.Value {
	return b.fn.EmitInstruction(b.currentBlock, ssa.Instruction{Kind: ssa.KindUnaryReal, Op: op, Real: real}, loc)
}

func (b *Builder) emitUnarySymbol(op ssa.Op, sym symbol.Symbol, loc int) ssa.Value {
	return b.fn.EmitInstruction(b.currentBlock, ssa.Instruction{Kind: ssa.KindUnarySymbol, Op: op, Sym: sym}, loc)
}

func (b *Builder) emitBinary(op ssa.Op, args [2]ssa.Value, loc int) ssa.Value {
	return b.fn.EmitInstruction(b.currentBlock, ssa.Instruction{Kind: ssa.KindBinary, Op: op, Args: args[:]}, loc)
}

func (b *Builder) emitBinaryReal(op ssa.Op, arg ssa.Value, real float64, loc int) ssa.Value {
	return b.fn.EmitInstruction(b.currentBlock, ssa.Instruction{Kind: ssa.KindBinaryReal, Op: op, Args: []ssa.Value{arg}, Real: real}, loc)
}

func (b *Builder) emitBinarySymbol(op ssa.Op, arg ssa.Value, sym symbol.Symbol, loc int) ssa.Value {
	return b.fn.EmitInstruction(b.currentBlock, ssa.Instruction{Kind: ssa.KindBinarySymbol, Op: op, Args: []ssa.Value{arg}, Sym: sym}, loc)
}

func (b *Builder) emitTernary(op ssa.Op, args [3]ssa.Value, loc int) ssa.Value {
	return b.fn.EmitInstruction(b.currentBlock, ssa.Instruction{Kind: ssa.KindTernary, Op: op, Args: args[:]}, loc)
}

func (b *Builder) emitTernarySymbol(op ssa.Op, args [2]ssa.Value, sym symbol.Symbol, loc int) ssa.Value {
	return b.fn.EmitInstruction(b.currentBlock, ssa.Instruction{Kind: ssa.KindTernarySymbol, Op: op, Args: args[:], Sym: sym}, loc)
}

func (b *Builder) emitJump(target ssa.Label, loc int) {
	b.fn.EmitInstruction(b.currentBlock, ssa.Instruction{Kind: ssa.KindJump, Op: ssa.OpJump, Target: target}, loc)
	b.ssab.InsertEdge(b.currentBlock, target)
}

func (b *Builder) emitBranch(cond ssa.Value, trueBlock, falseBlock ssa.Label, loc int) {
	inst := ssa.Instruction{
		Kind:    ssa.KindBranch,
		Op:      ssa.OpBranch,
		Args:    []ssa.Value{cond},
		Targets: [2]ssa.Label{trueBlock, falseBlock},
	}
	b.fn.EmitInstruction(b.currentBlock, inst, loc)
	b.ssab.InsertEdge(b.currentBlock, trueBlock)
	b.ssab.InsertEdge(b.currentBlock, falseBlock)
}

// emitCallInst emits a Call instruction: parameters is a contiguous run of
// placeholder value slots, at least one even for a zero-argument call, that
// internal/regalloc assigns contiguous registers to (see Function.InternalDefs).
func (b *Builder) emitCallInst(op ssa.Op, sym symbol.Symbol, args []ssa.Value, loc int) ssa.Value {
	n := len(args)
	if n < 1 {
		n = 1
	}
	parameters := make([]ssa.Value, n)
	for i := range parameters {
		parameters[i] = b.fn.PushValue(ssa.Instruction{Kind: ssa.KindParameter})
	}

	inst := ssa.Instruction{
		Kind:           ssa.KindCall,
		Op:             op,
		CallSymbol:     sym,
		Args:           args,
		CallParameters: parameters,
	}
	return b.fn.EmitInstruction(b.currentBlock, inst, loc)
}
