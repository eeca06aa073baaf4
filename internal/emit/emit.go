// Package emit lowers a finished internal/ssa Function into internal/bytecode,
// assigning registers via internal/regalloc and resolving block-argument phi
// moves into an ordered sequence of Move instructions.
package emit

import (
	"cmp"
	"container/list"

	"j5.nz/gml/internal/bytecode"
	"j5.nz/gml/internal/regalloc"
	"j5.nz/gml/internal/ssa"
	"j5.nz/gml/internal/symbol"
	"j5.nz/gml/internal/value"
)

var opTable = map[ssa.Op]bytecode.Op{
	ssa.OpNegate:    bytecode.Neg,
	ssa.OpInvert:    bytecode.Not,
	ssa.OpBitInvert: bytecode.BitNot,

	ssa.OpToArray:  bytecode.ToArray,
	ssa.OpToScalar: bytecode.ToScalar,
	ssa.OpRelease:  bytecode.ReleaseOwned,

	ssa.OpWith:         bytecode.With,
	ssa.OpReleaseWith:  bytecode.ReleaseWith,
	ssa.OpScopeError:   bytecode.ScopeError,
	ssa.OpLoadPointer:  bytecode.LoadPointer,
	ssa.OpNextPointer:  bytecode.NextPointer,
	ssa.OpExistsEntity: bytecode.ExistsEntity,

	ssa.OpDeclareGlobal: bytecode.DeclareGlobal,
	ssa.OpLookup:        bytecode.Lookup,
	ssa.OpLoadScope:     bytecode.LoadScope,

	ssa.OpLt: bytecode.Lt, ssa.OpLe: bytecode.Le,
	ssa.OpEq: bytecode.Eq, ssa.OpNe: bytecode.Ne,
	ssa.OpGe: bytecode.Ge, ssa.OpGt: bytecode.Gt,

	ssa.OpNePointer: bytecode.NePointer,

	ssa.OpAdd: bytecode.Add, ssa.OpSubtract: bytecode.Sub,
	ssa.OpMultiply: bytecode.Mul, ssa.OpDivide: bytecode.Div,
	ssa.OpDiv: bytecode.IntDiv, ssa.OpMod: bytecode.Mod,

	ssa.OpAnd: bytecode.And, ssa.OpOr: bytecode.Or, ssa.OpXor: bytecode.Xor,

	ssa.OpBitAnd: bytecode.BitAnd, ssa.OpBitOr: bytecode.BitOr, ssa.OpBitXor: bytecode.BitXor,
	ssa.OpShiftLeft: bytecode.ShiftLeft, ssa.OpShiftRight: bytecode.ShiftRight,

	ssa.OpRead: bytecode.Read, ssa.OpWrite: bytecode.Write,

	ssa.OpStoreScope: bytecode.StoreScope,

	ssa.OpLoadField: bytecode.LoadField, ssa.OpLoadFieldDefault: bytecode.LoadFieldDefault,

	ssa.OpLoadRow: bytecode.LoadRow, ssa.OpStoreRow: bytecode.StoreRow, ssa.OpLoadIndex: bytecode.LoadIndex,

	ssa.OpStoreField: bytecode.StoreField, ssa.OpStoreIndex: bytecode.StoreIndex,

	ssa.OpCall: bytecode.Call, ssa.OpCallAPI: bytecode.CallApi,
	ssa.OpCallGet: bytecode.CallGet, ssa.OpCallSet: bytecode.CallSet,

	ssa.OpJump: bytecode.Jump, ssa.OpBranch: bytecode.BranchFalse,
}

type codegen struct {
	fn *bytecode.Function

	prototypes map[symbol.Symbol]ssa.Prototype

	registers     map[ssa.Value]int
	registerCount int
	scratchCount  int

	visited      map[ssa.Label]bool
	blockOffsets map[ssa.Label]int
	jumpOffsets  map[int]ssa.Label
	edgeBlock    ssa.Label

	constants map[value.Value]int
	symbols   map[symbol.Symbol]int

	lastLocation uint32
}

// Compile assigns registers to program and emits its bytecode.Function.
// prototypes resolves every Call's target symbol to the prototype codegen
// needs to know how to address it (a compile-time script id, or a symbol
// the interpreter looks up by name).
func Compile(program *ssa.Function, prototypes map[symbol.Symbol]ssa.Prototype) *bytecode.Function {
	cf := regalloc.ComputeControlFlow(program)
	liveness := regalloc.ComputeLiveness(program, cf)
	interference := regalloc.BuildInterference(program, liveness)
	registers, paramCount, registerCount := interference.Color()

	c := &codegen{
		fn:            bytecode.NewFunction(),
		prototypes:    prototypes,
		registers:     registers,
		registerCount: registerCount,
		visited:       make(map[ssa.Label]bool),
		blockOffsets:  make(map[ssa.Label]int),
		jumpOffsets:   make(map[int]ssa.Label),
		edgeBlock:     ssa.Label(len(program.Blocks)),
		constants:     make(map[value.Value]int),
		symbols:       make(map[symbol.Symbol]int),
		lastLocation:  ^uint32(0),
	}

	c.emitBlocks(program, ssa.Entry)
	c.fixupJumps()

	c.fn.Params = uint32(paramCount)
	c.fn.Locals = uint32(c.registerCount + c.scratchCount)

	return c.fn
}

func (c *codegen) push(i bytecode.Inst) int {
	pos := len(c.fn.Instructions)
	c.fn.Instructions = append(c.fn.Instructions, i)
	return pos
}

func (c *codegen) reg(v ssa.Value) uint8 {
	return uint8(c.registers[v])
}

func (c *codegen) emitBlocks(program *ssa.Function, block ssa.Label) {
	c.visited[block] = true
	c.blockOffsets[block] = len(c.fn.Instructions)

	for _, v := range program.Blocks[block].Instructions {
		offset := uint32(len(c.fn.Instructions))
		location := uint32(program.Locations[v])
		if location != c.lastLocation {
			c.fn.Mappings = append(c.fn.Mappings, bytecode.SourceMap{Offset: offset, Location: location})
			c.lastLocation = location
		}

		inst := program.Values[v]

		if inst.Kind == ssa.KindUnary && inst.Op == ssa.OpReturn {
			c.emitPhis([]ssa.Value{program.ReturnDef}, inst.Args)
			c.push(bytecode.Encode(bytecode.Ret, 0, 0, 0))
			continue
		}

		if inst.Kind == ssa.KindCall {
			c.emitCall(program, v, inst)
			continue
		}

		if inst.Kind == ssa.KindJump && inst.Op == ssa.OpJump {
			c.emitEdge(program, inst.Target, inst.Args)
			continue
		}

		if inst.Kind == ssa.KindBranch {
			c.emitBranch(program, inst)
			continue
		}

		c.emitDefault(program, v, inst)
	}
}

func (c *codegen) emitCall(program *ssa.Function, v ssa.Value, inst ssa.Instruction) {
	c.emitPhis(inst.CallParameters, inst.Args)

	op := opTable[inst.Op]

	var a uint8
	if proto, ok := c.prototypes[inst.CallSymbol]; ok && proto.Kind == ssa.PrototypeScript {
		a = uint8(c.emitReal(float64(proto.ScriptID)))
	} else {
		a = uint8(c.emitSymbol(inst.CallSymbol))
	}
	b := c.reg(inst.CallParameters[0])
	cnt := uint8(len(inst.Args))

	c.push(bytecode.Encode(op, a, b, cnt))

	defs := program.Defs(v).Values()
	c.emitPhis(defs, inst.CallParameters[:len(defs)])
}

func (c *codegen) emitBranch(program *ssa.Function, inst ssa.Instruction) {
	edgeBlock := c.edgeBlock
	c.edgeBlock++

	c.jumpOffsets[len(c.fn.Instructions)] = edgeBlock
	c.push(bytecode.Encode(bytecode.BranchFalse, c.reg(inst.Args[0]), 0, 0))

	trueStart, trueEnd := 1, 1+int(inst.ArgLens[0])
	c.emitEdge(program, inst.Targets[0], inst.Args[trueStart:trueEnd])

	c.blockOffsets[edgeBlock] = len(c.fn.Instructions)

	falseStart, falseEnd := trueEnd, trueEnd+int(inst.ArgLens[1])
	c.emitEdge(program, inst.Targets[1], inst.Args[falseStart:falseEnd])
}

// emitEdge falls through to an unvisited successor, or emits a jump to an
// already-compiled one.
func (c *codegen) emitEdge(program *ssa.Function, target ssa.Label, args []ssa.Value) {
	parameters := program.Blocks[target].Parameters
	c.emitPhis(parameters, args)

	if c.visited[target] {
		c.jumpOffsets[len(c.fn.Instructions)] = target
		c.push(bytecode.Encode(bytecode.Jump, 0, 0, 0))
		return
	}

	c.emitBlocks(program, target)
}

func (c *codegen) emitDefault(program *ssa.Function, v ssa.Value, inst ssa.Instruction) {
	op := opTable[inst.Op]

	var fields []uint8
	defs := program.Defs(v)
	for d := defs.Start; d < defs.End; d++ {
		fields = append(fields, c.reg(d))
	}
	for _, u := range program.Uses(v) {
		fields = append(fields, c.reg(u))
	}

	switch {
	case inst.Kind == ssa.KindUnarySymbol && inst.Op == ssa.OpConstant:
		fields = append(fields, uint8(c.emitString(inst.Sym)))
	case inst.Kind == ssa.KindUnaryReal:
		fields = append(fields, uint8(c.emitReal(inst.Real)))
	case inst.Kind == ssa.KindBinaryReal:
		fields = append(fields, uint8(c.emitReal(inst.Real)))
	case inst.Kind == ssa.KindUnarySymbol:
		fields = append(fields, uint8(c.emitSymbol(inst.Sym)))
	case inst.Kind == ssa.KindBinarySymbol:
		fields = append(fields, uint8(c.emitSymbol(inst.Sym)))
	case inst.Kind == ssa.KindTernarySymbol:
		fields = append(fields, uint8(c.emitSymbol(inst.Sym)))
	}

	var a, b, cc uint8
	if len(fields) > 0 {
		a = fields[0]
	}
	if len(fields) > 1 {
		b = fields[1]
	}
	if len(fields) > 2 {
		cc = fields[2]
	}
	c.push(bytecode.Encode(op, a, b, cc))
}

func (c *codegen) emitSymbol(s symbol.Symbol) int {
	if i, ok := c.symbols[s]; ok {
		return i
	}
	i := len(c.fn.Symbols)
	c.fn.Symbols = append(c.fn.Symbols, s.ID())
	c.symbols[s] = i
	return i
}

func (c *codegen) emitReal(f float64) int {
	return c.emitConstant(value.FromFloat64(f))
}

func (c *codegen) emitString(s symbol.Symbol) int {
	return c.emitConstant(value.FromSymbol(s))
}

func (c *codegen) emitConstant(v value.Value) int {
	if i, ok := c.constants[v]; ok {
		return i
	}
	i := len(c.fn.Constants)
	c.fn.Constants = append(c.fn.Constants, v)
	c.constants[v] = i
	return i
}

func (c *codegen) fixupJumps() {
	for offset, block := range c.jumpOffsets {
		target := uint16(c.blockOffsets[block])
		op, a, b, cc := c.fn.Instructions[offset].Decode()
		switch {
		case op == bytecode.Jump && a == 0 && b == 0 && cc == 0:
			c.fn.Instructions[offset] = bytecode.EncodeWide(bytecode.Jump, 0, target)
		case op == bytecode.BranchFalse && b == 0 && cc == 0:
			c.fn.Instructions[offset] = bytecode.EncodeWide(bytecode.BranchFalse, a, target)
		default:
			panic("emit: corrupt jump instruction")
		}
	}
}

// emitPhis moves arguments into parameters as if simultaneously, since SSA
// block arguments are conceptually evaluated all at once and may describe a
// cyclic permutation of registers (e.g. a loop that swaps two variables).
// It builds the target<-source dependency graph, emits a topological order
// of Moves, and breaks any remaining cycle with one scratch register.
func (c *codegen) emitPhis(parameters, arguments []ssa.Value) {
	phis := make(map[int]int)
	for i, p := range parameters {
		target := int(c.reg(p))
		source := int(c.reg(arguments[i]))
		if target != source {
			phis[target] = source
		}
	}

	uses := make(map[int]int)
	for _, source := range phis {
		if _, ok := phis[source]; ok {
			uses[source]++
		}
	}

	scratchCount := 0

	work := list.New()
	var targets []int
	for t := range phis {
		targets = append(targets, t)
	}
	cmpSortInts(targets)
	for _, t := range targets {
		if uses[t] == 0 {
			work.PushBack([2]int{t, phis[t]})
		}
	}

	for {
		for work.Len() > 0 {
			e := work.Front()
			work.Remove(e)
			pair := e.Value.([2]int)
			target, source := pair[0], pair[1]

			c.push(bytecode.Encode(bytecode.Move, uint8(target), uint8(source), 0))

			if n, ok := uses[source]; ok {
				n--
				if n == 0 {
					delete(uses, source)
					work.PushBack([2]int{source, phis[source]})
				} else {
					uses[source] = n
				}
			}
		}

		if len(uses) == 0 {
			break
		}

		scratch := c.registerCount + scratchCount
		scratchCount++

		used, count := firstUse(uses)
		if count != 1 {
			panic("emit: phi cycle with more than one use")
		}

		c.push(bytecode.Encode(bytecode.Move, uint8(scratch), uint8(used), 0))

		delete(uses, used)
		for t, source := range phis {
			if source == used {
				phis[t] = scratch
			}
		}

		work.PushBack([2]int{used, phis[used]})
	}

	if scratchCount > c.scratchCount {
		c.scratchCount = scratchCount
	}
}

func firstUse(uses map[int]int) (int, int) {
	for k, v := range uses {
		return k, v
	}
	return 0, 0
}

func cmpSortInts(s []int) {
	// insertion sort: these lists are tiny (one entry per phi target) and
	// this keeps Move emission order deterministic across runs, unlike
	// Go's randomized map iteration.
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && cmp.Less(s[j], s[j-1]); j-- {
			s[j], s[j-1] = s[j-1], s[j]
		}
	}
}
