// Package lower compiles a parsed statement tree into an internal/ssa
// Function, grounded on the same on-demand construction algorithm
// internal/ssabuild implements: a variable's value at any program point is
// resolved lazily as blocks are sealed, rather than by a separate
// def/use pass over a finished control flow graph.
//
// A variable reference lowers through a Place, one of three addressing
// modes: a function-local slot (Local), a field on a specific entity
// (Field), or a field reached through a `with`-style scope expression that
// still needs to be resolved to an entity (Scope). Builtin fields (object
// variables like x, y, sprite_index) route through CallGet/CallSet instead
// of the ordinary field load/store path; globalvar-declared names and the
// `global` scope always use the plain field path regardless.
package lower

import (
	"fmt"

	"j5.nz/gml/internal/ast"
	"j5.nz/gml/internal/ssa"
	"j5.nz/gml/internal/ssabuild"
	"j5.nz/gml/internal/symbol"
	"j5.nz/gml/internal/token"
)

// Scope sentinel values, matching the encoding a compiled program's runtime
// uses for `self`/`other`/`all`/`noone`/`global`/`local`. -6 is intentionally
// unused, left as a gap in the original encoding this one is ported from.
const (
	SELF   = -1.0
	OTHER  = -2.0
	ALL    = -3.0
	NOONE  = -4.0
	GLOBAL = -5.0
	LOCAL  = -7.0
)

// ErrorHandler receives diagnostics discovered while lowering: unresolved
// calls, wrong arity, a `case` outside any `switch`, and similar.
type ErrorHandler interface {
	Error(span token.Span, message string)
}

type localVar struct {
	flag, local ssabuild.Local
}

type placeKind int

const (
	placeLocal placeKind = iota
	placeField
	placeScope
)

// place is an lvalue resolved partway: which addressing mode, the entity or
// scope value it resolves against (when not a Local), and an optional
// pending [row, column] array index to apply on top of the base load/store.
type place struct {
	kind   placeKind
	name   symbol.Symbol
	entity ssa.Value
	index  *[2]ssa.Value
}

type withHeader struct {
	condBlock, bodyBlock, exitBlock ssa.Label
	entity                          ssa.Value
}

// Builder lowers one script body into one ssa.Function.
type Builder struct {
	fn   *ssa.Function
	ssab *ssabuild.Builder

	errors     ErrorHandler
	prototypes map[symbol.Symbol]ssa.Prototype

	locals      map[symbol.Symbol]localVar
	arguments   int
	returnValue ssabuild.Local

	// initializers is the insertion point, within the entry block's
	// instruction list, for the next per-local init-flag/default-value pair:
	// these always run before the body's own first instruction.
	initializers int

	currentBlock ssa.Label

	currentNext, currentExit   *ssa.Label
	currentSwitch              *ssa.Value
	currentExpr, currentDefault *ssa.Label
}

// New returns a Builder ready to compile one script body.
func New(prototypes map[symbol.Symbol]ssa.Prototype, errors ErrorHandler) *Builder {
	b := &Builder{
		fn:           ssa.New(),
		ssab:         ssabuild.New(),
		errors:       errors,
		prototypes:   prototypes,
		locals:       make(map[symbol.Symbol]localVar),
		currentBlock: ssa.Entry,
	}
	b.returnValue = b.ssab.EmitLocal()
	return b
}

// CompileProgram lowers program's top-level statement (typically a
// StmtBlock) into a complete Function: releasing every surviving local,
// returning the last value assigned to `return`, or the implicit 0 a script
// whose body never reaches one returns.
func (b *Builder) CompileProgram(program *ast.Stmt) *ssa.Function {
	b.sealBlock(ssa.Entry)

	zero := b.emitInitializer(ssa.Instruction{Kind: ssa.KindUnaryReal, Op: ssa.OpConstant, Real: 0})
	b.writeLocal(b.returnValue, zero)

	b.emitStatement(program)

	endLoc := endLocStmt(program)
	b.emitJump(ssa.Exit, endLoc)
	b.sealBlock(ssa.Exit)

	b.currentBlock = ssa.Exit
	for _, lv := range b.locals {
		value := b.readLocal(lv.local)
		b.emitUnary(ssa.OpRelease, value, endLoc)
	}
	b.locals = make(map[symbol.Symbol]localVar)

	returnValue := b.readLocal(b.returnValue)
	b.emitUnary(ssa.OpReturn, returnValue, endLoc)

	ssabuild.Finish(b.fn)

	if params := b.fn.Blocks[ssa.Entry].Parameters; len(params) > 0 {
		b.fn.ReturnDef = params[0]
	}

	return b.fn
}

func endLocStmt(s *ast.Stmt) int {
	switch s.Kind {
	case ast.StmtBlock, ast.StmtSwitch:
		return s.Span.High - 1
	default:
		return s.Span.Low
	}
}

func (b *Builder) errorf(span token.Span, format string, args ...any) {
	if b.errors == nil {
		return
	}
	b.errors.Error(span, fmt.Sprintf(format, args...))
}

func opToSSA(op ast.Op) ssa.Op {
	switch op {
	case ast.Add:
		return ssa.OpAdd
	case ast.Subtract:
		return ssa.OpSubtract
	case ast.Multiply:
		return ssa.OpMultiply
	case ast.Divide:
		return ssa.OpDivide
	case ast.BitAnd:
		return ssa.OpBitAnd
	case ast.BitOr:
		return ssa.OpBitOr
	case ast.BitXor:
		return ssa.OpBitXor
	}
	panic("lower: unknown op")
}

func binaryOpToSSA(kind ast.BinaryKind, op ast.Op) ssa.Op {
	switch kind {
	case ast.BinOp:
		return opToSSA(op)
	case ast.Lt:
		return ssa.OpLt
	case ast.Le:
		return ssa.OpLe
	case ast.Eq:
		return ssa.OpEq
	case ast.Ne:
		return ssa.OpNe
	case ast.Ge:
		return ssa.OpGe
	case ast.Gt:
		return ssa.OpGt
	case ast.Div:
		return ssa.OpDiv
	case ast.Mod:
		return ssa.OpMod
	case ast.And:
		return ssa.OpAnd
	case ast.Or:
		return ssa.OpOr
	case ast.Xor:
		return ssa.OpXor
	case ast.ShiftLeft:
		return ssa.OpShiftLeft
	case ast.ShiftRight:
		return ssa.OpShiftRight
	}
	panic("lower: unknown binary kind")
}

func unaryOpToSSA(u ast.Unary) ssa.Op {
	switch u {
	case ast.Negate:
		return ssa.OpNegate
	case ast.Invert:
		return ssa.OpInvert
	case ast.BitInvert:
		return ssa.OpBitInvert
	}
	panic("lower: unknown unary op")
}
