// Package ast defines the parse tree produced by internal/parser and
// consumed by internal/lower.
//
// Every node carries a Span as a value so error messages can always point at
// the exact source text a whole subtree came from, not merely a single
// token. Expr and Stmt are each a single tagged struct rather than an
// interface hierarchy, holding the union of fields any variant might need:
// Go has no sum type, and a tag-plus-fields struct reads closer to the
// opcode tables this pipeline already uses than a deep interface tree would.
package ast

import (
	"j5.nz/gml/internal/symbol"
	"j5.nz/gml/internal/token"
)

// Ident is a bound identifier occurrence: the symbol plus where it appeared.
type Ident struct {
	Name symbol.Symbol
	Span token.Span
}

// Op is an arithmetic/bitwise operator that doubles as a compound-assignment
// operator (`+`, `+=`).
type Op int

const (
	Add Op = iota
	Subtract
	Multiply
	Divide
	BitAnd
	BitOr
	BitXor
)

// Binary is every binary operator, a superset of Op with the comparison and
// logical operators that cannot appear in a compound assignment.
type BinaryKind int

const (
	BinOp BinaryKind = iota // wraps an Op
	Lt
	Le
	Eq
	Ne
	Ge
	Gt
	Div
	Mod
	And
	Or
	Xor
	ShiftLeft
	ShiftRight
)

// Unary is a prefix operator.
type Unary int

const (
	Positive Unary = iota
	Negate
	Invert
	BitInvert
)

// ExprKind tags the variant of an Expr.
type ExprKind int

const (
	ExprError ExprKind = iota
	ExprIdent
	ExprReal
	ExprString
	ExprUnary
	ExprBinary
	ExprField
	ExprIndex
	ExprCall
)

// Expr is one expression node.
type Expr struct {
	Kind ExprKind
	Span token.Span

	Ident  symbol.Symbol // ExprIdent: self, other, all, noone, global, local, true, false, or a plain name
	Real   float64       // ExprReal
	String symbol.Symbol // ExprString

	UnaryOp   Unary
	UnarySpan token.Span
	X         *Expr // ExprUnary

	BinOp   BinaryKind
	Op      Op // valid when BinOp == BinOp
	OpSpan  token.Span
	Left    *Expr
	Right   *Expr // ExprBinary

	FieldBase *Expr
	Field     Ident // ExprField

	IndexBase *Expr
	IndexArgs []*Expr // ExprIndex, 1 or 2 args (row, or row+column)

	Call *Call // ExprCall
}

// Call is a named invocation: a script or native function call.
type Call struct {
	Name Ident
	Args []*Expr
}

// Declare distinguishes `var` from `globalvar`.
type Declare int

const (
	DeclareLocal Declare = iota
	DeclareGlobal
)

// Jump is a bare control-transfer statement.
type Jump int

const (
	Break Jump = iota
	Continue
	Exit
)

// StmtKind tags the variant of a Stmt.
type StmtKind int

const (
	StmtError StmtKind = iota
	StmtBlock
	StmtDeclare
	StmtAssign
	StmtInvoke
	StmtIf
	StmtRepeat
	StmtWhile
	StmtWith
	StmtDo
	StmtFor
	StmtSwitch
	StmtJump
	StmtReturn
	StmtCase
)

// Stmt is one statement node.
type Stmt struct {
	Kind StmtKind
	Span token.Span

	Block []*Stmt // StmtBlock

	Declare Declare
	Idents  []Ident // StmtDeclare

	// StmtAssign: AssignOp == nil means a plain `=`/`:=`; otherwise it names
	// the compound-assignment operator (`x += 1`).
	AssignOp *Op
	OpSpan   token.Span
	Place    *Expr
	Value    *Expr

	Invoke *Call // StmtInvoke

	Cond *Expr
	Then *Stmt
	Else *Stmt // StmtIf

	Count *Expr
	Body  *Stmt // StmtRepeat, StmtWhile, StmtWith (Count holds the loop/scope expr)

	ForInit *Stmt
	ForCond *Expr
	ForNext *Stmt
	ForBody *Stmt // StmtFor

	SwitchExpr *Expr
	SwitchBody []*Stmt // StmtSwitch

	JumpKind Jump // StmtJump

	Return *Expr // StmtReturn

	CaseExpr  *Expr // StmtCase: nil means `default:`
	IsDefault bool

	ErrorExpr *Expr // StmtError: whatever partial expression was recovered, if any
}
