// Package diag implements the interpreter's typed runtime error chain,
// source-position lookup for printing diagnostics, and the structured
// logger components take by constructor injection.
package diag

import (
	"fmt"

	"j5.nz/gml/internal/bytecode"
	"j5.nz/gml/internal/symbol"
	"j5.nz/gml/internal/value"
)

// Kind tags which runtime error variant an Error carries, one per spec's
// runtime error classes.
type Kind int

const (
	TypeUnary Kind = iota
	TypeBinary
	Arity
	Resource
	Scope
	Name
	Bounds
	Host
)

// Frame is one entry of an Error's return-address chain: the function that
// was executing and the instruction offset within it.
type Frame struct {
	Symbol      symbol.Symbol
	Instruction uint32
}

// Error is the interpreter's structured runtime error: a Kind-tagged
// payload plus the chain of frames collected as Thread.Execute unwound.
type Error struct {
	Kind Kind

	Op           bytecode.Op
	TypeA, TypeB value.Type
	Count        int
	ResourceID   int32
	ScopeID      int32
	Field        symbol.Symbol
	Index        int32
	Err          error

	Frames []Frame
}

func (e *Error) Error() string {
	detail := e.detail()
	if len(e.Frames) == 0 {
		return detail
	}
	top := e.Frames[0]
	return fmt.Sprintf("%s+%d: %s", top.Symbol, top.Instruction, detail)
}

func (e *Error) detail() string {
	switch e.Kind {
	case TypeUnary:
		return fmt.Sprintf("unary op applied to %s", e.TypeA)
	case TypeBinary:
		return fmt.Sprintf("binary op applied to %s and %s", e.TypeA, e.TypeB)
	case Arity:
		return fmt.Sprintf("wrong number of arguments: %d", e.Count)
	case Resource:
		return fmt.Sprintf("resource %d does not exist", e.ResourceID)
	case Scope:
		return fmt.Sprintf("scope %d does not exist", e.ScopeID)
	case Name:
		return fmt.Sprintf("name %s does not exist", e.Field)
	case Bounds:
		return fmt.Sprintf("array index %d out of bounds", e.Index)
	case Host:
		return e.Err.Error()
	default:
		return "unknown error"
	}
}

// Unwrap exposes a wrapped native/host error to errors.As/errors.Is.
func (e *Error) Unwrap() error { return e.Err }

func NewTypeUnary(op bytecode.Op, a value.Type) *Error {
	return &Error{Kind: TypeUnary, Op: op, TypeA: a}
}

func NewTypeBinary(op bytecode.Op, a, b value.Type) *Error {
	return &Error{Kind: TypeBinary, Op: op, TypeA: a, TypeB: b}
}

func NewArity(count int) *Error { return &Error{Kind: Arity, Count: count} }

func NewResource(id int32) *Error { return &Error{Kind: Resource, ResourceID: id} }

func NewScope(id int32) *Error { return &Error{Kind: Scope, ScopeID: id} }

func NewName(name symbol.Symbol) *Error { return &Error{Kind: Name, Field: name} }

func NewBounds(index int32) *Error { return &Error{Kind: Bounds, Index: index} }

func NewHost(err error) *Error { return &Error{Kind: Host, Err: err} }

// WithFrame appends a caller frame to e's chain as execute unwinds through
// a Call it had pushed, and returns e for chaining at each unwind step.
func (e *Error) WithFrame(sym symbol.Symbol, instruction uint32) *Error {
	e.Frames = append(e.Frames, Frame{Symbol: sym, Instruction: instruction})
	return e
}
