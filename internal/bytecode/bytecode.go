// Package bytecode defines the compiled instruction format internal/emit
// writes and internal/vm executes: fixed 4-byte instructions over a
// register file, plus the constant/symbol pools and source map each
// compiled Function carries alongside its code.
package bytecode

import (
	"fmt"

	"j5.nz/gml/internal/value"
)

// Op is a bytecode opcode. Every instruction is one byte of Op followed by
// three bytes of operand fields (register indices, an 8-bit
// constant-pool or symbol-pool index, or a 16-bit jump target spanning the
// last two bytes).
type Op uint8

const (
	Const Op = iota
	GlobalConst

	Neg
	Not
	BitNot

	ToArray
	ToScalar
	ReleaseOwned

	With
	ReleaseWith
	ScopeError
	LoadPointer
	NextPointer
	ExistsEntity

	DeclareGlobal
	Lookup
	LoadScope

	Lt
	Le
	Eq
	Ne
	Ge
	Gt

	NePointer

	Add
	Sub
	Mul
	Div
	IntDiv
	Mod

	And
	Or
	Xor

	BitAnd
	BitOr
	BitXor
	ShiftLeft
	ShiftRight

	Read
	Write

	StoreScope

	LoadField
	LoadFieldDefault

	LoadRow
	StoreRow
	LoadIndex

	StoreField
	StoreIndex

	Call
	Ret
	CallApi
	CallGet
	CallSet

	Jump
	BranchFalse

	// Move is emitted only by phi resolution; it never appears in the
	// source ssa.Op set.
	Move
)

var opNames = [...]string{
	Const: "const", GlobalConst: "global_const",
	Neg: "neg", Not: "not", BitNot: "bit_not",
	ToArray: "to_array", ToScalar: "to_scalar", ReleaseOwned: "release",
	With: "with", ReleaseWith: "release_with", ScopeError: "scope_error",
	LoadPointer: "load_pointer", NextPointer: "next_pointer", ExistsEntity: "exists_entity",
	DeclareGlobal: "declare_global", Lookup: "lookup", LoadScope: "load_scope",
	Lt: "lt", Le: "le", Eq: "eq", Ne: "ne", Ge: "ge", Gt: "gt",
	NePointer: "ne_pointer",
	Add:       "add", Sub: "sub", Mul: "mul", Div: "div", IntDiv: "intdiv", Mod: "mod",
	And: "and", Or: "or", Xor: "xor",
	BitAnd: "bit_and", BitOr: "bit_or", BitXor: "bit_xor",
	ShiftLeft: "shl", ShiftRight: "shr",
	Read: "read", Write: "write",
	StoreScope:        "store_scope",
	LoadField:         "load_field",
	LoadFieldDefault:  "load_field_default",
	LoadRow:           "load_row", StoreRow: "store_row", LoadIndex: "load_index",
	StoreField: "store_field", StoreIndex: "store_index",
	Call: "call", Ret: "ret", CallApi: "call_api", CallGet: "call_get", CallSet: "call_set",
	Jump: "jump", BranchFalse: "branch_false",
	Move: "move",
}

// String renders op as the mnemonic cmd/gmlvm's disassembler prints.
func (op Op) String() string {
	if int(op) < len(opNames) && opNames[op] != "" {
		return opNames[op]
	}
	return fmt.Sprintf("op(%d)", uint8(op))
}

// Inst is one encoded 4-byte instruction: byte 0 is Op, bytes 1-3 are its
// operand fields.
type Inst uint32

// Encode packs an opcode and up to three single-byte fields into an Inst.
func Encode(op Op, a, b, c uint8) Inst {
	return Inst(uint32(op) | uint32(a)<<8 | uint32(b)<<16 | uint32(c)<<24)
}

// EncodeWide packs an opcode, one single-byte field, and one 16-bit field
// spanning the instruction's last two bytes (used for jump targets).
func EncodeWide(op Op, a uint8, wide uint16) Inst {
	return Inst(uint32(op) | uint32(a)<<8 | uint32(wide)<<16)
}

// Decode unpacks an Inst back into its opcode and three byte fields.
func (i Inst) Decode() (op Op, a, b, c uint8) {
	return Op(i & 0xff), uint8(i >> 8), uint8(i >> 16), uint8(i >> 24)
}

// DecodeWide unpacks an Inst written by EncodeWide.
func (i Inst) DecodeWide() (op Op, a uint8, wide uint16) {
	return Op(i & 0xff), uint8(i >> 8), uint16(i >> 16)
}

// SourceMap records that every instruction from Offset onward, until the
// next entry, was compiled from source byte Location.
type SourceMap struct {
	Offset   uint32
	Location uint32
}

// Function is one compiled script or member body: its code, deduplicated
// constant and symbol pools, and the register-count metadata the
// interpreter needs to size a call frame.
type Function struct {
	Instructions []Inst

	Constants []value.Value
	Symbols   []uint32 // symbol.Symbol.ID() values; the interpreter turns them back with symbol.FromID

	// Params is the number of leading registers that hold the function's
	// arguments on entry.
	Params uint32
	// Locals is the total register count the frame needs, including
	// Params and any scratch registers phi resolution introduced.
	Locals uint32

	Mappings []SourceMap
}

// NewFunction returns an empty Function ready for internal/emit to fill in.
func NewFunction() *Function {
	return &Function{}
}

// LocationOf returns the source byte offset the instruction at pc was
// compiled from, by scanning the source map for the last entry at or
// before pc.
func (f *Function) LocationOf(pc uint32) uint32 {
	var location uint32
	for _, m := range f.Mappings {
		if m.Offset > pc {
			break
		}
		location = m.Location
	}
	return location
}
