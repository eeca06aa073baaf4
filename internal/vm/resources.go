package vm

import (
	"j5.nz/gml/internal/bytecode"
	"j5.nz/gml/internal/symbol"
	"j5.nz/gml/internal/value"
)

// FunctionID names a compiled script by its position in a Resources'
// script table, the form internal/emit bakes a direct call's target into
// rather than carrying the callee's name in every Call instruction.
type FunctionID int32

// NativeFunc is a CallApi target: a host function taking the calling
// Thread, the Resources and World it is running against, and its argument
// window, returning a result or a host-level error. The Thread and
// Resources are threaded through so a native can reenter the interpreter
// (Thread.Execute) on the same call stack, the way a script-reentrant
// native like `execute` does.
type NativeFunc func(t *Thread, resources Resources, world *World, args []value.Value) (value.Value, error)

// GetFunc is a CallGet target: a built-in member getter, addressed by the
// entity it reads from and an optional array index.
type GetFunc func(e Entity, index int32) value.Value

// SetFunc is a CallSet target: a built-in member setter.
type SetFunc func(e Entity, index int32, v value.Value)

// Resources resolves everything a running Thread can call into: compiled
// scripts by id, and the three kinds of host-registered native function a
// CallApi/CallGet/CallSet instruction addresses by symbol. internal/build's
// Program combines an internal/host.Host's native/member registrations with
// its own compiled Assets to implement this, which keeps vm free of any
// dependency on either package.
type Resources interface {
	Script(id FunctionID) (fn *bytecode.Function, owner symbol.Symbol, ok bool)
	ScriptID(sym symbol.Symbol) (FunctionID, bool)
	Native(sym symbol.Symbol) (NativeFunc, bool)
	Getter(sym symbol.Symbol) (GetFunc, bool)
	Setter(sym symbol.Symbol) (SetFunc, bool)
}
