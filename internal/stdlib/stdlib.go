// Package stdlib is a representative slice of the built-in function and
// member library spec.md §1 deliberately puts out of scope for this
// system's core (project files, graphics, rooms, instances, drawing):
// just enough natives and one member pair to exercise internal/host's
// three registration kinds end to end.
//
// Grounded on original_source/gml/src/vm/bind.rs's doc examples, translated
// from its trait-bound closures to plain Go functions internal/host binds
// by reflection.
package stdlib

import (
	"fmt"
	"math"
	"strings"
	"sync"

	"j5.nz/gml/internal/host"
	"j5.nz/gml/internal/symbol"
	"j5.nz/gml/internal/value"
	"j5.nz/gml/internal/vm"
)

// Register installs this package's natives and member pair onto h.
func Register(h *host.Host) error {
	natives := []struct {
		name string
		fn   any
	}{
		{"abs", func(x float64) float64 { return math.Abs(x) }},
		{"sign", signOf},
		{"string_length", stringLength},
		{"string_upper", stringUpper},
		{"max", maxOf},
		{"add", func(a, b float64) float64 { return a + b }},
	}
	for _, n := range natives {
		if err := h.RegisterNative(symbol.Intern(n.name), n.fn); err != nil {
			return err
		}
	}

	if err := registerExecute(h); err != nil {
		return err
	}

	pos := newPositions()
	if err := h.RegisterMember(symbol.Intern("x"), pos.getX, pos.setX); err != nil {
		return err
	}
	if err := h.RegisterMember(symbol.Intern("y"), pos.getY, pos.setY); err != nil {
		return err
	}
	return nil
}

func signOf(x float64) float64 {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	default:
		return 0
	}
}

func stringLength(s symbol.Symbol) float64 {
	return float64(len(s.String()))
}

func stringUpper(s symbol.Symbol) symbol.Symbol {
	return symbol.Intern(strings.ToUpper(s.String()))
}

// maxOf is variadic with arity 1: spec's "variadic natives accept any
// number of arguments >= arity" means a single-argument call is already
// legal at the call site.
func maxOf(first value.Value, rest ...value.Value) value.Value {
	best, _ := first.Real()
	for _, v := range rest {
		if r, ok := v.Real(); ok && r > best {
			best = r
		}
	}
	return value.FromFloat64(best)
}

// registerExecute wires the one native that needs the raw Thread/Resources
// binding instead of reflection: a script reentering the interpreter on
// its own call stack, the way a callback-driven host embeds a script
// engine. The script is named by its symbol, passed as a GML string
// literal at the call site (e.g. execute("callee", 3)).
func registerExecute(h *host.Host) error {
	call := func(t *vm.Thread, resources vm.Resources, world *vm.World, args []value.Value) (value.Value, error) {
		name, ok := args[0].Symbol()
		if !ok {
			return 0, fmt.Errorf("stdlib: execute: first argument must name a script")
		}
		return t.Execute(resources, world, name, args[1:])
	}
	return h.RegisterNativeFunc(symbol.Intern("execute"), 2, false, call)
}

// positions backs the x/y member pair outside internal/vm.World: builtin
// object variables are host-owned state keyed by entity, not entries in a
// World's user field map, mirroring bind.rs's Index-parameterized
// getter/setter pattern where the host context (not the entity's field
// map) owns the storage the builtin reads and writes.
type positions struct {
	mu    sync.Mutex
	coord map[vm.Entity][2]float64
}

func newPositions() *positions {
	return &positions{coord: make(map[vm.Entity][2]float64)}
}

func (p *positions) getX(e vm.Entity, index int32) value.Value { return p.get(e, 0) }
func (p *positions) getY(e vm.Entity, index int32) value.Value { return p.get(e, 1) }

func (p *positions) setX(e vm.Entity, index int32, v value.Value) { p.set(e, 0, v) }
func (p *positions) setY(e vm.Entity, index int32, v value.Value) { p.set(e, 1, v) }

func (p *positions) get(e vm.Entity, axis int) value.Value {
	p.mu.Lock()
	defer p.mu.Unlock()
	return value.FromFloat64(p.coord[e][axis])
}

func (p *positions) set(e vm.Entity, axis int, v value.Value) {
	p.mu.Lock()
	defer p.mu.Unlock()
	c := p.coord[e]
	r, _ := v.Real()
	c[axis] = r
	p.coord[e] = c
}
