package build

import (
	"j5.nz/gml/internal/bytecode"
	"j5.nz/gml/internal/diag"
	"j5.nz/gml/internal/host"
	"j5.nz/gml/internal/symbol"
	"j5.nz/gml/internal/vm"
)

// Program combines a Host's native/member registrations with its own
// compiled Assets to implement vm.Resources, the interface internal/vm
// calls through for every Call/CallApi/CallGet/CallSet — this is the
// "internal/build's Program" vm.Resources.Script refers to.
type Program struct {
	host   *host.Host
	assets *Assets
}

// NewProgram returns a Program ready to run assets compiled from host's
// registrations.
func NewProgram(h *host.Host, assets *Assets) *Program {
	return &Program{host: h, assets: assets}
}

func (p *Program) Script(id vm.FunctionID) (*bytecode.Function, symbol.Symbol, bool) {
	return p.assets.get(id)
}

func (p *Program) ScriptID(sym symbol.Symbol) (vm.FunctionID, bool) {
	return p.assets.idByName(sym)
}

func (p *Program) Native(sym symbol.Symbol) (vm.NativeFunc, bool) {
	return p.host.Native(sym)
}

func (p *Program) Getter(sym symbol.Symbol) (vm.GetFunc, bool) {
	return p.host.Getter(sym)
}

func (p *Program) Setter(sym symbol.Symbol) (vm.SetFunc, bool) {
	return p.host.Setter(sym)
}

// Resolver returns a diag.FunctionSource closed over debug, for
// diag.Print to turn a diagnostic frame's symbol into its compiled
// function and source file.
func (p *Program) Resolver(debug *Debug) diag.FunctionSource {
	return func(sym symbol.Symbol) (fn *bytecode.Function, src *diag.SourceFile, ok bool) {
		id, ok := p.assets.idByName(sym)
		if !ok {
			return nil, nil, false
		}
		fn, _, ok = p.assets.get(id)
		if !ok {
			return nil, nil, false
		}
		src, ok = debug.get(id)
		return fn, src, ok
	}
}
