// Package host is where an embedding program registers the three kinds of
// item a compiled script can call out to: other scripts (by source text),
// native functions (by a Go func internal/host binds via reflection), and
// member pairs (builtin-style getter/setter fields addressed by entity and
// array index). internal/build compiles the registered scripts against the
// resulting prototype table and combines the two into something
// internal/vm can run against.
//
// Grounded on original_source/gml/src/vm/bind.rs's FnBind/GetBind/SetBind
// trait family: a native's arity and variadic-ness are discovered once at
// registration time (there, by trait dispatch on the closure's argument
// tuple; here, by reflect.Type inspection) and never again at call time.
package host

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"j5.nz/gml/internal/ssa"
	"j5.nz/gml/internal/symbol"
	"j5.nz/gml/internal/vm"
)

type nativeBinding struct {
	call     vm.NativeFunc
	arity    int
	variadic bool
}

type memberBinding struct {
	get vm.GetFunc
	set vm.SetFunc
}

// Host is the registry an embedding program builds up before calling
// internal/build.Build: every script, native, and member pair it wants
// compiled scripts to be able to reach.
type Host struct {
	log *zap.Logger

	mu      sync.RWMutex
	scripts map[symbol.Symbol]string
	natives map[symbol.Symbol]nativeBinding
	members map[symbol.Symbol]memberBinding
}

// New returns an empty Host. log receives one debug line per successful
// registration; a rejected duplicate registration is reported only through
// the returned error. A nil log discards them.
func New(log *zap.Logger) *Host {
	if log == nil {
		log = zap.NewNop()
	}
	return &Host{
		log:     log,
		scripts: make(map[symbol.Symbol]string),
		natives: make(map[symbol.Symbol]nativeBinding),
		members: make(map[symbol.Symbol]memberBinding),
	}
}

func (h *Host) taken(name symbol.Symbol) bool {
	_, isScript := h.scripts[name]
	_, isNative := h.natives[name]
	_, isMember := h.members[name]
	return isScript || isNative || isMember
}

// RegisterScript registers source as a script callable under name. Scripts
// are always variadic at the call site; a script body reads its actual
// argument count through argument0..argumentN.
func (h *Host) RegisterScript(name symbol.Symbol, source string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.taken(name) {
		return fmt.Errorf("host: %s already registered", name)
	}
	h.scripts[name] = source
	h.log.Debug("registered script", zap.String("name", name.String()))
	return nil
}

// RegisterNative registers fn, a Go function, as a native callable under
// name. fn's signature is inspected once here; see bind.go for the
// parameter and return types accepted.
func (h *Host) RegisterNative(name symbol.Symbol, fn any) error {
	binding, err := bindNative(fn)
	if err != nil {
		return fmt.Errorf("host: native %s: %w", name, err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.taken(name) {
		return fmt.Errorf("host: %s already registered", name)
	}
	h.natives[name] = binding
	h.log.Debug("registered native",
		zap.String("name", name.String()),
		zap.Int("arity", binding.arity),
		zap.Bool("variadic", binding.variadic))
	return nil
}

// RegisterMember registers a builtin-style field under name: get and set
// are each optional (a nil getter makes the field write-only, and vice
// versa), matching spec's "optional getter and optional setter".
func (h *Host) RegisterMember(name symbol.Symbol, get vm.GetFunc, set vm.SetFunc) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.taken(name) {
		return fmt.Errorf("host: %s already registered", name)
	}
	h.members[name] = memberBinding{get: get, set: set}
	h.log.Debug("registered member", zap.String("name", name.String()))
	return nil
}

// RegisterNativeFunc registers fn directly as a native, bypassing
// reflection. This is the primitive RegisterNative is sugar over — use it
// when a native needs the Thread or Resources arguments itself, such as
// one that reenters the interpreter (see internal/stdlib's `execute`).
func (h *Host) RegisterNativeFunc(name symbol.Symbol, arity int, variadic bool, fn vm.NativeFunc) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.taken(name) {
		return fmt.Errorf("host: %s already registered", name)
	}
	h.natives[name] = nativeBinding{call: fn, arity: arity, variadic: variadic}
	h.log.Debug("registered native",
		zap.String("name", name.String()),
		zap.Int("arity", arity),
		zap.Bool("variadic", variadic))
	return nil
}

// ScriptNames returns every registered script's symbol, in a stable order
// (ascending symbol id) so internal/build can assign FunctionIDs
// deterministically across repeated builds of the same Host.
func (h *Host) ScriptNames() []symbol.Symbol {
	h.mu.RLock()
	defer h.mu.RUnlock()
	names := make([]symbol.Symbol, 0, len(h.scripts))
	for name := range h.scripts {
		names = append(names, name)
	}
	sortSymbols(names)
	return names
}

func sortSymbols(s []symbol.Symbol) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j].ID() < s[j-1].ID(); j-- {
			s[j], s[j-1] = s[j-1], s[j]
		}
	}
}

// ScriptSource returns the registered source for name.
func (h *Host) ScriptSource(name symbol.Symbol) (string, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	src, ok := h.scripts[name]
	return src, ok
}

// Logger returns the Host's logger, for internal/build to share.
func (h *Host) Logger() *zap.Logger { return h.log }

// Prototypes builds the compile-time symbol table internal/lower and
// internal/emit need to resolve calls: every native and member pair
// registered on h, plus one PrototypeScript entry per (name, id) pair in
// scriptIDs, the ids internal/build assigns before compiling anything.
func (h *Host) Prototypes(scriptIDs map[symbol.Symbol]int32) map[symbol.Symbol]ssa.Prototype {
	h.mu.RLock()
	defer h.mu.RUnlock()

	protos := make(map[symbol.Symbol]ssa.Prototype, len(h.natives)+len(h.members)+len(scriptIDs))
	for name, n := range h.natives {
		protos[name] = ssa.Prototype{Kind: ssa.PrototypeNative, Arity: n.arity, Variadic: n.variadic}
	}
	for name := range h.members {
		protos[name] = ssa.Prototype{Kind: ssa.PrototypeMember}
	}
	for name, id := range scriptIDs {
		protos[name] = ssa.Prototype{Kind: ssa.PrototypeScript, ScriptID: id}
	}
	return protos
}

// Native looks up a registered native's call target, for
// internal/build.Program's vm.Resources implementation.
func (h *Host) Native(name symbol.Symbol) (vm.NativeFunc, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n, ok := h.natives[name]
	if !ok {
		return nil, false
	}
	return n.call, true
}

// Getter looks up a registered member's getter, if any.
func (h *Host) Getter(name symbol.Symbol) (vm.GetFunc, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	m, ok := h.members[name]
	if !ok || m.get == nil {
		return nil, false
	}
	return m.get, true
}

// Setter looks up a registered member's setter, if any.
func (h *Host) Setter(name symbol.Symbol) (vm.SetFunc, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	m, ok := h.members[name]
	if !ok || m.set == nil {
		return nil, false
	}
	return m.set, true
}
