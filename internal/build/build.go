// Package build turns an internal/host.Host's registrations into compiled
// assets: it assigns every registered script a stable FunctionID before
// compiling anything (so scripts can call each other regardless of build
// order), then runs the parse/lower/emit pipeline over each one
// concurrently, collecting failures without letting one script's error
// abort the others.
//
// Grounded on the teacher's std/compiler/main.go package-at-a-time build
// loop, parallelized with golang.org/x/sync/errgroup the way
// breadchris-yaegi's go.mod pulls in the same package for concurrent
// interpreter bookkeeping.
package build

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"j5.nz/gml/internal/bytecode"
	"j5.nz/gml/internal/diag"
	"j5.nz/gml/internal/emit"
	"j5.nz/gml/internal/host"
	"j5.nz/gml/internal/lexer"
	"j5.nz/gml/internal/lower"
	"j5.nz/gml/internal/parser"
	"j5.nz/gml/internal/ssa"
	"j5.nz/gml/internal/symbol"
	"j5.nz/gml/internal/token"
	"j5.nz/gml/internal/vm"
)

// Assets is a function id -> compiled bytecode.Function table, grown by
// Build and by CompileString.
type Assets struct {
	mu        sync.RWMutex
	functions []*bytecode.Function
	owners    []symbol.Symbol
	byName    map[symbol.Symbol]vm.FunctionID
}

func newAssets(n int) *Assets {
	return &Assets{
		functions: make([]*bytecode.Function, n),
		owners:    make([]symbol.Symbol, n),
		byName:    make(map[symbol.Symbol]vm.FunctionID, n),
	}
}

func (a *Assets) set(id vm.FunctionID, owner symbol.Symbol, fn *bytecode.Function) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.functions[id] = fn
	a.owners[id] = owner
	a.byName[owner] = id
}

func (a *Assets) append(owner symbol.Symbol, fn *bytecode.Function) vm.FunctionID {
	a.mu.Lock()
	defer a.mu.Unlock()
	id := vm.FunctionID(len(a.functions))
	a.functions = append(a.functions, fn)
	a.owners = append(a.owners, owner)
	a.byName[owner] = id
	return id
}

func (a *Assets) get(id vm.FunctionID) (*bytecode.Function, symbol.Symbol, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if id < 0 || int(id) >= len(a.functions) || a.functions[id] == nil {
		return nil, symbol.Empty, false
	}
	return a.functions[id], a.owners[id], true
}

// Function returns the compiled function at id, for callers (disassembly,
// tests) that want a function without going through the full vm.Resources
// interface a Program implements.
func (a *Assets) Function(id vm.FunctionID) (*bytecode.Function, symbol.Symbol, bool) {
	return a.get(id)
}

func (a *Assets) idByName(name symbol.Symbol) (vm.FunctionID, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	id, ok := a.byName[name]
	return id, ok
}

// Debug is a function id -> source-position table, built alongside Assets
// so a diagnostic printer can turn a frame's instruction offset into a
// line and column.
type Debug struct {
	mu      sync.RWMutex
	sources []*diag.SourceFile
}

func newDebug(n int) *Debug {
	return &Debug{sources: make([]*diag.SourceFile, n)}
}

func (d *Debug) set(id vm.FunctionID, src *diag.SourceFile) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sources[id] = src
}

func (d *Debug) append(src *diag.SourceFile) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sources = append(d.sources, src)
}

func (d *Debug) get(id vm.FunctionID) (*diag.SourceFile, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if id < 0 || int(id) >= len(d.sources) || d.sources[id] == nil {
		return nil, false
	}
	return d.sources[id], true
}

// BuildError reports every script that failed to compile; Build still
// returns the Assets and Debug for every script that succeeded.
type BuildError struct {
	Failures []string
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("build: %d script(s) failed to compile", len(e.Failures))
}

type errorSink struct {
	mu     sync.Mutex
	errors []string
}

func (s *errorSink) Error(span token.Span, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errors = append(s.errors, fmt.Sprintf("%d: %s", span.Low, message))
}

func (s *errorSink) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.errors)
}

// Build parses, lowers, and emits every script host has registered,
// compiling independent scripts concurrently. A script that fails to
// compile does not prevent the others from building; their failures are
// collected into the returned *BuildError instead.
func Build(ctx context.Context, h *host.Host) (*Assets, *Debug, error) {
	names := h.ScriptNames()

	scriptIDs := make(map[symbol.Symbol]int32, len(names))
	for i, name := range names {
		scriptIDs[name] = int32(i)
	}
	prototypes := h.Prototypes(scriptIDs)

	assets := newAssets(len(names))
	debug := newDebug(len(names))

	var failureCount int64
	var mu sync.Mutex
	var failures []string

	g, gctx := errgroup.WithContext(ctx)
	for i, name := range names {
		id, name := vm.FunctionID(i), name
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			source, _ := h.ScriptSource(name)
			fn, src, errs := compileScript(source, prototypes)
			if len(errs) > 0 {
				atomic.AddInt64(&failureCount, 1)
				mu.Lock()
				for _, e := range errs {
					failures = append(failures, fmt.Sprintf("%s: %s", name, e))
				}
				mu.Unlock()
				h.Logger().Warn("script failed to compile",
					zap.String("name", name.String()), zap.Int("errors", len(errs)))
				return nil
			}
			assets.set(id, name, fn)
			debug.set(id, src)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	if failureCount > 0 {
		return assets, debug, &BuildError{Failures: failures}
	}
	return assets, debug, nil
}

var anonymousCounter int64

// CompileString compiles src as a single anonymous program under a fresh
// FunctionID, using the prototypes already known from host's registered
// scripts/natives/members, and appends it to assets and debug so it can be
// run immediately via Thread.ExecuteID. It does not register src back onto
// host, so it is invisible to any later Build call.
func CompileString(ctx context.Context, h *host.Host, assets *Assets, debug *Debug, src string) (vm.FunctionID, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	n := atomic.AddInt64(&anonymousCounter, 1)
	name := symbol.Intern(fmt.Sprintf("<string:%d>", n))

	names := h.ScriptNames()
	scriptIDs := make(map[symbol.Symbol]int32, len(names))
	for _, existing := range names {
		if id, ok := assets.idByName(existing); ok {
			scriptIDs[existing] = int32(id)
		}
	}
	prototypes := h.Prototypes(scriptIDs)

	fn, srcFile, errs := compileScript(src, prototypes)
	if len(errs) > 0 {
		return 0, &BuildError{Failures: errs}
	}

	id := assets.append(name, fn)
	debug.append(srcFile)
	return id, nil
}

func compileScript(source string, prototypes map[symbol.Symbol]ssa.Prototype) (*bytecode.Function, *diag.SourceFile, []string) {
	sink := &errorSink{}

	reader := lexer.New([]byte(source), 0)
	p := parser.New(reader, sink)
	program, _ := p.ParseProgram()
	if n := sink.len(); n > 0 {
		return nil, nil, sink.errors
	}

	b := lower.New(prototypes, sink)
	fn := b.CompileProgram(program)
	if n := sink.len(); n > 0 {
		return nil, nil, sink.errors
	}

	bcFn := emit.Compile(fn, prototypes)
	return bcFn, diag.NewSourceFile([]byte(source)), nil
}
