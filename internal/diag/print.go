package diag

import (
	"fmt"
	"io"

	"j5.nz/gml/internal/bytecode"
	"j5.nz/gml/internal/symbol"
)

// FunctionSource resolves a frame's owning symbol to the compiled function
// and the source file it was compiled from, so Print can turn an
// instruction offset into a line and column.
type FunctionSource func(sym symbol.Symbol) (fn *bytecode.Function, src *SourceFile, ok bool)

// Print writes a multi-frame diagnostic for err to w: the innermost frame's
// message, followed by one "at file:line:column" line per frame in the
// call chain, outermost last.
func Print(w io.Writer, err *Error, resolve FunctionSource) {
	fmt.Fprintln(w, err.Error())
	for _, frame := range err.Frames {
		fn, src, ok := resolve(frame.Symbol)
		if !ok {
			fmt.Fprintf(w, "  at %s+%d\n", frame.Symbol, frame.Instruction)
			continue
		}
		offset := fn.LocationOf(frame.Instruction)
		line, column := src.LineColumn(offset)
		fmt.Fprintf(w, "  at %s:%d:%d\n", frame.Symbol, line, column)
	}
}
