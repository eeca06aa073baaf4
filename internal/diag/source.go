package diag

import "sort"

// SourceFile maps a byte offset into a script's source text to a 1-based
// (line, column) pair, for turning a bytecode.Function's recorded source
// positions into the locations a diagnostic prints.
type SourceFile struct {
	lineStarts []uint32
}

// NewSourceFile scans src for line breaks and builds the offset table
// LineColumn searches.
func NewSourceFile(src []byte) *SourceFile {
	starts := []uint32{0}
	for i, b := range src {
		if b == '\n' {
			starts = append(starts, uint32(i)+1)
		}
	}
	return &SourceFile{lineStarts: starts}
}

// LineColumn returns the 1-based line and column offset lands on.
func (f *SourceFile) LineColumn(offset uint32) (line, column int) {
	i := sort.Search(len(f.lineStarts), func(i int) bool {
		return f.lineStarts[i] > offset
	}) - 1
	if i < 0 {
		i = 0
	}
	return i + 1, int(offset-f.lineStarts[i]) + 1
}
