package regalloc

import "j5.nz/gml/internal/ssa"

// Interference is a value interference graph: used values are nodes, and
// values live simultaneously share an edge. Coloring the graph so that no
// two adjacent nodes share a color assigns values non-conflicting storage.
type Interference struct {
	adjacency map[ssa.Value][]ssa.Value
	vertices  []ssa.Value

	// precolored holds every value whose register is fixed by calling
	// convention rather than chosen by coloring: entry block parameters
	// (or, with none, the shared return-zero constant) first, then each
	// Call's contiguous parameter-slot group in program order. groups
	// marks the boundary indices between them.
	precolored []ssa.Value
	groups     []int
}

// BuildInterference walks fn's liveness backwards, marking every value live
// at a definition point as interfering with the defined value(s).
func BuildInterference(fn *ssa.Function, live *Liveness) *Interference {
	adjacency := make(map[ssa.Value][]ssa.Value, len(fn.Values))
	var vertices []ssa.Value
	var precolored []ssa.Value
	var groups []int

	groups = append(groups, len(precolored))
	precolored = append(precolored, fn.Blocks[ssa.Entry].Parameters...)
	if len(precolored) == 0 {
		precolored = append(precolored, fn.ReturnDef)
	}

	edge := func(a, b ssa.Value) {
		adjacency[a] = append(adjacency[a], b)
	}

	for b := range fn.Blocks {
		block := ssa.Label(b)
		live_ := make(map[ssa.Value]bool, len(live.Out[block]))
		for v := range live.Out[block] {
			live_[v] = true
		}

		instrs := fn.Blocks[block].Instructions
		for i := len(instrs) - 1; i >= 0; i-- {
			value := instrs[i]

			defs := fn.Defs(value)
			for d := defs.Start; d < defs.End; d++ {
				vertices = append(vertices, d)
			}
			for d := defs.Start; d < defs.End; d++ {
				delete(live_, d)
				for u := range live_ {
					edge(d, u)
					edge(u, d)
				}
			}

			internalDefs := fn.InternalDefs(value)
			if len(internalDefs) > 0 {
				groups = append(groups, len(precolored))
				precolored = append(precolored, internalDefs...)
			}
			for _, d := range internalDefs {
				for u := range live_ {
					edge(d, u)
					edge(u, d)
				}
			}

			for _, u := range fn.Uses(value) {
				live_[u] = true
			}
		}

		if block == ssa.Entry {
			continue
		}

		params := fn.Blocks[block].Parameters
		vertices = append(vertices, params...)
		for _, d := range params {
			delete(live_, d)
			for u := range live_ {
				edge(d, u)
				edge(u, d)
			}
		}
	}

	groups = append(groups, len(precolored))

	return &Interference{adjacency: adjacency, vertices: vertices, precolored: precolored, groups: groups}
}

// Color assigns every value a non-negative register number such that no two
// interfering values share one, using a perfect elimination order over a
// chordal graph: optimal, and cheap because this graph always is chordal
// (liveness ranges are intervals). It also pins program parameters to the
// front of the frame and each call's arguments to a contiguous run that
// starts just above the highest register held by any value interfering
// with the call's first argument, matching the calling convention.
//
// Returns the coloring, the number of program parameters, and the total
// number of registers the frame needs.
func (g *Interference) Color() (colors map[ssa.Value]int, paramCount, colorCount int) {
	colors = make(map[ssa.Value]int, len(g.vertices)+len(g.precolored))
	for _, v := range g.vertices {
		colors[v] = -1
	}
	for _, v := range g.precolored {
		colors[v] = -1
	}

	start, end := g.groups[0], g.groups[1]
	parameters := g.precolored[start:end]
	for i, v := range parameters {
		colors[v] = i
	}
	colorCount = len(parameters)
	paramCount = colorCount

	for _, value := range g.perfectEliminationOrder() {
		neighbors := make(map[int]bool, len(g.adjacency[value]))
		for _, n := range g.adjacency[value] {
			neighbors[colors[n]] = true
		}
		color := 0
		for neighbors[color] {
			color++
		}
		colors[value] = color
		if color+1 > colorCount {
			colorCount = color + 1
		}
	}

	for i := 1; i+1 < len(g.groups); i++ {
		start, end := g.groups[i], g.groups[i+1]
		arguments := g.precolored[start:end]

		neighbors := make(map[int]bool, len(g.adjacency[arguments[0]]))
		for _, n := range g.adjacency[arguments[0]] {
			neighbors[colors[n]] = true
		}

		color := colorCount
		for c := colorCount - 1; c >= 0; c-- {
			if neighbors[c] {
				break
			}
			color = c
		}

		for j, v := range arguments {
			colors[v] = color + j
		}
		if color+len(arguments) > colorCount {
			colorCount = color + len(arguments)
		}
	}

	return colors, paramCount, colorCount
}

// perfectEliminationOrder computes a maximum cardinality search order:
// repeatedly take the vertex with the most already-visited neighbors, which
// for a chordal graph (true of liveness-interval interference graphs) gives
// an order that a naive greedy coloring pass can color optimally.
func (g *Interference) perfectEliminationOrder() []ssa.Value {
	vertices := append([]ssa.Value(nil), g.vertices...)
	notTracked := len(vertices)

	indices := make(map[ssa.Value]int, len(vertices))
	for i, v := range vertices {
		indices[v] = i
	}

	b := &buckets{
		vertices:   vertices,
		bounds:     []int{len(vertices)},
		weights:    make(map[ssa.Value]int),
		indices:    indices,
		notTracked: notTracked,
	}

	for _, v := range g.precolored {
		for _, n := range g.adjacency[v] {
			b.increment(n)
		}
	}

	var order []ssa.Value
	for {
		v, ok := b.pop()
		if !ok {
			break
		}
		for _, n := range g.adjacency[v] {
			b.increment(n)
		}
		order = append(order, v)
	}
	return order
}

// buckets partitions a working vertex set by weight: bounds[w] is the
// exclusive end, within vertices, of every node whose weight is <= w, so
// the highest-weighted node is always at the tail of vertices and pop is
// O(1). Incrementing a node's weight swaps it past its bucket's shrinking
// boundary into the next one up.
type buckets struct {
	vertices []ssa.Value
	bounds   []int
	weights  map[ssa.Value]int
	indices  map[ssa.Value]int

	// notTracked is the sentinel index() returns for a handle this search
	// never placed in vertices (a precolored value) — always out of
	// range, so increment on it is a no-op.
	notTracked int
}

func (b *buckets) index(v ssa.Value) int {
	if i, ok := b.indices[v]; ok {
		return i
	}
	return b.notTracked
}

func (b *buckets) pop() (ssa.Value, bool) {
	if len(b.vertices) == 0 {
		return 0, false
	}
	n := len(b.vertices) - 1
	v := b.vertices[n]
	b.vertices = b.vertices[:n]

	weight := b.weights[v]
	b.bounds[weight]--
	b.bounds = b.bounds[:weight+1]

	return v, true
}

func (b *buckets) increment(v ssa.Value) {
	index := b.index(v)
	if index >= len(b.vertices) {
		return
	}
	weight := b.weights[v]

	b.bounds[weight]--
	bucket := b.bounds[weight]
	other := b.vertices[bucket]

	b.vertices[index], b.vertices[bucket] = b.vertices[bucket], b.vertices[index]
	b.indices[v], b.indices[other] = b.indices[other], b.indices[v]

	b.weights[v]++
	if b.weights[v] == len(b.bounds) {
		b.bounds = append(b.bounds, len(b.vertices))
	}
}
