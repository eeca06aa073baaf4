// Package vm implements the register-machine interpreter: the entity/scope
// world bytecode addresses into, and the Thread that decodes and executes a
// compiled internal/bytecode.Function against it.
package vm

// Entity is a generational handle naming an instance in a World: a 24-bit
// slot index packed with an 8-bit generation counter, so a handle captured
// before its slot was destroyed and reused compares unequal to the new
// occupant's handle without needing a separate liveness check.
type Entity uint32

const (
	entityIndexBits = 24
	entityIndexMask = 1<<entityIndexBits - 1
)

func newEntity(index uint32, generation uint8) Entity {
	return Entity(index&entityIndexMask | uint32(generation)<<entityIndexBits)
}

func (e Entity) index() uint32     { return uint32(e) & entityIndexMask }
func (e Entity) generation() uint8 { return uint8(uint32(e) >> entityIndexBits) }

// minFreeSlots bounds how eagerly a destroyed index is recycled: keeping a
// backlog of free slots makes generation-counter wraparound (256 reuses of
// the same index) astronomically unlikely to collide with a long-lived
// stale handle.
const minFreeSlots = 1024

// EntityAllocator hands out Entity handles and recycles the indices of
// destroyed ones once enough are pending.
type EntityAllocator struct {
	generations []uint8
	free        []uint32
}

// Create returns a fresh Entity, reusing a destroyed index's slot (with its
// generation counter bumped) once the free list is large enough.
func (a *EntityAllocator) Create() Entity {
	var index uint32
	if len(a.free) > minFreeSlots {
		index, a.free = a.free[0], a.free[1:]
	} else {
		index = uint32(len(a.generations))
		a.generations = append(a.generations, 0)
	}
	return newEntity(index, a.generations[index])
}

// Destroy invalidates e: every handle sharing its index but an older
// generation, including e itself, fails Exists from now on.
func (a *EntityAllocator) Destroy(e Entity) {
	i := e.index()
	a.generations[i]++
	a.free = append(a.free, i)
}

// Exists reports whether e names a slot that hasn't been destroyed since e
// was created.
func (a *EntityAllocator) Exists(e Entity) bool {
	i := e.index()
	return int(i) < len(a.generations) && a.generations[i] == e.generation()
}
