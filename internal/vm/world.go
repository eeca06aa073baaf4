package vm

import (
	"j5.nz/gml/internal/symbol"
	"j5.nz/gml/internal/value"
)

// GLOBAL is the pseudo-entity the `global` scope always resolves to: the
// first entity a World ever creates, holding globalvar-declared fields with
// no object or instance id of its own.
const GLOBAL Entity = 0

// Scope sentinel values a With instruction's scope operand decodes to,
// duplicated from internal/lower's encoding the same way the original
// duplicates them between its front end and its interpreter: the two sides
// agree on the encoding but have no shared dependency to enforce it.
const (
	scopeSelf   = -1
	scopeOther  = -2
	scopeAll    = -3
	scopeNoOne  = -4
	scopeGlobal = -5
	scopeLocal  = -7
)

// World holds every piece of state a Thread's execution can observe or
// mutate outside its own register stack: each entity's field map, the
// globalvar name set, and the object/instance indexes a `with` iterates.
type World struct {
	entities EntityAllocator
	fields   map[Entity]map[symbol.Symbol]value.Value

	globals map[symbol.Symbol]bool

	objects   map[int32][]Entity
	instances *instanceMap
}

// NewWorld returns a World with its GLOBAL entity already created.
func NewWorld() *World {
	w := &World{
		fields:    make(map[Entity]map[symbol.Symbol]value.Value),
		globals:   make(map[symbol.Symbol]bool),
		objects:   make(map[int32][]Entity),
		instances: newInstanceMap(),
	}
	global := w.entities.Create()
	w.fields[global] = make(map[symbol.Symbol]value.Value)
	return w
}

// CreateInstance allocates a fresh entity, files it under object and id,
// and gives it an empty field map.
func (w *World) CreateInstance(object, id int32) Entity {
	e := w.entities.Create()
	w.fields[e] = make(map[symbol.Symbol]value.Value)
	w.objects[object] = append(w.objects[object], e)
	w.instances.Insert(id, e)
	return e
}

// DestroyInstance removes id's entity from the instance index, drops its
// field map and invalidates its handle. It stays in its object's entity
// list, so a with over that object still visits it. Outstanding Entity
// values naming it simply fail Exists from now on; nothing reaches in to
// invalidate them directly.
func (w *World) DestroyInstance(id int32) {
	e, ok := w.instances.Get(id)
	if !ok {
		return
	}
	w.instances.Remove(id)
	delete(w.fields, e)
	w.entities.Destroy(e)
}

// Exists reports whether e names a live entity: one with a field map still
// registered in this World.
func (w *World) Exists(e Entity) bool {
	_, ok := w.fields[e]
	return ok
}

// DeclareGlobal marks name as a globalvar, giving it a default 0 value the
// first time it's declared.
func (w *World) DeclareGlobal(name symbol.Symbol) {
	w.globals[name] = true
	if _, ok := w.fields[GLOBAL][name]; !ok {
		w.fields[GLOBAL][name] = value.FromFloat64(0)
	}
}

// IsGlobal reports whether name was declared with globalvar.
func (w *World) IsGlobal(name symbol.Symbol) bool {
	return w.globals[name]
}

// Field reads a name off entity, reporting whether it was present.
func (w *World) Field(e Entity, name symbol.Symbol) (value.Value, bool) {
	v, ok := w.fields[e][name]
	return v, ok
}

// SetField writes name on entity, creating the entry if absent.
func (w *World) SetField(e Entity, name symbol.Symbol, v value.Value) {
	w.fields[e][name] = v
}

// Scope resolves a With instruction's decoded scope operand to the slice of
// entities it names, given the thread's current self/other. An unrecognized
// scope (anything but a sentinel, an object id 0..100000, or a live
// instance id >=100001) yields an empty slice rather than an error; callers
// needing the original's ScopeError on unresolved access do that check
// themselves against the pre-resolution real value (see internal/lower's
// compile-time emission of OpScopeError).
func (w *World) Scope(scope int32, self, other Entity) []Entity {
	switch {
	case scope == scopeSelf:
		return []Entity{self}
	case scope == scopeOther:
		return []Entity{other}
	case scope == scopeAll:
		return w.instances.Values()
	case scope == scopeNoOne:
		return nil
	case scope == scopeGlobal:
		return []Entity{GLOBAL}
	case scope == scopeLocal:
		return nil
	case scope >= 0 && scope <= 100000:
		return w.objects[scope]
	case scope >= 100001:
		if e, ok := w.instances.Get(scope); ok {
			return []Entity{e}
		}
		return nil
	default:
		return nil
	}
}
