package vm

import (
	"fmt"
	"math"

	"j5.nz/gml/internal/bytecode"
	"j5.nz/gml/internal/diag"
	"j5.nz/gml/internal/symbol"
	"j5.nz/gml/internal/value"
)

// register is a stack slot wide enough to hold whichever variant the
// instruction that last wrote it produced. The original packs these into
// one 64-bit union; Go has no union type, so this carries all four
// variants side by side, relying on the same contract the original's
// union relies on: a register is only ever read back as the type it was
// last written as.
type register struct {
	value    value.Value
	row      value.Row
	entity   Entity
	iterator iterator
}

// iterator is a With loop's cursor: a slice of the entities being iterated
// and the cursor's current position within it. ptr and end registers from
// the same With share the same entities slice, so NePointer can compare
// their positions directly instead of the original's raw pointer pair.
type iterator struct {
	entities []Entity
	index    int
}

type frame struct {
	symbol            symbol.Symbol
	function          FunctionID
	returnInstruction uint32
	base              int
}

// Thread is one call stack of GML execution: a register file shared by
// every frame on the stack, and the self/other entities a `with` can
// rebind for the duration of a nested call.
type Thread struct {
	returns []frame
	stack   []register

	selfEntity, otherEntity Entity
}

// NewThread returns a Thread with no entity scope bound.
func NewThread() *Thread {
	return &Thread{}
}

func (t *Thread) SetSelf(e Entity)  { t.selfEntity = e }
func (t *Thread) SetOther(e Entity) { t.otherEntity = e }

func (t *Thread) resize(n int) {
	switch {
	case n <= len(t.stack):
		t.stack = t.stack[:n]
	case n <= cap(t.stack):
		old := len(t.stack)
		t.stack = t.stack[:n]
		for i := old; i < n; i++ {
			t.stack[i] = register{}
		}
	default:
		grown := make([]register, n)
		copy(grown, t.stack)
		t.stack = grown
	}
}

// Execute runs sym against world with arguments, returning its result or
// the runtime error that aborted it. Resources resolves every script,
// native function and member accessor the call tree touches.
func (t *Thread) Execute(resources Resources, world *World, sym symbol.Symbol, arguments []value.Value) (value.Value, error) {
	scriptID, ok := resources.ScriptID(sym)
	if !ok {
		return 0, diag.NewName(sym)
	}
	return t.execute(resources, world, scriptID, sym, arguments)
}

// ExecuteID runs the function resources knows by scriptID, the way
// internal/build.CompileString's caller runs an anonymous dynamically
// compiled program that has no symbol of its own to pass to Execute.
func (t *Thread) ExecuteID(resources Resources, world *World, scriptID FunctionID, arguments []value.Value) (value.Value, error) {
	_, sym, ok := resources.Script(scriptID)
	if !ok {
		return 0, fmt.Errorf("vm: unknown function id %d", scriptID)
	}
	return t.execute(resources, world, scriptID, sym, arguments)
}

func (t *Thread) execute(resources Resources, world *World, scriptID FunctionID, sym symbol.Symbol, arguments []value.Value) (value.Value, error) {
	topBase := len(t.stack)
	returnsBase := len(t.returns)

	result, err := t.run(resources, world, scriptID, sym, arguments, returnsBase)
	t.stack = t.stack[:topBase]
	if err != nil {
		t.returns = t.returns[:returnsBase]
		return 0, err
	}
	return result, nil
}

func (t *Thread) run(resources Resources, world *World, scriptID FunctionID, sym symbol.Symbol, arguments []value.Value, returnsBase int) (value.Value, error) {
	fn, _, ok := resources.Script(scriptID)
	if !ok {
		return 0, diag.NewName(sym)
	}

	regBase := len(t.stack)
	t.resize(regBase + int(fn.Locals))

	argLen := len(arguments)
	if int(fn.Params) < argLen {
		argLen = int(fn.Params)
	}
	for i := 0; i < argLen; i++ {
		t.stack[regBase+i].value = arguments[i]
	}

	instruction := uint32(0)

	for {
		inst := fn.Instructions[instruction]
		op, a, b, c := inst.Decode()
		registers := t.stack[regBase:]

		switch op {
		case bytecode.Const:
			registers[a].value = fn.Constants[b]

		case bytecode.Move:
			registers[a] = registers[b]

		case bytecode.Neg:
			x, isReal := registers[b].value.Real()
			if !isReal {
				return 0, t.fail(sym, instruction, diag.NewTypeUnary(op, registers[b].value.Type()))
			}
			registers[a].value = value.FromFloat64(-x)

		case bytecode.Not:
			x, isReal := registers[b].value.Real()
			if !isReal {
				return 0, t.fail(sym, instruction, diag.NewTypeUnary(op, registers[b].value.Type()))
			}
			registers[a].value = value.FromBool(!value.ToBool(x))

		case bytecode.BitNot:
			x, isReal := registers[b].value.Real()
			if !isReal {
				return 0, t.fail(sym, instruction, diag.NewTypeUnary(op, registers[b].value.Type()))
			}
			registers[a].value = value.FromInt32(^value.ToInt32(x))

		case bytecode.Lt, bytecode.Le, bytecode.Ge, bytecode.Gt:
			v, err := compareOrdered(op, registers[b].value, registers[c].value)
			if err != nil {
				return 0, t.fail(sym, instruction, err)
			}
			registers[a].value = v

		case bytecode.Eq:
			registers[a].value = value.FromBool(registers[b].value == registers[c].value)

		case bytecode.Ne:
			registers[a].value = value.FromBool(registers[b].value != registers[c].value)

		case bytecode.Add, bytecode.Sub, bytecode.Mul, bytecode.Div, bytecode.IntDiv, bytecode.Mod,
			bytecode.And, bytecode.Or, bytecode.Xor,
			bytecode.BitAnd, bytecode.BitOr, bytecode.BitXor, bytecode.ShiftLeft, bytecode.ShiftRight:
			v, err := binaryArith(op, registers[b].value, registers[c].value)
			if err != nil {
				return 0, t.fail(sym, instruction, err)
			}
			registers[a].value = v

		case bytecode.NePointer:
			registers[a].value = value.FromBool(registers[b].iterator.index != registers[c].iterator.index)

		case bytecode.DeclareGlobal:
			name := symbol.FromID(fn.Symbols[a])
			world.DeclareGlobal(name)

		case bytecode.Lookup:
			name := symbol.FromID(fn.Symbols[b])
			if world.IsGlobal(name) {
				registers[a].entity = GLOBAL
			} else {
				registers[a].entity = t.selfEntity
			}

		case bytecode.LoadScope:
			scopeReal, _ := fn.Constants[b].Real()
			scope := value.ToInt32(scopeReal)
			switch scope {
			case scopeSelf:
				registers[a].entity = t.selfEntity
			case scopeOther:
				registers[a].entity = t.otherEntity
			case scopeGlobal:
				registers[a].entity = GLOBAL
			default:
				return 0, t.fail(sym, instruction, diag.NewScope(scope))
			}

		case bytecode.StoreScope:
			scopeReal, _ := fn.Constants[b].Real()
			scope := value.ToInt32(scopeReal)
			switch scope {
			case scopeSelf:
				t.selfEntity = registers[a].entity
			case scopeOther:
				t.otherEntity = registers[a].entity
			default:
				return 0, t.fail(sym, instruction, diag.NewScope(scope))
			}

		case bytecode.With:
			scopeValue := registers[c].value
			scopeReal, isReal := scopeValue.Real()
			if !isReal {
				return 0, t.fail(sym, instruction, diag.NewTypeUnary(op, scopeValue.Type()))
			}
			entities := world.Scope(value.ToInt32(scopeReal), t.selfEntity, t.otherEntity)
			registers[a].iterator = iterator{entities: entities, index: 0}
			registers[b].iterator = iterator{entities: entities, index: len(entities)}

		case bytecode.ReleaseWith:
			// nothing to release: entity iteration borrows World's own
			// slices rather than taking a reference count on them.

		case bytecode.LoadPointer:
			it := registers[b].iterator
			registers[a].entity = it.entities[it.index]

		case bytecode.NextPointer:
			it := registers[b].iterator
			registers[a].iterator = iterator{entities: it.entities, index: it.index + 1}

		case bytecode.ExistsEntity:
			registers[a].value = value.FromBool(world.Exists(registers[b].entity))

		case bytecode.Read:
			x, isReal := registers[a].value.Real()
			if !isReal {
				return 0, t.fail(sym, instruction, diag.NewTypeUnary(op, registers[a].value.Type()))
			}
			if !value.ToBool(x) {
				name := symbol.FromID(fn.Symbols[b])
				return 0, t.fail(sym, instruction, diag.NewName(name))
			}

		case bytecode.Write:
			av := registers[b].value
			bv := registers[c].value
			if arr, isArray := bv.Array(); isArray {
				_ = arr.Store(0, 0, av)
				registers[a].value = value.FromArray(arr)
			} else {
				registers[a].value = av
			}

		case bytecode.ScopeError:
			scopeValue := registers[a].value
			scopeReal, isReal := scopeValue.Real()
			if !isReal {
				return 0, t.fail(sym, instruction, diag.NewTypeUnary(op, scopeValue.Type()))
			}
			return 0, t.fail(sym, instruction, diag.NewScope(value.ToInt32(scopeReal)))

		case bytecode.ToArray:
			av := registers[b].value
			if _, isArray := av.Array(); isArray {
				registers[a].value = av
			} else {
				arr := value.NewArray()
				_ = arr.Store(0, 0, av)
				registers[a].value = value.FromArray(arr)
			}

		case bytecode.ToScalar:
			av := registers[b].value
			if arr, isArray := av.Array(); isArray {
				v, err := arr.Load(0, 0)
				if err != nil {
					return 0, t.fail(sym, instruction, diag.NewBounds(0))
				}
				registers[a].value = v
			} else {
				registers[a].value = av
			}

		case bytecode.ReleaseOwned:
			registers[a].value.Release()

		case bytecode.LoadField:
			field := symbol.FromID(fn.Symbols[c])
			v, ok := world.Field(registers[b].entity, field)
			if !ok {
				return 0, t.fail(sym, instruction, diag.NewName(field))
			}
			registers[a].value = v

		case bytecode.LoadFieldDefault:
			field := symbol.FromID(fn.Symbols[c])
			v, ok := world.Field(registers[b].entity, field)
			if !ok {
				v = value.FromFloat64(0)
			}
			registers[a].value = v

		case bytecode.LoadRow:
			arr, i, ok := arrayAndIndex(registers[b].value, registers[c].value)
			if !ok {
				return 0, t.fail(sym, instruction, diag.NewTypeBinary(op, registers[b].value.Type(), registers[c].value.Type()))
			}
			row, rowErr := arr.LoadRow(int(i))
			if rowErr != nil {
				return 0, t.fail(sym, instruction, diag.NewBounds(i))
			}
			registers[a].row = row

		case bytecode.StoreRow:
			arr, i, ok := arrayAndIndex(registers[b].value, registers[c].value)
			if !ok {
				return 0, t.fail(sym, instruction, diag.NewTypeBinary(op, registers[b].value.Type(), registers[c].value.Type()))
			}
			row, rowErr := arr.StoreRow(int(i))
			if rowErr != nil {
				return 0, t.fail(sym, instruction, diag.NewBounds(i))
			}
			registers[a].row = row

		case bytecode.LoadIndex:
			j, isReal := registers[c].value.Real()
			if !isReal {
				return 0, t.fail(sym, instruction, diag.NewTypeBinary(op, value.TypeArray, registers[c].value.Type()))
			}
			jj := value.ToInt32(j)
			v, err := registers[b].row.Load(int(jj))
			if err != nil {
				return 0, t.fail(sym, instruction, diag.NewBounds(jj))
			}
			registers[a].value = v

		case bytecode.StoreField:
			field := symbol.FromID(fn.Symbols[c])
			world.SetField(registers[b].entity, field, registers[a].value)

		case bytecode.StoreIndex:
			j, isReal := registers[c].value.Real()
			if !isReal {
				return 0, t.fail(sym, instruction, diag.NewTypeBinary(op, value.TypeArray, registers[c].value.Type()))
			}
			jj := value.ToInt32(j)
			if err := registers[b].row.Store(int(jj), registers[a].value); err != nil {
				return 0, t.fail(sym, instruction, diag.NewBounds(jj))
			}

		case bytecode.Call:
			calleeReal, _ := fn.Constants[a].Real()
			calleeID := FunctionID(int32(calleeReal))
			calleeFn, calleeSym, ok := resources.Script(calleeID)
			if !ok {
				return 0, t.fail(sym, instruction, diag.NewResource(int32(calleeID)))
			}

			t.returns = append(t.returns, frame{symbol: sym, function: scriptID, returnInstruction: instruction + 1, base: regBase})

			regBase = regBase + int(b)
			limit := int(calleeFn.Locals)
			if int(c) > limit {
				limit = int(c)
			}
			t.resize(regBase + limit)

			called := t.stack[regBase:]
			for i := int(c); i < int(calleeFn.Params); i++ {
				called[i] = register{value: value.FromFloat64(0)}
			}

			fn, sym, scriptID = calleeFn, calleeSym, calleeID
			instruction = 0
			continue

		case bytecode.CallApi:
			name := symbol.FromID(fn.Symbols[a])
			native, ok := resources.Native(name)
			if !ok {
				return 0, t.fail(sym, instruction, diag.NewName(name))
			}
			base := regBase + int(b)
			args := make([]value.Value, c)
			for i := range args {
				args[i] = t.stack[base+i].value
			}
			result, err := native(t, resources, world, args)
			if err != nil {
				de, isDiag := err.(*diag.Error)
				if !isDiag {
					de = diag.NewHost(err)
				}
				return 0, t.fail(sym, instruction, de)
			}
			t.stack[base].value = result

		case bytecode.CallGet:
			name := symbol.FromID(fn.Symbols[a])
			getter, ok := resources.Getter(name)
			if !ok {
				return 0, t.fail(sym, instruction, diag.NewName(name))
			}
			base := regBase + int(b)
			e := t.stack[base].entity
			iv, _ := t.stack[base+1].value.Real()
			t.stack[base].value = getter(e, value.ToInt32(iv))

		case bytecode.CallSet:
			name := symbol.FromID(fn.Symbols[a])
			setter, ok := resources.Setter(name)
			if !ok {
				return 0, t.fail(sym, instruction, diag.NewName(name))
			}
			base := regBase + int(b)
			v := t.stack[base].value
			e := t.stack[base+1].entity
			iv, _ := t.stack[base+2].value.Real()
			setter(e, value.ToInt32(iv), v)

		case bytecode.Ret:
			if len(t.returns) == returnsBase {
				return t.stack[regBase].value, nil
			}
			f := t.returns[len(t.returns)-1]
			t.returns = t.returns[:len(t.returns)-1]

			// The callee's register 0 already holds the result, at the
			// exact stack slot the caller's call-parameter block starts
			// at; restoring reg_base and truncating is all a Ret needs.
			callerFn, callerSym, _ := resources.Script(f.function)
			fn, sym, scriptID = callerFn, callerSym, f.function
			instruction = f.returnInstruction
			regBase = f.base
			t.resize(regBase + int(fn.Locals))
			continue

		case bytecode.Jump:
			_, _, target := inst.DecodeWide()
			instruction = uint32(target)
			continue

		case bytecode.BranchFalse:
			_, cond, target := inst.DecodeWide()
			x, isReal := t.stack[regBase+int(cond)].value.Real()
			if !isReal {
				return 0, t.fail(sym, instruction, diag.NewTypeUnary(op, t.stack[regBase+int(cond)].value.Type()))
			}
			if !value.ToBool(x) {
				instruction = uint32(target)
				continue
			}
		}

		instruction++
	}
}

// fail attaches the current frame and every still-pending caller frame to
// err, in the order Thread.Execute's caller should print them: innermost
// first.
func (t *Thread) fail(sym symbol.Symbol, instruction uint32, err *diag.Error) *diag.Error {
	err = err.WithFrame(sym, instruction)
	for i := len(t.returns) - 1; i >= 0; i-- {
		f := t.returns[i]
		err = err.WithFrame(f.symbol, f.returnInstruction-1)
	}
	return err
}

func arrayAndIndex(a, i value.Value) (value.Array, int32, bool) {
	arr, isArray := a.Array()
	iv, isReal := i.Real()
	if !isArray || !isReal {
		return value.Array{}, 0, false
	}
	return arr, value.ToInt32(iv), true
}

func compareOrdered(op bytecode.Op, a, b value.Value) (value.Value, *diag.Error) {
	if af, aIsReal := a.Real(); aIsReal {
		if bf, bIsReal := b.Real(); bIsReal {
			return value.FromBool(orderedReal(op, af, bf)), nil
		}
	}
	if as, aIsString := a.Symbol(); aIsString {
		if bs, bIsString := b.Symbol(); bIsString {
			return value.FromBool(orderedString(op, as.String(), bs.String())), nil
		}
	}
	return 0, diag.NewTypeBinary(op, a.Type(), b.Type())
}

func orderedReal(op bytecode.Op, a, b float64) bool {
	switch op {
	case bytecode.Lt:
		return a < b
	case bytecode.Le:
		return a <= b
	case bytecode.Ge:
		return a >= b
	default:
		return a > b
	}
}

func orderedString(op bytecode.Op, a, b string) bool {
	switch op {
	case bytecode.Lt:
		return a < b
	case bytecode.Le:
		return a <= b
	case bytecode.Ge:
		return a >= b
	default:
		return a > b
	}
}

func binaryArith(op bytecode.Op, a, b value.Value) (value.Value, *diag.Error) {
	af, aIsReal := a.Real()
	bf, bIsReal := b.Real()

	switch op {
	case bytecode.Add:
		if aIsReal && bIsReal {
			return value.FromFloat64(af + bf), nil
		}
		if as, ok := a.Symbol(); ok {
			if bs, ok := b.Symbol(); ok {
				return value.FromSymbol(symbol.Intern(as.String() + bs.String())), nil
			}
		}
	case bytecode.Mul:
		if aIsReal && bIsReal {
			return value.FromFloat64(af * bf), nil
		}
		if aIsReal {
			if bs, ok := b.Symbol(); ok {
				return value.FromSymbol(symbol.Intern(repeatString(bs.String(), int(af)))), nil
			}
		}
	case bytecode.Sub:
		if aIsReal && bIsReal {
			return value.FromFloat64(af - bf), nil
		}
	case bytecode.Div:
		if aIsReal && bIsReal {
			return value.FromFloat64(af / bf), nil
		}
	case bytecode.IntDiv:
		if aIsReal && bIsReal {
			return value.FromInt32(int32(af / bf)), nil
		}
	case bytecode.Mod:
		if aIsReal && bIsReal {
			return value.FromFloat64(realMod(af, bf)), nil
		}
	case bytecode.And:
		if aIsReal && bIsReal {
			return value.FromBool(value.ToBool(af) && value.ToBool(bf)), nil
		}
	case bytecode.Or:
		if aIsReal && bIsReal {
			return value.FromBool(value.ToBool(af) || value.ToBool(bf)), nil
		}
	case bytecode.Xor:
		if aIsReal && bIsReal {
			return value.FromBool(value.ToBool(af) != value.ToBool(bf)), nil
		}
	case bytecode.BitAnd:
		if aIsReal && bIsReal {
			return value.FromInt32(value.ToInt32(af) & value.ToInt32(bf)), nil
		}
	case bytecode.BitOr:
		if aIsReal && bIsReal {
			return value.FromInt32(value.ToInt32(af) | value.ToInt32(bf)), nil
		}
	case bytecode.BitXor:
		if aIsReal && bIsReal {
			return value.FromInt32(value.ToInt32(af) ^ value.ToInt32(bf)), nil
		}
	case bytecode.ShiftLeft:
		if aIsReal && bIsReal {
			return value.FromInt32(value.ToInt32(af) << uint32(value.ToInt32(bf))), nil
		}
	case bytecode.ShiftRight:
		if aIsReal && bIsReal {
			return value.FromInt32(value.ToInt32(af) >> uint32(value.ToInt32(bf))), nil
		}
	}
	return 0, diag.NewTypeBinary(op, a.Type(), b.Type())
}

func realMod(a, b float64) float64 {
	return math.Mod(a, b)
}

func repeatString(s string, n int) string {
	if n <= 0 {
		return ""
	}
	out := make([]byte, 0, len(s)*n)
	for i := 0; i < n; i++ {
		out = append(out, s...)
	}
	return string(out)
}
