package lower

import (
	"j5.nz/gml/internal/ast"
	"j5.nz/gml/internal/ssa"
	"j5.nz/gml/internal/symbol"
	"j5.nz/gml/internal/token"
)

func (b *Builder) emitValue(expr *ast.Expr) ssa.Value {
	loc := expr.Span.Low

	switch expr.Kind {
	case ast.ExprReal:
		return b.emitReal(expr.Real, loc)

	case ast.ExprString:
		return b.emitString(expr.String, loc)

	case ast.ExprIdent:
		if v, ok := b.emitKeywordValue(expr.Ident, loc); ok {
			return v
		}

	case ast.ExprUnary:
		if expr.UnaryOp == ast.Positive {
			return b.emitValue(expr.X)
		}
		x := b.emitValue(expr.X)
		return b.emitUnary(unaryOpToSSA(expr.UnaryOp), x, expr.UnarySpan.Low)

	case ast.ExprBinary:
		left := b.emitValue(expr.Left)
		right := b.emitValue(expr.Right)
		return b.emitBinary(binaryOpToSSA(expr.BinOp, expr.Op), [2]ssa.Value{left, right}, expr.OpSpan.Low)

	case ast.ExprCall:
		args := make([]ssa.Value, len(expr.Call.Args))
		for i, a := range expr.Call.Args {
			args[i] = b.emitValue(a)
		}
		return b.emitValueCall(expr.Call.Name, args)
	}

	p, ok := b.emitPlace(expr)
	if !ok {
		return b.emitReal(0, loc)
	}
	return b.emitLoad(p, expr.Span)
}

func (b *Builder) emitKeywordValue(ident symbol.Symbol, loc int) (ssa.Value, bool) {
	switch ident {
	case symbol.Keyword.True:
		return b.emitReal(1, loc), true
	case symbol.Keyword.False:
		return b.emitReal(0, loc), true
	case symbol.Keyword.Self:
		return b.emitReal(SELF, loc), true
	case symbol.Keyword.Other:
		return b.emitReal(OTHER, loc), true
	case symbol.Keyword.All:
		return b.emitReal(ALL, loc), true
	case symbol.Keyword.NoOne:
		return b.emitReal(NOONE, loc), true
	case symbol.Keyword.Global:
		return b.emitReal(GLOBAL, loc), true
	case symbol.Keyword.Local:
		return b.emitReal(LOCAL, loc), true
	}
	return 0, false
}

// emitValueCall resolves name against the prototype table, checks arity,
// and emits the call. A script call is always variadic with no fixed
// arity (scripts receive whatever arguments they're given as
// argument0..argumentN); a native's arity and variadic-ness come from its
// registered Prototype. An unresolved name is reported once and lowered as
// a zero-arity script call so the rest of the function still compiles.
func (b *Builder) emitValueCall(name ast.Ident, args []ssa.Value) ssa.Value {
	proto, ok := b.prototypes[name.Name]

	var op ssa.Op
	var arity int
	variadic := true

	switch {
	case ok && proto.Kind == ssa.PrototypeScript:
		op = ssa.OpCall
	case ok && proto.Kind == ssa.PrototypeNative:
		op, arity, variadic = ssa.OpCallAPI, proto.Arity, proto.Variadic
	default:
		b.errorf(name.Span, "unknown function or script: %s", name.Name.String())
		op = ssa.OpCall
	}

	if len(args) < arity || (!variadic && len(args) > arity) {
		b.errorf(name.Span, "wrong number of arguments to %s", name.Name.String())
		return b.emitReal(0, name.Span.Low)
	}

	result := b.emitCallInst(op, name.Name, args, name.Span.Low)
	value := b.emitUnary(ssa.OpToScalar, result, name.Span.Low)
	b.emitUnary(ssa.OpRelease, result, name.Span.Low)
	return value
}

// emitPlace resolves expr as an lvalue. An argumentN reference implicitly
// declares every argument up to and including N as a function parameter,
// the same on-first-use widening the original accepts since a script's
// arity is never declared up front.
func (b *Builder) emitPlace(expr *ast.Expr) (place, bool) {
	switch expr.Kind {
	case ast.ExprIdent:
		return b.emitIdentPlace(expr)

	case ast.ExprField:
		return b.emitFieldPlace(expr)

	case ast.ExprIndex:
		return b.emitIndexPlace(expr)
	}

	b.errorf(expr.Span, "expected a variable")
	return place{}, false
}

func (b *Builder) emitIdentPlace(expr *ast.Expr) (place, bool) {
	sym := expr.Ident
	if sym.IsKeyword() {
		b.errorf(expr.Span, "expected a variable")
		return place{}, false
	}

	if n, isArg := sym.AsArgument(); isArg {
		for a := b.arguments; a <= n; a++ {
			argSym := symbol.FromArgument(a)
			parameter := b.fn.EmitParameter(ssa.Entry)
			b.locals[argSym] = b.emitLocal(&parameter)
		}
		if n+1 > b.arguments {
			b.arguments = n + 1
		}
	}

	if _, ok := b.locals[sym]; ok {
		return place{kind: placeLocal, name: sym}, true
	}

	var entity ssa.Value
	if b.fieldIsBuiltin(sym) {
		entity = b.emitUnaryReal(ssa.OpLoadScope, SELF, expr.Span.Low)
	} else {
		entity = b.emitUnarySymbol(ssa.OpLookup, sym, expr.Span.Low)
	}
	return place{kind: placeField, entity: entity, name: sym}, true
}

func (b *Builder) emitFieldPlace(expr *ast.Expr) (place, bool) {
	base := expr.FieldBase
	if base.Kind == ast.ExprIdent {
		if scope, ok := directScope(base.Ident); ok {
			entity := b.emitUnaryReal(ssa.OpLoadScope, scope, base.Span.Low)
			return place{kind: placeField, entity: entity, name: expr.Field.Name}, true
		}
	}

	scope := b.emitValue(base)
	return place{kind: placeScope, entity: scope, name: expr.Field.Name}, true
}

// directScope reports the scope sentinel for a field base that names
// self/other/global directly, letting the field resolve against a known
// entity without going through the with-style scope iterator.
func directScope(ident symbol.Symbol) (float64, bool) {
	switch ident {
	case symbol.Keyword.Self:
		return SELF, true
	case symbol.Keyword.Other:
		return OTHER, true
	case symbol.Keyword.Global:
		return GLOBAL, true
	}
	return 0, false
}

func (b *Builder) emitIndexPlace(expr *ast.Expr) (place, bool) {
	if len(expr.IndexArgs) < 1 || len(expr.IndexArgs) > 2 {
		b.errorf(expr.Span, "invalid number of array indices")
	}

	arrayPlace, ok := b.emitPlace(expr.IndexBase)
	if !ok {
		return place{}, false
	}
	if arrayPlace.index != nil {
		b.errorf(expr.IndexBase.Span, "expected a variable")
		return place{}, false
	}

	zero := b.emitReal(0, expr.IndexBase.Span.Low)
	var i, j ssa.Value
	switch len(expr.IndexArgs) {
	case 1:
		i, j = zero, b.emitValue(expr.IndexArgs[0])
	case 2:
		i, j = b.emitValue(expr.IndexArgs[0]), b.emitValue(expr.IndexArgs[1])
	default:
		i, j = zero, zero
	}

	arrayPlace.index = &[2]ssa.Value{i, j}
	return arrayPlace, true
}

func (b *Builder) fieldIsBuiltin(field symbol.Symbol) bool {
	proto, ok := b.prototypes[field]
	return ok && proto.Kind == ssa.PrototypeMember
}

func (b *Builder) entityIsGlobal(entity ssa.Value) bool {
	inst := b.fn.Values[entity]
	return inst.Kind == ssa.KindUnaryReal && inst.Op == ssa.OpLoadScope && inst.Real == GLOBAL
}

func (b *Builder) emitLoad(p place, span token.Span) ssa.Value {
	loc := span.Low
	var value ssa.Value

	switch p.kind {
	case placeLocal:
		value = b.emitLoadLocal(p, loc)
	case placeField:
		value = b.emitLoadField(p, loc)
	case placeScope:
		value = b.emitLoadScopedField(p, loc)
	}

	return b.emitUnary(ssa.OpToScalar, value, loc)
}

func (b *Builder) emitLoadLocal(p place, loc int) ssa.Value {
	lv := b.locals[p.name]
	flag := b.readLocal(lv.flag)
	b.emitBinarySymbol(ssa.OpRead, flag, p.name, loc)

	v := b.readLocal(lv.local)
	if p.index != nil {
		return b.emitLoadIndex(v, *p.index, loc)
	}
	return v
}

func (b *Builder) emitLoadField(p place, loc int) ssa.Value {
	if b.fieldIsBuiltin(p.name) && !b.entityIsGlobal(p.entity) {
		return b.emitLoadBuiltin(p.entity, p.name, p.index, loc)
	}
	v := b.emitBinarySymbol(ssa.OpLoadField, p.entity, p.name, loc)
	if p.index != nil {
		return b.emitLoadIndex(v, *p.index, loc)
	}
	return v
}

// emitLoadScopedField loads a field through a scope expression that still
// needs to be resolved to an entity. A builtin field routes through the
// `with`-style scope resolver, unless the scope turns out to be `global`,
// which has no entity of its own and always uses the plain field path.
func (b *Builder) emitLoadScopedField(p place, loc int) ssa.Value {
	if !b.fieldIsBuiltin(p.name) {
		entity := b.emitLoadScope(p.entity, loc)
		v := b.emitBinarySymbol(ssa.OpLoadField, entity, p.name, loc)
		if p.index != nil {
			return b.emitLoadIndex(v, *p.index, loc)
		}
		return v
	}

	trueBlock := b.makeBlock()
	falseBlock := b.makeBlock()
	mergeBlock := b.makeBlock()

	result := b.ssab.EmitLocal()
	global := b.emitReal(GLOBAL, loc)
	isNotGlobal := b.emitBinary(ssa.OpNe, [2]ssa.Value{p.entity, global}, loc)
	b.emitBranch(isNotGlobal, trueBlock, falseBlock, loc)
	b.sealBlock(trueBlock)
	b.sealBlock(falseBlock)

	b.currentBlock = trueBlock
	entity := b.emitLoadScope(p.entity, loc)
	v := b.emitLoadBuiltin(entity, p.name, p.index, loc)
	b.writeLocal(result, v)
	b.emitJump(mergeBlock, loc)

	b.currentBlock = falseBlock
	globalEntity := b.emitUnaryReal(ssa.OpLoadScope, GLOBAL, loc)
	v2 := b.emitBinarySymbol(ssa.OpLoadField, globalEntity, p.name, loc)
	if p.index != nil {
		v2 = b.emitLoadIndex(v2, *p.index, loc)
	}
	b.writeLocal(result, v2)
	b.emitJump(mergeBlock, loc)

	b.sealBlock(mergeBlock)
	b.currentBlock = mergeBlock
	return b.readLocal(result)
}

// emitLoadScope resolves scope to the first entity it names, via the same
// iteration header a `with` statement uses. A scope naming no entity raises
// ScopeError; a scope naming several reads from the first only.
func (b *Builder) emitLoadScope(scope ssa.Value, loc int) ssa.Value {
	h := b.emitWithHeader(scope, loc)
	b.sealBlock(h.condBlock)
	b.sealBlock(h.bodyBlock)
	b.sealBlock(h.exitBlock)

	b.currentBlock = h.exitBlock
	b.emitUnary(ssa.OpScopeError, scope, loc)

	b.currentBlock = h.bodyBlock
	return h.entity
}

func (b *Builder) emitLoadBuiltin(entity ssa.Value, field symbol.Symbol, index *[2]ssa.Value, loc int) ssa.Value {
	i := b.emitReal(0, loc)
	if index != nil {
		i = index[1]
	}
	return b.emitCallInst(ssa.OpCallGet, field, []ssa.Value{entity, i}, loc)
}

func (b *Builder) emitLoadIndex(value ssa.Value, idx [2]ssa.Value, loc int) ssa.Value {
	array := b.emitUnary(ssa.OpToArray, value, loc)
	row := b.emitBinary(ssa.OpLoadRow, [2]ssa.Value{array, idx[0]}, loc)
	v := b.emitBinary(ssa.OpLoadIndex, [2]ssa.Value{row, idx[1]}, loc)
	b.emitUnary(ssa.OpRelease, array, loc)
	return v
}

func (b *Builder) emitStore(p place, value ssa.Value, loc int) {
	switch p.kind {
	case placeLocal:
		b.emitStoreLocal(p, value, loc)
	case placeField:
		if b.fieldIsBuiltin(p.name) && !b.entityIsGlobal(p.entity) {
			b.emitStoreBuiltin(p.entity, p.name, p.index, value, loc)
		} else {
			b.emitStoreField(p.entity, p.name, p.index, value, loc)
		}
	case placeScope:
		b.emitStoreScopedField(p, value, loc)
	}
}

func (b *Builder) emitStoreLocal(p place, value ssa.Value, loc int) {
	lv := b.locals[p.name]
	one := b.emitReal(1, loc)
	b.writeLocal(lv.flag, one)

	if p.index == nil {
		array := b.readLocal(lv.local)
		written := b.emitBinary(ssa.OpWrite, [2]ssa.Value{value, array}, loc)
		b.writeLocal(lv.local, written)
		return
	}

	array := b.readLocal(lv.local)
	array = b.emitUnary(ssa.OpToArray, array, loc)
	b.writeLocal(lv.local, array)

	row := b.emitBinary(ssa.OpStoreRow, [2]ssa.Value{array, p.index[0]}, loc)
	b.emitTernary(ssa.OpStoreIndex, [3]ssa.Value{value, row, p.index[1]}, loc)
}

func (b *Builder) emitStoreScopedField(p place, value ssa.Value, loc int) {
	if !b.fieldIsBuiltin(p.name) {
		b.emitStoreScope(p.entity, loc, func(entity ssa.Value) {
			b.emitStoreField(entity, p.name, p.index, value, loc)
		})
		return
	}

	trueBlock := b.makeBlock()
	falseBlock := b.makeBlock()
	mergeBlock := b.makeBlock()

	global := b.emitReal(GLOBAL, loc)
	isNotGlobal := b.emitBinary(ssa.OpNe, [2]ssa.Value{p.entity, global}, loc)
	b.emitBranch(isNotGlobal, trueBlock, falseBlock, loc)
	b.sealBlock(trueBlock)
	b.sealBlock(falseBlock)

	b.currentBlock = trueBlock
	b.emitStoreScope(p.entity, loc, func(entity ssa.Value) {
		b.emitStoreBuiltin(entity, p.name, p.index, value, loc)
	})
	b.emitJump(mergeBlock, loc)

	b.currentBlock = falseBlock
	globalEntity := b.emitUnaryReal(ssa.OpLoadScope, GLOBAL, loc)
	b.emitStoreField(globalEntity, p.name, p.index, value, loc)
	b.emitJump(mergeBlock, loc)

	b.sealBlock(mergeBlock)
	b.currentBlock = mergeBlock
}

// emitStoreScope runs f against every entity scope names, looping through
// the same with-header iteration emitLoadScope uses for reads. A scope
// naming no entity stores nothing.
func (b *Builder) emitStoreScope(scope ssa.Value, loc int, f func(entity ssa.Value)) {
	h := b.emitWithHeader(scope, loc)
	b.sealBlock(h.bodyBlock)
	b.sealBlock(h.exitBlock)

	b.currentBlock = h.bodyBlock
	f(h.entity)
	b.emitJump(h.condBlock, loc)
	b.sealBlock(h.condBlock)

	b.currentBlock = h.exitBlock
}

func (b *Builder) emitStoreBuiltin(entity ssa.Value, field symbol.Symbol, index *[2]ssa.Value, value ssa.Value, loc int) {
	i := b.emitReal(0, loc)
	if index != nil {
		i = index[1]
	}
	b.emitCallInst(ssa.OpCallSet, field, []ssa.Value{value, entity, i}, loc)
}

func (b *Builder) emitStoreField(entity ssa.Value, field symbol.Symbol, index *[2]ssa.Value, value ssa.Value, loc int) {
	if index == nil {
		array := b.emitBinarySymbol(ssa.OpLoadFieldDefault, entity, field, loc)
		written := b.emitBinary(ssa.OpWrite, [2]ssa.Value{value, array}, loc)
		b.emitTernarySymbol(ssa.OpStoreField, [2]ssa.Value{written, entity}, field, loc)
		return
	}

	array := b.emitBinarySymbol(ssa.OpLoadFieldDefault, entity, field, loc)
	array = b.emitUnary(ssa.OpToArray, array, loc)
	b.emitTernarySymbol(ssa.OpStoreField, [2]ssa.Value{array, entity}, field, loc)

	row := b.emitBinary(ssa.OpStoreRow, [2]ssa.Value{array, index[0]}, loc)
	b.emitTernary(ssa.OpStoreIndex, [3]ssa.Value{value, row, index[1]}, loc)
}

// emitWith lowers a `with (target) body` statement: save self/other, swap
// self to each iterated entity in turn, run body, and restore self/other on
// exit.
func (b *Builder) emitWith(target ssa.Value, withLoc, endLoc int, body func()) {
	selfValue := b.emitUnaryReal(ssa.OpLoadScope, SELF, withLoc)
	otherValue := b.emitUnaryReal(ssa.OpLoadScope, OTHER, withLoc)
	b.emitBinaryReal(ssa.OpStoreScope, selfValue, OTHER, withLoc)

	h := b.emitWithHeader(target, withLoc)
	b.sealBlock(h.bodyBlock)

	b.currentBlock = h.bodyBlock
	b.emitBinaryReal(ssa.OpStoreScope, h.entity, SELF, withLoc)
	b.withLoop(h.condBlock, h.exitBlock, body)
	b.emitJump(h.condBlock, endLoc)
	b.sealBlock(h.condBlock)
	b.sealBlock(h.exitBlock)

	b.currentBlock = h.exitBlock
	b.emitBinaryReal(ssa.OpStoreScope, selfValue, SELF, endLoc)
	b.emitBinaryReal(ssa.OpStoreScope, otherValue, OTHER, endLoc)
}

// emitWithHeader builds the iterator state machine shared by `with` and
// scoped field access: condBlock tests whether iteration is exhausted,
// bodyBlock is entered once per live entity with the With's pointer
// advanced and that entity's handle live as the returned entity value, and
// exitBlock is reached once nothing is left to iterate (ReleaseWith has
// already run by the time control reaches it).
func (b *Builder) emitWithHeader(scope ssa.Value, loc int) withHeader {
	condBlock := b.makeBlock()
	scanBlock := b.makeBlock()
	bodyBlock := b.makeBlock()
	exitBlock := b.makeBlock()

	iter := b.ssab.EmitLocal()

	with := b.emitUnary(ssa.OpWith, scope, loc)
	ptrInst := ssa.Instruction{Kind: ssa.KindProject}
	ptrInst.Project.Arg = with
	ptrInst.Project.Index = 0
	ptr := b.fn.PushValue(ptrInst)

	endInst := ssa.Instruction{Kind: ssa.KindProject}
	endInst.Project.Arg = with
	endInst.Project.Index = 1
	end := b.fn.PushValue(endInst)

	b.writeLocal(iter, ptr)
	b.emitJump(condBlock, loc)

	b.currentBlock = condBlock
	curPtr := b.readLocal(iter)
	notDone := b.emitBinary(ssa.OpNePointer, [2]ssa.Value{curPtr, end}, loc)
	b.emitBranch(notDone, scanBlock, exitBlock, loc)
	b.sealBlock(scanBlock)

	b.currentBlock = scanBlock
	entity := b.emitUnary(ssa.OpLoadPointer, curPtr, loc)
	nextPtr := b.emitUnary(ssa.OpNextPointer, curPtr, loc)
	b.writeLocal(iter, nextPtr)
	exists := b.emitUnary(ssa.OpExistsEntity, entity, loc)
	b.emitBranch(exists, bodyBlock, condBlock, loc)

	b.currentBlock = exitBlock
	b.emitNullary(ssa.OpReleaseWith, loc)

	return withHeader{condBlock: condBlock, bodyBlock: bodyBlock, exitBlock: exitBlock, entity: entity}
}
