package lower

import (
	"j5.nz/gml/internal/ast"
	"j5.nz/gml/internal/ssa"
	"j5.nz/gml/internal/token"
)

func (b *Builder) emitStatement(stmt *ast.Stmt) {
	switch stmt.Kind {
	case ast.StmtError:
		// nothing to lower; the parser already reported this.

	case ast.StmtBlock:
		for _, s := range stmt.Block {
			b.emitStatement(s)
		}

	case ast.StmtDeclare:
		b.emitDeclare(stmt)

	case ast.StmtAssign:
		b.emitAssign(stmt.AssignOp, stmt.OpSpan, stmt.Place, stmt.Value)

	case ast.StmtInvoke:
		args := make([]ssa.Value, len(stmt.Invoke.Args))
		for i, a := range stmt.Invoke.Args {
			args[i] = b.emitValue(a)
		}
		result := b.emitValueCall(stmt.Invoke.Name, args)
		b.emitUnary(ssa.OpRelease, result, stmt.Span.Low)

	case ast.StmtIf:
		b.emitIf(stmt)

	case ast.StmtRepeat:
		b.emitRepeatStmt(stmt)

	case ast.StmtWhile:
		b.emitWhileStmt(stmt)

	case ast.StmtDo:
		b.emitDoStmt(stmt)

	case ast.StmtFor:
		b.emitForStmt(stmt)

	case ast.StmtWith:
		target := b.emitValue(stmt.Count)
		b.emitWith(target, stmt.Span.Low, endLocStmt(stmt.Body), func() { b.emitStatement(stmt.Body) })

	case ast.StmtSwitch:
		b.emitSwitchStmt(stmt)

	case ast.StmtCase:
		b.emitCaseStmt(stmt)

	case ast.StmtJump:
		b.emitJumpStmt(stmt)

	case ast.StmtReturn:
		dead := b.makeBlock()
		expr := b.emitValue(stmt.Return)
		b.writeLocal(b.returnValue, expr)
		b.emitJump(ssa.Exit, stmt.Span.Low)
		b.currentBlock = dead
		b.sealBlock(dead)
	}
}

func (b *Builder) emitDeclare(stmt *ast.Stmt) {
	switch stmt.Declare {
	case ast.DeclareLocal:
		for _, id := range stmt.Idents {
			if _, isArg := id.Name.AsArgument(); isArg {
				b.errorf(id.Span, "cannot redeclare builtin variable %s", id.Name.String())
				continue
			}
			b.locals[id.Name] = b.emitLocal(nil)
		}

	case ast.DeclareGlobal:
		for _, id := range stmt.Idents {
			if _, isArg := id.Name.AsArgument(); isArg {
				b.errorf(id.Span, "cannot redeclare builtin variable %s", id.Name.String())
				continue
			}
			b.emitUnarySymbol(ssa.OpDeclareGlobal, id.Name, id.Span.Low)
		}
	}
}

func (b *Builder) emitAssign(op *ast.Op, opSpan token.Span, placeExpr, valueExpr *ast.Expr) {
	p, ok := b.emitPlace(placeExpr)
	if !ok {
		return
	}

	var value ssa.Value
	if op != nil {
		left := b.emitLoad(p, placeExpr.Span)
		right := b.emitValue(valueExpr)
		value = b.emitBinary(opToSSA(*op), [2]ssa.Value{left, right}, opSpan.Low)
	} else {
		value = b.emitValue(valueExpr)
	}

	b.emitStore(p, value, opSpan.Low)
}

func (b *Builder) emitIf(stmt *ast.Stmt) {
	value := b.emitValue(stmt.Cond)
	valueLoc := stmt.Cond.Span.Low

	trueBlock := b.makeBlock()
	falseBlock := b.makeBlock()
	var mergeBlock ssa.Label
	hasElse := stmt.Else != nil
	if hasElse {
		mergeBlock = b.makeBlock()
	} else {
		mergeBlock = falseBlock
	}

	b.emitBranch(value, trueBlock, falseBlock, valueLoc)
	b.sealBlock(trueBlock)
	b.sealBlock(falseBlock)

	b.currentBlock = trueBlock
	b.emitStatement(stmt.Then)
	b.emitJump(mergeBlock, endLocStmt(stmt.Then))

	if hasElse {
		b.currentBlock = falseBlock
		b.emitStatement(stmt.Else)
		b.emitJump(mergeBlock, endLocStmt(stmt.Else))
	}

	b.sealBlock(mergeBlock)
	b.currentBlock = mergeBlock
}

func (b *Builder) emitRepeatStmt(stmt *ast.Stmt) {
	condBlock := b.makeBlock()
	bodyBlock := b.makeBlock()
	exitBlock := b.makeBlock()

	countLoc := stmt.Count.Span.Low
	iter := b.ssab.EmitLocal()
	count := b.emitValue(stmt.Count)
	b.writeLocal(iter, count)
	b.emitJump(condBlock, countLoc)

	b.currentBlock = condBlock
	cur := b.readLocal(iter)
	one := b.emitReal(1, countLoc)
	next := b.emitBinary(ssa.OpSubtract, [2]ssa.Value{cur, one}, countLoc)
	b.writeLocal(iter, next)
	b.emitBranch(cur, bodyBlock, exitBlock, countLoc)
	b.sealBlock(bodyBlock)

	b.currentBlock = bodyBlock
	b.withLoop(condBlock, exitBlock, func() { b.emitStatement(stmt.Body) })
	b.emitJump(condBlock, endLocStmt(stmt.Body))
	b.sealBlock(condBlock)
	b.sealBlock(exitBlock)

	b.currentBlock = exitBlock
}

func (b *Builder) emitWhileStmt(stmt *ast.Stmt) {
	condBlock := b.makeBlock()
	bodyBlock := b.makeBlock()
	exitBlock := b.makeBlock()

	b.emitJump(condBlock, stmt.Span.Low)

	b.currentBlock = condBlock
	value := b.emitValue(stmt.Count)
	b.emitBranch(value, bodyBlock, exitBlock, stmt.Count.Span.Low)
	b.sealBlock(bodyBlock)

	b.currentBlock = bodyBlock
	b.withLoop(condBlock, exitBlock, func() { b.emitStatement(stmt.Body) })
	b.emitJump(condBlock, endLocStmt(stmt.Body))
	b.sealBlock(condBlock)
	b.sealBlock(exitBlock)

	b.currentBlock = exitBlock
}

func (b *Builder) emitDoStmt(stmt *ast.Stmt) {
	bodyBlock := b.makeBlock()
	condBlock := b.makeBlock()
	exitBlock := b.makeBlock()

	b.emitJump(bodyBlock, stmt.Span.Low)

	b.currentBlock = bodyBlock
	b.withLoop(condBlock, exitBlock, func() { b.emitStatement(stmt.Body) })
	b.emitJump(condBlock, endLocStmt(stmt.Body))
	b.sealBlock(condBlock)

	b.currentBlock = condBlock
	value := b.emitValue(stmt.Count)
	b.emitBranch(value, exitBlock, bodyBlock, stmt.Count.Span.Low)
	b.sealBlock(bodyBlock)
	b.sealBlock(exitBlock)

	b.currentBlock = exitBlock
}

func (b *Builder) emitForStmt(stmt *ast.Stmt) {
	condBlock := b.makeBlock()
	bodyBlock := b.makeBlock()
	nextBlock := b.makeBlock()
	exitBlock := b.makeBlock()

	b.emitStatement(stmt.ForInit)
	b.emitJump(condBlock, endLocStmt(stmt.ForInit))

	b.currentBlock = condBlock
	value := b.emitValue(stmt.ForCond)
	b.emitBranch(value, bodyBlock, exitBlock, stmt.ForCond.Span.Low)
	b.sealBlock(bodyBlock)

	b.currentBlock = bodyBlock
	b.withLoop(nextBlock, exitBlock, func() { b.emitStatement(stmt.ForBody) })
	b.emitJump(nextBlock, endLocStmt(stmt.ForBody))
	b.sealBlock(nextBlock)
	b.sealBlock(exitBlock)

	b.currentBlock = nextBlock
	b.emitStatement(stmt.ForNext)
	b.emitJump(condBlock, endLocStmt(stmt.ForNext))
	b.sealBlock(condBlock)

	b.currentBlock = exitBlock
}

func (b *Builder) emitSwitchStmt(stmt *ast.Stmt) {
	exprBlock := b.currentBlock
	deadBlock := b.makeBlock()
	exitBlock := b.makeBlock()
	b.sealBlock(deadBlock)

	value := b.emitValue(stmt.SwitchExpr)

	b.currentBlock = deadBlock
	b.withSwitch(value, exprBlock, exitBlock, func() {
		for _, s := range stmt.SwitchBody {
			b.emitStatement(s)
		}
		b.emitJump(exitBlock, stmt.Span.High-1)

		defaultBlock := exitBlock
		if b.currentDefault != nil {
			defaultBlock = *b.currentDefault
		}
		b.currentBlock = *b.currentExpr
		b.emitJump(defaultBlock, stmt.SwitchExpr.Span.Low)
		if b.currentDefault != nil {
			b.sealBlock(*b.currentDefault)
		}
	})
	b.sealBlock(exitBlock)

	b.currentBlock = exitBlock
}

func (b *Builder) emitCaseStmt(stmt *ast.Stmt) {
	if b.currentExpr == nil {
		b.errorf(stmt.Span, "case statement outside of switch")
		return
	}

	if stmt.CaseExpr != nil {
		caseBlock := b.makeBlock()
		exprBlock := b.makeBlock()

		b.emitJump(caseBlock, stmt.Span.Low)

		b.currentBlock = *b.currentExpr
		b.currentExpr = &exprBlock
		switchVal := *b.currentSwitch
		value := b.emitValue(stmt.CaseExpr)
		eq := b.emitBinary(ssa.OpEq, [2]ssa.Value{switchVal, value}, stmt.CaseExpr.Span.Low)
		b.emitBranch(eq, caseBlock, exprBlock, stmt.CaseExpr.Span.Low)
		b.sealBlock(caseBlock)
		b.sealBlock(exprBlock)

		b.currentBlock = caseBlock
		return
	}

	defaultBlock := b.makeBlock()
	b.currentDefault = &defaultBlock
	b.emitJump(defaultBlock, stmt.Span.Low)
	b.currentBlock = defaultBlock
}

func (b *Builder) emitJumpStmt(stmt *ast.Stmt) {
	switch stmt.JumpKind {
	case ast.Break:
		if b.currentExit != nil {
			b.jumpToDeadBlock(*b.currentExit, stmt.Span.Low)
		} else {
			b.emitExit(stmt.Span.Low)
		}
	case ast.Continue:
		if b.currentNext != nil {
			b.jumpToDeadBlock(*b.currentNext, stmt.Span.Low)
		} else {
			b.emitExit(stmt.Span.Low)
		}
	case ast.Exit:
		b.emitExit(stmt.Span.Low)
	}
}

func (b *Builder) jumpToDeadBlock(target ssa.Label, loc int) {
	b.emitJump(target, loc)
	dead := b.makeBlock()
	b.currentBlock = dead
	b.sealBlock(dead)
}

func (b *Builder) emitExit(loc int) {
	b.emitJump(ssa.Exit, loc)
	dead := b.makeBlock()
	b.currentBlock = dead
	b.sealBlock(dead)
}

func (b *Builder) withLoop(next, exit ssa.Label, f func()) {
	oldNext, oldExit := b.currentNext, b.currentExit
	b.currentNext, b.currentExit = &next, &exit
	f()
	b.currentNext, b.currentExit = oldNext, oldExit
}

func (b *Builder) withSwitch(switchVal ssa.Value, exprBlock, exitBlock ssa.Label, f func()) {
	oldSwitch, oldExpr, oldDefault, oldExit := b.currentSwitch, b.currentExpr, b.currentDefault, b.currentExit
	b.currentSwitch, b.currentExpr, b.currentDefault, b.currentExit = &switchVal, &exprBlock, nil, &exitBlock
	f()
	b.currentSwitch, b.currentExpr, b.currentDefault, b.currentExit = oldSwitch, oldExpr, oldDefault, oldExit
}
