package parser_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"j5.nz/gml/internal/ast"
	"j5.nz/gml/internal/lexer"
	"j5.nz/gml/internal/parser"
	"j5.nz/gml/internal/symbol"
	"j5.nz/gml/internal/token"
)

type recorder struct {
	messages []string
}

func (r *recorder) Error(span token.Span, message string) {
	r.messages = append(r.messages, fmt.Sprintf("%v: %s", span, message))
}

func parse(t *testing.T, src string) (*ast.Stmt, []string) {
	t.Helper()
	errs := &recorder{}
	p := parser.New(lexer.New([]byte(src), 0), errs)
	stmt, _ := p.ParseProgram()
	return stmt, errs.messages
}

func TestParseDeclareAssignInvoke(t *testing.T) {
	stmt, errs := parse(t, `{ var x; x = 3 show_message(x * y) }`)
	require.Empty(t, errs)
	require.Equal(t, ast.StmtBlock, stmt.Kind)
	require.Len(t, stmt.Block, 3)

	decl := stmt.Block[0]
	require.Equal(t, ast.StmtDeclare, decl.Kind)
	require.Equal(t, ast.DeclareLocal, decl.Declare)
	require.Equal(t, symbol.Intern("x"), decl.Idents[0].Name)

	assign := stmt.Block[1]
	require.Equal(t, ast.StmtAssign, assign.Kind)
	require.Nil(t, assign.AssignOp)
	require.Equal(t, ast.ExprReal, assign.Value.Kind)
	require.Equal(t, 3.0, assign.Value.Real)

	invoke := stmt.Block[2]
	require.Equal(t, ast.StmtInvoke, invoke.Kind)
	require.Equal(t, symbol.Intern("show_message"), invoke.Invoke.Name.Name)
	require.Len(t, invoke.Invoke.Args, 1)
	require.Equal(t, ast.ExprBinary, invoke.Invoke.Args[0].Kind)
	require.Equal(t, ast.BinOp, invoke.Invoke.Args[0].BinOp)
	require.Equal(t, ast.Multiply, invoke.Invoke.Args[0].Op)
}

func TestPrecedence(t *testing.T) {
	stmt, errs := parse(t, `result = x + y * (3 + z);`)
	require.Empty(t, errs)
	require.Equal(t, ast.StmtBlock, stmt.Kind)
	require.Len(t, stmt.Block, 1)

	assign := stmt.Block[0]
	require.Equal(t, ast.StmtAssign, assign.Kind)

	top := assign.Value
	require.Equal(t, ast.ExprBinary, top.Kind)
	require.Equal(t, ast.Add, top.Op)
	require.Equal(t, ast.ExprIdent, top.Left.Kind)

	mul := top.Right
	require.Equal(t, ast.ExprBinary, mul.Kind)
	require.Equal(t, ast.Multiply, mul.Op)

	inner := mul.Right
	require.Equal(t, ast.ExprBinary, inner.Kind)
	require.Equal(t, ast.Add, inner.Op)
}

func TestCompoundAssign(t *testing.T) {
	stmt, errs := parse(t, `x += 1;`)
	require.Empty(t, errs)
	assign := stmt.Block[0]
	require.Equal(t, ast.StmtAssign, assign.Kind)
	require.NotNil(t, assign.AssignOp)
	require.Equal(t, ast.Add, *assign.AssignOp)
}

func TestIfElse(t *testing.T) {
	stmt, errs := parse(t, `if x > 0 then y = 1 else y = 2`)
	require.Empty(t, errs)
	ifStmt := stmt.Block[0]
	require.Equal(t, ast.StmtIf, ifStmt.Kind)
	require.NotNil(t, ifStmt.Then)
	require.NotNil(t, ifStmt.Else)
}

func TestWithAndSwitch(t *testing.T) {
	stmt, errs := parse(t, `
		with (other) { x = 1 }
		switch (x) {
			case 1: y = 1; break;
			default: y = 2;
		}
	`)
	require.Empty(t, errs)
	require.Len(t, stmt.Block, 2)
	require.Equal(t, ast.StmtWith, stmt.Block[0].Kind)
	sw := stmt.Block[1]
	require.Equal(t, ast.StmtSwitch, sw.Kind)
	require.True(t, len(sw.SwitchBody) >= 4)
}

func TestSyntaxErrorRecovery(t *testing.T) {
	_, errs := parse(t, `x = ; y = 2;`)
	require.NotEmpty(t, errs)
}
