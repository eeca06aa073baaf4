// Package parser turns a token stream into an internal/ast tree.
//
// It is a hand-written Pratt parser for expressions and a recursive-descent
// parser for statements, matching the scripting language's traditional
// grammar: statement separators are optional, `begin`/`end` are accepted
// anywhere `{`/`}` are, and a syntax error recovers at the next plausible
// statement boundary instead of aborting the whole parse.
package parser

import (
	"fmt"
	"strconv"

	"j5.nz/gml/internal/ast"
	"j5.nz/gml/internal/lexer"
	"j5.nz/gml/internal/symbol"
	"j5.nz/gml/internal/token"
)

// ErrorHandler receives one diagnostic per call; Parser never aborts on its
// own, so a caller wanting a fatal first-error policy should panic or record
// a flag from inside Error.
type ErrorHandler interface {
	Error(span token.Span, message string)
}

// Parser drives a lexer.Lexer one token of lookahead ahead of the parse
// point.
type Parser struct {
	reader *lexer.Lexer
	errors ErrorHandler

	current token.Token
	span    token.Span
}

// New constructs a Parser and primes its first lookahead token.
func New(reader *lexer.Lexer, errors ErrorHandler) *Parser {
	p := &Parser{reader: reader, errors: errors, current: token.Eof()}
	p.advance()
	return p
}

// ParseProgram parses either a single `{ ... }` block or a bare sequence of
// statements up to end of file, matching the two ways a script's source can
// be handed to the compiler.
func (p *Parser) ParseProgram() (*ast.Stmt, token.Span) {
	low := p.span.Low
	var stmt *ast.Stmt
	var span token.Span

	if p.current.Kind == token.KindOpenDelim && p.current.Delim == token.Brace {
		stmt, span = p.parseStatement()
	} else {
		var stmts []*ast.Stmt
		high := low
		for p.current.Kind != token.KindEof {
			s, sspan := p.parseStatement()
			if s.Kind == ast.StmtError {
				p.skipToStatement()
			}
			stmts = append(stmts, s)
			high = sspan.High
		}
		span = token.Span{Low: low, High: high}
		stmt = &ast.Stmt{Kind: ast.StmtBlock, Span: span, Block: stmts}
	}
	high := span.High

	if p.current.Kind != token.KindEof {
		p.errorf(p.span, "unexpected %s; expected %s", p.current, token.Eof())
	}

	return stmt, token.Span{Low: low, High: high}
}

func (p *Parser) parseStatement() (*ast.Stmt, token.Span) {
	low := p.span.Low

	var stmt *ast.Stmt
	var span token.Span
	switch {
	case p.isKeyword(symbol.Keyword.Var) || p.isKeyword(symbol.Keyword.GlobalVar):
		stmt, span = p.parseDeclare()
	case p.current.Kind == token.KindOpenDelim && p.current.Delim == token.Brace, p.isKeyword(symbol.Keyword.Begin):
		stmt, span = p.parseBlock()
	case p.isKeyword(symbol.Keyword.If):
		stmt, span = p.parseIf()
	case p.isKeyword(symbol.Keyword.Repeat):
		stmt, span = p.parseRepeat()
	case p.isKeyword(symbol.Keyword.While), p.isKeyword(symbol.Keyword.With):
		stmt, span = p.parseWhileOrWith()
	case p.isKeyword(symbol.Keyword.Do):
		stmt, span = p.parseDo()
	case p.isKeyword(symbol.Keyword.For):
		stmt, span = p.parseFor()
	case p.isKeyword(symbol.Keyword.Switch):
		stmt, span = p.parseSwitch()
	case p.isKeyword(symbol.Keyword.Break), p.isKeyword(symbol.Keyword.Continue), p.isKeyword(symbol.Keyword.Exit):
		stmt, span = p.parseJump()
	case p.isKeyword(symbol.Keyword.Return):
		stmt, span = p.parseReturn()
	case p.isKeyword(symbol.Keyword.Case), p.isKeyword(symbol.Keyword.Default):
		stmt, span = p.parseCase()
	default:
		stmt, span = p.parseAssignOrInvoke()
	}

	high := span.High
	for p.current.Kind == token.KindSemicolon {
		high = p.span.High
		p.advance()
	}

	return stmt, token.Span{Low: low, High: high}
}

func (p *Parser) parseAssignOrInvoke() (*ast.Stmt, token.Span) {
	low := p.span.Low
	place, leftSpan := p.parseTerm()

	if place.Kind == ast.ExprCall {
		return &ast.Stmt{Kind: ast.StmtInvoke, Span: leftSpan, Invoke: place.Call}, leftSpan
	}
	if place.Kind == ast.ExprError {
		return &ast.Stmt{Kind: ast.StmtError, Span: leftSpan, ErrorExpr: place}, leftSpan
	}

	opSpan := p.span
	var op *ast.Op
	switch {
	case p.current.Kind == token.KindEq || p.current.Kind == token.KindColonEq:
		op = nil
	case p.current.Kind == token.KindBinOpEq:
		o := binOpToAstOp(p.current.Op)
		op = &o
	default:
		p.errorf(p.span, "unexpected %s; expected assignment operator", p.current)
		return &ast.Stmt{Kind: ast.StmtError, Span: leftSpan, ErrorExpr: place}, leftSpan
	}
	p.advance()

	value, rightSpan := p.parseExpression(0)
	span := token.Span{Low: low, High: rightSpan.High}
	return &ast.Stmt{
		Kind: ast.StmtAssign, Span: span,
		AssignOp: op, OpSpan: opSpan,
		Place: place, Value: value,
	}, span
}

func (p *Parser) parseDeclare() (*ast.Stmt, token.Span) {
	low := p.span.Low
	kw := p.current
	p.advance()

	declare := ast.DeclareLocal
	if kw.Ident == symbol.Keyword.GlobalVar {
		declare = ast.DeclareGlobal
	}

	var idents []ast.Ident
	for p.current.Kind != token.KindSemicolon && p.current.Kind != token.KindEof {
		if p.current.Kind != token.KindIdent {
			break
		}
		idents = append(idents, ast.Ident{Name: p.current.Ident, Span: p.span})
		p.advance()
		if p.current.Kind == token.KindComma {
			p.advance()
		}
	}

	if p.current.Kind == token.KindEq || p.current.Kind == token.KindColonEq {
		p.errorf(p.span, "unexpected %s; expected ;", p.current)
		p.advance()
		p.parseExpression(0)
	}

	high := p.span.High
	p.expect(token.Token{Kind: token.KindSemicolon})

	span := token.Span{Low: low, High: high}
	return &ast.Stmt{Kind: ast.StmtDeclare, Span: span, Declare: declare, Idents: idents}, span
}

func (p *Parser) parseBlock() (*ast.Stmt, token.Span) {
	low := p.span.Low
	p.advance()

	var stmts []*ast.Stmt
	for !(p.current.Kind == token.KindCloseDelim && p.current.Delim == token.Brace) &&
		!p.isKeyword(symbol.Keyword.End) && p.current.Kind != token.KindEof {
		s, _ := p.parseStatement()
		if s.Kind == ast.StmtError {
			p.skipToStatement()
		}
		stmts = append(stmts, s)
	}

	var high int
	if p.current.Kind == token.KindEof {
		p.errorf(p.span, "unexpected %s; expected %s", p.current, token.Token{Kind: token.KindCloseDelim, Delim: token.Brace})
		high = p.span.Low
	} else {
		_, span := p.advance()
		high = span.High
	}

	span := token.Span{Low: low, High: high}
	return &ast.Stmt{Kind: ast.StmtBlock, Span: span, Block: stmts}, span
}

func (p *Parser) parseIf() (*ast.Stmt, token.Span) {
	low := p.span.Low
	p.advance()

	cond, _ := p.parseExpression(0)

	if p.isKeyword(symbol.Keyword.Then) {
		p.advance()
	}

	then, thenSpan := p.parseStatement()

	var elseStmt *ast.Stmt
	high := thenSpan.High
	if p.isKeyword(symbol.Keyword.Else) {
		p.advance()
		var elseSpan token.Span
		elseStmt, elseSpan = p.parseStatement()
		high = elseSpan.High
	}

	span := token.Span{Low: low, High: high}
	return &ast.Stmt{Kind: ast.StmtIf, Span: span, Cond: cond, Then: then, Else: elseStmt}, span
}

func (p *Parser) parseRepeat() (*ast.Stmt, token.Span) {
	low := p.span.Low
	p.advance()

	count, _ := p.parseExpression(0)
	body, bodySpan := p.parseStatement()

	span := token.Span{Low: low, High: bodySpan.High}
	return &ast.Stmt{Kind: ast.StmtRepeat, Span: span, Count: count, Body: body}, span
}

func (p *Parser) parseWhileOrWith() (*ast.Stmt, token.Span) {
	low := p.span.Low
	kw := p.current
	p.advance()

	kind := ast.StmtWhile
	if kw.Ident == symbol.Keyword.With {
		kind = ast.StmtWith
	}

	expr, _ := p.parseExpression(0)
	if p.isKeyword(symbol.Keyword.Do) {
		p.advance()
	}
	body, bodySpan := p.parseStatement()

	span := token.Span{Low: low, High: bodySpan.High}
	return &ast.Stmt{Kind: kind, Span: span, Count: expr, Body: body}, span
}

func (p *Parser) parseDo() (*ast.Stmt, token.Span) {
	low := p.span.Low
	p.advance()

	body, _ := p.parseStatement()
	p.expect(token.Keyword(symbol.Keyword.Until))
	cond, condSpan := p.parseExpression(0)

	span := token.Span{Low: low, High: condSpan.High}
	return &ast.Stmt{Kind: ast.StmtDo, Span: span, Body: body, Count: cond}, span
}

func (p *Parser) parseFor() (*ast.Stmt, token.Span) {
	low := p.span.Low
	p.advance()

	p.expect(token.OpenDelim(token.Paren))

	init, _ := p.parseStatement()
	cond, _ := p.parseExpression(0)
	if p.current.Kind == token.KindSemicolon {
		p.advance()
	}
	next, _ := p.parseStatement()

	high := p.span.High
	p.expect(token.CloseDelim(token.Paren))

	body, _ := p.parseStatement()

	span := token.Span{Low: low, High: high}
	return &ast.Stmt{Kind: ast.StmtFor, Span: span, ForInit: init, ForCond: cond, ForNext: next, ForBody: body}, span
}

func (p *Parser) parseSwitch() (*ast.Stmt, token.Span) {
	low := p.span.Low
	p.advance()

	expr, _ := p.parseExpression(0)

	if !(p.current.Kind == token.KindOpenDelim && p.current.Delim == token.Brace) && !p.isKeyword(symbol.Keyword.Begin) {
		p.errorf(p.span, "unexpected %s; expected %s", p.current, token.OpenDelim(token.Brace))
	}

	body, bodySpan := p.parseBlock()

	span := token.Span{Low: low, High: bodySpan.High}
	return &ast.Stmt{Kind: ast.StmtSwitch, Span: span, SwitchExpr: expr, SwitchBody: body.Block}, span
}

func (p *Parser) parseJump() (*ast.Stmt, token.Span) {
	low := p.span.Low
	kw, span := p.advance()

	var jump ast.Jump
	switch kw.Ident {
	case symbol.Keyword.Break:
		jump = ast.Break
	case symbol.Keyword.Continue:
		jump = ast.Continue
	case symbol.Keyword.Exit:
		jump = ast.Exit
	}

	result := token.Span{Low: low, High: span.High}
	return &ast.Stmt{Kind: ast.StmtJump, Span: result, JumpKind: jump}, result
}

func (p *Parser) parseReturn() (*ast.Stmt, token.Span) {
	low := p.span.Low
	p.advance()

	expr, exprSpan := p.parseExpression(0)

	span := token.Span{Low: low, High: exprSpan.High}
	return &ast.Stmt{Kind: ast.StmtReturn, Span: span, Return: expr}, span
}

func (p *Parser) parseCase() (*ast.Stmt, token.Span) {
	low := p.span.Low
	kw, _ := p.advance()

	var expr *ast.Expr
	isDefault := kw.Ident == symbol.Keyword.Default
	if !isDefault {
		expr, _ = p.parseExpression(0)
	}

	high := p.span.High
	p.expect(token.Token{Kind: token.KindColon})

	span := token.Span{Low: low, High: high}
	return &ast.Stmt{Kind: ast.StmtCase, Span: span, CaseExpr: expr, IsDefault: isDefault}, span
}

// parseExpression implements Pratt (precedence-climbing) parsing.
func (p *Parser) parseExpression(minPrecedence int) (*ast.Expr, token.Span) {
	left, leftSpan, parens := p.parsePrefixExpression()

	for {
		inf, precedence, ok := infixFromToken(p.current)
		if !ok || precedence < minPrecedence {
			break
		}

		low := leftSpan.Low
		switch {
		case left.Kind == ast.ExprIdent && inf == infixCall:
			args, high := p.parseArgs(token.Paren)
			left = &ast.Expr{Kind: ast.ExprCall, Span: token.Span{Low: low, High: high}, Call: &ast.Call{
				Name: ast.Ident{Name: left.Ident, Span: leftSpan}, Args: args,
			}}
			leftSpan = token.Span{Low: low, High: high}
			parens = true

		case (left.Kind == ast.ExprIdent || left.Kind == ast.ExprField) && inf == infixIndex && !parens:
			args, high := p.parseArgs(token.Bracket)
			left = &ast.Expr{Kind: ast.ExprIndex, Span: token.Span{Low: low, High: high}, IndexBase: left, IndexArgs: args}
			leftSpan = token.Span{Low: low, High: high}
			parens = false

		case inf == infixField:
			p.advance()
			if p.current.Kind != token.KindIdent {
				p.errorf(p.span, "unexpected %s; expected identifier", p.current)
				return left, leftSpan
			}
			field := ast.Ident{Name: p.current.Ident, Span: p.span}
			p.advance()
			left = &ast.Expr{Kind: ast.ExprField, Span: token.Span{Low: low, High: field.Span.High}, FieldBase: left, Field: field}
			leftSpan = token.Span{Low: low, High: field.Span.High}
			parens = false

		case inf == infixBinary:
			opSpan := p.span
			binKind, op := binaryFromToken(p.current)
			p.advance()

			right, rightSpan := p.parseExpression(precedence + 1)
			left = &ast.Expr{
				Kind: ast.ExprBinary, Span: token.Span{Low: leftSpan.Low, High: rightSpan.High},
				BinOp: binKind, Op: op, OpSpan: opSpan, Left: left, Right: right,
			}
			leftSpan = token.Span{Low: leftSpan.Low, High: rightSpan.High}

		default:
			return left, leftSpan
		}
	}

	return left, leftSpan
}

func (p *Parser) parsePrefixExpression() (*ast.Expr, token.Span, bool) {
	low := p.span.Low

	switch {
	case p.current.Kind == token.KindIdent, p.isAnyKeyword(
		symbol.Keyword.True, symbol.Keyword.False, symbol.Keyword.Self, symbol.Keyword.Other,
		symbol.Keyword.All, symbol.Keyword.NoOne, symbol.Keyword.Global, symbol.Keyword.Local):
		sym := p.current.Ident
		_, span := p.advance()
		return &ast.Expr{Kind: ast.ExprIdent, Span: span, Ident: sym}, span, false

	case p.current.Kind == token.KindReal:
		sym, span := p.advance()
		value := parseRealLiteral(sym.Real.String(), p, span)
		return &ast.Expr{Kind: ast.ExprReal, Span: span, Real: value}, span, false

	case p.current.Kind == token.KindString:
		sym, span := p.advance()
		return &ast.Expr{Kind: ast.ExprString, Span: span, String: sym.Str}, span, false

	case (p.current.Kind == token.KindBinOp && (p.current.Op == token.Plus || p.current.Op == token.Minus)) ||
		p.current.Kind == token.KindBang || p.isKeyword(symbol.Keyword.Not) || p.current.Kind == token.KindTilde:
		cur, opSpan := p.advance()
		op := unaryFromToken(cur)
		x, xSpan := p.parseTerm()
		span := token.Span{Low: low, High: xSpan.High}
		return &ast.Expr{Kind: ast.ExprUnary, Span: span, UnaryOp: op, UnarySpan: opSpan, X: x}, span, true

	case p.current.Kind == token.KindOpenDelim && p.current.Delim == token.Paren:
		p.advance()
		expr, exprSpan := p.parseExpression(0)
		p.expect(token.CloseDelim(token.Paren))
		return expr, exprSpan, true

	default:
		p.errorf(p.span, "unexpected %s; expected expression", p.current)
		span := token.Span{Low: low, High: low}
		return &ast.Expr{Kind: ast.ExprError, Span: span}, span, false
	}
}

func (p *Parser) parseArgs(delim token.Delim) ([]*ast.Expr, int) {
	p.advance()

	var args []*ast.Expr
	for p.current.Kind != token.KindCloseDelim || p.current.Delim != delim {
		if p.current.Kind == token.KindEof {
			break
		}
		arg, _ := p.parseExpression(0)
		args = append(args, arg)

		if p.current.Kind == token.KindComma {
			p.advance()
		} else {
			break
		}
	}

	high := p.span.High
	if !(p.current.Kind == token.KindCloseDelim && p.current.Delim == delim) {
		p.errorf(p.span, "unexpected %s; expected %s or %s", p.current, token.CloseDelim(delim), token.Token{Kind: token.KindComma})
	} else {
		p.advance()
	}

	return args, high
}

// parseTerm parses an expression that binds at least as tightly as postfix
// operators, used for unary operands so `-x.y` parses as `-(x.y)`.
func (p *Parser) parseTerm() (*ast.Expr, token.Span) {
	return p.parseExpression(precedencePostfix)
}

func (p *Parser) expect(want token.Token) bool {
	if p.current.Kind == want.Kind && (want.Kind != token.KindOpenDelim && want.Kind != token.KindCloseDelim || p.current.Delim == want.Delim) {
		p.advance()
		return true
	}
	p.errorf(p.span, "unexpected %s; expected %s", p.current, want)
	return false
}

func (p *Parser) advance() (token.Token, token.Span) {
	tok, span := p.reader.ReadToken()
	prevTok, prevSpan := p.current, p.span
	p.current, p.span = tok, span
	return prevTok, prevSpan
}

func (p *Parser) isKeyword(kw symbol.Symbol) bool {
	return p.current.Kind == token.KindKeyword && p.current.Ident == kw
}

func (p *Parser) isAnyKeyword(kws ...symbol.Symbol) bool {
	if p.current.Kind != token.KindKeyword {
		return false
	}
	for _, kw := range kws {
		if p.current.Ident == kw {
			return true
		}
	}
	return false
}

func (p *Parser) errorf(span token.Span, format string, args ...interface{}) {
	p.errors.Error(span, fmt.Sprintf(format, args...))
}

// skipToStatement discards tokens until one that could plausibly start a new
// statement, so one syntax error doesn't cascade into spurious follow-on
// errors for the rest of the file.
func (p *Parser) skipToStatement() {
	for {
		switch {
		case p.current.Kind == token.KindSemicolon:
			p.advance()
			return
		case p.current.Kind == token.KindEof,
			p.current.Kind == token.KindCloseDelim && p.current.Delim == token.Brace,
			p.isKeyword(symbol.Keyword.End),
			p.current.Kind == token.KindIdent,
			p.isAnyKeyword(symbol.Keyword.Self, symbol.Keyword.Other, symbol.Keyword.All, symbol.Keyword.NoOne,
				symbol.Keyword.Global, symbol.Keyword.Local, symbol.Keyword.Var, symbol.Keyword.GlobalVar),
			p.current.Kind == token.KindOpenDelim && p.current.Delim == token.Paren,
			p.current.Kind == token.KindOpenDelim && p.current.Delim == token.Brace,
			p.isAnyKeyword(symbol.Keyword.Begin, symbol.Keyword.If, symbol.Keyword.Repeat, symbol.Keyword.While,
				symbol.Keyword.With, symbol.Keyword.Do, symbol.Keyword.For, symbol.Keyword.Break,
				symbol.Keyword.Continue, symbol.Keyword.Exit, symbol.Keyword.Switch, symbol.Keyword.Case,
				symbol.Keyword.Default, symbol.Keyword.Return):
			return
		default:
			p.advance()
		}
	}
}

const precedencePostfix = 7

type infixKind int

const (
	infixBinary infixKind = iota
	infixField
	infixIndex
	infixCall
)

func infixFromToken(tok token.Token) (infixKind, int, bool) {
	switch {
	case tok.Kind == token.KindDot:
		return infixField, precedencePostfix, true
	case tok.Kind == token.KindOpenDelim && tok.Delim == token.Bracket:
		return infixIndex, precedencePostfix, true
	case tok.Kind == token.KindOpenDelim && tok.Delim == token.Paren:
		return infixCall, precedencePostfix, true
	}

	switch tok.Kind {
	case token.KindLt:
		return infixBinary, 2, true
	case token.KindLe:
		return infixBinary, 2, true
	case token.KindEq, token.KindColonEq, token.KindEqEq:
		return infixBinary, 2, true
	case token.KindNe, token.KindLtGt:
		return infixBinary, 2, true
	case token.KindGe:
		return infixBinary, 2, true
	case token.KindGt:
		return infixBinary, 2, true
	case token.KindBinOp:
		switch tok.Op {
		case token.Star, token.Slash:
			return infixBinary, 6, true
		case token.Plus, token.Minus:
			return infixBinary, 5, true
		case token.Ampersand, token.Caret, token.Pipe:
			return infixBinary, 3, true
		}
	case token.KindKeyword:
		switch tok.Ident {
		case symbol.Keyword.Div, symbol.Keyword.Mod:
			return infixBinary, 6, true
		case symbol.Keyword.And, symbol.Keyword.Or, symbol.Keyword.Xor:
			return infixBinary, 1, true
		}
	case token.KindAnd, token.KindOr, token.KindXor:
		return infixBinary, 1, true
	case token.KindShl, token.KindShr:
		return infixBinary, 4, true
	}

	return 0, 0, false
}

func binaryFromToken(tok token.Token) (ast.BinaryKind, ast.Op) {
	switch tok.Kind {
	case token.KindLt:
		return ast.Lt, 0
	case token.KindLe:
		return ast.Le, 0
	case token.KindEq, token.KindColonEq, token.KindEqEq:
		return ast.Eq, 0
	case token.KindNe, token.KindLtGt:
		return ast.Ne, 0
	case token.KindGe:
		return ast.Ge, 0
	case token.KindGt:
		return ast.Gt, 0
	case token.KindShl:
		return ast.ShiftLeft, 0
	case token.KindShr:
		return ast.ShiftRight, 0
	case token.KindAnd:
		return ast.And, 0
	case token.KindOr:
		return ast.Or, 0
	case token.KindXor:
		return ast.Xor, 0
	case token.KindBinOp:
		return ast.BinOp, binOpToAstOp(tok.Op)
	case token.KindKeyword:
		switch tok.Ident {
		case symbol.Keyword.Div:
			return ast.Div, 0
		case symbol.Keyword.Mod:
			return ast.Mod, 0
		case symbol.Keyword.And:
			return ast.And, 0
		case symbol.Keyword.Or:
			return ast.Or, 0
		case symbol.Keyword.Xor:
			return ast.Xor, 0
		}
	}
	return ast.BinOp, ast.Add
}

func binOpToAstOp(op token.BinOp) ast.Op {
	switch op {
	case token.Plus:
		return ast.Add
	case token.Minus:
		return ast.Subtract
	case token.Star:
		return ast.Multiply
	case token.Slash:
		return ast.Divide
	case token.Ampersand:
		return ast.BitAnd
	case token.Pipe:
		return ast.BitOr
	case token.Caret:
		return ast.BitXor
	}
	return ast.Add
}

// parseRealLiteral converts a scanned real-literal's raw text (either
// `$`-prefixed hex or decimal, optionally with a fractional part) into its
// float64 value, matching the lexer's own grammar for what it will scan.
func parseRealLiteral(text string, p *Parser, span token.Span) float64 {
	if len(text) > 0 && text[0] == '$' {
		n, err := strconv.ParseUint(text[1:], 16, 64)
		if err != nil {
			p.errorf(span, "invalid integer literal")
			return 0
		}
		return float64(n)
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		p.errorf(span, "invalid floating point literal")
		return 0
	}
	return f
}

func unaryFromToken(tok token.Token) ast.Unary {
	switch {
	case tok.Kind == token.KindBinOp && tok.Op == token.Plus:
		return ast.Positive
	case tok.Kind == token.KindBinOp && tok.Op == token.Minus:
		return ast.Negate
	case tok.Kind == token.KindBang, tok.Kind == token.KindKeyword && tok.Ident == symbol.Keyword.Not:
		return ast.Invert
	case tok.Kind == token.KindTilde:
		return ast.BitInvert
	}
	return ast.Invert
}
