// Package token defines the lexical tokens produced by internal/lexer and
// consumed by internal/parser.
package token

import "j5.nz/gml/internal/symbol"

// Span is a half-open byte range [Low, High) into a source string.
type Span struct {
	Low, High int
}

// BinOp is an operator that can appear bare or combined with `=` as a
// compound assignment (`+`, `+=`).
type BinOp int

const (
	Plus BinOp = iota
	Minus
	Star
	Slash
	Ampersand
	Pipe
	Caret
)

func (b BinOp) String() string {
	switch b {
	case Plus:
		return "+"
	case Minus:
		return "-"
	case Star:
		return "*"
	case Slash:
		return "/"
	case Ampersand:
		return "&"
	case Pipe:
		return "|"
	case Caret:
		return "^"
	default:
		return "?"
	}
}

// Delim is a bracket-like delimiter kind.
type Delim int

const (
	Paren Delim = iota
	Bracket
	Brace
)

// Kind identifies the shape of a Token's payload.
type Kind int

const (
	KindEof Kind = iota
	KindUnexpected
	KindIdent
	KindKeyword
	KindReal
	KindString
	KindOpenDelim
	KindCloseDelim
	KindLt
	KindLe
	KindShl
	KindLtGt
	KindGt
	KindGe
	KindShr
	KindEq
	KindEqEq
	KindBang
	KindNe
	KindBinOp
	KindBinOpEq
	KindAnd
	KindOr
	KindXor
	KindTilde
	KindDot
	KindComma
	KindSemicolon
	KindColon
	KindColonEq
)

// Token is one lexical unit. Only the fields relevant to Kind are valid.
type Token struct {
	Kind        Kind
	Ident       symbol.Symbol // KindIdent, KindKeyword
	Real        symbol.Symbol // KindReal: the literal text, unparsed
	Str         symbol.Symbol // KindString
	Delim       Delim         // KindOpenDelim, KindCloseDelim
	Op          BinOp         // KindBinOp, KindBinOpEq
	Unexpected  byte          // KindUnexpected
}

func Eof() Token                         { return Token{Kind: KindEof} }
func Unexpected(c byte) Token            { return Token{Kind: KindUnexpected, Unexpected: c} }
func Ident(s symbol.Symbol) Token        { return Token{Kind: KindIdent, Ident: s} }
func Keyword(s symbol.Symbol) Token      { return Token{Kind: KindKeyword, Ident: s} }
func Real(s symbol.Symbol) Token         { return Token{Kind: KindReal, Real: s} }
func StringLit(s symbol.Symbol) Token    { return Token{Kind: KindString, Str: s} }
func OpenDelim(d Delim) Token            { return Token{Kind: KindOpenDelim, Delim: d} }
func CloseDelim(d Delim) Token           { return Token{Kind: KindCloseDelim, Delim: d} }
func BinOpTok(op BinOp) Token            { return Token{Kind: KindBinOp, Op: op} }
func BinOpEq(op BinOp) Token             { return Token{Kind: KindBinOpEq, Op: op} }

// String renders a human-readable form of the token, used in diagnostics.
func (t Token) String() string {
	switch t.Kind {
	case KindEof:
		return "end of file"
	case KindUnexpected:
		return "unexpected byte"
	case KindIdent:
		return "identifier `" + t.Ident.String() + "`"
	case KindKeyword:
		return "`" + t.Ident.String() + "`"
	case KindReal:
		return "number `" + t.Real.String() + "`"
	case KindString:
		return "string literal"
	case KindOpenDelim, KindCloseDelim:
		return delimText(t.Delim, t.Kind == KindOpenDelim)
	case KindLt:
		return "`<`"
	case KindLe:
		return "`<=`"
	case KindShl:
		return "`<<`"
	case KindLtGt:
		return "`<>`"
	case KindGt:
		return "`>`"
	case KindGe:
		return "`>=`"
	case KindShr:
		return "`>>`"
	case KindEq:
		return "`=`"
	case KindEqEq:
		return "`==`"
	case KindBang:
		return "`!`"
	case KindNe:
		return "`!=`"
	case KindBinOp:
		return "`" + t.Op.String() + "`"
	case KindBinOpEq:
		return "`" + t.Op.String() + "=`"
	case KindAnd:
		return "`&&`"
	case KindOr:
		return "`||`"
	case KindXor:
		return "`^^`"
	case KindTilde:
		return "`~`"
	case KindDot:
		return "`.`"
	case KindComma:
		return "`,`"
	case KindSemicolon:
		return "`;`"
	case KindColon:
		return "`:`"
	case KindColonEq:
		return "`:=`"
	default:
		return "token"
	}
}

func delimText(d Delim, open bool) string {
	pairs := map[Delim][2]string{
		Paren:   {"(", ")"},
		Bracket: {"[", "]"},
		Brace:   {"{", "}"},
	}
	p := pairs[d]
	if open {
		return "`" + p[0] + "`"
	}
	return "`" + p[1] + "`"
}
