package lexer_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"j5.nz/gml/internal/lexer"
	"j5.nz/gml/internal/symbol"
	"j5.nz/gml/internal/token"
)

func TestSpans(t *testing.T) {
	l := lexer.New([]byte("/* comment */ var foo; foo = 3"), 0)

	tok, span := l.ReadToken()
	require.Equal(t, token.Keyword(symbol.Keyword.Var), tok)
	require.Equal(t, token.Span{Low: 14, High: 17}, span)

	tok, span = l.ReadToken()
	require.Equal(t, token.Ident(symbol.Intern("foo")), tok)
	require.Equal(t, token.Span{Low: 18, High: 21}, span)

	tok, span = l.ReadToken()
	require.Equal(t, token.KindSemicolon, tok.Kind)
	require.Equal(t, token.Span{Low: 21, High: 22}, span)

	tok, _ = l.ReadToken()
	require.Equal(t, token.Ident(symbol.Intern("foo")), tok)

	tok, _ = l.ReadToken()
	require.Equal(t, token.KindEq, tok.Kind)

	tok, span = l.ReadToken()
	require.Equal(t, token.Real(symbol.Intern("3")), tok)
	require.Equal(t, token.Span{Low: 29, High: 30}, span)

	tok, span = l.ReadToken()
	require.Equal(t, token.KindEof, tok.Kind)
	require.Equal(t, token.Span{Low: 30, High: 30}, span)
}

func TestOperators(t *testing.T) {
	cases := []struct {
		src  string
		kind token.Kind
	}{
		{"<=", token.KindLe},
		{"<<", token.KindShl},
		{"<>", token.KindLtGt},
		{"<", token.KindLt},
		{"==", token.KindEqEq},
		{"=", token.KindEq},
		{"!=", token.KindNe},
		{"!", token.KindBang},
		{">=", token.KindGe},
		{">>", token.KindShr},
		{">", token.KindGt},
		{"&&", token.KindAnd},
		{"||", token.KindOr},
		{"^^", token.KindXor},
		{":=", token.KindColonEq},
		{":", token.KindColon},
	}
	for _, c := range cases {
		l := lexer.New([]byte(c.src), 0)
		tok, _ := l.ReadToken()
		require.Equal(t, c.kind, tok.Kind, "source %q", c.src)
	}
}

func TestCompoundAssign(t *testing.T) {
	l := lexer.New([]byte("+="), 0)
	tok, _ := l.ReadToken()
	require.Equal(t, token.BinOpEq(token.Plus), tok)
}

func TestHexReal(t *testing.T) {
	l := lexer.New([]byte("$ff"), 0)
	tok, _ := l.ReadToken()
	require.Equal(t, token.Real(symbol.Intern("$ff")), tok)
}

func TestStringLiteralRawBytes(t *testing.T) {
	l := lexer.New([]byte(`"hello world"`), 0)
	tok, _ := l.ReadToken()
	require.Equal(t, token.StringLit(symbol.Intern("hello world")), tok)
}

func TestUnterminatedString(t *testing.T) {
	l := lexer.New([]byte(`"oops`), 0)
	tok, span := l.ReadToken()
	require.Equal(t, token.KindString, tok.Kind)
	require.Equal(t, token.Span{Low: 0, High: 5}, span)
}

func TestUnexpectedByte(t *testing.T) {
	l := lexer.New([]byte("@"), 0)
	tok, _ := l.ReadToken()
	require.Equal(t, token.Unexpected('@'), tok)
}
