package symbol_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"j5.nz/gml/internal/symbol"
)

func TestInternIdentity(t *testing.T) {
	dog1 := symbol.Intern("dog")
	dog2 := symbol.Intern("dog")
	require.Equal(t, dog1, dog2)

	cat := symbol.Intern("cat")
	require.NotEqual(t, dog1, cat)
}

func TestEmptyIsZeroValue(t *testing.T) {
	var zero symbol.Symbol
	require.Equal(t, symbol.Empty, zero)
	require.Equal(t, "", zero.String())
}

func TestKeywords(t *testing.T) {
	require.True(t, symbol.Keyword.Other.IsKeyword())
	require.Equal(t, symbol.Keyword.Other, symbol.Intern("other"))
	require.False(t, symbol.Intern("banana").IsKeyword())
}

func TestArguments(t *testing.T) {
	arg3 := symbol.Intern("argument3")
	require.True(t, arg3.IsArgument())
	idx, ok := arg3.AsArgument()
	require.True(t, ok)
	require.Equal(t, 3, idx)
	require.Equal(t, arg3, symbol.FromArgument(3))

	_, ok = symbol.Keyword.Other.AsArgument()
	require.False(t, ok)
}
