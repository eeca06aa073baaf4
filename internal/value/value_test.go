package value_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"j5.nz/gml/internal/symbol"
	"j5.nz/gml/internal/value"
)

func TestRealRoundTrip(t *testing.T) {
	v := value.FromFloat64(3.5)
	require.Equal(t, value.TypeReal, v.Type())
	f, ok := v.Real()
	require.True(t, ok)
	require.Equal(t, 3.5, f)
}

func TestNaNCanonicalized(t *testing.T) {
	signaling := math.Float64frombits(0x7ff0000000000001)
	require.True(t, math.IsNaN(signaling))

	v := value.FromFloat64(signaling)
	f, ok := v.Real()
	require.True(t, ok)
	require.True(t, math.IsNaN(f))
	require.Equal(t, math.Float64bits(math.NaN()), math.Float64bits(f))
}

func TestSymbolRoundTrip(t *testing.T) {
	s := symbol.Intern("hello")
	v := value.FromSymbol(s)
	require.Equal(t, value.TypeString, v.Type())

	got, ok := v.Symbol()
	require.True(t, ok)
	require.Equal(t, s, got)

	_, ok = v.Real()
	require.False(t, ok)
}

func TestBoolAndInt32(t *testing.T) {
	require.Equal(t, value.FromInt32(1), value.FromBool(true))
	require.Equal(t, value.FromInt32(0), value.FromBool(false))
}

func TestToInt32Truncates(t *testing.T) {
	require.Equal(t, int32(3), value.ToInt32(3.9))
	require.Equal(t, int32(-3), value.ToInt32(-3.9))
	require.Equal(t, int32(0), value.ToInt32(math.NaN()))
}

func TestToBoolThreshold(t *testing.T) {
	require.True(t, value.ToBool(0.5))
	require.False(t, value.ToBool(0.4999))
	require.True(t, value.ToBool(-1))
}

func TestArrayRoundTrip(t *testing.T) {
	a := value.NewArray()
	v := value.FromArray(a)
	require.Equal(t, value.TypeArray, v.Type())

	got, ok := v.Array()
	require.True(t, ok)

	require.NoError(t, got.Store(0, 0, value.FromInt32(42)))
	loaded, err := a.Load(0, 0)
	require.NoError(t, err)
	f, _ := loaded.Real()
	require.Equal(t, float64(42), f)

	v.Release()
}

func TestArrayLoadOutOfBoundsErrors(t *testing.T) {
	a := value.NewArray()
	_, err := a.Load(0, 0)
	require.Error(t, err)

	var be *value.BoundsError
	require.ErrorAs(t, err, &be)
}

func TestArrayStoreGrows(t *testing.T) {
	a := value.NewArray()
	require.NoError(t, a.Store(2, 5, value.FromInt32(7)))
	require.Equal(t, 3, a.Height())
	require.Equal(t, 6, a.Width(2))

	zero, err := a.Load(2, 0)
	require.NoError(t, err)
	f, _ := zero.Real()
	require.Equal(t, float64(0), f)
}

func TestRowBorrow(t *testing.T) {
	a := value.NewArray()
	row, err := a.StoreRow(1)
	require.NoError(t, err)
	require.NoError(t, row.Store(3, value.FromInt32(9)))

	v, err := a.Load(1, 3)
	require.NoError(t, err)
	f, _ := v.Real()
	require.Equal(t, float64(9), f)

	_, err = row.Load(0)
	require.NoError(t, err)

	loadRow, err := a.LoadRow(1)
	require.NoError(t, err)
	_, err = loadRow.Load(10)
	require.Error(t, err)
}

func TestLoadRowOutOfBounds(t *testing.T) {
	a := value.NewArray()
	_, err := a.LoadRow(0)
	require.Error(t, err)
}

func TestNegativeIndicesError(t *testing.T) {
	a := value.NewArray()
	_, err := a.Load(-1, 0)
	require.Error(t, err)
	err = a.Store(-1, 0, value.FromInt32(1))
	require.Error(t, err)
	_, err = a.StoreRow(-1)
	require.Error(t, err)
}

func TestArrayClonedValuesShareStorage(t *testing.T) {
	a := value.NewArray()
	v1 := value.FromArray(a.Clone())
	v2 := value.FromArray(a)

	got1, _ := v1.Array()
	require.NoError(t, got1.Store(0, 0, value.FromInt32(1)))

	got2, _ := v2.Array()
	loaded, err := got2.Load(0, 0)
	require.NoError(t, err)
	f, _ := loaded.Real()
	require.Equal(t, float64(1), f)
}
