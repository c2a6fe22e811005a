package fixedpoint

import (
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMulDivZeroOperands(t *testing.T) {
	for _, tc := range []struct {
		name string
		a, b *big.Int
	}{
		{"zero a", big.NewInt(0), big.NewInt(12345)},
		{"zero b", new(big.Int).Set(MaxUint128), big.NewInt(0)},
	} {
		t.Run(tc.name, func(t *testing.T) {
			res, err := MulDiv(tc.a, tc.b, Q128)
			require.NoError(t, err)
			assert.Equal(t, 0, res.Int.Sign())
			assert.Equal(t, 0, res.Exact.Sign())
			assert.False(t, res.BelowOneUnit)
		})
	}
}

func TestMulDivBelowOneUnit(t *testing.T) {
	res, err := MulDiv(MaxUint128, big.NewInt(1), Q128)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Int.Sign())
	assert.Equal(t, 1, res.Exact.Sign())
	assert.True(t, res.BelowOneUnit)
	assert.Equal(t, new(big.Rat).SetFrac(MaxUint128, Q128).String(), res.Exact.String())
}

func TestMulDivDivisionByZero(t *testing.T) {
	_, err := MulDiv(big.NewInt(1), big.NewInt(1), big.NewInt(0))
	require.True(t, errors.Is(err, ErrDivisionByZero))

	_, err = MulDiv(big.NewInt(1), big.NewInt(1), nil)
	require.True(t, errors.Is(err, ErrDivisionByZero))
}

func TestMulDivExactQuotient(t *testing.T) {
	a := new(big.Int).Lsh(big.NewInt(3), 128)
	res, err := MulDiv(a, big.NewInt(1_000_000), Q128)
	require.NoError(t, err)
	assert.Equal(t, "3000000", res.Int.String())
	assert.True(t, res.Exact.IsInt())
	assert.False(t, res.BelowOneUnit)
}

func TestMulDivWideIntermediate(t *testing.T) {
	// a*b is 2^256 which does not fit in 256 bits, but the quotient does.
	res, err := MulDiv(Q128, Q128, Q128)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Int.Cmp(Q128))
}

func TestMulDivOverflow(t *testing.T) {
	_, err := MulDiv(MaxUint256, big.NewInt(2), big.NewInt(1))
	require.True(t, errors.Is(err, ErrOverflow))

	tooWide := new(big.Int).Lsh(big.NewInt(1), 300)
	_, err = MulDiv(tooWide, big.NewInt(1), Q128)
	require.True(t, errors.Is(err, ErrOverflow))
}

func TestMulDivNegativeFloors(t *testing.T) {
	res, err := MulDiv(big.NewInt(-7), big.NewInt(1), big.NewInt(2))
	require.NoError(t, err)
	assert.Equal(t, "-4", res.Int.String())
	assert.Equal(t, "-7/2", res.Exact.String())

	res, err = MulDiv(big.NewInt(7), big.NewInt(1), big.NewInt(-2))
	require.NoError(t, err)
	assert.Equal(t, "-4", res.Int.String())

	res, err = MulDiv(big.NewInt(-1), big.NewInt(1), Q128)
	require.NoError(t, err)
	assert.Equal(t, "-1", res.Int.String())
	assert.False(t, res.BelowOneUnit)
}

func TestParse(t *testing.T) {
	v, err := Parse("0x100000000000000000000000000000000")
	require.NoError(t, err)
	assert.Equal(t, 0, v.Cmp(Q128))

	v, err = Parse(" 1234 ")
	require.NoError(t, err)
	assert.Equal(t, "1234", v.String())

	v, err = Parse("")
	require.NoError(t, err)
	assert.Equal(t, 0, v.Sign())

	_, err = Parse("12ab")
	require.Error(t, err)
}

func TestToUnits(t *testing.T) {
	got := ToUnits(big.NewInt(1_500_000), 6)
	assert.Equal(t, "3/2", got.String())
	assert.Equal(t, "7", ToUnits(big.NewInt(7), 0).RatString())
}
