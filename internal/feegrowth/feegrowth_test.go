package feegrowth

import (
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lpbacktest/internal/fixedpoint"
)

func g(a, b int64) Growth {
	return Growth{Token0: big.NewInt(a), Token1: big.NewInt(b)}
}

func TestFeeGrowthInsideExample(t *testing.T) {
	got, err := FeeGrowthInside(-1000, 1000, 0, g(1_000_000, 2_000_000), g(50_000, 100_000), g(30_000, 60_000))
	require.NoError(t, err)
	assert.True(t, got.Equal(g(920_000, 1_840_000)), "got %s", got)
}

func TestFeeGrowthInsideRegimes(t *testing.T) {
	global := g(1_000_000, 2_000_000)
	lower := g(50_000, 100_000)
	upper := g(30_000, 60_000)

	cases := []struct {
		name    string
		current int32
		want    Growth
	}{
		// upper - lower, taken directly.
		{"below range", -1001, g(-20_000, -40_000)},
		{"at lower tick", -1000, g(920_000, 1_840_000)},
		// global - lower - (global - upper)
		{"at upper tick", 1000, g(-20_000, -40_000)},
		{"above range", 5000, g(-20_000, -40_000)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := FeeGrowthInside(-1000, 1000, tc.current, global, lower, upper)
			require.NoError(t, err)
			assert.True(t, got.Equal(tc.want), "got %s want %s", got, tc.want)
		})
	}
}

func TestFeeGrowthInsideBelowRangeIgnoresGlobal(t *testing.T) {
	a, err := FeeGrowthInside(100, 200, 50, g(1, 1), g(700, 900), g(1000, 1000))
	require.NoError(t, err)
	b, err := FeeGrowthInside(100, 200, 50, g(99_999, 99_999), g(700, 900), g(1000, 1000))
	require.NoError(t, err)
	assert.True(t, a.Equal(b))
	assert.True(t, a.Equal(g(300, 100)))
}

func TestFeeGrowthInsideInvalidRange(t *testing.T) {
	_, err := FeeGrowthInside(60, 60, 0, g(0, 0), g(0, 0), g(0, 0))
	require.True(t, errors.Is(err, ErrInvalidRange))
	_, err = FeeGrowthInside(120, 60, 0, g(0, 0), g(0, 0), g(0, 0))
	require.True(t, errors.Is(err, ErrInvalidRange))
}

func TestFeeGrowthInsideSuperposition(t *testing.T) {
	global := g(5_000_000, 7_000_000)
	lowerA, upperA := g(400_000, 300_000), g(120_000, 900_000)
	lowerB, upperB := g(100_000, 250_000), g(20_000, 100_000)

	for _, current := range []int32{-2000, -600, 0, 600, 2000} {
		a, err := FeeGrowthInside(-600, 600, current, global, lowerA, upperA)
		require.NoError(t, err)
		b, err := FeeGrowthInside(-600, 600, current, global, lowerB, upperB)
		require.NoError(t, err)
		offset, err := FeeGrowthInside(-600, 600, current, ZeroGrowth(), lowerA.Sub(lowerB), upperA.Sub(upperB))
		require.NoError(t, err)
		assert.True(t, a.Sub(b).Equal(offset), "current %d: %s vs %s", current, a.Sub(b), offset)
	}
}

func TestAccrueExample(t *testing.T) {
	last := g(920_000, 1_840_000)
	now := g(2_000_000, 3_000_000)
	owed, err := Accrue(big.NewInt(1_000_000), now, last)
	require.NoError(t, err)

	assert.Equal(t, 0, owed.Token0.Int.Sign())
	assert.Equal(t, 0, owed.Token1.Int.Sign())
	assert.True(t, owed.Token0.BelowOneUnit)
	assert.True(t, owed.Token1.BelowOneUnit)
	assert.True(t, owed.BelowOneUnit())

	want0 := new(big.Rat).SetFrac(big.NewInt(1_080_000*1_000_000), fixedpoint.Q128)
	want1 := new(big.Rat).SetFrac(big.NewInt(1_160_000*1_000_000), fixedpoint.Q128)
	assert.Equal(t, 0, owed.Token0.Exact.Cmp(want0))
	assert.Equal(t, 0, owed.Token1.Exact.Cmp(want1))
	assert.InDelta(t, 3.17e-27, owed.Token0.Float64(), 0.01e-27)
}

func TestAccrueWholeUnits(t *testing.T) {
	now := Growth{Token0: new(big.Int).Mul(big.NewInt(3), fixedpoint.Q128), Token1: new(big.Int)}
	owed, err := Accrue(big.NewInt(10), now, ZeroGrowth())
	require.NoError(t, err)
	assert.Equal(t, "30", owed.Token0.Int.String())
	assert.False(t, owed.Token0.BelowOneUnit)
	assert.False(t, owed.Token1.BelowOneUnit)
}

func TestAccrueZeroLiquidity(t *testing.T) {
	for _, l := range []*big.Int{nil, big.NewInt(0), big.NewInt(-5)} {
		_, err := Accrue(l, g(1, 1), g(0, 0))
		require.True(t, errors.Is(err, ErrZeroLiquidity))
	}
}

func TestClampNonNegative(t *testing.T) {
	got := g(-5, 7).ClampNonNegative()
	assert.True(t, got.Equal(g(0, 7)))
}

func TestPositionCollectAdvancesCheckpoint(t *testing.T) {
	step := new(big.Int).Mul(big.NewInt(2), fixedpoint.Q128)
	pos, err := NewPosition(-60, 60, big.NewInt(5), ZeroGrowth())
	require.NoError(t, err)

	now := Growth{Token0: step, Token1: new(big.Int)}
	owed, err := pos.Owed(now)
	require.NoError(t, err)
	assert.Equal(t, "10", owed.Token0.Int.String())
	assert.True(t, pos.Checkpoint.IsZero())

	owed, err = pos.Collect(now)
	require.NoError(t, err)
	assert.Equal(t, "10", owed.Token0.Int.String())
	assert.True(t, pos.Checkpoint.Equal(now))

	owed, err = pos.Owed(now)
	require.NoError(t, err)
	assert.Equal(t, 0, owed.Token0.Int.Sign())
	assert.False(t, owed.BelowOneUnit())
}

func TestNewPositionValidates(t *testing.T) {
	_, err := NewPosition(60, -60, big.NewInt(1), ZeroGrowth())
	require.True(t, errors.Is(err, ErrInvalidRange))
	_, err = NewPosition(-60, 60, big.NewInt(0), ZeroGrowth())
	require.True(t, errors.Is(err, ErrZeroLiquidity))
}
