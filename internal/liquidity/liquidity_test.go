package liquidity

import (
	"errors"
	"math"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	dec0 = 18
	dec1 = 6
)

func relDiff(a, b *big.Int) float64 {
	diff := new(big.Float).SetInt(new(big.Int).Sub(a, b))
	rel, _ := diff.Quo(diff.Abs(diff), new(big.Float).SetInt(b)).Float64()
	return rel
}

func TestLiquidityRoundTrip(t *testing.T) {
	liquidity := big.NewInt(1_000_000_000_000_000)
	cases := []struct {
		name      string
		price     float64
		wantZero0 bool
		wantZero1 bool
	}{
		{"below range", 1000, false, true},
		{"inside range", 2000, false, false},
		{"above range", 3000, true, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			amounts, err := AmountsForLiquidity(tc.price, 1500, 2500, liquidity, dec0, dec1)
			require.NoError(t, err)
			assert.Equal(t, tc.wantZero0, amounts.Amount0 == 0)
			assert.Equal(t, tc.wantZero1, amounts.Amount1 == 0)

			back, err := LiquidityForAmounts(tc.price, 1500, 2500, amounts.Amount0, amounts.Amount1, dec0, dec1)
			require.NoError(t, err)
			assert.Less(t, relDiff(back, liquidity), 1e-9)

			again, err := AmountsForLiquidity(tc.price, 1500, 2500, back, dec0, dec1)
			require.NoError(t, err)
			if !tc.wantZero0 {
				assert.InEpsilon(t, amounts.Amount0, again.Amount0, 1e-9)
			}
			if !tc.wantZero1 {
				assert.InEpsilon(t, amounts.Amount1, again.Amount1, 1e-9)
			}
		})
	}
}

func TestAmountsForLiquidityMagnitude(t *testing.T) {
	amounts, err := AmountsForLiquidity(2000, 1500, 2500, big.NewInt(1_000_000_000_000_000), dec0, dec1)
	require.NoError(t, err)
	// L*(1/sqrt(P) - 1/sqrt(Pb)) and L*(sqrt(P) - sqrt(Pa)) in adjusted units.
	want0 := 1e15 * (1/math.Sqrt(2000e-12) - 1/math.Sqrt(2500e-12)) / 1e18
	want1 := 1e15 * (math.Sqrt(2000e-12) - math.Sqrt(1500e-12)) / 1e6
	assert.InEpsilon(t, want0, amounts.Amount0, 1e-9)
	assert.InEpsilon(t, want1, amounts.Amount1, 1e-9)
}

func TestBoundsAreNormalized(t *testing.T) {
	liquidity := big.NewInt(5_000_000_000_000)
	straight, err := AmountsForLiquidity(2000, 1500, 2500, liquidity, dec0, dec1)
	require.NoError(t, err)
	inverted, err := AmountsForLiquidity(2000, 2500, 1500, liquidity, dec0, dec1)
	require.NoError(t, err)
	assert.Equal(t, straight.Raw0.String(), inverted.Raw0.String())
	assert.Equal(t, straight.Raw1.String(), inverted.Raw1.String())
}

func TestEmptyRange(t *testing.T) {
	_, err := AmountsForLiquidity(2000, 1500, 1500, big.NewInt(1), dec0, dec1)
	require.True(t, errors.Is(err, ErrInvalidRange))

	_, err = LiquidityForAmounts(2000, 0, 2500, 1, 1, dec0, dec1)
	require.Error(t, err)
}

func TestLiquidityForAmountsTakesMinimum(t *testing.T) {
	liquidity := big.NewInt(1_000_000_000_000_000)
	amounts, err := AmountsForLiquidity(2000, 1500, 2500, liquidity, dec0, dec1)
	require.NoError(t, err)

	extra0, err := LiquidityForAmounts(2000, 1500, 2500, amounts.Amount0*2, amounts.Amount1, dec0, dec1)
	require.NoError(t, err)
	assert.Less(t, relDiff(extra0, liquidity), 1e-9)

	extra1, err := LiquidityForAmounts(2000, 1500, 2500, amounts.Amount0, amounts.Amount1*3, dec0, dec1)
	require.NoError(t, err)
	assert.Less(t, relDiff(extra1, liquidity), 1e-9)

	_, err = LiquidityForAmounts(2000, 1500, 2500, -1, 0, dec0, dec1)
	require.True(t, errors.Is(err, ErrInvalidAmount))
}

func TestLiquidityFromRawAmounts(t *testing.T) {
	// Current price at tick 0, range [-1000, 1000].
	l := 1e18
	edge := math.Pow(1.0001, -500)
	x, _ := big.NewFloat(l * (1 - edge)).Int(nil)
	y, _ := big.NewFloat(l * (1 - edge)).Int(nil)

	got, err := LiquidityFromRawAmounts(x, y, -1000, 1000)
	require.NoError(t, err)
	want, _ := big.NewFloat(l).Int(nil)
	assert.Less(t, relDiff(got, want), 1e-6)
}

func TestLiquidityFromRawAmountsErrors(t *testing.T) {
	_, err := LiquidityFromRawAmounts(big.NewInt(1), big.NewInt(1), 1000, 1000)
	require.True(t, errors.Is(err, ErrInvalidRange))

	neg, _ := new(big.Int).SetString("-1000000000000000000", 10)
	pos, _ := new(big.Int).SetString("1000000000000000000", 10)
	_, err = LiquidityFromRawAmounts(neg, pos, -1000, 1000)
	require.True(t, errors.Is(err, ErrNoRealRoot))
}

func TestPlan(t *testing.T) {
	cases := []struct {
		name    string
		capital float64
		price   float64
		base    Base
		value   float64
	}{
		{"inside token1 capital", 10_000, 2000, BaseToken1, 10_000},
		{"below range", 10_000, 1000, BaseToken1, 10_000},
		{"above range", 10_000, 3000, BaseToken1, 10_000},
		{"token0 capital", 5, 2000, BaseToken0, 10_000},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			dep, err := Plan(tc.capital, tc.price, 1500, 2500, dec0, dec1, tc.base)
			require.NoError(t, err)
			assert.InEpsilon(t, tc.value, dep.Amount0*tc.price+dep.Amount1, 1e-9)
			require.Equal(t, 1, dep.Liquidity.Sign())

			held, err := AmountsForLiquidity(tc.price, 1500, 2500, dep.Liquidity, dec0, dec1)
			require.NoError(t, err)
			assert.InDelta(t, tc.value, held.Amount0*tc.price+held.Amount1, tc.value*1e-9)
		})
	}
}

func TestPlanZeroCapital(t *testing.T) {
	dep, err := Plan(0, 2000, 1500, 2500, dec0, dec1, BaseToken1)
	require.NoError(t, err)
	assert.Equal(t, 0, dep.Liquidity.Sign())

	_, err = Plan(-1, 2000, 1500, 2500, dec0, dec1, BaseToken1)
	require.True(t, errors.Is(err, ErrInvalidAmount))
}
