package backtest

import (
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lpbacktest/internal/feegrowth"
	"lpbacktest/internal/fixedpoint"
	"lpbacktest/internal/liquidity"
)

func global(token0, token1 int64) feegrowth.Growth {
	// Counters in units of 2^96 keep per-row deltas well above one raw unit.
	scale := new(big.Int).Lsh(big.NewInt(1), 96)
	return feegrowth.Growth{
		Token0: new(big.Int).Mul(big.NewInt(token0), scale),
		Token1: new(big.Int).Mul(big.NewInt(token1), scale),
	}
}

func row(ts int64, high, low, closePrice float64, g feegrowth.Growth) Row {
	return Row{Timestamp: ts, High: high, Low: low, Close: closePrice, Global: g, Decimals0: 18, Decimals1: 6, Liquidity: big.NewInt(1)}
}

func testRows() []Row {
	return []Row{
		row(0, 2050, 1950, 2000, global(1_000, 2_000)),
		row(3600, 2100, 1900, 2050, global(1_600, 2_900)),
		row(7200, 2600, 2400, 2450, global(2_000, 3_500)),
		row(10800, 1400, 1300, 1350, global(1_900, 3_400)),
		row(14400, 2000, 1990, 1995, global(2_500, 4_000)),
	}
}

func testConfig() Config {
	return Config{PriceLower: 1500, PriceUpper: 2500, Capital: 10_000, Base: liquidity.BaseToken1}
}

func expectedFee(delta int64, l *big.Int, ratio *big.Rat, decimals int) *big.Rat {
	num := new(big.Int).Mul(big.NewInt(delta), new(big.Int).Lsh(big.NewInt(1), 96))
	num.Mul(num, l)
	den := new(big.Int).Mul(fixedpoint.Q128, fixedpoint.Pow10(decimals))
	out := new(big.Rat).SetFrac(num, den)
	return out.Mul(out, ratio)
}

func TestBuild(t *testing.T) {
	b, err := NewBuilder(testConfig())
	require.NoError(t, err)
	series, err := b.Build(testRows())
	require.NoError(t, err)
	require.Len(t, series.Results, 5)

	l := series.Deposit.Liquidity
	require.Equal(t, 1, l.Sign())
	assert.Equal(t, 2000.0, series.EntryPrice)
	assert.InEpsilon(t, 10_000, series.Results[0].PositionValue, 1e-9)

	first := series.Results[0]
	assert.True(t, first.GrowthDelta.IsZero())
	assert.Equal(t, 0, first.Fee0Exact.Sign())
	assert.Equal(t, 100.0, first.ActiveRatio)

	second := series.Results[1]
	assert.Equal(t, 100.0, second.ActiveRatio)
	assert.Equal(t, 0, second.Fee0Exact.Cmp(expectedFee(600, l, big.NewRat(1, 1), 18)))
	assert.Equal(t, 0, second.Fee1Exact.Cmp(expectedFee(900, l, big.NewRat(1, 1), 6)))
	assert.Greater(t, second.FeeValue, 0.0)

	third := series.Results[2]
	assert.Equal(t, 50.0, third.ActiveRatio)
	assert.Equal(t, 0, third.Fee1Exact.Cmp(expectedFee(600, l, big.NewRat(1, 2), 6)))

	// Global counters went backwards: clamped to zero.
	fourth := series.Results[3]
	assert.True(t, fourth.GrowthDelta.IsZero())
	assert.Equal(t, 0.0, fourth.ActiveRatio)
	assert.Equal(t, 0.0, fourth.Fee1)
	assert.Equal(t, 0.0, fourth.Amount1)
	assert.Greater(t, fourth.Amount0, 0.0)

	fifth := series.Results[4]
	assert.Equal(t, 0, fifth.GrowthDelta.Token0.Cmp(global(600, 600).Token0))
}

func TestBuildSkipsUnavailableRows(t *testing.T) {
	rows := testRows()
	rows[2].Unavailable = errors.New("snapshot unavailable")
	rows[2].Global = feegrowth.Growth{}

	b, err := NewBuilder(testConfig())
	require.NoError(t, err)
	series, err := b.Build(rows)
	require.NoError(t, err)

	skipped := series.Results[2]
	assert.True(t, skipped.Skipped)
	assert.Equal(t, "snapshot unavailable", skipped.Reason)
	assert.Equal(t, 0.0, skipped.Fee0)
	assert.Greater(t, skipped.PositionValue, 0.0)

	// Row 3 differences against row 1, the last usable row.
	assert.Equal(t, 0, series.Results[3].GrowthDelta.Token0.Cmp(global(300, 500).Token0))
}

func TestBuildIsIdempotent(t *testing.T) {
	b, err := NewBuilder(testConfig())
	require.NoError(t, err)
	first, err := b.Build(testRows())
	require.NoError(t, err)
	second, err := b.Build(testRows())
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestBuildRejectsBadInput(t *testing.T) {
	b, err := NewBuilder(testConfig())
	require.NoError(t, err)

	_, err = b.Build(nil)
	require.True(t, errors.Is(err, ErrEmptySeries))

	rows := testRows()
	rows[1].Timestamp = rows[0].Timestamp
	_, err = b.Build(rows)
	require.True(t, errors.Is(err, ErrUnorderedRows))

	_, err = NewBuilder(Config{PriceLower: 100, PriceUpper: 100, Capital: 1})
	require.True(t, errors.Is(err, liquidity.ErrInvalidRange))

	_, err = NewBuilder(Config{PriceLower: 0, PriceUpper: 100, Capital: 1})
	require.Error(t, err)
}

func TestBuildBaseToken0(t *testing.T) {
	cfg := testConfig()
	cfg.Base = liquidity.BaseToken0
	cfg.Capital = 5
	b, err := NewBuilder(cfg)
	require.NoError(t, err)
	series, err := b.Build(testRows())
	require.NoError(t, err)
	assert.InEpsilon(t, 5, series.Results[0].PositionValue, 1e-9)
}

func TestActiveRatio(t *testing.T) {
	cases := []struct {
		name         string
		high, low    float64
		lower, upper float64
		want         float64
	}{
		{"fully inside", 20, 10, 5, 30, 100},
		{"upper half", 20, 10, 15, 30, 50},
		{"lower quarter", 20, 10, 5, 12.5, 25},
		{"range inside period", 20, 10, 12, 14, 20},
		{"below", 10, 5, 20, 30, 0},
		{"above", 40, 35, 20, 30, 0},
		{"touching lower edge", 20, 10, 20, 30, 0},
		{"flat inside", 15, 15, 10, 20, 100},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.want, ActiveRatio(tc.high, tc.low, tc.lower, tc.upper), 1e-9)
		})
	}
}
