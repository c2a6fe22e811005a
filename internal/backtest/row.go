package backtest

import (
	"math/big"

	"lpbacktest/internal/feegrowth"
)

// Row is one period of pool history. Prices are token1 per token0.
type Row struct {
	Timestamp int64
	High      float64
	Low       float64
	Close     float64
	// Liquidity is the pool's active liquidity for the period.
	Liquidity *big.Int
	Global    feegrowth.Growth
	Decimals0 int
	Decimals1 int
	Block     uint64
	// Pool reserves, used to price fees in USD.
	TVLUSD float64
	TVL0   float64
	TVL1   float64
	// Unavailable is set when the period's fee growth could not be read.
	Unavailable error
}

// Result is a Row with the position's derived columns.
type Result struct {
	Row

	// ActiveRatio is the percentage of the period's price range that
	// overlaps the position range.
	ActiveRatio float64
	Amount0     float64
	Amount1     float64
	// Unbounded amounts are held by one unit of full-range liquidity.
	Amount0Unbounded float64
	Amount1Unbounded float64

	// GrowthDelta is the clamped change of the global counters since the
	// last usable row.
	GrowthDelta feegrowth.Growth
	// Fee0 and Fee1 are in token units, scaled by ActiveRatio.
	Fee0      float64
	Fee1      float64
	Fee0Exact *big.Rat
	Fee1Exact *big.Rat
	// FeeBelowOneUnit is set when a fee rounds to zero raw units before scaling.
	FeeBelowOneUnit bool
	// UnitFee0 and UnitFee1 are the fees earned by one unit of liquidity.
	UnitFee0 float64
	UnitFee1 float64

	// Values are denominated in the capital token.
	PositionValue  float64
	UnboundedValue float64
	FeeValue       float64
	UnitFeeValue   float64
	// FeeUSD is zero when the entry row carries no reserves.
	FeeUSD float64

	Skipped bool
	Reason  string
}
