package backtest

import (
	"errors"
	"fmt"
	"math"
	"math/big"

	"lpbacktest/internal/feegrowth"
	"lpbacktest/internal/fixedpoint"
	"lpbacktest/internal/liquidity"
	"lpbacktest/internal/tickmath"
)

var (
	ErrUnorderedRows = errors.New("rows are not in strictly increasing timestamp order")
	ErrEmptySeries   = errors.New("empty series")
)

// Config describes the simulated position.
type Config struct {
	// PriceLower and PriceUpper bound the range in token1 per token0.
	PriceLower float64
	PriceUpper float64
	// Capital is the amount deposited at the first row's close,
	// denominated per Base.
	Capital float64
	Base    liquidity.Base
}

// Series is the derived output of a backtest.
type Series struct {
	Config     Config
	EntryPrice float64
	Deposit    liquidity.Deposit
	Results    []Result
}

type Builder struct {
	cfg Config
}

func NewBuilder(cfg Config) (*Builder, error) {
	if !(cfg.PriceLower > 0) || !(cfg.PriceUpper > 0) {
		return nil, fmt.Errorf("%w: bounds %v %v", liquidity.ErrInvalidRange, cfg.PriceLower, cfg.PriceUpper)
	}
	if cfg.PriceLower > cfg.PriceUpper {
		cfg.PriceLower, cfg.PriceUpper = cfg.PriceUpper, cfg.PriceLower
	}
	if cfg.PriceLower == cfg.PriceUpper {
		return nil, fmt.Errorf("%w: empty range at %v", liquidity.ErrInvalidRange, cfg.PriceLower)
	}
	return &Builder{cfg: cfg}, nil
}

// Build sizes the position at the first row and derives every row in order.
// Rows whose fee growth is unavailable are kept with Skipped set; the next
// usable row is differenced against the last usable one.
func (b *Builder) Build(rows []Row) (Series, error) {
	if len(rows) == 0 {
		return Series{}, ErrEmptySeries
	}
	for i := 1; i < len(rows); i++ {
		if rows[i].Timestamp <= rows[i-1].Timestamp {
			return Series{}, fmt.Errorf("%w: row %d at %d follows %d", ErrUnorderedRows, i, rows[i].Timestamp, rows[i-1].Timestamp)
		}
	}

	entry := rows[0]
	deposit, err := liquidity.Plan(b.cfg.Capital, entry.Close, b.cfg.PriceLower, b.cfg.PriceUpper, entry.Decimals0, entry.Decimals1, b.cfg.Base)
	if err != nil {
		return Series{}, fmt.Errorf("size position: %w", err)
	}

	// Converts a value in the capital token to USD at the entry row's reserves.
	usdPerUnit := 0.0
	if reserves := b.value(entry.TVL0, entry.TVL1, entry.Close); entry.TVLUSD > 0 && reserves > 0 {
		usdPerUnit = entry.TVLUSD / reserves
	}

	series := Series{Config: b.cfg, EntryPrice: entry.Close, Deposit: deposit, Results: make([]Result, 0, len(rows))}
	var last *feegrowth.Growth
	for _, row := range rows {
		res, err := b.derive(row, deposit.Liquidity, last, usdPerUnit)
		if err != nil {
			return Series{}, fmt.Errorf("row %d: %w", row.Timestamp, err)
		}
		if !res.Skipped {
			g := feegrowth.NewGrowth(row.Global.Token0, row.Global.Token1)
			last = &g
		}
		series.Results = append(series.Results, res)
	}
	return series, nil
}

func (b *Builder) derive(row Row, l *big.Int, last *feegrowth.Growth, usdPerUnit float64) (Result, error) {
	res := Result{
		Row:         row,
		ActiveRatio: ActiveRatio(row.High, row.Low, b.cfg.PriceLower, b.cfg.PriceUpper),
		GrowthDelta: feegrowth.ZeroGrowth(),
		Fee0Exact:   new(big.Rat),
		Fee1Exact:   new(big.Rat),
	}

	held, err := liquidity.AmountsForLiquidity(row.Close, b.cfg.PriceLower, b.cfg.PriceUpper, l, row.Decimals0, row.Decimals1)
	if err != nil {
		return Result{}, err
	}
	res.Amount0, res.Amount1 = held.Amount0, held.Amount1

	unit, err := liquidity.AmountsAtTicks(row.Close, tickmath.MinUsableTick, tickmath.MaxUsableTick, big.NewInt(1), row.Decimals0, row.Decimals1)
	if err != nil {
		return Result{}, err
	}
	res.Amount0Unbounded, res.Amount1Unbounded = unit.Amount0, unit.Amount1

	res.PositionValue = b.value(res.Amount0, res.Amount1, row.Close)
	res.UnboundedValue = b.value(res.Amount0Unbounded, res.Amount1Unbounded, row.Close)

	if row.Unavailable != nil {
		res.Skipped = true
		res.Reason = row.Unavailable.Error()
		return res, nil
	}
	if last != nil {
		res.GrowthDelta = row.Global.Sub(*last).ClampNonNegative()
	}

	ratio := new(big.Rat).SetFloat64(res.ActiveRatio / 100)
	res.Fee0Exact, res.FeeBelowOneUnit, err = scaledFee(res.GrowthDelta.Token0, l, ratio, row.Decimals0)
	if err != nil {
		return Result{}, err
	}
	var below1 bool
	res.Fee1Exact, below1, err = scaledFee(res.GrowthDelta.Token1, l, ratio, row.Decimals1)
	if err != nil {
		return Result{}, err
	}
	res.FeeBelowOneUnit = res.FeeBelowOneUnit || below1
	res.Fee0, _ = res.Fee0Exact.Float64()
	res.Fee1, _ = res.Fee1Exact.Float64()

	res.UnitFee0 = unitFee(res.GrowthDelta.Token0, row.Decimals0)
	res.UnitFee1 = unitFee(res.GrowthDelta.Token1, row.Decimals1)
	res.FeeValue = b.value(res.Fee0, res.Fee1, row.Close)
	res.UnitFeeValue = b.value(res.UnitFee0, res.UnitFee1, row.Close)
	res.FeeUSD = res.FeeValue * usdPerUnit
	return res, nil
}

// value prices a pair of token amounts in the capital token.
func (b *Builder) value(amount0, amount1, price float64) float64 {
	if b.cfg.Base == liquidity.BaseToken0 {
		return amount0 + amount1/price
	}
	return amount0*price + amount1
}

func scaledFee(delta, l *big.Int, ratio *big.Rat, decimals int) (*big.Rat, bool, error) {
	if l == nil || l.Sign() == 0 {
		return new(big.Rat), false, nil
	}
	owed, err := fixedpoint.MulDiv(delta, l, fixedpoint.Q128)
	if err != nil {
		return nil, false, err
	}
	fee := new(big.Rat).Mul(owed.Exact, ratio)
	return fee.Quo(fee, new(big.Rat).SetInt(fixedpoint.Pow10(decimals))), owed.BelowOneUnit, nil
}

func unitFee(delta *big.Int, decimals int) float64 {
	r := new(big.Rat).SetFrac(delta, fixedpoint.Q128)
	r.Quo(r, new(big.Rat).SetInt(fixedpoint.Pow10(decimals)))
	f, _ := r.Float64()
	return f
}

// ActiveRatio is the overlap of [low, high] with [lower, upper] as a
// percentage of the period's range. A period without range counts as fully
// active when its price lies inside the position.
func ActiveRatio(high, low, lower, upper float64) float64 {
	if !(high > lower && low < upper) {
		return 0
	}
	width := high - low
	if width <= 0 {
		return 100
	}
	overlap := math.Min(upper, high) - math.Max(low, lower)
	return overlap / width * 100
}
