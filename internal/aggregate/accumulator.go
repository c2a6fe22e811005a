package aggregate

import (
	"time"

	"lpbacktest/internal/backtest"
)

// Accumulator collects the rows of one UTC day.
type Accumulator struct {
	Date time.Time
	Rows int

	Fee0         float64
	Fee1         float64
	FeeValue     float64
	UnitFeeValue float64
	FeeUSD       float64
	activeSum    float64

	first backtest.Result
	last  backtest.Result
}

func NewAccumulator(first backtest.Result) *Accumulator {
	return &Accumulator{Date: dayOf(first.Timestamp), first: first}
}

// Add folds a row into the day. Skipped rows contribute zero fees.
func (a *Accumulator) Add(res backtest.Result) {
	a.Rows++
	a.Fee0 += res.Fee0
	a.Fee1 += res.Fee1
	a.FeeValue += res.FeeValue
	a.UnitFeeValue += res.UnitFeeValue
	a.FeeUSD += res.FeeUSD
	a.activeSum += res.ActiveRatio
	a.last = res
}

// Day closes the window against the position's entry amounts.
func (a *Accumulator) Day(entry0, entry1 float64, base valuer) Day {
	d := Day{
		Date:              a.Date,
		Rows:              a.Rows,
		Fee0:              a.Fee0,
		Fee1:              a.Fee1,
		FeeValue:          a.FeeValue,
		UnitFeeValue:      a.UnitFeeValue,
		FeeUSD:            a.FeeUSD,
		PositionValue:     a.first.PositionValue,
		PositionValueLast: a.last.PositionValue,
		UnboundedValue:    a.first.UnboundedValue,
		Amount0:           a.first.Amount0,
		Amount1:           a.first.Amount1,
		Close:             a.first.Close,
	}
	if a.Rows > 0 {
		d.ActiveRatio = a.activeSum / float64(a.Rows)
	}
	d.ReturnPct = percent(d.FeeValue, d.PositionValue)
	d.UnboundedPct = percent(d.UnitFeeValue, d.UnboundedValue)
	if d.UnboundedPct != 0 {
		d.Multiplier = d.ReturnPct / d.UnboundedPct
	}
	d.UnboundedFee = d.PositionValue * d.UnboundedPct / 100
	d.HODL = base(entry0, entry1, d.Close)
	d.IL = d.PositionValueLast - d.HODL
	return d
}

func dayOf(ts int64) time.Time {
	return time.Unix(ts, 0).UTC().Truncate(24 * time.Hour)
}
