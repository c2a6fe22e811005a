package aggregate

import (
	"time"

	"lpbacktest/internal/backtest"
)

// Day is the daily resample of a backtest.
type Day struct {
	Date time.Time
	Rows int

	// Sums over the day.
	Fee0         float64
	Fee1         float64
	FeeValue     float64
	UnitFeeValue float64
	FeeUSD       float64
	// Mean over the day.
	ActiveRatio float64
	// First row of the day unless noted.
	PositionValue     float64
	PositionValueLast float64
	UnboundedValue    float64
	Amount0           float64
	Amount1           float64
	Close             float64

	ReturnPct    float64
	UnboundedPct float64
	Multiplier   float64
	UnboundedFee float64

	HODL          float64
	IL            float64
	FeeCumSum     float64
	PNL           float64
	HODLNorm      float64
	ILNorm        float64
	PNLNorm       float64
	FeeCumSumNorm float64
}

// Summary is the position-level outcome of a backtest.
type Summary struct {
	Start       time.Time
	End         time.Time
	Days        int
	Rows        int
	SkippedRows int

	EntryPrice float64
	Liquidity  string
	Amount0    float64
	Amount1    float64

	InitialValue float64
	FinalValue   float64

	TotalFee0     float64
	TotalFee1     float64
	TotalFeeValue float64
	TotalFeeUSD   float64
	ReturnPct     float64
	APR           float64

	UnboundedReturnPct float64
	UnboundedAPR       float64

	HODLValue       float64
	ImpermanentLoss float64
	PNL             float64
	MeanActiveRatio float64
	BelowOneUnit    int
}

// Report bundles the daily resample with the summary.
type Report struct {
	Daily   []Day
	Summary Summary
}

// Aggregate resamples series by UTC day and summarizes it.
func Aggregate(series backtest.Series) Report {
	results := series.Results
	if len(results) == 0 {
		return Report{}
	}
	value := valuerFor(series.Config.Base)
	entry0, entry1 := series.Deposit.Amount0, series.Deposit.Amount1

	var (
		days []Day
		acc  *Accumulator
	)
	for _, res := range results {
		if acc == nil || !dayOf(res.Timestamp).Equal(acc.Date) {
			if acc != nil {
				days = append(days, acc.Day(entry0, entry1, value))
			}
			acc = NewAccumulator(res)
		}
		acc.Add(res)
	}
	days = append(days, acc.Day(entry0, entry1, value))

	base := days[0].PositionValue
	cum := 0.0
	for i := range days {
		cum += days[i].FeeValue
		days[i].FeeCumSum = cum
		days[i].PNL = cum + days[i].IL
		days[i].HODLNorm = percent(days[i].HODL, base)
		days[i].ILNorm = percent(days[i].IL, base)
		days[i].PNLNorm = percent(days[i].PNL, base)
		days[i].FeeCumSumNorm = percent(cum, base)
	}

	first, last := results[0], results[len(results)-1]
	s := Summary{
		Start:        time.Unix(first.Timestamp, 0).UTC(),
		End:          time.Unix(last.Timestamp, 0).UTC(),
		Days:         len(days),
		Rows:         len(results),
		EntryPrice:   series.EntryPrice,
		Amount0:      entry0,
		Amount1:      entry1,
		InitialValue: first.PositionValue,
		FinalValue:   last.PositionValue,
	}
	if series.Deposit.Liquidity != nil {
		s.Liquidity = series.Deposit.Liquidity.String()
	}

	activeSum, unitFeeValue := 0.0, 0.0
	for _, res := range results {
		if res.Skipped {
			s.SkippedRows++
		}
		if res.FeeBelowOneUnit {
			s.BelowOneUnit++
		}
		s.TotalFee0 += res.Fee0
		s.TotalFee1 += res.Fee1
		s.TotalFeeValue += res.FeeValue
		s.TotalFeeUSD += res.FeeUSD
		unitFeeValue += res.UnitFeeValue
		activeSum += res.ActiveRatio
	}
	s.MeanActiveRatio = activeSum / float64(len(results))
	s.ReturnPct = percent(s.TotalFeeValue, s.InitialValue)
	s.APR = annualize(s.ReturnPct, s.Days)
	s.UnboundedReturnPct = percent(unitFeeValue, first.UnboundedValue)
	s.UnboundedAPR = annualize(s.UnboundedReturnPct, s.Days)
	s.HODLValue = value(entry0, entry1, last.Close)
	s.ImpermanentLoss = s.FinalValue - s.HODLValue
	s.PNL = s.TotalFeeValue + s.ImpermanentLoss

	return Report{Daily: days, Summary: s}
}
