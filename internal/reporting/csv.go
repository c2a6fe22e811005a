package reporting

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"lpbacktest/internal/aggregate"
	"lpbacktest/internal/backtest"
)

// Separator is the CSV field separator used by every report.
const Separator = ';'

var rowHeader = []string{
	"timestamp", "time", "block", "close", "high", "low", "liquidity",
	"active_ratio", "amount0", "amount1", "amount0_unbounded", "amount1_unbounded",
	"fee_growth_delta0_x128", "fee_growth_delta1_x128",
	"fee0", "fee1", "fee_below_one_unit", "unit_fee0", "unit_fee1",
	"position_value", "unbounded_value", "fee_value", "unit_fee_value", "fee_usd",
	"skipped", "reason",
}

// WriteRows writes one line per backtest row.
func WriteRows(w io.Writer, results []backtest.Result) error {
	cw := newWriter(w)
	if err := cw.Write(rowHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, r := range results {
		liq := ""
		if r.Liquidity != nil {
			liq = r.Liquidity.String()
		}
		delta0, delta1 := "0", "0"
		if r.GrowthDelta.Token0 != nil {
			delta0 = r.GrowthDelta.Token0.String()
		}
		if r.GrowthDelta.Token1 != nil {
			delta1 = r.GrowthDelta.Token1.String()
		}
		record := []string{
			strconv.FormatInt(r.Timestamp, 10),
			formatTime(r.Timestamp),
			strconv.FormatUint(r.Block, 10),
			formatFloat(r.Close),
			formatFloat(r.High),
			formatFloat(r.Low),
			liq,
			formatFloat(r.ActiveRatio),
			formatFloat(r.Amount0),
			formatFloat(r.Amount1),
			formatFloat(r.Amount0Unbounded),
			formatFloat(r.Amount1Unbounded),
			delta0,
			delta1,
			formatExact(r.Fee0Exact, r.Decimals0),
			formatExact(r.Fee1Exact, r.Decimals1),
			strconv.FormatBool(r.FeeBelowOneUnit),
			formatFloat(r.UnitFee0),
			formatFloat(r.UnitFee1),
			formatFloat(r.PositionValue),
			formatFloat(r.UnboundedValue),
			formatFloat(r.FeeValue),
			formatFloat(r.UnitFeeValue),
			formatFloat(r.FeeUSD),
			strconv.FormatBool(r.Skipped),
			r.Reason,
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write row %d: %w", r.Timestamp, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

var dailyHeader = []string{
	"date", "rows", "fee0", "fee1", "fee_value", "unit_fee_value", "fee_usd", "active_ratio",
	"position_value", "position_value_last", "unbounded_value", "amount0", "amount1", "close",
	"return_pct", "unbounded_pct", "multiplier", "unbounded_fee",
	"hodl", "il", "fee_cumsum", "pnl", "hodl_norm", "il_norm", "pnl_norm", "fee_cumsum_norm",
}

// WriteDaily writes one line per UTC day.
func WriteDaily(w io.Writer, days []aggregate.Day) error {
	cw := newWriter(w)
	if err := cw.Write(dailyHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, d := range days {
		record := []string{
			formatDate(d.Date),
			strconv.Itoa(d.Rows),
			formatFloat(d.Fee0),
			formatFloat(d.Fee1),
			formatFloat(d.FeeValue),
			formatFloat(d.UnitFeeValue),
			formatFloat(d.FeeUSD),
			formatFloat(d.ActiveRatio),
			formatFloat(d.PositionValue),
			formatFloat(d.PositionValueLast),
			formatFloat(d.UnboundedValue),
			formatFloat(d.Amount0),
			formatFloat(d.Amount1),
			formatFloat(d.Close),
			formatFloat(d.ReturnPct),
			formatFloat(d.UnboundedPct),
			formatFloat(d.Multiplier),
			formatFloat(d.UnboundedFee),
			formatFloat(d.HODL),
			formatFloat(d.IL),
			formatFloat(d.FeeCumSum),
			formatFloat(d.PNL),
			formatFloat(d.HODLNorm),
			formatFloat(d.ILNorm),
			formatFloat(d.PNLNorm),
			formatFloat(d.FeeCumSumNorm),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write day %s: %w", formatDate(d.Date), err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteSummary writes the summary as metric;value lines.
func WriteSummary(w io.Writer, s aggregate.Summary) error {
	cw := newWriter(w)
	for _, kv := range summaryFields(s) {
		if err := cw.Write([]string{kv[0], kv[1]}); err != nil {
			return fmt.Errorf("write summary: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func summaryFields(s aggregate.Summary) [][2]string {
	return [][2]string{
		{"start", s.Start.UTC().Format("2006-01-02T15:04:05Z07:00")},
		{"end", s.End.UTC().Format("2006-01-02T15:04:05Z07:00")},
		{"days", strconv.Itoa(s.Days)},
		{"rows", strconv.Itoa(s.Rows)},
		{"skipped_rows", strconv.Itoa(s.SkippedRows)},
		{"entry_price", formatFloat(s.EntryPrice)},
		{"liquidity", s.Liquidity},
		{"amount0", formatFloat(s.Amount0)},
		{"amount1", formatFloat(s.Amount1)},
		{"initial_value", formatFloat(s.InitialValue)},
		{"final_value", formatFloat(s.FinalValue)},
		{"total_fee0", formatFloat(s.TotalFee0)},
		{"total_fee1", formatFloat(s.TotalFee1)},
		{"total_fee_value", formatFloat(s.TotalFeeValue)},
		{"total_fee_usd", formatFloat(s.TotalFeeUSD)},
		{"return_pct", formatFloat(s.ReturnPct)},
		{"apr_pct", formatFloat(s.APR)},
		{"unbounded_return_pct", formatFloat(s.UnboundedReturnPct)},
		{"unbounded_apr_pct", formatFloat(s.UnboundedAPR)},
		{"hodl_value", formatFloat(s.HODLValue)},
		{"impermanent_loss", formatFloat(s.ImpermanentLoss)},
		{"pnl", formatFloat(s.PNL)},
		{"mean_active_ratio", formatFloat(s.MeanActiveRatio)},
		{"below_one_unit_rows", strconv.Itoa(s.BelowOneUnit)},
	}
}

func newWriter(w io.Writer) *csv.Writer {
	cw := csv.NewWriter(w)
	cw.Comma = Separator
	return cw
}
