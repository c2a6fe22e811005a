package storage

import (
	"context"

	"lpbacktest/internal/aggregate"
	"lpbacktest/internal/backtest"
	"lpbacktest/internal/liquidity"
	"lpbacktest/internal/model"
)

// Storage defines a sink for backtest output.
type Storage interface {
	PutRows(ctx context.Context, rows []model.BacktestRow) error
	SaveRun(ctx context.Context, run model.BacktestRun) error
}

// NewRun flattens a summary into its persisted form.
func NewRun(pool string, series backtest.Series, s aggregate.Summary) model.BacktestRun {
	base := "token1"
	if series.Config.Base == liquidity.BaseToken0 {
		base = "token0"
	}
	liq := ""
	if series.Deposit.Liquidity != nil {
		liq = series.Deposit.Liquidity.String()
	}
	return model.BacktestRun{
		RunID:           model.RunKey(pool, s.Start.Unix(), s.End.Unix(), series.Config.PriceLower, series.Config.PriceUpper),
		Pool:            pool,
		PriceLower:      series.Config.PriceLower,
		PriceUpper:      series.Config.PriceUpper,
		Capital:         series.Config.Capital,
		Base:            base,
		Liquidity:       liq,
		Start:           s.Start,
		End:             s.End,
		Days:            s.Days,
		Rows:            s.Rows,
		SkippedRows:     s.SkippedRows,
		TotalFee0:       s.TotalFee0,
		TotalFee1:       s.TotalFee1,
		TotalFeeValue:   s.TotalFeeValue,
		TotalFeeUSD:     s.TotalFeeUSD,
		ReturnPct:       s.ReturnPct,
		APR:             s.APR,
		UnboundedAPR:    s.UnboundedAPR,
		ImpermanentLoss: s.ImpermanentLoss,
		PNL:             s.PNL,
	}
}

// NewRows flattens backtest results. Fees keep the token's full precision.
func NewRows(runID string, results []backtest.Result) []model.BacktestRow {
	rows := make([]model.BacktestRow, 0, len(results))
	for _, r := range results {
		row := model.BacktestRow{
			RunID:         runID,
			Timestamp:     r.Timestamp,
			Block:         r.Block,
			Close:         r.Close,
			ActiveRatio:   r.ActiveRatio,
			Fee0:          "0",
			Fee1:          "0",
			FeeValue:      r.FeeValue,
			FeeUSD:        r.FeeUSD,
			PositionValue: r.PositionValue,
			Skipped:       r.Skipped,
			Reason:        r.Reason,
		}
		if r.Fee0Exact != nil {
			row.Fee0 = r.Fee0Exact.FloatString(r.Decimals0)
		}
		if r.Fee1Exact != nil {
			row.Fee1 = r.Fee1Exact.FloatString(r.Decimals1)
		}
		rows = append(rows, row)
	}
	return rows
}
