package model

import "time"

// BacktestRun is the persisted summary of one backtest.
type BacktestRun struct {
	RunID           string    `json:"run_id"`
	Pool            string    `json:"pool"`
	PriceLower      float64   `json:"price_lower"`
	PriceUpper      float64   `json:"price_upper"`
	Capital         float64   `json:"capital"`
	Base            string    `json:"base"`
	Liquidity       string    `json:"liquidity"`
	Start           time.Time `json:"start"`
	End             time.Time `json:"end"`
	Days            int       `json:"days"`
	Rows            int       `json:"rows"`
	SkippedRows     int       `json:"skipped_rows"`
	TotalFee0       float64   `json:"total_fee0"`
	TotalFee1       float64   `json:"total_fee1"`
	TotalFeeValue   float64   `json:"total_fee_value"`
	TotalFeeUSD     float64   `json:"total_fee_usd"`
	ReturnPct       float64   `json:"return_pct"`
	APR             float64   `json:"apr"`
	UnboundedAPR    float64   `json:"unbounded_apr"`
	ImpermanentLoss float64   `json:"impermanent_loss"`
	PNL             float64   `json:"pnl"`
}

// BacktestRow is one persisted row of a backtest.
type BacktestRow struct {
	RunID         string  `json:"run_id"`
	Timestamp     int64   `json:"timestamp"`
	Block         uint64  `json:"block"`
	Close         float64 `json:"close"`
	ActiveRatio   float64 `json:"active_ratio"`
	Fee0          string  `json:"fee0"`
	Fee1          string  `json:"fee1"`
	FeeValue      float64 `json:"fee_value"`
	FeeUSD        float64 `json:"fee_usd"`
	PositionValue float64 `json:"position_value"`
	Skipped       bool    `json:"skipped"`
	Reason        string  `json:"reason,omitempty"`
}
