package model

// PoolHour is one hourly candle of pool history as served by the subgraph.
// Prices are token0 per token1.
type PoolHour struct {
	PeriodStartUnix int64     `json:"period_start_unix"`
	High            string    `json:"high"`
	Low             string    `json:"low"`
	Close           string    `json:"close"`
	Liquidity       string    `json:"liquidity"`
	TVLUSD          string    `json:"tvl_usd"`
	FeesUSD         string    `json:"fees_usd"`
	TVL0            string    `json:"tvl_token0"`
	TVL1            string    `json:"tvl_token1"`
	Token0          TokenMeta `json:"token0"`
	Token1          TokenMeta `json:"token1"`
}
