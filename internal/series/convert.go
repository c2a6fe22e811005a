package series

import (
	"fmt"
	"math/big"
	"strconv"

	"lpbacktest/internal/backtest"
	"lpbacktest/internal/model"
)

// Rows converts subgraph candles into backtest rows. Candle prices are
// token0 per token1 and are inverted so rows quote token1 per token0; high and
// low swap under the inversion.
func Rows(hours []model.PoolHour) ([]backtest.Row, error) {
	rows := make([]backtest.Row, 0, len(hours))
	for _, h := range hours {
		row, err := toRow(h)
		if err != nil {
			return nil, fmt.Errorf("candle %d: %w", h.PeriodStartUnix, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func toRow(h model.PoolHour) (backtest.Row, error) {
	closePrice, err := invert(h.Close)
	if err != nil {
		return backtest.Row{}, fmt.Errorf("close: %w", err)
	}
	// The inverse of the lowest token0 price is the highest token1 price.
	high, err := invert(h.Low)
	if err != nil {
		return backtest.Row{}, fmt.Errorf("low: %w", err)
	}
	low, err := invert(h.High)
	if err != nil {
		return backtest.Row{}, fmt.Errorf("high: %w", err)
	}

	liq := new(big.Int)
	if h.Liquidity != "" {
		if _, ok := liq.SetString(h.Liquidity, 10); !ok {
			return backtest.Row{}, fmt.Errorf("liquidity %q", h.Liquidity)
		}
	}

	return backtest.Row{
		Timestamp: h.PeriodStartUnix,
		High:      high,
		Low:       low,
		Close:     closePrice,
		Liquidity: liq,
		Decimals0: int(h.Token0.Decimals),
		Decimals1: int(h.Token1.Decimals),
		TVLUSD:    parseOptional(h.TVLUSD),
		TVL0:      parseOptional(h.TVL0),
		TVL1:      parseOptional(h.TVL1),
	}, nil
}

func invert(s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if v <= 0 {
		return 0, fmt.Errorf("non-positive price %q", s)
	}
	return 1 / v, nil
}

func parseOptional(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}
