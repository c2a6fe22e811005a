package model

import (
	"fmt"
	"strings"
)

// CheckpointKey builds the store key for a position range on a pool.
func CheckpointKey(pool string, tickLower, tickUpper int32) string {
	return fmt.Sprintf("%s:%d:%d", strings.ToLower(pool), tickLower, tickUpper)
}

// RunKey identifies a backtest run by pool, window and range.
func RunKey(pool string, start, end int64, priceLower, priceUpper float64) string {
	return fmt.Sprintf("%s:%d:%d:%g:%g", strings.ToLower(pool), start, end, priceLower, priceUpper)
}
