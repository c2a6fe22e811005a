package reporting

import (
	"math/big"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// formatTokenAmount renders a raw token amount in whole-token units.
func formatTokenAmount(value *big.Int, decimals int) string {
	if value == nil {
		return "0"
	}
	return decimal.NewFromBigInt(value, -int32(decimals)).String()
}

// formatExact renders an exact amount with at most decimals fractional digits,
// trailing zeros trimmed.
func formatExact(value *big.Rat, decimals int) string {
	if value == nil {
		return "0"
	}
	d, err := decimal.NewFromString(value.FloatString(decimals))
	if err != nil {
		return value.FloatString(decimals)
	}
	return d.String()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatTime(ts int64) string {
	return time.Unix(ts, 0).UTC().Format(time.RFC3339)
}

func formatDate(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
