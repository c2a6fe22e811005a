package aggregate

import (
	"math/big"

	"lpbacktest/internal/liquidity"
)

const daysPerYear = 365

// valuer prices token amounts in the capital token at a price.
type valuer func(amount0, amount1, price float64) float64

func valuerFor(base liquidity.Base) valuer {
	if base == liquidity.BaseToken0 {
		return func(amount0, amount1, price float64) float64 {
			if price == 0 {
				return amount0
			}
			return amount0 + amount1/price
		}
	}
	return func(amount0, amount1, price float64) float64 {
		return amount0*price + amount1
	}
}

func percent(part, whole float64) float64 {
	if whole == 0 {
		return 0
	}
	return part / whole * 100
}

// annualize scales a return over days to a year.
func annualize(returnPct float64, days int) float64 {
	if days <= 0 {
		return 0
	}
	rat := new(big.Rat).SetFloat64(returnPct)
	if rat == nil {
		return 0
	}
	rat.Mul(rat, big.NewRat(daysPerYear, int64(days)))
	f, _ := rat.Float64()
	return f
}
