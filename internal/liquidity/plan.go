package liquidity

import (
	"fmt"
	"math"
	"math/big"

	"lpbacktest/internal/fixedpoint"
)

// Base selects the token the capital is denominated in.
// Prices are always token1 per token0.
type Base int

const (
	// BaseToken1 values capital in token1.
	BaseToken1 Base = 0
	// BaseToken0 values capital in token0.
	BaseToken0 Base = 1
)

// Deposit is the split of a capital amount into a range position.
type Deposit struct {
	Amount0   float64
	Amount1   float64
	Liquidity *big.Int
}

var referenceLiquidity = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

// Plan splits capital into token amounts whose value at price equals capital
// and whose proportions match [priceLower, priceUpper], then derives liquidity.
func Plan(capital, price, priceLower, priceUpper float64, decimals0, decimals1 int, base Base) (Deposit, error) {
	if !(capital >= 0) || math.IsInf(capital, 0) {
		return Deposit{}, fmt.Errorf("%w: capital %v", ErrInvalidAmount, capital)
	}
	b, err := NewBounds(price, priceLower, priceUpper, decimals0, decimals1)
	if err != nil {
		return Deposit{}, err
	}
	if capital == 0 {
		return Deposit{Liquidity: new(big.Int)}, nil
	}

	priceRat := new(big.Rat).SetFloat64(price)
	capitalRat := new(big.Rat).SetFloat64(capital)
	if base == BaseToken0 {
		capitalRat.Mul(capitalRat, priceRat)
	}

	ref0, ref1 := AmountsAt(b, referenceLiquidity)
	value := new(big.Rat).Mul(humanRat(ref0, decimals0), priceRat)
	value.Add(value, humanRat(ref1, decimals1))
	if value.Sign() == 0 {
		return Deposit{}, fmt.Errorf("%w: range holds no value at price %v", ErrInvalidRange, price)
	}

	scale := new(big.Rat).Quo(capitalRat, value)
	raw0 := new(big.Rat).Mul(ref0, scale)
	raw1 := new(big.Rat).Mul(ref1, scale)
	amounts := newAmounts(raw0, raw1, decimals0, decimals1)
	return Deposit{
		Amount0:   amounts.Amount0,
		Amount1:   amounts.Amount1,
		Liquidity: LiquidityAt(b, raw0, raw1),
	}, nil
}

func humanRat(raw *big.Rat, decimals int) *big.Rat {
	return new(big.Rat).Quo(raw, new(big.Rat).SetInt(fixedpoint.Pow10(decimals)))
}
