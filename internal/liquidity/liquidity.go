package liquidity

import (
	"errors"
	"fmt"
	"math"
	"math/big"

	"lpbacktest/internal/fixedpoint"
	"lpbacktest/internal/tickmath"
)

var (
	ErrInvalidRange  = errors.New("invalid price range")
	ErrNoRealRoot    = errors.New("no real root")
	ErrInvalidAmount = errors.New("invalid amount")
)

// Amounts holds token amounts of a position both as exact raw integers
// scaled by token decimals and as human units.
type Amounts struct {
	Raw0    *big.Rat
	Raw1    *big.Rat
	Amount0 float64
	Amount1 float64
}

func newAmounts(raw0, raw1 *big.Rat, decimals0, decimals1 int) Amounts {
	h0, _ := new(big.Rat).Quo(raw0, new(big.Rat).SetInt(fixedpoint.Pow10(decimals0))).Float64()
	h1, _ := new(big.Rat).Quo(raw1, new(big.Rat).SetInt(fixedpoint.Pow10(decimals1))).Float64()
	return Amounts{Raw0: raw0, Raw1: raw1, Amount0: h0, Amount1: h1}
}

// Bounds are the Q64.96 sqrt prices of a range and of the current price.
type Bounds struct {
	Current *big.Int
	Lower   *big.Int
	Upper   *big.Int
}

// NewBounds converts human prices (token1 per token0) into Q96 sqrt prices
// adjusted for the decimals difference. Inverted bounds are swapped.
func NewBounds(price, priceLower, priceUpper float64, decimals0, decimals1 int) (Bounds, error) {
	current, err := tickmath.SqrtPriceX96FromPrice(price, decimals0, decimals1)
	if err != nil {
		return Bounds{}, err
	}
	lower, err := tickmath.SqrtPriceX96FromPrice(priceLower, decimals0, decimals1)
	if err != nil {
		return Bounds{}, err
	}
	upper, err := tickmath.SqrtPriceX96FromPrice(priceUpper, decimals0, decimals1)
	if err != nil {
		return Bounds{}, err
	}
	return normalize(Bounds{Current: current, Lower: lower, Upper: upper})
}

// TickBounds builds bounds from a human price and exact tick sqrt ratios.
func TickBounds(price float64, tickLower, tickUpper int32, decimals0, decimals1 int) (Bounds, error) {
	current, err := tickmath.SqrtPriceX96FromPrice(price, decimals0, decimals1)
	if err != nil {
		return Bounds{}, err
	}
	lower, err := tickmath.SqrtRatioAtTick(tickLower)
	if err != nil {
		return Bounds{}, err
	}
	upper, err := tickmath.SqrtRatioAtTick(tickUpper)
	if err != nil {
		return Bounds{}, err
	}
	return normalize(Bounds{Current: current, Lower: lower.ToBig(), Upper: upper.ToBig()})
}

func normalize(b Bounds) (Bounds, error) {
	if b.Lower.Cmp(b.Upper) > 0 {
		b.Lower, b.Upper = b.Upper, b.Lower
	}
	if b.Lower.Cmp(b.Upper) == 0 || b.Lower.Sign() <= 0 {
		return Bounds{}, fmt.Errorf("%w: lower %s upper %s", ErrInvalidRange, b.Lower, b.Upper)
	}
	return b, nil
}

// AmountsForLiquidity returns the token amounts held by liquidity over
// [priceLower, priceUpper] when the pool trades at price.
func AmountsForLiquidity(price, priceLower, priceUpper float64, liquidity *big.Int, decimals0, decimals1 int) (Amounts, error) {
	b, err := NewBounds(price, priceLower, priceUpper, decimals0, decimals1)
	if err != nil {
		return Amounts{}, err
	}
	raw0, raw1 := AmountsAt(b, liquidity)
	return newAmounts(raw0, raw1, decimals0, decimals1), nil
}

// AmountsAtTicks returns the token amounts held by liquidity between two
// ticks when the pool trades at price.
func AmountsAtTicks(price float64, tickLower, tickUpper int32, liquidity *big.Int, decimals0, decimals1 int) (Amounts, error) {
	b, err := TickBounds(price, tickLower, tickUpper, decimals0, decimals1)
	if err != nil {
		return Amounts{}, err
	}
	raw0, raw1 := AmountsAt(b, liquidity)
	return newAmounts(raw0, raw1, decimals0, decimals1), nil
}

// AmountsAt returns exact raw token amounts for liquidity within b.
func AmountsAt(b Bounds, liquidity *big.Int) (*big.Rat, *big.Rat) {
	switch {
	case b.Current.Cmp(b.Lower) <= 0:
		return amount0(b.Lower, b.Upper, liquidity), new(big.Rat)
	case b.Current.Cmp(b.Upper) >= 0:
		return new(big.Rat), amount1(b.Lower, b.Upper, liquidity)
	default:
		return amount0(b.Current, b.Upper, liquidity), amount1(b.Lower, b.Current, liquidity)
	}
}

// LiquidityForAmounts returns the largest liquidity both human amounts can
// fund over [priceLower, priceUpper] at price.
func LiquidityForAmounts(price, priceLower, priceUpper, amount0, amount1 float64, decimals0, decimals1 int) (*big.Int, error) {
	if !(amount0 >= 0) || !(amount1 >= 0) || math.IsInf(amount0, 0) || math.IsInf(amount1, 0) {
		return nil, fmt.Errorf("%w: amounts %v %v", ErrInvalidAmount, amount0, amount1)
	}
	b, err := NewBounds(price, priceLower, priceUpper, decimals0, decimals1)
	if err != nil {
		return nil, err
	}
	raw0 := rawFromHuman(amount0, decimals0)
	raw1 := rawFromHuman(amount1, decimals1)
	return LiquidityAt(b, raw0, raw1), nil
}

// LiquidityAt returns floor(L) for raw amounts within b. Inside the range
// the smaller of the two single-token liquidities wins.
func LiquidityAt(b Bounds, raw0, raw1 *big.Rat) *big.Int {
	var l *big.Rat
	switch {
	case b.Current.Cmp(b.Lower) <= 0:
		l = liquidity0(b.Lower, b.Upper, raw0)
	case b.Current.Cmp(b.Upper) >= 0:
		l = liquidity1(b.Lower, b.Upper, raw1)
	default:
		l0 := liquidity0(b.Current, b.Upper, raw0)
		l1 := liquidity1(b.Lower, b.Current, raw1)
		l = l0
		if l1.Cmp(l0) < 0 {
			l = l1
		}
	}
	return new(big.Int).Quo(l.Num(), l.Denom())
}

// amount0 = L * (sb - sa) * Q96 / (sa * sb)
func amount0(sa, sb, l *big.Int) *big.Rat {
	num := new(big.Int).Sub(sb, sa)
	num.Mul(num, l)
	num.Mul(num, fixedpoint.Q96)
	den := new(big.Int).Mul(sa, sb)
	return new(big.Rat).SetFrac(num, den)
}

// amount1 = L * (sb - sa) / Q96
func amount1(sa, sb, l *big.Int) *big.Rat {
	num := new(big.Int).Sub(sb, sa)
	num.Mul(num, l)
	return new(big.Rat).SetFrac(num, fixedpoint.Q96)
}

func liquidity0(sa, sb *big.Int, raw0 *big.Rat) *big.Rat {
	num := new(big.Int).Mul(sa, sb)
	den := new(big.Int).Sub(sb, sa)
	den.Mul(den, fixedpoint.Q96)
	return new(big.Rat).Mul(raw0, new(big.Rat).SetFrac(num, den))
}

func liquidity1(sa, sb *big.Int, raw1 *big.Rat) *big.Rat {
	den := new(big.Int).Sub(sb, sa)
	return new(big.Rat).Mul(raw1, new(big.Rat).SetFrac(fixedpoint.Q96, den))
}

func rawFromHuman(amount float64, decimals int) *big.Rat {
	r := new(big.Rat).SetFloat64(amount)
	return r.Mul(r, new(big.Rat).SetInt(fixedpoint.Pow10(decimals)))
}
