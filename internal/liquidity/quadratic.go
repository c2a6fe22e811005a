package liquidity

import (
	"fmt"
	"math/big"

	"lpbacktest/internal/fixedpoint"
	"lpbacktest/internal/tickmath"
)

const floatPrec = 256

// LiquidityFromRawAmounts solves (x + L/sqrt(Pb)) * (y + L*sqrt(Pa)) = L^2
// for the positive root, where x and y are raw reserves that jointly fill
// [tickLower, tickUpper].
func LiquidityFromRawAmounts(amount0Raw, amount1Raw *big.Int, tickLower, tickUpper int32) (*big.Int, error) {
	if tickLower >= tickUpper {
		return nil, fmt.Errorf("%w: ticks %d >= %d", ErrInvalidRange, tickLower, tickUpper)
	}
	sa, err := sqrtRatio(tickLower)
	if err != nil {
		return nil, err
	}
	sb, err := sqrtRatio(tickUpper)
	if err != nil {
		return nil, err
	}
	x := newFloat().SetInt(amount0Raw)
	y := newFloat().SetInt(amount1Raw)

	// a = 1 - sa/sb
	a := newFloat().Quo(sa, sb)
	a.Sub(newFloat().SetInt64(1), a)
	// b = -(x*sa + y/sb)
	b := newFloat().Mul(x, sa)
	b.Add(b, newFloat().Quo(y, sb))
	b.Neg(b)
	// c = -x*y
	c := newFloat().Mul(x, y)
	c.Neg(c)

	disc := newFloat().Mul(b, b)
	fourAC := newFloat().Mul(a, c)
	fourAC.Mul(fourAC, newFloat().SetInt64(4))
	disc.Sub(disc, fourAC)
	if disc.Sign() < 0 {
		return nil, fmt.Errorf("%w: discriminant %s", ErrNoRealRoot, disc.Text('g', 10))
	}

	root := newFloat().Sqrt(disc)
	root.Sub(root, b)
	root.Quo(root, newFloat().Mul(a, newFloat().SetInt64(2)))
	if root.Sign() < 0 {
		return nil, fmt.Errorf("%w: negative root %s", ErrNoRealRoot, root.Text('g', 10))
	}
	out, _ := root.Int(nil)
	return out, nil
}

func sqrtRatio(tick int32) (*big.Float, error) {
	ratio, err := tickmath.SqrtRatioAtTick(tick)
	if err != nil {
		return nil, err
	}
	f := newFloat().SetInt(ratio.ToBig())
	return f.Quo(f, newFloat().SetInt(fixedpoint.Q96)), nil
}

func newFloat() *big.Float {
	return new(big.Float).SetPrec(floatPrec)
}
