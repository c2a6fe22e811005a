package feegrowth

import (
	"errors"
	"fmt"
	"math/big"

	"lpbacktest/internal/fixedpoint"
)

var (
	ErrInvalidRange  = errors.New("invalid tick range")
	ErrZeroLiquidity = errors.New("liquidity must be positive")
)

// Growth is a pair of Q128 fee growth counters, one per token.
type Growth struct {
	Token0 *big.Int `json:"token0"`
	Token1 *big.Int `json:"token1"`
}

// NewGrowth copies both counters; nil is read as zero.
func NewGrowth(token0, token1 *big.Int) Growth {
	return Growth{Token0: copyInt(token0), Token1: copyInt(token1)}
}

// ZeroGrowth returns (0, 0).
func ZeroGrowth() Growth {
	return Growth{Token0: new(big.Int), Token1: new(big.Int)}
}

// IsZero reports whether both counters are zero.
func (g Growth) IsZero() bool {
	return sign(g.Token0) == 0 && sign(g.Token1) == 0
}

// Sub returns g - other per token without clamping.
func (g Growth) Sub(other Growth) Growth {
	return Growth{
		Token0: new(big.Int).Sub(copyInt(g.Token0), copyInt(other.Token0)),
		Token1: new(big.Int).Sub(copyInt(g.Token1), copyInt(other.Token1)),
	}
}

// ClampNonNegative replaces negative counters with zero.
func (g Growth) ClampNonNegative() Growth {
	out := NewGrowth(g.Token0, g.Token1)
	if out.Token0.Sign() < 0 {
		out.Token0.SetInt64(0)
	}
	if out.Token1.Sign() < 0 {
		out.Token1.SetInt64(0)
	}
	return out
}

// Equal compares both counters.
func (g Growth) Equal(other Growth) bool {
	return copyInt(g.Token0).Cmp(copyInt(other.Token0)) == 0 &&
		copyInt(g.Token1).Cmp(copyInt(other.Token1)) == 0
}

func (g Growth) String() string {
	return fmt.Sprintf("(%s, %s)", copyInt(g.Token0), copyInt(g.Token1))
}

// FeeGrowthInside derives the fee growth accumulated strictly inside
// [tickLower, tickUpper] from the global counters and the outside counters
// recorded at both boundaries. Results may be negative.
func FeeGrowthInside(tickLower, tickUpper, tickCurrent int32, global, lowerOutside, upperOutside Growth) (Growth, error) {
	if tickLower >= tickUpper {
		return Growth{}, fmt.Errorf("%w: %d >= %d", ErrInvalidRange, tickLower, tickUpper)
	}
	return Growth{
		Token0: inside(tickLower, tickUpper, tickCurrent, copyInt(global.Token0), copyInt(lowerOutside.Token0), copyInt(upperOutside.Token0)),
		Token1: inside(tickLower, tickUpper, tickCurrent, copyInt(global.Token1), copyInt(lowerOutside.Token1), copyInt(upperOutside.Token1)),
	}, nil
}

func inside(tickLower, tickUpper, tickCurrent int32, global, lowerOutside, upperOutside *big.Int) *big.Int {
	// Below the range the inside value is the difference of the outside counters.
	if tickCurrent < tickLower {
		return new(big.Int).Sub(upperOutside, lowerOutside)
	}
	below := lowerOutside

	var above *big.Int
	if tickCurrent < tickUpper {
		above = upperOutside
	} else {
		above = new(big.Int).Sub(global, upperOutside)
	}

	out := new(big.Int).Sub(global, below)
	return out.Sub(out, above)
}

// Owed is the fee amount accrued per token, floored and exact.
type Owed struct {
	Token0 fixedpoint.Result
	Token1 fixedpoint.Result
}

// BelowOneUnit reports whether either token accrued a fraction of one unit
// that flooring dropped.
func (o Owed) BelowOneUnit() bool {
	return o.Token0.BelowOneUnit || o.Token1.BelowOneUnit
}

// Accrue returns the tokens owed to liquidity for the growth between last and now.
func Accrue(liquidity *big.Int, now, last Growth) (Owed, error) {
	if liquidity == nil || liquidity.Sign() <= 0 {
		return Owed{}, fmt.Errorf("%w: %v", ErrZeroLiquidity, liquidity)
	}
	delta := now.Sub(last)
	owed0, err := fixedpoint.MulDiv(delta.Token0, liquidity, fixedpoint.Q128)
	if err != nil {
		return Owed{}, fmt.Errorf("accrue token0: %w", err)
	}
	owed1, err := fixedpoint.MulDiv(delta.Token1, liquidity, fixedpoint.Q128)
	if err != nil {
		return Owed{}, fmt.Errorf("accrue token1: %w", err)
	}
	return Owed{Token0: owed0, Token1: owed1}, nil
}

func copyInt(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(v)
}

func sign(v *big.Int) int {
	if v == nil {
		return 0
	}
	return v.Sign()
}
