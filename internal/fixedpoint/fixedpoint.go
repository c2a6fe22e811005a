package fixedpoint

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/holiman/uint256"
)

var (
	// Q96 is 2^96, the scale of sqrtPriceX96 values.
	Q96 = new(big.Int).Lsh(big.NewInt(1), 96)
	// Q128 is 2^128, the scale of fee growth counters.
	Q128 = new(big.Int).Lsh(big.NewInt(1), 128)

	MaxUint128 = new(big.Int).Sub(Q128, big.NewInt(1))
	MaxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
)

var (
	ErrDivisionByZero = errors.New("division by zero")
	ErrOverflow       = errors.New("fixed point overflow")
)

// Result is the outcome of a scaled multiply-divide.
type Result struct {
	// Int is floor(a*b/denominator).
	Int *big.Int
	// Exact is a*b/denominator without rounding.
	Exact *big.Rat
	// BelowOneUnit is set when Exact is non-zero but Int truncated to zero.
	BelowOneUnit bool
}

// Zero returns a Result holding 0.
func Zero() Result {
	return Result{Int: new(big.Int), Exact: new(big.Rat)}
}

// Float64 returns the exact value as the nearest float64.
func (r Result) Float64() float64 {
	if r.Exact == nil {
		return 0
	}
	f, _ := r.Exact.Float64()
	return f
}

// MulDiv computes a*b/denominator with an intermediate of arbitrary width.
// Unsigned operands take the 256-bit path used on chain; signed operands
// fall back to floor division on big.Int. A quotient wider than 256 bits
// is reported as ErrOverflow.
func MulDiv(a, b, denominator *big.Int) (Result, error) {
	if denominator == nil || denominator.Sign() == 0 {
		return Result{}, ErrDivisionByZero
	}
	if a == nil {
		a = new(big.Int)
	}
	if b == nil {
		b = new(big.Int)
	}

	product := new(big.Int).Mul(a, b)
	exact := new(big.Rat).SetFrac(product, denominator)

	var quotient *big.Int
	if a.Sign() >= 0 && b.Sign() >= 0 && denominator.Sign() > 0 {
		q, err := mulDivUint256(a, b, denominator)
		if err != nil {
			return Result{}, err
		}
		quotient = q
	} else {
		quotient = floorDiv(product, denominator)
		if quotient.CmpAbs(MaxUint256) > 0 {
			return Result{}, fmt.Errorf("%w: %s", ErrOverflow, quotient.String())
		}
	}

	return Result{
		Int:          quotient,
		Exact:        exact,
		BelowOneUnit: quotient.Sign() == 0 && exact.Sign() != 0,
	}, nil
}

func mulDivUint256(a, b, denominator *big.Int) (*big.Int, error) {
	ua, overflowA := uint256.FromBig(a)
	ub, overflowB := uint256.FromBig(b)
	ud, overflowD := uint256.FromBig(denominator)
	if overflowA || overflowB || overflowD {
		return nil, fmt.Errorf("%w: operand exceeds 256 bits", ErrOverflow)
	}
	q, overflow := new(uint256.Int).MulDivOverflow(ua, ub, ud)
	if overflow {
		return nil, fmt.Errorf("%w: mulDiv result exceeds 256 bits", ErrOverflow)
	}
	return q.ToBig(), nil
}

// floorDiv rounds toward negative infinity for any sign combination.
func floorDiv(x, y *big.Int) *big.Int {
	q, m := new(big.Int).DivMod(x, y, new(big.Int))
	if m.Sign() != 0 && y.Sign() < 0 {
		q.Sub(q, big.NewInt(1))
	}
	return q
}

// Pow10 returns 10^n for n >= 0.
func Pow10(n int) *big.Int {
	if n <= 0 {
		return big.NewInt(1)
	}
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}

// ToUnits converts a raw integer amount into token units as an exact rational.
func ToUnits(raw *big.Int, decimals int) *big.Rat {
	if raw == nil {
		return new(big.Rat)
	}
	return new(big.Rat).SetFrac(raw, Pow10(decimals))
}

// Parse reads a decimal or 0x-prefixed hexadecimal integer.
func Parse(value string) (*big.Int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return new(big.Int), nil
	}
	base := 10
	if strings.HasPrefix(value, "0x") || strings.HasPrefix(value, "0X") {
		value = value[2:]
		base = 16
	}
	parsed, ok := new(big.Int).SetString(value, base)
	if !ok {
		return nil, fmt.Errorf("invalid int: %s", value)
	}
	return parsed, nil
}
