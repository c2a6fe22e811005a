package tickmath

import (
	"errors"
	"fmt"
	"math"
	"math/big"
)

const (
	// MinTick and MaxTick bound every tick a pool can represent.
	MinTick int32 = -887272
	MaxTick int32 = 887272

	// MinUsableTick and MaxUsableTick are the outermost ticks divisible by a spacing of 60.
	MinUsableTick int32 = -887220
	MaxUsableTick int32 = 887220

	// Base is the price ratio between adjacent ticks.
	Base = 1.0001
)

var (
	ErrTickOutOfBounds = errors.New("tick out of bounds")
	ErrInvalidPrice    = errors.New("invalid price")
)

var logBase = math.Log(Base)

// PriceAtTick returns the human price of token0 in token1 at tick.
func PriceAtTick(tick int32, decimals0, decimals1 int) float64 {
	return math.Pow(Base, float64(tick)) * math.Pow10(decimals0-decimals1)
}

// TickAtPrice returns the real-valued tick for a human price of token0 in token1.
func TickAtPrice(price float64, decimals0, decimals1 int) (float64, error) {
	if !(price > 0) || math.IsInf(price, 0) {
		return 0, fmt.Errorf("%w: %v", ErrInvalidPrice, price)
	}
	adjusted := price * math.Pow10(decimals1-decimals0)
	return math.Log(adjusted) / logBase, nil
}

// NearestSpacedTick rounds tick to the closest multiple of spacing.
// Ties round away from zero.
func NearestSpacedTick(tick float64, spacing int32) int32 {
	if spacing <= 0 {
		spacing = 1
	}
	s := float64(spacing)
	return int32(math.Round(tick/s) * s)
}

// SqrtPriceX96 returns floor(sqrt(1.0001^tick) * 2^96) computed in floating point.
// SqrtRatioAtTick is the exact on-chain equivalent.
func SqrtPriceX96(tick int32) (*big.Int, error) {
	if err := CheckTick(tick); err != nil {
		return nil, err
	}
	root := new(big.Float).SetPrec(256).SetFloat64(math.Pow(Base, float64(tick)/2))
	scaled := root.Mul(root, new(big.Float).SetPrec(256).SetInt(q96))
	out, _ := scaled.Int(nil)
	return out, nil
}

// SqrtPriceX96FromPrice converts a human price into a Q64.96 sqrt price.
func SqrtPriceX96FromPrice(price float64, decimals0, decimals1 int) (*big.Int, error) {
	if !(price > 0) || math.IsInf(price, 0) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPrice, price)
	}
	adjusted := price * math.Pow10(decimals1-decimals0)
	root := new(big.Float).SetPrec(256).SetFloat64(math.Sqrt(adjusted))
	scaled := root.Mul(root, new(big.Float).SetPrec(256).SetInt(q96))
	out, _ := scaled.Int(nil)
	return out, nil
}

// CheckTick reports ErrTickOutOfBounds for ticks outside [MinTick, MaxTick].
func CheckTick(tick int32) error {
	if tick < MinTick || tick > MaxTick {
		return fmt.Errorf("%w: %d", ErrTickOutOfBounds, tick)
	}
	return nil
}

// Usable reports whether tick lies inside [MinUsableTick, MaxUsableTick].
func Usable(tick int32) bool {
	return tick >= MinUsableTick && tick <= MaxUsableTick
}
