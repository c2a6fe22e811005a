package feegrowth

import (
	"fmt"
	"math/big"
)

// Position is a liquidity range with the fee growth inside recorded at its
// last accrual. The checkpoint only moves on Collect.
type Position struct {
	TickLower  int32    `json:"tick_lower"`
	TickUpper  int32    `json:"tick_upper"`
	Liquidity  *big.Int `json:"liquidity"`
	Checkpoint Growth   `json:"checkpoint"`
}

// NewPosition opens a position whose checkpoint is the inside growth at mint.
func NewPosition(tickLower, tickUpper int32, liquidity *big.Int, insideAtMint Growth) (Position, error) {
	if tickLower >= tickUpper {
		return Position{}, fmt.Errorf("%w: %d >= %d", ErrInvalidRange, tickLower, tickUpper)
	}
	if liquidity == nil || liquidity.Sign() <= 0 {
		return Position{}, fmt.Errorf("%w: %v", ErrZeroLiquidity, liquidity)
	}
	return Position{
		TickLower:  tickLower,
		TickUpper:  tickUpper,
		Liquidity:  new(big.Int).Set(liquidity),
		Checkpoint: NewGrowth(insideAtMint.Token0, insideAtMint.Token1),
	}, nil
}

// Owed returns the fees accrued since the checkpoint without moving it.
func (p Position) Owed(insideNow Growth) (Owed, error) {
	return Accrue(p.Liquidity, insideNow, p.Checkpoint)
}

// Collect returns the fees accrued since the checkpoint and advances the
// checkpoint to insideNow. On error the checkpoint is unchanged.
func (p *Position) Collect(insideNow Growth) (Owed, error) {
	owed, err := Accrue(p.Liquidity, insideNow, p.Checkpoint)
	if err != nil {
		return Owed{}, err
	}
	p.Checkpoint = NewGrowth(insideNow.Token0, insideNow.Token1)
	return owed, nil
}
