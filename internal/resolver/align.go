package resolver

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// Alignment is a boundary tick resolved consistently at two blocks.
type Alignment struct {
	Requested int32
	// Tick is the boundary tick both resolutions refer to, or the last
	// attempted target when Unresolved is set.
	Tick       int32
	Mint       Resolution
	Current    Resolution
	Rounds     int
	Unresolved bool
}

// Adjusted reports whether the aligned tick differs from the requested one.
func (a Alignment) Adjusted() bool {
	return a.Tick != a.Requested
}

// Err returns ErrBlockAlignmentUnresolved when the two blocks never agreed.
func (a Alignment) Err() error {
	if !a.Unresolved {
		return nil
	}
	return fmt.Errorf("%w: requested %d, mint block resolved %d, current block resolved %d after %d rounds",
		ErrBlockAlignmentUnresolved, a.Requested, a.Mint.Tick, a.Current.Tick, a.Rounds)
}

// Align resolves tick at mintBlock, then resolves the current block starting
// from the mint block's result. When the two land on different ticks, the
// current block's tick becomes the next target. A mismatch that survives
// MaxAlignRounds is returned with Unresolved set, not as an error.
func (r *Resolver) Align(ctx context.Context, pool common.Address, mintBlock, currentBlock uint64, tick, spacing int32) (Alignment, error) {
	out := Alignment{Requested: tick}
	target := tick
	for round := 1; round <= r.opts.MaxAlignRounds; round++ {
		mint, err := r.Resolve(ctx, pool, mintBlock, target, spacing)
		if err != nil {
			return Alignment{}, fmt.Errorf("mint block %d: %w", mintBlock, err)
		}
		current, err := r.Resolve(ctx, pool, currentBlock, mint.Tick, spacing)
		if err != nil {
			return Alignment{}, fmt.Errorf("current block %d: %w", currentBlock, err)
		}
		out.Mint, out.Current, out.Rounds = mint, current, round

		if current.Tick == mint.Tick {
			out.Tick = current.Tick
			if out.Adjusted() {
				r.logger.Warn("boundary tick aligned",
					zap.Int32("requested", tick),
					zap.Int32("resolved", out.Tick),
					zap.Int32("shift", out.Tick-tick),
					zap.Int("rounds", round),
				)
			}
			return out, nil
		}

		r.logger.Warn("boundary tick differs between blocks",
			zap.Int32("requested", tick),
			zap.Int32("mint_tick", mint.Tick),
			zap.Int32("current_tick", current.Tick),
			zap.Int("round", round),
		)
		target = current.Tick
	}

	out.Tick = target
	out.Unresolved = true
	r.logger.Warn("boundary tick alignment unresolved",
		zap.Int32("requested", tick),
		zap.Int32("resolved", target),
		zap.Int("rounds", out.Rounds),
	)
	return out, nil
}
