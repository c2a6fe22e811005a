package resolver

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"lpbacktest/internal/feegrowth"
)

var (
	ErrSnapshotUnavailable      = errors.New("snapshot unavailable")
	ErrBlockAlignmentUnresolved = errors.New("block alignment unresolved")
)

const (
	DefaultMaxAttempts    = 10
	DefaultMaxAlignRounds = 4
)

// PoolState is the pool-wide accounting read at one block.
type PoolState struct {
	Block       uint64
	CurrentTick int32
	Global      feegrowth.Growth
}

// Snapshot is the per-tick accounting read at one block.
type Snapshot struct {
	Tick        int32
	Outside     feegrowth.Growth
	Initialized bool
}

// Usable reports whether the snapshot carries accounting data.
func (s Snapshot) Usable() bool {
	return s.Initialized && !s.Outside.IsZero()
}

// Source reads pool and tick accounting at a block.
type Source interface {
	PoolState(ctx context.Context, pool common.Address, block uint64) (PoolState, error)
	TickSnapshot(ctx context.Context, pool common.Address, block uint64, tick int32) (Snapshot, error)
}

// Options tune the search.
type Options struct {
	// MaxAttempts bounds the probes per search, the origin included.
	MaxAttempts int
	// MaxAlignRounds bounds the cross-block alignment loop.
	MaxAlignRounds int
	// ShiftCorrection scales outside counters found at a shifted tick by
	// (100 + |shift|/spacing) / 100. It is an approximation and off by default.
	ShiftCorrection bool
}

func (o Options) withDefaults() Options {
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = DefaultMaxAttempts
	}
	if o.MaxAlignRounds <= 0 {
		o.MaxAlignRounds = DefaultMaxAlignRounds
	}
	return o
}

// Resolution is the outcome of a usability search at one block.
type Resolution struct {
	Requested int32
	Tick      int32
	State     PoolState
	// Outside holds the counters used downstream, corrected when Corrected is set.
	Outside  feegrowth.Growth
	Raw      feegrowth.Growth
	Adjusted bool
	// Corrected is set when the shift correction changed Outside.
	Corrected bool
	Attempts  int
}

// Shift is the distance between the resolved and requested ticks.
func (r Resolution) Shift() int32 {
	return r.Tick - r.Requested
}

type Resolver struct {
	source Source
	opts   Options
	logger *zap.Logger
}

func New(source Source, logger *zap.Logger, opts Options) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{source: source, opts: opts.withDefaults(), logger: logger}
}

// Resolve finds the nearest usable tick snapshot to tick at block.
func (r *Resolver) Resolve(ctx context.Context, pool common.Address, block uint64, tick, spacing int32) (Resolution, error) {
	state, err := r.source.PoolState(ctx, pool, block)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Resolution{}, ctxErr
		}
		return Resolution{}, fmt.Errorf("%w: pool %s block %d: %v", ErrSnapshotUnavailable, pool.Hex(), block, err)
	}
	state.Block = block

	candidates := NewCandidates(tick, spacing, r.opts.MaxAttempts)
	var lastErr error
	for {
		candidate, ok := candidates.Next()
		if !ok {
			break
		}
		snap, err := r.source.TickSnapshot(ctx, pool, block, candidate)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return Resolution{}, ctxErr
			}
			lastErr = err
			r.logger.Debug("tick snapshot fetch failed", zap.Int32("tick", candidate), zap.Uint64("block", block), zap.Error(err))
			continue
		}
		if !snap.Usable() {
			r.logger.Debug("tick snapshot unusable",
				zap.Int32("tick", candidate),
				zap.Uint64("block", block),
				zap.Bool("initialized", snap.Initialized),
			)
			continue
		}
		return r.resolved(tick, candidate, spacing, state, snap, candidates.Attempts()), nil
	}

	if lastErr != nil {
		return Resolution{}, fmt.Errorf("%w: pool %s block %d tick %d after %d attempts: %v",
			ErrSnapshotUnavailable, pool.Hex(), block, tick, candidates.Attempts(), lastErr)
	}
	return Resolution{}, fmt.Errorf("%w: pool %s block %d tick %d after %d attempts",
		ErrSnapshotUnavailable, pool.Hex(), block, tick, candidates.Attempts())
}

func (r *Resolver) resolved(requested, tick, spacing int32, state PoolState, snap Snapshot, attempts int) Resolution {
	res := Resolution{
		Requested: requested,
		Tick:      tick,
		State:     state,
		Outside:   feegrowth.NewGrowth(snap.Outside.Token0, snap.Outside.Token1),
		Raw:       feegrowth.NewGrowth(snap.Outside.Token0, snap.Outside.Token1),
		Adjusted:  tick != requested,
		Attempts:  attempts,
	}
	if !res.Adjusted {
		return res
	}

	shift := res.Shift()
	fields := []zap.Field{
		zap.Int32("requested", requested),
		zap.Int32("resolved", tick),
		zap.Int32("shift", shift),
		zap.Uint64("block", state.Block),
	}
	if r.opts.ShiftCorrection {
		res.Outside = correct(res.Raw, shift, spacing)
		res.Corrected = !res.Outside.Equal(res.Raw)
		fields = append(fields, zap.Bool("corrected", res.Corrected))
	}
	r.logger.Warn("tick snapshot resolved at shifted tick", fields...)
	return res
}

func correct(raw feegrowth.Growth, shift, spacing int32) feegrowth.Growth {
	if spacing <= 0 {
		spacing = 1
	}
	if shift < 0 {
		shift = -shift
	}
	factor := big.NewInt(int64(100 + shift/spacing))
	scale := func(v *big.Int) *big.Int {
		out := new(big.Int).Mul(v, factor)
		return out.Div(out, big.NewInt(100))
	}
	return feegrowth.Growth{Token0: scale(raw.Token0), Token1: scale(raw.Token1)}
}
