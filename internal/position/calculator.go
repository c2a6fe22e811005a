package position

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"lpbacktest/internal/feegrowth"
	"lpbacktest/internal/fixedpoint"
	"lpbacktest/internal/liquidity"
	"lpbacktest/internal/resolver"
	"lpbacktest/internal/tickmath"
)

// ErrCheckpointRange reports a stored baseline measured over other ticks than
// the ones aligned in this run. The mint baseline is used instead.
var ErrCheckpointRange = errors.New("checkpoint range differs from aligned range")

// Baseline is a stored inside growth and the aligned range it was measured over.
type Baseline struct {
	Growth    feegrowth.Growth
	TickLower int32
	TickUpper int32
	Block     uint64
}

// Request describes a position whose fees are accrued between two blocks.
type Request struct {
	Pool         common.Address
	TickLower    int32
	TickUpper    int32
	TickSpacing  int32
	Liquidity    *big.Int
	MintBlock    uint64
	CurrentBlock uint64
	Decimals0    int
	Decimals1    int
	// Checkpoint replaces the inside growth at MintBlock as the accrual
	// baseline when its range matches the aligned boundaries.
	Checkpoint *Baseline
}

// Boundary is the outcome of aligning one range boundary across both blocks.
type Boundary struct {
	Requested  int32 `json:"requested"`
	Tick       int32 `json:"tick"`
	Rounds     int   `json:"rounds"`
	Adjusted   bool  `json:"adjusted"`
	Corrected  bool  `json:"corrected"`
	Unresolved bool  `json:"unresolved"`
}

// Report is the fee accrual of one position.
type Report struct {
	Request       Request
	Lower         Boundary
	Upper         Boundary
	MintTick      int32
	CurrentTick   int32
	MintInside    feegrowth.Growth
	CurrentInside feegrowth.Growth
	Position      feegrowth.Position
	Owed          feegrowth.Owed
	Fees0         float64
	Fees1         float64
	PriceLower    float64
	PriceUpper    float64
	PriceMint     float64
	PriceCurrent  float64
	Holdings      liquidity.Amounts
	// Resumed is set when the accrual started from Request.Checkpoint.
	Resumed bool
	// Warnings lists non-fatal conditions such as unresolved alignment.
	Warnings []error
}

type Calculator struct {
	resolver *resolver.Resolver
	logger   *zap.Logger
}

func NewCalculator(r *resolver.Resolver, logger *zap.Logger) *Calculator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Calculator{resolver: r, logger: logger}
}

// Calculate aligns both boundaries, derives fee growth inside at the mint
// and current blocks, and accrues the difference for the position.
func (c *Calculator) Calculate(ctx context.Context, req Request) (Report, error) {
	if req.TickLower >= req.TickUpper {
		return Report{}, fmt.Errorf("%w: %d >= %d", feegrowth.ErrInvalidRange, req.TickLower, req.TickUpper)
	}
	if req.Liquidity == nil || req.Liquidity.Sign() <= 0 {
		return Report{}, fmt.Errorf("%w: %v", feegrowth.ErrZeroLiquidity, req.Liquidity)
	}
	if req.CurrentBlock < req.MintBlock {
		return Report{}, fmt.Errorf("current block %d precedes mint block %d", req.CurrentBlock, req.MintBlock)
	}

	lower, err := c.resolver.Align(ctx, req.Pool, req.MintBlock, req.CurrentBlock, req.TickLower, req.TickSpacing)
	if err != nil {
		return Report{}, fmt.Errorf("lower boundary: %w", err)
	}
	upper, err := c.resolver.Align(ctx, req.Pool, req.MintBlock, req.CurrentBlock, req.TickUpper, req.TickSpacing)
	if err != nil {
		return Report{}, fmt.Errorf("upper boundary: %w", err)
	}
	if lower.Tick >= upper.Tick {
		return Report{}, fmt.Errorf("%w: aligned boundaries %d >= %d", feegrowth.ErrInvalidRange, lower.Tick, upper.Tick)
	}

	report := Report{
		Request:     req,
		Lower:       boundary(lower),
		Upper:       boundary(upper),
		MintTick:    lower.Mint.State.CurrentTick,
		CurrentTick: lower.Current.State.CurrentTick,
	}
	for _, al := range []resolver.Alignment{lower, upper} {
		if err := al.Err(); err != nil {
			report.Warnings = append(report.Warnings, err)
		}
	}

	report.MintInside, err = feegrowth.FeeGrowthInside(lower.Tick, upper.Tick,
		lower.Mint.State.CurrentTick, lower.Mint.State.Global, lower.Mint.Outside, upper.Mint.Outside)
	if err != nil {
		return Report{}, fmt.Errorf("fee growth inside at mint block: %w", err)
	}
	report.CurrentInside, err = feegrowth.FeeGrowthInside(lower.Tick, upper.Tick,
		lower.Current.State.CurrentTick, lower.Current.State.Global, lower.Current.Outside, upper.Current.Outside)
	if err != nil {
		return Report{}, fmt.Errorf("fee growth inside at current block: %w", err)
	}

	baseline := report.MintInside
	if cp := req.Checkpoint; cp != nil {
		if cp.TickLower == lower.Tick && cp.TickUpper == upper.Tick {
			baseline = cp.Growth
			report.Resumed = true
		} else {
			report.Warnings = append(report.Warnings, fmt.Errorf("%w: checkpoint %d..%d, aligned %d..%d",
				ErrCheckpointRange, cp.TickLower, cp.TickUpper, lower.Tick, upper.Tick))
			c.logger.Warn("checkpoint range mismatch, accruing from mint",
				zap.Int32("checkpoint_lower", cp.TickLower),
				zap.Int32("checkpoint_upper", cp.TickUpper),
				zap.Int32("aligned_lower", lower.Tick),
				zap.Int32("aligned_upper", upper.Tick),
			)
		}
	}
	report.Position, err = feegrowth.NewPosition(lower.Tick, upper.Tick, req.Liquidity, baseline)
	if err != nil {
		return Report{}, err
	}
	report.Owed, err = report.Position.Owed(report.CurrentInside)
	if err != nil {
		return Report{}, err
	}
	report.Fees0 = toUnits(report.Owed.Token0, req.Decimals0)
	report.Fees1 = toUnits(report.Owed.Token1, req.Decimals1)

	report.PriceLower = tickmath.PriceAtTick(lower.Tick, req.Decimals0, req.Decimals1)
	report.PriceUpper = tickmath.PriceAtTick(upper.Tick, req.Decimals0, req.Decimals1)
	report.PriceMint = tickmath.PriceAtTick(report.MintTick, req.Decimals0, req.Decimals1)
	report.PriceCurrent = tickmath.PriceAtTick(report.CurrentTick, req.Decimals0, req.Decimals1)

	report.Holdings, err = liquidity.AmountsAtTicks(report.PriceCurrent, lower.Tick, upper.Tick, req.Liquidity, req.Decimals0, req.Decimals1)
	if err != nil {
		return Report{}, fmt.Errorf("position holdings: %w", err)
	}

	if report.Owed.BelowOneUnit() {
		c.logger.Info("accrued fees below one unit",
			zap.String("owed0", report.Owed.Token0.Exact.FloatString(30)),
			zap.String("owed1", report.Owed.Token1.Exact.FloatString(30)),
		)
	}
	c.logger.Info("position fees calculated",
		zap.String("pool", req.Pool.Hex()),
		zap.Int32("tick_lower", lower.Tick),
		zap.Int32("tick_upper", upper.Tick),
		zap.String("owed0", report.Owed.Token0.Int.String()),
		zap.String("owed1", report.Owed.Token1.Int.String()),
		zap.Int("warnings", len(report.Warnings)),
	)
	return report, nil
}

func boundary(al resolver.Alignment) Boundary {
	return Boundary{
		Requested:  al.Requested,
		Tick:       al.Tick,
		Rounds:     al.Rounds,
		Adjusted:   al.Adjusted(),
		Corrected:  al.Mint.Corrected || al.Current.Corrected,
		Unresolved: al.Unresolved,
	}
}

func toUnits(r fixedpoint.Result, decimals int) float64 {
	if r.Exact == nil {
		return 0
	}
	f, _ := new(big.Rat).Quo(r.Exact, new(big.Rat).SetInt(fixedpoint.Pow10(decimals))).Float64()
	return f
}
