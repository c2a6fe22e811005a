package dex

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"lpbacktest/internal/feegrowth"
	"lpbacktest/internal/resolver"
)

// PoolReader reads fee accounting from a V3 pool contract at historical
// blocks. It implements resolver.Source.
type PoolReader struct {
	caller  Caller
	poolABI abi.ABI
	logger  *zap.Logger
}

// NewPoolReader builds a reader over an archive-capable caller.
func NewPoolReader(caller Caller, logger *zap.Logger) (*PoolReader, error) {
	if caller == nil {
		return nil, fmt.Errorf("chain client is nil")
	}
	poolABI, err := V3PoolABI()
	if err != nil {
		return nil, fmt.Errorf("parse pool abi: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PoolReader{caller: caller, poolABI: poolABI, logger: logger}, nil
}

// Globals returns feeGrowthGlobal{0,1}X128 at block.
func (r *PoolReader) Globals(ctx context.Context, pool common.Address, block uint64) (feegrowth.Growth, error) {
	blockPtr := new(big.Int).SetUint64(block)
	g0, err := r.uint256(ctx, pool, "feeGrowthGlobal0X128", blockPtr)
	if err != nil {
		return feegrowth.Growth{}, err
	}
	g1, err := r.uint256(ctx, pool, "feeGrowthGlobal1X128", blockPtr)
	if err != nil {
		return feegrowth.Growth{}, err
	}
	return feegrowth.NewGrowth(g0, g1), nil
}

// PoolState returns the current tick and fee growth globals at block.
func (r *PoolReader) PoolState(ctx context.Context, pool common.Address, block uint64) (resolver.PoolState, error) {
	blockPtr := new(big.Int).SetUint64(block)
	values, err := callPoolMethod(ctx, r.caller, pool, r.poolABI, "slot0", blockPtr)
	if err != nil {
		return resolver.PoolState{}, err
	}
	if len(values) < 2 {
		return resolver.PoolState{}, fmt.Errorf("slot0 return size %d", len(values))
	}
	tickInt, err := asBigInt(values[1])
	if err != nil {
		return resolver.PoolState{}, fmt.Errorf("slot0 tick: %w", err)
	}
	tick, err := int24FromBig(tickInt)
	if err != nil {
		return resolver.PoolState{}, fmt.Errorf("slot0 tick: %w", err)
	}

	global, err := r.Globals(ctx, pool, block)
	if err != nil {
		return resolver.PoolState{}, err
	}

	return resolver.PoolState{Block: block, CurrentTick: tick, Global: global}, nil
}

// TickSnapshot returns the outside counters recorded for tick at block.
func (r *PoolReader) TickSnapshot(ctx context.Context, pool common.Address, block uint64, tick int32) (resolver.Snapshot, error) {
	blockPtr := new(big.Int).SetUint64(block)
	values, err := callPoolMethod(ctx, r.caller, pool, r.poolABI, "ticks", blockPtr, big.NewInt(int64(tick)))
	if err != nil {
		return resolver.Snapshot{}, err
	}
	if len(values) != 8 {
		return resolver.Snapshot{}, fmt.Errorf("ticks return size %d", len(values))
	}
	outside0, err := asBigInt(values[2])
	if err != nil {
		return resolver.Snapshot{}, fmt.Errorf("feeGrowthOutside0X128: %w", err)
	}
	outside1, err := asBigInt(values[3])
	if err != nil {
		return resolver.Snapshot{}, fmt.Errorf("feeGrowthOutside1X128: %w", err)
	}
	initialized, ok := values[7].(bool)
	if !ok {
		return resolver.Snapshot{}, fmt.Errorf("initialized unexpected type %T", values[7])
	}

	r.logger.Debug("tick snapshot",
		zap.String("pool", pool.Hex()),
		zap.Uint64("block", block),
		zap.Int32("tick", tick),
		zap.Bool("initialized", initialized),
	)

	return resolver.Snapshot{
		Tick:        tick,
		Outside:     feegrowth.NewGrowth(outside0, outside1),
		Initialized: initialized,
	}, nil
}

// Balances returns the pool's raw token balances at block.
func (r *PoolReader) Balances(ctx context.Context, pool, token0, token1 common.Address, block uint64) (*big.Int, *big.Int, error) {
	blockPtr := new(big.Int).SetUint64(block)
	bal0, err := balanceOf(ctx, r.caller, token0, pool, blockPtr)
	if err != nil {
		return nil, nil, err
	}
	bal1, err := balanceOf(ctx, r.caller, token1, pool, blockPtr)
	if err != nil {
		return nil, nil, err
	}
	return bal0, bal1, nil
}

func (r *PoolReader) uint256(ctx context.Context, pool common.Address, method string, block *big.Int) (*big.Int, error) {
	values, err := callPoolMethod(ctx, r.caller, pool, r.poolABI, method, block)
	if err != nil {
		return nil, err
	}
	if len(values) != 1 {
		return nil, fmt.Errorf("%s return size %d", method, len(values))
	}
	return asBigInt(values[0])
}

func balanceOf(ctx context.Context, chainClient Caller, token, owner common.Address, block *big.Int) (*big.Int, error) {
	erc20ABI, err := erc20ABIStringInstance()
	if err != nil {
		return nil, err
	}
	data, err := erc20ABI.Pack("balanceOf", owner)
	if err != nil {
		return nil, fmt.Errorf("pack balanceOf: %w", err)
	}
	resp, err := chainClient.CallContract(ctx, callMsg(token, data), block)
	if err != nil {
		return nil, fmt.Errorf("call balanceOf: %w", err)
	}
	values, err := erc20ABI.Unpack("balanceOf", resp)
	if err != nil {
		return nil, fmt.Errorf("unpack balanceOf: %w", err)
	}
	if len(values) != 1 {
		return nil, fmt.Errorf("balanceOf return size %d", len(values))
	}
	return asBigInt(values[0])
}
