package series

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"lpbacktest/internal/backtest"
	"lpbacktest/internal/feegrowth"
	"lpbacktest/internal/fixedpoint"
	"lpbacktest/internal/resolver"
)

const (
	DefaultWorkers   = 8
	DefaultBatchSize = 200
)

// BlockLocator maps a unix timestamp to the last block at or before it.
type BlockLocator interface {
	BlockAtTimestamp(ctx context.Context, ts uint64) (uint64, error)
}

// GlobalsSource reads a pool's fee growth globals at a block.
type GlobalsSource interface {
	Globals(ctx context.Context, pool common.Address, block uint64) (feegrowth.Growth, error)
}

// ReserveSource reads a pool's raw token balances at a block.
type ReserveSource interface {
	Balances(ctx context.Context, pool, token0, token1 common.Address, block uint64) (*big.Int, *big.Int, error)
}

// Config selects the pool and tunes the worker pool.
type Config struct {
	Pool      common.Address
	Token0    common.Address
	Token1    common.Address
	Workers   int
	BatchSize int
}

// Enricher attaches the block and fee growth globals to each row.
type Enricher struct {
	cfg      Config
	locator  BlockLocator
	globals  GlobalsSource
	reserves ReserveSource
	logger   *zap.Logger
}

// NewEnricher builds an enricher. reserves may be nil.
func NewEnricher(cfg Config, locator BlockLocator, globals GlobalsSource, reserves ReserveSource, logger *zap.Logger) (*Enricher, error) {
	if locator == nil || globals == nil {
		return nil, fmt.Errorf("block locator and globals source are required")
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Enricher{cfg: cfg, locator: locator, globals: globals, reserves: reserves, logger: logger}, nil
}

// Enrich returns a copy of rows, in the same order, with Block and Global
// set. A row whose lookups fail carries resolver.ErrSnapshotUnavailable in
// Unavailable and does not abort the run. onBatch, when set, runs after each
// completed batch so callers can persist the cache.
func (e *Enricher) Enrich(ctx context.Context, rows []backtest.Row, cache *Cache, onBatch func(Batch) error) ([]backtest.Row, error) {
	if cache == nil {
		cache = NewCache()
	}
	batches, err := SplitBatches(len(rows), e.cfg.BatchSize)
	if err != nil {
		return nil, err
	}

	pool, err := ants.NewPool(e.cfg.Workers)
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}
	defer pool.Release()

	out := make([]backtest.Row, len(rows))
	for _, batch := range batches {
		var wg sync.WaitGroup
		for i := batch.From; i <= batch.To; i++ {
			i := i
			wg.Add(1)
			if err := pool.Submit(func() {
				defer wg.Done()
				out[i] = e.enrichRow(ctx, rows[i], cache)
			}); err != nil {
				wg.Done()
				wg.Wait()
				return nil, fmt.Errorf("submit row %d: %w", i, err)
			}
		}
		wg.Wait()
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		unavailable := 0
		for i := batch.From; i <= batch.To; i++ {
			if out[i].Unavailable != nil {
				unavailable++
			}
		}
		e.logger.Info("enriched batch",
			zap.Int("from", batch.From),
			zap.Int("to", batch.To),
			zap.Int("unavailable", unavailable),
		)
		if onBatch != nil {
			if err := onBatch(batch); err != nil {
				return nil, err
			}
		}
	}

	if len(out) > 0 && e.reserves != nil {
		e.entryReserves(ctx, &out[0])
	}
	return out, nil
}

func (e *Enricher) enrichRow(ctx context.Context, row backtest.Row, cache *Cache) backtest.Row {
	block, ok := cache.Block(row.Timestamp)
	if !ok {
		var err error
		block, err = e.locator.BlockAtTimestamp(ctx, uint64(row.Timestamp))
		if err != nil {
			row.Unavailable = fmt.Errorf("%w: block at %d: %v", resolver.ErrSnapshotUnavailable, row.Timestamp, err)
			return row
		}
		cache.SetBlock(row.Timestamp, block)
	}
	row.Block = block

	global, ok := cache.Globals(block)
	if !ok {
		var err error
		global, err = e.globals.Globals(ctx, e.cfg.Pool, block)
		if err != nil {
			row.Unavailable = fmt.Errorf("%w: globals at block %d: %v", resolver.ErrSnapshotUnavailable, block, err)
			e.logger.Warn("fee growth globals unavailable",
				zap.Int64("timestamp", row.Timestamp),
				zap.Uint64("block", block),
				zap.Error(err),
			)
			return row
		}
		cache.SetGlobals(block, global)
	}
	row.Global = feegrowth.NewGrowth(global.Token0, global.Token1)
	return row
}

// entryReserves replaces the entry row's reserves with on-chain balances so
// they are read at the same block as its globals.
func (e *Enricher) entryReserves(ctx context.Context, row *backtest.Row) {
	if row.Unavailable != nil || e.cfg.Token0 == (common.Address{}) || e.cfg.Token1 == (common.Address{}) {
		return
	}
	bal0, bal1, err := e.reserves.Balances(ctx, e.cfg.Pool, e.cfg.Token0, e.cfg.Token1, row.Block)
	if err != nil {
		e.logger.Warn("entry reserves unavailable, keeping indexed values", zap.Uint64("block", row.Block), zap.Error(err))
		return
	}
	row.TVL0, _ = fixedpoint.ToUnits(bal0, row.Decimals0).Float64()
	row.TVL1, _ = fixedpoint.ToUnits(bal1, row.Decimals1).Float64()
}
