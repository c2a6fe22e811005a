package main

import (
	"context"
	"fmt"
	"io"
	"math/big"
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"lpbacktest/internal/chain"
	"lpbacktest/internal/config"
	"lpbacktest/internal/dex"
	"lpbacktest/internal/fixedpoint"
	"lpbacktest/internal/liquidity"
	"lpbacktest/internal/position"
	"lpbacktest/internal/reporting"
	"lpbacktest/internal/resolver"
	"lpbacktest/internal/storage/postgres"
)

func newFeesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fees",
		Short: "Compute uncollected fees of a position between two blocks",
		RunE:  runFees,
	}

	addChainFlags(cmd)
	cmd.Flags().String("pool", "", "pool address")
	cmd.Flags().String("mint-tx", "", "mint transaction hash; supplies range, liquidity and mint block")
	cmd.Flags().Int32("tick-lower", 0, "lower range tick")
	cmd.Flags().Int32("tick-upper", 0, "upper range tick")
	cmd.Flags().Int32("tick-spacing", 0, "tick spacing, 0 reads it from the pool")
	cmd.Flags().String("liquidity", "", "position liquidity")
	cmd.Flags().String("amount0", "", "raw token0 deposited, used when liquidity is unknown")
	cmd.Flags().String("amount1", "", "raw token1 deposited, used when liquidity is unknown")
	cmd.Flags().Uint64("mint-block", 0, "block the position was minted at")
	cmd.Flags().Uint64("current-block", 0, "block to accrue up to, 0 means latest")
	cmd.Flags().Int("max-attempts", resolver.DefaultMaxAttempts, "tick probes per boundary search")
	cmd.Flags().Int("max-align-rounds", resolver.DefaultMaxAlignRounds, "cross-block alignment rounds")
	cmd.Flags().Bool("shift-correction", false, "scale outside counters found at a shifted tick")
	cmd.Flags().String("checkpoint", "", "checkpoint JSON file")
	cmd.Flags().String("pg-dsn", "", "Postgres DSN for checkpoints")
	cmd.Flags().Bool("advance", false, "collect the fees and advance the checkpoint")
	cmd.Flags().String("out", "", "output JSON path, stdout when empty")
	return cmd
}

func runFees(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadFees(configFile(cmd), cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signalContext()
	defer stop()

	chainClient, err := dialChain(ctx, cfg.Chain)
	if err != nil {
		return err
	}
	defer chainClient.Close()

	meta, err := dex.FetchPoolMeta(ctx, chainClient, cfg.Pool, dex.NewTokenMetaCache(), logger)
	if err != nil {
		return fmt.Errorf("fetch pool meta: %w", err)
	}

	req := position.Request{
		Pool:         cfg.Pool,
		TickLower:    cfg.TickLower,
		TickUpper:    cfg.TickUpper,
		TickSpacing:  cfg.TickSpacing,
		Liquidity:    cfg.Liquidity,
		MintBlock:    cfg.MintBlock,
		CurrentBlock: cfg.CurrentBlock,
		Decimals0:    int(meta.Decimals0),
		Decimals1:    int(meta.Decimals1),
	}
	if req.TickSpacing == 0 {
		req.TickSpacing = meta.TickSpacing
	}

	if cfg.MintTx != "" {
		if err := applyMint(ctx, chainClient, &req, cfg.MintTx); err != nil {
			return err
		}
	}
	if req.Liquidity == nil {
		l, err := liquidityFromAmounts(cfg.Amount0, cfg.Amount1, req.TickLower, req.TickUpper)
		if err != nil {
			return err
		}
		req.Liquidity = l
	}
	if req.CurrentBlock == 0 {
		if req.CurrentBlock, err = chainClient.LatestBlockNumber(ctx); err != nil {
			return fmt.Errorf("latest block: %w", err)
		}
	}

	store, closeStore, err := checkpointStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	if req.Checkpoint, err = position.LoadBaseline(ctx, store, req); err != nil {
		return err
	}
	if req.Checkpoint != nil {
		logger.Info("checkpoint found",
			zap.String("key", position.CheckpointKey(req)),
			zap.Uint64("block", req.Checkpoint.Block),
		)
	}

	reader, err := dex.NewPoolReader(chainClient, logger)
	if err != nil {
		return err
	}
	res := resolver.New(reader, logger, resolver.Options{
		MaxAttempts:     cfg.MaxAttempts,
		MaxAlignRounds:  cfg.MaxAlignRounds,
		ShiftCorrection: cfg.ShiftCorrection,
	})

	logger.Info("fees start",
		zap.String("pool", cfg.Pool.Hex()),
		zap.Int32("tick_lower", req.TickLower),
		zap.Int32("tick_upper", req.TickUpper),
		zap.Int32("tick_spacing", req.TickSpacing),
		zap.String("liquidity", req.Liquidity.String()),
		zap.Uint64("mint_block", req.MintBlock),
		zap.Uint64("current_block", req.CurrentBlock),
	)

	report, err := position.NewCalculator(res, logger).Calculate(ctx, req)
	if err != nil {
		return err
	}
	for _, w := range report.Warnings {
		logger.Warn("fee report warning", zap.Error(w))
	}

	if cfg.Advance {
		next, err := position.Advance(ctx, store, report)
		if err != nil {
			return err
		}
		logger.Info("checkpoint advanced", zap.String("key", next.Key()), zap.Uint64("block", next.Block))
	}

	return writeOutput(cfg.Out, func(w io.Writer) error {
		return reporting.WriteFeesJSON(w, report)
	})
}

func dialChain(ctx context.Context, cfg config.Chain) (*chain.Client, error) {
	client, err := chain.NewClient(ctx, cfg.RPCURL, chain.Options{
		Attempts: cfg.RetryAttempts,
		Delay:    cfg.RetryDelay,
	})
	if err != nil {
		return nil, fmt.Errorf("connect rpc: %w", err)
	}
	return client, nil
}

func applyMint(ctx context.Context, chainClient *chain.Client, req *position.Request, txHash string) error {
	receipt, err := chainClient.TransactionReceipt(ctx, common.HexToHash(txHash))
	if err != nil {
		return fmt.Errorf("mint receipt: %w", err)
	}
	mint, err := dex.FindMint(receipt, req.Pool)
	if err != nil {
		return err
	}
	l, err := fixedpoint.Parse(mint.Amount)
	if err != nil {
		return fmt.Errorf("mint liquidity: %w", err)
	}
	req.TickLower = mint.TickLower
	req.TickUpper = mint.TickUpper
	req.MintBlock = mint.Block
	if req.Liquidity == nil {
		req.Liquidity = l
	}
	return nil
}

func liquidityFromAmounts(amount0, amount1 string, tickLower, tickUpper int32) (*big.Int, error) {
	a0, err := fixedpoint.Parse(amount0)
	if err != nil {
		return nil, fmt.Errorf("amount0: %w", err)
	}
	a1, err := fixedpoint.Parse(amount1)
	if err != nil {
		return nil, fmt.Errorf("amount1: %w", err)
	}
	return liquidity.LiquidityFromRawAmounts(a0, a1, tickLower, tickUpper)
}

func checkpointStore(ctx context.Context, cfg config.FeesConfig) (position.CheckpointStore, func(), error) {
	if cfg.PGDSN != "" {
		store, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return nil, nil, err
		}
		if err := store.Migrate(ctx); err != nil {
			store.Close()
			return nil, nil, err
		}
		return &position.DBCheckpointStore{Store: store}, store.Close, nil
	}
	return &position.FileCheckpointStore{Path: cfg.Checkpoint}, func() {}, nil
}

func writeOutput(path string, write func(io.Writer) error) error {
	if path == "" {
		return write(os.Stdout)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
