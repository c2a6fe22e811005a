package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"lpbacktest/internal/config"
	"lpbacktest/internal/dex"
	"lpbacktest/internal/tickmath"
)

func newTickCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tick",
		Short: "Convert a price to its tick and nearest usable tick",
		RunE:  runTick,
	}

	cmd.Flags().Float64("price", 0, "price, token1 per token0; defaults to the pool price with --pool")
	cmd.Flags().Int("decimals0", 18, "token0 decimals")
	cmd.Flags().Int("decimals1", 18, "token1 decimals")
	cmd.Flags().Int32("spacing", 60, "tick spacing")
	cmd.Flags().String("pool", "", "read decimals, spacing and current tick from this pool")
	cmd.Flags().Uint64("block", 0, "block for the pool read, 0 means latest")
	addChainFlags(cmd)
	return cmd
}

func runTick(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadTick(configFile(cmd), cmd.Flags())
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	if cfg.Pool != nil {
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

		meta, err := dex.FetchPoolMeta(ctx, chainClient, *cfg.Pool, dex.NewTokenMetaCache(), logger)
		if err != nil {
			return fmt.Errorf("fetch pool meta: %w", err)
		}
		live, err := dex.FetchPoolLive(ctx, chainClient, *cfg.Pool, cfg.Block, logger)
		if err != nil {
			return fmt.Errorf("fetch pool state: %w", err)
		}
		cfg.Decimals0, cfg.Decimals1 = int(meta.Decimals0), int(meta.Decimals1)
		cfg.Spacing = meta.TickSpacing

		current := tickmath.PriceAtTick(live.Slot0.Tick, cfg.Decimals0, cfg.Decimals1)
		logger.Debug("pool state",
			zap.String("pool", meta.Address),
			zap.String("sqrt_price_x96", live.Slot0.SqrtPriceX96),
			zap.String("liquidity", live.Liquidity),
		)
		fmt.Fprintf(out, "pool tick=%d price=%.10g spacing=%d liquidity=%s\n",
			live.Slot0.Tick, current, cfg.Spacing, live.Liquidity)
		if cfg.Price == 0 {
			cfg.Price = current
		}
	}

	raw, err := tickmath.TickAtPrice(cfg.Price, cfg.Decimals0, cfg.Decimals1)
	if err != nil {
		return err
	}
	spaced := tickmath.NearestSpacedTick(raw, cfg.Spacing)
	fmt.Fprintf(out, "tick=%.4f spaced=%d price=%.10g\n",
		raw, spaced, tickmath.PriceAtTick(spaced, cfg.Decimals0, cfg.Decimals1))
	return nil
}
