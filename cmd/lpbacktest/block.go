package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"lpbacktest/internal/config"
)

func newBlockCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "block",
		Short: "Find the last block at or before a timestamp",
		RunE:  runBlock,
	}

	addChainFlags(cmd)
	cmd.Flags().String("timestamp", "", "unix seconds, YYYY-MM-DD or RFC3339")
	return cmd
}

func runBlock(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadBlock(configFile(cmd), cmd.Flags())
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

	block, err := chainClient.BlockAtTimestamp(ctx, cfg.Timestamp)
	if err != nil {
		return err
	}
	logger.Debug("block resolved", zap.Uint64("timestamp", cfg.Timestamp), zap.Uint64("block", block))
	fmt.Fprintln(cmd.OutOrStdout(), block)
	return nil
}
