package main

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"lpbacktest/internal/aggregate"
	"lpbacktest/internal/backtest"
	"lpbacktest/internal/config"
	"lpbacktest/internal/dex"
	"lpbacktest/internal/liquidity"
	"lpbacktest/internal/reporting"
	"lpbacktest/internal/series"
	"lpbacktest/internal/storage"
	"lpbacktest/internal/storage/postgres"
	"lpbacktest/internal/subgraph"
)

func newBacktestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backtest",
		Short: "Backtest a price range over the pool's hourly history",
		RunE:  runBacktest,
	}

	addChainFlags(cmd)
	cmd.Flags().String("subgraph", "", "Uniswap V3 subgraph URL")
	cmd.Flags().String("subgraph-key", "", "subgraph API key")
	cmd.Flags().String("pool", "", "pool address")
	cmd.Flags().String("from", "", "window start (unix seconds, YYYY-MM-DD or RFC3339)")
	cmd.Flags().String("to", "", "window end, now when empty")
	cmd.Flags().Float64("price-lower", 0, "range lower price, token1 per token0")
	cmd.Flags().Float64("price-upper", 0, "range upper price, token1 per token0")
	cmd.Flags().Float64("capital", 0, "capital deposited at the first close")
	cmd.Flags().Bool("base-token0", false, "denominate capital in token0")
	cmd.Flags().String("globals", config.GlobalsRPC, "fee growth globals source (rpc, subgraph)")
	cmd.Flags().Bool("onchain-reserves", false, "read entry reserves with balanceOf at the first block")
	cmd.Flags().String("cache", "./data/series_cache.json", "block and globals cache file, empty disables")
	cmd.Flags().Int("workers", series.DefaultWorkers, "concurrent row lookups")
	cmd.Flags().Int("batch-size", series.DefaultBatchSize, "rows per cache flush")
	cmd.Flags().String("out-dir", "./data", "report directory")
	cmd.Flags().StringSlice("formats", []string{"csv"}, "report formats (csv, md)")
	cmd.Flags().String("jsonl", "", "append rows and run summary to this JSONL path")
	cmd.Flags().String("pg-dsn", "", "Postgres DSN")
	cmd.Flags().Bool("migrate", false, "apply schema migrations before writing")
	return cmd
}

func runBacktest(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadBacktest(configFile(cmd), cmd.Flags())
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

	sg, err := subgraph.New(cfg.SubgraphURL, subgraph.Options{APIKey: cfg.SubgraphAPIKey}, logger)
	if err != nil {
		return err
	}

	logger.Info("backtest start",
		zap.String("pool", cfg.Pool.Hex()),
		zap.Uint64("from", cfg.From),
		zap.Uint64("to", cfg.To),
		zap.Float64("price_lower", cfg.PriceLower),
		zap.Float64("price_upper", cfg.PriceUpper),
		zap.Float64("capital", cfg.Capital),
		zap.String("globals", cfg.Globals),
	)

	hours, err := sg.PoolHourData(ctx, cfg.Pool, int64(cfg.From), int64(cfg.To))
	if err != nil {
		return fmt.Errorf("pool hour data: %w", err)
	}
	rows, err := series.Rows(hours)
	if err != nil {
		return err
	}

	chainClient, err := dialChain(ctx, cfg.Chain)
	if err != nil {
		return err
	}
	defer chainClient.Close()

	reader, err := dex.NewPoolReader(chainClient, logger)
	if err != nil {
		return err
	}
	var globals series.GlobalsSource = reader
	if cfg.Globals == config.GlobalsSubgraph {
		globals = sg
	}
	var reserves series.ReserveSource
	if cfg.OnchainReserves {
		reserves = reader
	}

	enricher, err := series.NewEnricher(series.Config{
		Pool:      cfg.Pool,
		Token0:    common.HexToAddress(hours[0].Token0.Address),
		Token1:    common.HexToAddress(hours[0].Token1.Address),
		Workers:   cfg.Workers,
		BatchSize: cfg.BatchSize,
	}, chainClient, globals, reserves, logger)
	if err != nil {
		return err
	}

	cache, err := series.LoadCache(cfg.CacheFile)
	if err != nil {
		return err
	}
	rows, err = enricher.Enrich(ctx, rows, cache, func(series.Batch) error {
		if cfg.CacheFile == "" {
			return nil
		}
		return cache.Save(cfg.CacheFile)
	})
	if err != nil {
		return err
	}

	base := liquidity.BaseToken1
	if cfg.BaseToken0 {
		base = liquidity.BaseToken0
	}
	btCfg := backtest.Config{
		PriceLower: cfg.PriceLower,
		PriceUpper: cfg.PriceUpper,
		Capital:    cfg.Capital,
		Base:       base,
	}
	builder, err := backtest.NewBuilder(btCfg)
	if err != nil {
		return err
	}
	result, err := builder.Build(rows)
	if err != nil {
		return err
	}
	report := aggregate.Aggregate(result)

	if err := writeReports(cfg, btCfg, result, report); err != nil {
		return err
	}
	if err := persist(ctx, cfg, result, report.Summary, logger); err != nil {
		return err
	}

	logger.Info("backtest done",
		zap.Int("rows", report.Summary.Rows),
		zap.Int("skipped_rows", report.Summary.SkippedRows),
		zap.Int("days", report.Summary.Days),
		zap.Float64("fee_value", report.Summary.TotalFeeValue),
		zap.Float64("apr", report.Summary.APR),
		zap.String("out_dir", cfg.OutDir),
	)
	return nil
}

func writeReports(cfg config.BacktestConfig, btCfg backtest.Config, result backtest.Series, report aggregate.Report) error {
	prefix := filepath.Join(cfg.OutDir, strings.ToLower(cfg.Pool.Hex()))
	for _, format := range cfg.Formats {
		switch format {
		case "csv":
			if err := writeOutput(prefix+"_rows.csv", func(w io.Writer) error {
				return reporting.WriteRows(w, result.Results)
			}); err != nil {
				return err
			}
			if err := writeOutput(prefix+"_daily.csv", func(w io.Writer) error {
				return reporting.WriteDaily(w, report.Daily)
			}); err != nil {
				return err
			}
			if err := writeOutput(prefix+"_summary.csv", func(w io.Writer) error {
				return reporting.WriteSummary(w, report.Summary)
			}); err != nil {
				return err
			}
		case "md":
			if err := writeOutput(prefix+"_report.md", func(w io.Writer) error {
				_, err := io.WriteString(w, reporting.RenderMarkdown(cfg.Pool.Hex(), btCfg, report))
				return err
			}); err != nil {
				return err
			}
		}
	}
	return nil
}

func persist(ctx context.Context, cfg config.BacktestConfig, result backtest.Series, summary aggregate.Summary, logger *zap.Logger) error {
	var sinks []storage.Storage
	if cfg.JSONL != "" {
		sinks = append(sinks, storage.NewJsonlStorage(cfg.JSONL))
	}
	if cfg.PGDSN != "" {
		store, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return err
		}
		defer store.Close()
		if cfg.Migrate {
			if err := store.Migrate(ctx); err != nil {
				return err
			}
		}
		sinks = append(sinks, store)
	}
	if len(sinks) == 0 {
		return nil
	}

	run := storage.NewRun(cfg.Pool.Hex(), result, summary)
	rows := storage.NewRows(run.RunID, result.Results)
	for _, sink := range sinks {
		if err := sink.PutRows(ctx, rows); err != nil {
			return fmt.Errorf("put rows: %w", err)
		}
		if err := sink.SaveRun(ctx, run); err != nil {
			return fmt.Errorf("save run: %w", err)
		}
	}
	logger.Info("backtest persisted", zap.String("run_id", run.RunID), zap.Int("rows", len(rows)), zap.Int("sinks", len(sinks)))
	return nil
}
