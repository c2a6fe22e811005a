package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/pflag"
)

// Globals sources for the backtest series.
const (
	GlobalsRPC      = "rpc"
	GlobalsSubgraph = "subgraph"
)

// BacktestConfig holds configuration for the historical backtest.
type BacktestConfig struct {
	Chain
	SubgraphURL    string
	SubgraphAPIKey string
	Pool           common.Address
	From           uint64
	To             uint64

	PriceLower float64
	PriceUpper float64
	Capital    float64
	// BaseToken0 values capital in token0 instead of token1.
	BaseToken0 bool

	Globals         string
	OnchainReserves bool
	CacheFile       string
	Workers         int
	BatchSize       int

	OutDir   string
	Formats  []string
	JSONL    string
	PGDSN    string
	Migrate  bool
	LogLevel string
}

// LoadBacktest merges config file, environment variables, and flags into BacktestConfig.
func LoadBacktest(cfgFile string, flags *pflag.FlagSet) (BacktestConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]interface{}{
		"globals":    GlobalsRPC,
		"workers":    8,
		"batch-size": 200,
		"out-dir":    "./data",
		"formats":    "csv",
		"cache":      "./data/series_cache.json",
	})
	if err != nil {
		return BacktestConfig{}, err
	}

	cfg := BacktestConfig{
		Chain:           loadChain(v),
		SubgraphURL:     v.GetString("subgraph"),
		SubgraphAPIKey:  v.GetString("subgraph-key"),
		PriceLower:      v.GetFloat64("price-lower"),
		PriceUpper:      v.GetFloat64("price-upper"),
		Capital:         v.GetFloat64("capital"),
		BaseToken0:      v.GetBool("base-token0"),
		Globals:         strings.ToLower(v.GetString("globals")),
		OnchainReserves: v.GetBool("onchain-reserves"),
		CacheFile:       v.GetString("cache"),
		Workers:         v.GetInt("workers"),
		BatchSize:       v.GetInt("batch-size"),
		OutDir:          v.GetString("out-dir"),
		Formats:         getStringSlice(v, "formats"),
		JSONL:           v.GetString("jsonl"),
		PGDSN:           v.GetString("pg-dsn"),
		Migrate:         v.GetBool("migrate"),
		LogLevel:        v.GetString("log-level"),
	}

	pool := v.GetString("pool")
	if !common.IsHexAddress(pool) {
		return BacktestConfig{}, fmt.Errorf("invalid pool address: %q", pool)
	}
	cfg.Pool = common.HexToAddress(pool)

	if strings.TrimSpace(cfg.SubgraphURL) == "" {
		return BacktestConfig{}, fmt.Errorf("subgraph url is required")
	}
	// Timestamps to blocks always go through the chain.
	if err := cfg.Chain.validate(); err != nil {
		return BacktestConfig{}, err
	}
	if cfg.Globals != GlobalsRPC && cfg.Globals != GlobalsSubgraph {
		return BacktestConfig{}, fmt.Errorf("unsupported globals source %q", cfg.Globals)
	}

	if cfg.From, err = ParseTimestamp(v.GetString("from")); err != nil {
		return BacktestConfig{}, fmt.Errorf("parse from: %w", err)
	}
	if cfg.To, err = ParseTimestamp(v.GetString("to")); err != nil {
		return BacktestConfig{}, fmt.Errorf("parse to: %w", err)
	}
	if cfg.To == 0 {
		cfg.To = uint64(time.Now().Unix())
	}
	if cfg.From == 0 || cfg.From >= cfg.To {
		return BacktestConfig{}, fmt.Errorf("invalid window: from %d to %d", cfg.From, cfg.To)
	}

	if !(cfg.PriceLower > 0) || !(cfg.PriceUpper > 0) || cfg.PriceLower == cfg.PriceUpper {
		return BacktestConfig{}, fmt.Errorf("invalid price range: %v - %v", cfg.PriceLower, cfg.PriceUpper)
	}
	if !(cfg.Capital > 0) {
		return BacktestConfig{}, fmt.Errorf("capital must be positive")
	}
	for _, f := range cfg.Formats {
		if f != "csv" && f != "md" {
			return BacktestConfig{}, fmt.Errorf("unsupported report format %q", f)
		}
	}
	return cfg, nil
}
