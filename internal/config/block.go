package config

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/pflag"
)

// BlockConfig holds configuration for the timestamp to block lookup.
type BlockConfig struct {
	Chain
	Timestamp uint64
	LogLevel  string
}

// LoadBlock merges config file, environment variables, and flags into BlockConfig.
func LoadBlock(cfgFile string, flags *pflag.FlagSet) (BlockConfig, error) {
	v, err := newViper(cfgFile, flags, nil)
	if err != nil {
		return BlockConfig{}, err
	}
	cfg := BlockConfig{Chain: loadChain(v), LogLevel: v.GetString("log-level")}
	if err := cfg.Chain.validate(); err != nil {
		return BlockConfig{}, err
	}
	if cfg.Timestamp, err = ParseTimestamp(v.GetString("timestamp")); err != nil {
		return BlockConfig{}, fmt.Errorf("parse timestamp: %w", err)
	}
	if cfg.Timestamp == 0 {
		return BlockConfig{}, fmt.Errorf("timestamp is required")
	}
	return cfg, nil
}

// TickConfig holds the inputs of the price to tick conversion. When Pool is
// set, decimals and spacing come from the pool and Price defaults to its
// current price.
type TickConfig struct {
	Chain
	Pool      *common.Address
	Block     uint64
	Price     float64
	Decimals0 int
	Decimals1 int
	Spacing   int32
	LogLevel  string
}

// LoadTick merges config file, environment variables, and flags into TickConfig.
func LoadTick(cfgFile string, flags *pflag.FlagSet) (TickConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]interface{}{
		"decimals0": 18,
		"decimals1": 18,
		"spacing":   60,
	})
	if err != nil {
		return TickConfig{}, err
	}
	cfg := TickConfig{
		Chain:     loadChain(v),
		Block:     v.GetUint64("block"),
		Price:     v.GetFloat64("price"),
		Decimals0: v.GetInt("decimals0"),
		Decimals1: v.GetInt("decimals1"),
		Spacing:   v.GetInt32("spacing"),
		LogLevel:  v.GetString("log-level"),
	}
	if pool := v.GetString("pool"); pool != "" {
		if !common.IsHexAddress(pool) {
			return TickConfig{}, fmt.Errorf("invalid pool address: %q", pool)
		}
		addr := common.HexToAddress(pool)
		cfg.Pool = &addr
		if err := cfg.Chain.validate(); err != nil {
			return TickConfig{}, err
		}
		return cfg, nil
	}
	if !(cfg.Price > 0) {
		return TickConfig{}, fmt.Errorf("price must be positive")
	}
	if cfg.Spacing <= 0 {
		return TickConfig{}, fmt.Errorf("spacing must be positive")
	}
	return cfg, nil
}
