package config

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/pflag"
)

// FeesConfig holds configuration for the position fee calculator.
type FeesConfig struct {
	Chain
	Pool common.Address
	// MintTx, when set, supplies the range, liquidity and mint block.
	MintTx       string
	TickLower    int32
	TickUpper    int32
	TickSpacing  int32
	Liquidity    *big.Int
	Amount0      string
	Amount1      string
	MintBlock    uint64
	CurrentBlock uint64

	MaxAttempts     int
	MaxAlignRounds  int
	ShiftCorrection bool

	Checkpoint string
	PGDSN      string
	Advance    bool
	Out        string
	LogLevel   string
}

// LoadFees merges config file, environment variables, and flags into FeesConfig.
func LoadFees(cfgFile string, flags *pflag.FlagSet) (FeesConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]interface{}{
		"max-attempts":     10,
		"max-align-rounds": 4,
	})
	if err != nil {
		return FeesConfig{}, err
	}

	cfg := FeesConfig{
		Chain:           loadChain(v),
		MintTx:          strings.TrimSpace(v.GetString("mint-tx")),
		TickLower:       v.GetInt32("tick-lower"),
		TickUpper:       v.GetInt32("tick-upper"),
		TickSpacing:     v.GetInt32("tick-spacing"),
		Amount0:         v.GetString("amount0"),
		Amount1:         v.GetString("amount1"),
		MintBlock:       v.GetUint64("mint-block"),
		CurrentBlock:    v.GetUint64("current-block"),
		MaxAttempts:     v.GetInt("max-attempts"),
		MaxAlignRounds:  v.GetInt("max-align-rounds"),
		ShiftCorrection: v.GetBool("shift-correction"),
		Checkpoint:      v.GetString("checkpoint"),
		PGDSN:           v.GetString("pg-dsn"),
		Advance:         v.GetBool("advance"),
		Out:             v.GetString("out"),
		LogLevel:        v.GetString("log-level"),
	}
	if err := cfg.Chain.validate(); err != nil {
		return FeesConfig{}, err
	}

	pool := v.GetString("pool")
	if !common.IsHexAddress(pool) {
		return FeesConfig{}, fmt.Errorf("invalid pool address: %q", pool)
	}
	cfg.Pool = common.HexToAddress(pool)

	if liq := strings.TrimSpace(v.GetString("liquidity")); liq != "" {
		l, ok := new(big.Int).SetString(liq, 10)
		if !ok || l.Sign() <= 0 {
			return FeesConfig{}, fmt.Errorf("invalid liquidity: %q", liq)
		}
		cfg.Liquidity = l
	}

	if cfg.MintTx == "" {
		if cfg.TickLower >= cfg.TickUpper {
			return FeesConfig{}, fmt.Errorf("tick-lower %d must be below tick-upper %d", cfg.TickLower, cfg.TickUpper)
		}
		if cfg.MintBlock == 0 {
			return FeesConfig{}, fmt.Errorf("mint-block or mint-tx is required")
		}
		if cfg.Liquidity == nil && (cfg.Amount0 == "" || cfg.Amount1 == "") {
			return FeesConfig{}, fmt.Errorf("liquidity or both amount0 and amount1 are required")
		}
	}
	if cfg.CurrentBlock != 0 && cfg.CurrentBlock < cfg.MintBlock {
		return FeesConfig{}, fmt.Errorf("current-block %d precedes mint-block %d", cfg.CurrentBlock, cfg.MintBlock)
	}
	return cfg, nil
}
