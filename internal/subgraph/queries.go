package subgraph

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"lpbacktest/internal/feegrowth"
	"lpbacktest/internal/fixedpoint"
	"lpbacktest/internal/model"
)

// PageSize is the subgraph's maximum page length.
const PageSize = 1000

const poolHourDataQuery = `query ($pool: String!, $from: Int!, $cursor: Int!, $first: Int!) {
  poolHourDatas(
    where: {pool: $pool, periodStartUnix_gt: $from, periodStartUnix_lt: $cursor}
    orderBy: periodStartUnix
    orderDirection: desc
    first: $first
  ) {
    periodStartUnix
    liquidity
    high
    low
    close
    tvlUSD
    feesUSD
    pool {
      totalValueLockedToken0
      totalValueLockedToken1
      token0 { id symbol decimals }
      token1 { id symbol decimals }
    }
  }
}`

const poolAtBlockQuery = `query ($id: ID!, $block: Int!) {
  pool(id: $id, block: {number: $block}) {
    feeGrowthGlobal0X128
    feeGrowthGlobal1X128
  }
}`

type token struct {
	ID       string `json:"id"`
	Symbol   string `json:"symbol"`
	Decimals string `json:"decimals"`
}

type poolHourData struct {
	PeriodStartUnix int64  `json:"periodStartUnix"`
	Liquidity       string `json:"liquidity"`
	High            string `json:"high"`
	Low             string `json:"low"`
	Close           string `json:"close"`
	TVLUSD          string `json:"tvlUSD"`
	FeesUSD         string `json:"feesUSD"`
	Pool            struct {
		TVL0   string `json:"totalValueLockedToken0"`
		TVL1   string `json:"totalValueLockedToken1"`
		Token0 token  `json:"token0"`
		Token1 token  `json:"token1"`
	} `json:"pool"`
}

// PoolHourData returns the hourly candles of pool in (from, to], ascending by
// period start.
func (c *Client) PoolHourData(ctx context.Context, pool common.Address, from, to int64) ([]model.PoolHour, error) {
	if to <= from {
		return nil, fmt.Errorf("invalid window: from %d to %d", from, to)
	}

	seen := make(map[int64]struct{})
	out := make([]model.PoolHour, 0)
	cursor := to + 1
	for page := 1; ; page++ {
		var data struct {
			PoolHourDatas []poolHourData `json:"poolHourDatas"`
		}
		vars := map[string]interface{}{
			"pool":   strings.ToLower(pool.Hex()),
			"from":   from,
			"cursor": cursor,
			"first":  PageSize,
		}
		if err := c.query(ctx, poolHourDataQuery, vars, &data); err != nil {
			return nil, fmt.Errorf("poolHourDatas page %d: %w", page, err)
		}

		batch := data.PoolHourDatas
		for _, item := range batch {
			if _, ok := seen[item.PeriodStartUnix]; ok {
				continue
			}
			seen[item.PeriodStartUnix] = struct{}{}
			out = append(out, toPoolHour(item))
			if item.PeriodStartUnix < cursor {
				cursor = item.PeriodStartUnix
			}
		}
		c.logger.Debug("fetched pool hour page",
			zap.Int("page", page),
			zap.Int("rows", len(batch)),
			zap.Int("total", len(out)),
		)
		if len(batch) < PageSize {
			break
		}
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("%w: pool %s in (%d, %d]", ErrNoData, pool.Hex(), from, to)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PeriodStartUnix < out[j].PeriodStartUnix })
	return out, nil
}

// Globals returns the pool's fee growth globals as indexed at block.
func (c *Client) Globals(ctx context.Context, pool common.Address, block uint64) (feegrowth.Growth, error) {
	var data struct {
		Pool *struct {
			FeeGrowthGlobal0X128 string `json:"feeGrowthGlobal0X128"`
			FeeGrowthGlobal1X128 string `json:"feeGrowthGlobal1X128"`
		} `json:"pool"`
	}
	vars := map[string]interface{}{
		"id":    strings.ToLower(pool.Hex()),
		"block": block,
	}
	if err := c.query(ctx, poolAtBlockQuery, vars, &data); err != nil {
		return feegrowth.Growth{}, fmt.Errorf("pool at block %d: %w", block, err)
	}
	if data.Pool == nil {
		return feegrowth.Growth{}, fmt.Errorf("%w: pool %s at block %d", ErrNoData, pool.Hex(), block)
	}

	g0, err := fixedpoint.Parse(data.Pool.FeeGrowthGlobal0X128)
	if err != nil {
		return feegrowth.Growth{}, fmt.Errorf("feeGrowthGlobal0X128: %w", err)
	}
	g1, err := fixedpoint.Parse(data.Pool.FeeGrowthGlobal1X128)
	if err != nil {
		return feegrowth.Growth{}, fmt.Errorf("feeGrowthGlobal1X128: %w", err)
	}
	return feegrowth.NewGrowth(g0, g1), nil
}

func toPoolHour(item poolHourData) model.PoolHour {
	return model.PoolHour{
		PeriodStartUnix: item.PeriodStartUnix,
		High:            item.High,
		Low:             item.Low,
		Close:           item.Close,
		Liquidity:       item.Liquidity,
		TVLUSD:          item.TVLUSD,
		FeesUSD:         item.FeesUSD,
		TVL0:            item.Pool.TVL0,
		TVL1:            item.Pool.TVL1,
		Token0:          toTokenMeta(item.Pool.Token0),
		Token1:          toTokenMeta(item.Pool.Token1),
	}
}

func toTokenMeta(t token) model.TokenMeta {
	decimals, _ := strconv.ParseUint(t.Decimals, 10, 8)
	return model.TokenMeta{Address: t.ID, Symbol: t.Symbol, Decimals: uint8(decimals)}
}
