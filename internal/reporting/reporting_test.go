package reporting

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lpbacktest/internal/aggregate"
	"lpbacktest/internal/backtest"
	"lpbacktest/internal/feegrowth"
	"lpbacktest/internal/fixedpoint"
	"lpbacktest/internal/position"
)

func TestFormatTokenAmount(t *testing.T) {
	tests := []struct {
		raw      int64
		decimals int
		want     string
	}{
		{raw: 1_500_000, decimals: 6, want: "1.5"},
		{raw: -250, decimals: 2, want: "-2.5"},
		{raw: 42, decimals: 0, want: "42"},
		{raw: 1, decimals: 18, want: "0.000000000000000001"},
	}
	for _, tt := range tests {
		got := formatTokenAmount(big.NewInt(tt.raw), tt.decimals)
		if got != tt.want {
			t.Fatalf("formatTokenAmount(%d, %d) = %s, want %s", tt.raw, tt.decimals, got, tt.want)
		}
	}
	assert.Equal(t, "0", formatTokenAmount(nil, 6))
}

func TestFormatExact(t *testing.T) {
	assert.Equal(t, "0.125", formatExact(big.NewRat(1, 8), 6))
	assert.Equal(t, "0.333333", formatExact(big.NewRat(1, 3), 6))
	assert.Equal(t, "0", formatExact(nil, 6))
}

func readCSV(t *testing.T, data string) [][]string {
	t.Helper()
	r := csv.NewReader(strings.NewReader(data))
	r.Comma = Separator
	records, err := r.ReadAll()
	require.NoError(t, err)
	return records
}

func TestWriteRows(t *testing.T) {
	results := []backtest.Result{
		{
			Row:         backtest.Row{Timestamp: 1_700_000_000, Close: 2000, High: 2010, Low: 1990, Liquidity: big.NewInt(123), Decimals0: 18, Decimals1: 6, Block: 99},
			GrowthDelta: feegrowth.ZeroGrowth(),
			Fee0Exact:   new(big.Rat),
			Fee1Exact:   new(big.Rat),
			ActiveRatio: 100,
		},
		{
			Row:         backtest.Row{Timestamp: 1_700_003_600, Close: 2001, Decimals0: 18, Decimals1: 6},
			GrowthDelta: feegrowth.NewGrowth(big.NewInt(5), big.NewInt(7)),
			Fee0Exact:   big.NewRat(1, 4),
			Fee1Exact:   big.NewRat(3, 2),
			Skipped:     true,
			Reason:      "snapshot unavailable; retry later",
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteRows(&buf, results))
	records := readCSV(t, buf.String())
	require.Len(t, records, 3)
	assert.Equal(t, rowHeader, records[0])

	col := func(name string) int {
		for i, h := range rowHeader {
			if h == name {
				return i
			}
		}
		t.Fatalf("missing column %s", name)
		return -1
	}
	assert.Equal(t, "2023-11-14T22:13:20Z", records[1][col("time")])
	assert.Equal(t, "99", records[1][col("block")])
	assert.Equal(t, "123", records[1][col("liquidity")])
	assert.Equal(t, "0.25", records[2][col("fee0")])
	assert.Equal(t, "1.5", records[2][col("fee1")])
	assert.Equal(t, "5", records[2][col("fee_growth_delta0_x128")])
	assert.Equal(t, "true", records[2][col("skipped")])
	assert.Equal(t, "snapshot unavailable; retry later", records[2][col("reason")])
}

func TestWriteDailyAndSummary(t *testing.T) {
	report := aggregate.Report{
		Daily: []aggregate.Day{
			{Date: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), Rows: 24, FeeValue: 12.5, ReturnPct: 1.25},
		},
		Summary: aggregate.Summary{Days: 1, Rows: 24, APR: 456.25, Liquidity: "1000"},
	}

	var daily bytes.Buffer
	require.NoError(t, WriteDaily(&daily, report.Daily))
	records := readCSV(t, daily.String())
	require.Len(t, records, 2)
	assert.Equal(t, dailyHeader, records[0])
	assert.Equal(t, "2024-01-02", records[1][0])
	assert.Equal(t, "24", records[1][1])
	assert.Equal(t, "12.5", records[1][4])

	var summary bytes.Buffer
	require.NoError(t, WriteSummary(&summary, report.Summary))
	values := map[string]string{}
	for _, rec := range readCSV(t, summary.String()) {
		values[rec[0]] = rec[1]
	}
	assert.Equal(t, "456.25", values["apr_pct"])
	assert.Equal(t, "1000", values["liquidity"])
	assert.Equal(t, "1", values["days"])

	md := RenderMarkdown("0xpool", backtest.Config{PriceLower: 1500, PriceUpper: 2500, Capital: 10000}, report)
	assert.Contains(t, md, "Pool: `0xpool`")
	assert.Contains(t, md, "| apr_pct | 456.25 |")
	assert.Contains(t, md, "| 2024-01-02 |")
}

func TestFeesDocument(t *testing.T) {
	owed, err := feegrowth.Accrue(big.NewInt(1000), feegrowth.NewGrowth(new(big.Int).Mul(big.NewInt(3), fixedpoint.Q128), big.NewInt(1)), feegrowth.ZeroGrowth())
	require.NoError(t, err)

	report := position.Report{
		Request: position.Request{
			Pool:         common.HexToAddress("0x1111111111111111111111111111111111111111"),
			Liquidity:    big.NewInt(1000),
			MintBlock:    10,
			CurrentBlock: 20,
			Decimals0:    3,
			Decimals1:    6,
		},
		Lower:         position.Boundary{Requested: -60, Tick: -120, Adjusted: true},
		MintInside:    feegrowth.ZeroGrowth(),
		CurrentInside: feegrowth.NewGrowth(big.NewInt(1), big.NewInt(2)),
		Owed:          owed,
		Resumed:       true,
		Warnings:      []error{errors.New("upper boundary unresolved")},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteFeesJSON(&buf, report))

	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, "3000", doc["owed0_raw"])
	assert.Equal(t, "3", doc["fees0"])
	assert.Equal(t, "0", doc["owed1_raw"])
	assert.Equal(t, true, doc["below_one_unit"])
	assert.Equal(t, true, doc["resumed"])
	assert.Equal(t, []interface{}{"upper boundary unresolved"}, doc["warnings"])
	lower := doc["lower"].(map[string]interface{})
	assert.EqualValues(t, -120, lower["tick"])
	assert.Equal(t, true, lower["adjusted"])
}
