package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"lpbacktest/internal/aggregate"
	"lpbacktest/internal/backtest"
	"lpbacktest/internal/liquidity"
	"lpbacktest/internal/model"
)

func readLines(t *testing.T, path string) []map[string]interface{} {
	t.Helper()
	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer file.Close()

	var out []map[string]interface{}
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var line map[string]interface{}
		if err := json.Unmarshal(scanner.Bytes(), &line); err != nil {
			t.Fatalf("decode line: %v", err)
		}
		out = append(out, line)
	}
	return out
}

func TestJsonlStorage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "rows.jsonl")
	sink := NewJsonlStorage(path)
	ctx := context.Background()

	rows := []model.BacktestRow{
		{RunID: "r", Timestamp: 1, Fee0: "0.5", Fee1: "0"},
		{RunID: "r", Timestamp: 2, Fee0: "0", Fee1: "1.25", Skipped: true, Reason: "snapshot unavailable"},
	}
	if err := sink.PutRows(ctx, rows); err != nil {
		t.Fatalf("put rows: %v", err)
	}
	if err := sink.PutRows(ctx, nil); err != nil {
		t.Fatalf("put empty rows: %v", err)
	}
	if err := sink.SaveRun(ctx, model.BacktestRun{RunID: "r", APR: 12.5}); err != nil {
		t.Fatalf("save run: %v", err)
	}

	lines := readLines(t, path)
	if len(lines) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(lines))
	}
	if lines[1]["fee1"] != "1.25" || lines[1]["skipped"] != true {
		t.Fatalf("row mismatch: %v", lines[1])
	}

	if got := sink.RunsPath(); got != filepath.Join(filepath.Dir(path), "rows.runs.jsonl") {
		t.Fatalf("runs path mismatch: %s", got)
	}
	runs := readLines(t, sink.RunsPath())
	if len(runs) != 1 || runs[0]["apr"] != 12.5 {
		t.Fatalf("run mismatch: %v", runs)
	}
}

func TestNewRowsAndRun(t *testing.T) {
	series := backtest.Series{
		Config:  backtest.Config{PriceLower: 1500, PriceUpper: 2500, Capital: 1000, Base: liquidity.BaseToken0},
		Deposit: liquidity.Deposit{Liquidity: big.NewInt(777)},
		Results: []backtest.Result{{
			Row:       backtest.Row{Timestamp: 3600, Block: 10, Decimals0: 18, Decimals1: 6},
			Fee0Exact: big.NewRat(1, 4),
			Fee1Exact: big.NewRat(1, 3),
		}},
	}
	summary := aggregate.Summary{
		Start: time.Unix(3600, 0).UTC(),
		End:   time.Unix(7200, 0).UTC(),
		APR:   10,
	}

	run := NewRun("0xABC", series, summary)
	if run.RunID != "0xabc:3600:7200:1500:2500" {
		t.Fatalf("run id mismatch: %s", run.RunID)
	}
	if run.Base != "token0" || run.Liquidity != "777" || run.APR != 10 {
		t.Fatalf("run mismatch: %+v", run)
	}

	rows := NewRows(run.RunID, series.Results)
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	if rows[0].Fee0 != "0.250000000000000000" || rows[0].Fee1 != "0.333333" {
		t.Fatalf("fee formatting mismatch: %+v", rows[0])
	}
	if rows[0].Block != 10 || rows[0].RunID != run.RunID {
		t.Fatalf("row mismatch: %+v", rows[0])
	}
}
