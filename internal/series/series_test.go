package series

import (
	"context"
	"errors"
	"math/big"
	"path/filepath"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lpbacktest/internal/backtest"
	"lpbacktest/internal/feegrowth"
	"lpbacktest/internal/model"
	"lpbacktest/internal/resolver"
)

var testPool = common.HexToAddress("0x9999999999999999999999999999999999999999")

// Block n has timestamp 1000*n; globals at block b are (b, 2b).
type fakeChain struct {
	mu            sync.Mutex
	blockCalls    int32
	globalsCalls  int32
	failAt        map[uint64]bool
	balancesBlock uint64
}

func (f *fakeChain) BlockAtTimestamp(_ context.Context, ts uint64) (uint64, error) {
	atomic.AddInt32(&f.blockCalls, 1)
	return ts / 1000, nil
}

func (f *fakeChain) Globals(_ context.Context, pool common.Address, block uint64) (feegrowth.Growth, error) {
	atomic.AddInt32(&f.globalsCalls, 1)
	if pool != testPool {
		return feegrowth.Growth{}, errors.New("wrong pool")
	}
	if f.failAt[block] {
		return feegrowth.Growth{}, errors.New("pool not indexed")
	}
	return feegrowth.NewGrowth(new(big.Int).SetUint64(block), new(big.Int).SetUint64(2*block)), nil
}

func (f *fakeChain) Balances(_ context.Context, _, _, _ common.Address, block uint64) (*big.Int, *big.Int, error) {
	f.mu.Lock()
	f.balancesBlock = block
	f.mu.Unlock()
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(19), nil), big.NewInt(25_000_000), nil
}

func testRows(n int) []backtest.Row {
	rows := make([]backtest.Row, n)
	for i := range rows {
		rows[i] = backtest.Row{Timestamp: int64(1000 * (i + 1)), Close: 2000, High: 2000, Low: 2000, Decimals0: 18, Decimals1: 6}
	}
	return rows
}

func TestEnrichPreservesOrder(t *testing.T) {
	chain := &fakeChain{}
	e, err := NewEnricher(Config{Pool: testPool, Workers: 4, BatchSize: 7}, chain, chain, nil, nil)
	require.NoError(t, err)

	rows := testRows(50)
	var batches []Batch
	out, err := e.Enrich(context.Background(), rows, nil, func(b Batch) error {
		batches = append(batches, b)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, out, 50)
	assert.Len(t, batches, 8)

	for i, row := range out {
		block := uint64(i + 1)
		assert.Equal(t, rows[i].Timestamp, row.Timestamp)
		assert.Equal(t, block, row.Block)
		assert.Equal(t, new(big.Int).SetUint64(block), row.Global.Token0)
		assert.Equal(t, new(big.Int).SetUint64(2*block), row.Global.Token1)
		assert.NoError(t, row.Unavailable)
	}
	assert.Equal(t, uint64(0), rows[0].Block, "input rows must not be mutated")
}

func TestEnrichUsesCache(t *testing.T) {
	chain := &fakeChain{}
	e, err := NewEnricher(Config{Pool: testPool}, chain, chain, nil, nil)
	require.NoError(t, err)

	cache := NewCache()
	cache.SetBlock(1000, 77)
	cache.SetGlobals(77, feegrowth.NewGrowth(big.NewInt(5), big.NewInt(6)))

	out, err := e.Enrich(context.Background(), testRows(2), cache, nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(77), out[0].Block)
	assert.Equal(t, big.NewInt(5), out[0].Global.Token0)
	assert.EqualValues(t, 1, atomic.LoadInt32(&chain.blockCalls))
	assert.EqualValues(t, 1, atomic.LoadInt32(&chain.globalsCalls))

	blocks, globals := cache.Len()
	assert.Equal(t, 2, blocks)
	assert.Equal(t, 2, globals)
}

func TestEnrichMarksUnavailableRows(t *testing.T) {
	chain := &fakeChain{failAt: map[uint64]bool{2: true}}
	e, err := NewEnricher(Config{Pool: testPool}, chain, chain, nil, nil)
	require.NoError(t, err)

	out, err := e.Enrich(context.Background(), testRows(3), nil, nil)
	require.NoError(t, err)
	assert.NoError(t, out[0].Unavailable)
	assert.ErrorIs(t, out[1].Unavailable, resolver.ErrSnapshotUnavailable)
	assert.Equal(t, uint64(2), out[1].Block)
	assert.NoError(t, out[2].Unavailable)
}

func TestEnrichEntryReserves(t *testing.T) {
	chain := &fakeChain{}
	cfg := Config{
		Pool:   testPool,
		Token0: common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"),
		Token1: common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"),
	}
	e, err := NewEnricher(cfg, chain, chain, chain, nil)
	require.NoError(t, err)

	out, err := e.Enrich(context.Background(), testRows(2), nil, nil)
	require.NoError(t, err)
	assert.InDelta(t, 10, out[0].TVL0, 1e-12)
	assert.InDelta(t, 25, out[0].TVL1, 1e-12)
	assert.Equal(t, uint64(1), chain.balancesBlock)
	assert.Zero(t, out[1].TVL0)
}

func TestEnrichStopsOnCancel(t *testing.T) {
	chain := &fakeChain{}
	e, err := NewEnricher(Config{Pool: testPool}, chain, chain, nil, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = e.Enrich(ctx, testRows(3), nil, nil)
	require.ErrorIs(t, err, context.Canceled)
}

func TestNewEnricherRequiresSources(t *testing.T) {
	_, err := NewEnricher(Config{}, nil, &fakeChain{}, nil, nil)
	require.Error(t, err)
}

func TestCacheRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache", "series.json")

	cache := NewCache()
	cache.SetBlock(1_700_000_000, 19_000_000)
	huge, _ := new(big.Int).SetString("115792089237316195423570985008687907853269984665640564039457584007913129639935", 10)
	cache.SetGlobals(19_000_000, feegrowth.NewGrowth(huge, big.NewInt(3)))
	require.NoError(t, cache.Save(path))

	loaded, err := LoadCache(path)
	require.NoError(t, err)
	block, ok := loaded.Block(1_700_000_000)
	require.True(t, ok)
	assert.Equal(t, uint64(19_000_000), block)
	g, ok := loaded.Globals(19_000_000)
	require.True(t, ok)
	assert.Equal(t, 0, g.Token0.Cmp(huge))
	assert.Equal(t, int64(3), g.Token1.Int64())
}

func TestLoadCacheMissingFile(t *testing.T) {
	cache, err := LoadCache(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)
	blocks, globals := cache.Len()
	assert.Zero(t, blocks)
	assert.Zero(t, globals)
}

func TestSplitBatches(t *testing.T) {
	got, err := SplitBatches(5, 2)
	require.NoError(t, err)
	want := []Batch{{From: 0, To: 1}, {From: 2, To: 3}, {From: 4, To: 4}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("batches mismatch: %+v != %+v", got, want)
	}

	got, err = SplitBatches(0, 3)
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = SplitBatches(3, 0)
	require.Error(t, err)
}

func TestRowsInvertsPrices(t *testing.T) {
	hours := []model.PoolHour{{
		PeriodStartUnix: 3600,
		High:            "0.0005",
		Low:             "0.0004",
		Close:           "0.0004",
		Liquidity:       "123456789",
		TVLUSD:          "1000",
		TVL0:            "1.5",
		TVL1:            "3000",
		Token0:          model.TokenMeta{Decimals: 18},
		Token1:          model.TokenMeta{Decimals: 6},
	}}

	rows, err := Rows(hours)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	row := rows[0]
	assert.InDelta(t, 2500, row.High, 1e-9)
	assert.InDelta(t, 2000, row.Low, 1e-9)
	assert.InDelta(t, 2500, row.Close, 1e-9)
	assert.Equal(t, "123456789", row.Liquidity.String())
	assert.Equal(t, 18, row.Decimals0)
	assert.Equal(t, 6, row.Decimals1)
	assert.Equal(t, 1.5, row.TVL0)
}

func TestRowsRejectsZeroPrice(t *testing.T) {
	_, err := Rows([]model.PoolHour{{PeriodStartUnix: 1, High: "1", Low: "0", Close: "1"}})
	require.Error(t, err)
}
