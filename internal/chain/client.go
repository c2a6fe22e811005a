package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
)

// MaxSearchIterations bounds the timestamp to block binary search.
const MaxSearchIterations = 100

var ErrBlockNotFound = errors.New("no block at or before timestamp")

// Options tune request retries.
type Options struct {
	Attempts uint
	Delay    time.Duration
}

func (o Options) withDefaults() Options {
	if o.Attempts == 0 {
		o.Attempts = 3
	}
	if o.Delay <= 0 {
		o.Delay = 200 * time.Millisecond
	}
	return o
}

// Client wraps go-ethereum RPC and provides helper methods.
type Client struct {
	rpcClient *rpc.Client
	ethClient *ethclient.Client
	opts      Options

	mu      sync.RWMutex
	tsCache map[uint64]uint64
}

// NewClient creates a new chain client from the RPC URL.
func NewClient(ctx context.Context, rpcURL string, opts Options) (*Client, error) {
	rpcClient, err := rpc.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, err
	}

	return &Client{
		rpcClient: rpcClient,
		ethClient: ethclient.NewClient(rpcClient),
		opts:      opts.withDefaults(),
		tsCache:   make(map[uint64]uint64),
	}, nil
}

// Close closes the underlying RPC client.
func (c *Client) Close() {
	if c.rpcClient != nil {
		c.rpcClient.Close()
	}
}

// IsRetryableErr reports whether a failed call may succeed when repeated.
func IsRetryableErr(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	msg := err.Error()
	return !(strings.Contains(msg, "execution reverted") ||
		strings.Contains(msg, "out of gas") ||
		strings.Contains(msg, "invalid argument"))
}

func doWithRetry[T any](ctx context.Context, opts Options, fn func() (T, error)) (T, error) {
	return retry.DoWithData(fn,
		retry.Attempts(opts.Attempts),
		retry.Delay(opts.Delay),
		retry.RetryIf(IsRetryableErr),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
	)
}

// GetChainID returns the chain ID.
func (c *Client) GetChainID(ctx context.Context) (*big.Int, error) {
	return doWithRetry(ctx, c.opts, func() (*big.Int, error) {
		return c.ethClient.ChainID(ctx)
	})
}

// LatestBlockNumber returns the latest block number.
func (c *Client) LatestBlockNumber(ctx context.Context) (uint64, error) {
	return doWithRetry(ctx, c.opts, func() (uint64, error) {
		return c.ethClient.BlockNumber(ctx)
	})
}

// HeaderByNumber returns the block header by number.
func (c *Client) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	return doWithRetry(ctx, c.opts, func() (*types.Header, error) {
		return c.ethClient.HeaderByNumber(ctx, number)
	})
}

// BlockTimestamp returns the block timestamp, using an in-memory cache.
func (c *Client) BlockTimestamp(ctx context.Context, number uint64) (uint64, error) {
	c.mu.RLock()
	ts, ok := c.tsCache[number]
	c.mu.RUnlock()
	if ok {
		return ts, nil
	}

	header, err := c.HeaderByNumber(ctx, new(big.Int).SetUint64(number))
	if err != nil {
		return 0, err
	}

	ts = header.Time
	c.mu.Lock()
	c.tsCache[number] = ts
	c.mu.Unlock()

	return ts, nil
}

// BlockAtTimestamp returns the last block whose timestamp is <= ts.
func (c *Client) BlockAtTimestamp(ctx context.Context, ts uint64) (uint64, error) {
	latest, err := c.LatestBlockNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("latest block: %w", err)
	}
	return SearchBlock(ctx, latest, ts, c.BlockTimestamp)
}

// SearchBlock binary searches [0, latest] for the last block with a
// timestamp <= target.
func SearchBlock(ctx context.Context, latest, target uint64, timestampOf func(context.Context, uint64) (uint64, error)) (uint64, error) {
	low, high := uint64(0), latest
	best, found := uint64(0), false
	for i := 0; i < MaxSearchIterations && low <= high; i++ {
		mid := low + (high-low)/2
		ts, err := timestampOf(ctx, mid)
		if err != nil {
			return 0, fmt.Errorf("block %d timestamp: %w", mid, err)
		}
		if ts == target {
			return mid, nil
		}
		if ts < target {
			best, found = mid, true
			low = mid + 1
			continue
		}
		if mid == 0 {
			break
		}
		high = mid - 1
	}
	if !found {
		return 0, fmt.Errorf("%w: %d", ErrBlockNotFound, target)
	}
	return best, nil
}

// TransactionReceipt returns the receipt of a mined transaction.
func (c *Client) TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	return doWithRetry(ctx, c.opts, func() (*types.Receipt, error) {
		return c.ethClient.TransactionReceipt(ctx, hash)
	})
}

// CallContract performs an eth_call for a contract method.
func (c *Client) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	return doWithRetry(ctx, c.opts, func() ([]byte, error) {
		return c.ethClient.CallContract(ctx, msg, blockNumber)
	})
}
