package service

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
)

var ErrRPCNotConfigured = errors.New("rpc url not configured")

// ChainReader is the subset of ethclient.Client the registry reads from.
type ChainReader interface {
	CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// ChainClient dials the RPC endpoint lazily and shares the connection.
type ChainClient struct {
	rpcURL  string
	timeout time.Duration
	retries int

	mu     sync.Mutex
	reader ChainReader
}

func NewChainClient(rpcURL string, timeout time.Duration, retries int) *ChainClient {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if retries < 0 {
		retries = 0
	}
	return &ChainClient{
		rpcURL:  strings.TrimSpace(rpcURL),
		timeout: timeout,
		retries: retries,
	}
}

// NewChainClientWithReader skips dialing; tests pass a fake reader.
func NewChainClientWithReader(reader ChainReader, timeout time.Duration, retries int) *ChainClient {
	c := NewChainClient("", timeout, retries)
	c.reader = reader
	return c
}

func (c *ChainClient) Configured() bool {
	if c == nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reader != nil || c.rpcURL != ""
}

func (c *ChainClient) getReader(ctx context.Context) (ChainReader, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.reader != nil {
		return c.reader, nil
	}
	if c.rpcURL == "" {
		return nil, ErrRPCNotConfigured
	}
	client, err := ethclient.DialContext(ctx, c.rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect rpc: %w", err)
	}
	c.reader = client
	return c.reader, nil
}

// do runs fn with a per-attempt timeout, retrying transport failures.
func (c *ChainClient) do(ctx context.Context, fn func(ctx context.Context, r ChainReader) ([]byte, error)) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
		reader, err := c.getReader(attemptCtx)
		if err != nil {
			cancel()
			if errors.Is(err, ErrRPCNotConfigured) {
				return nil, err
			}
			lastErr = err
			if !shouldRetry(ctx, attempt, c.retries) {
				break
			}
			continue
		}
		out, err := fn(attemptCtx, reader)
		cancel()
		if err != nil {
			lastErr = fmt.Errorf("rpc call failed: %w", err)
			if !shouldRetry(ctx, attempt, c.retries) {
				break
			}
			continue
		}
		return out, nil
	}
	return nil, lastErr
}

func (c *ChainClient) CodeAt(ctx context.Context, addr common.Address) ([]byte, error) {
	return c.do(ctx, func(ctx context.Context, r ChainReader) ([]byte, error) {
		return r.CodeAt(ctx, addr, nil)
	})
}

func (c *ChainClient) Call(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	return c.do(ctx, func(ctx context.Context, r ChainReader) ([]byte, error) {
		return r.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	})
}

var retryBackoff = 200 * time.Millisecond

func shouldRetry(ctx context.Context, attempt, max int) bool {
	if attempt >= max {
		return false
	}
	select {
	case <-ctx.Done():
		return false
	case <-time.After(time.Duration(attempt+1) * retryBackoff):
		return true
	}
}
