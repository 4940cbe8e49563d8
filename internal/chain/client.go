// Package chain reads pair state from an Ethereum-compatible node.
package chain

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/ethclient"
)

var _ ethereum.ContractCaller = (*Client)(nil)

// Client is a read-only node client. Chain id and block timestamps are
// fetched once and remembered.
type Client struct {
	eth *ethclient.Client

	mu         sync.Mutex
	chainID    *big.Int
	timestamps map[uint64]uint64
}

// NewClient dials rpcURL.
func NewClient(ctx context.Context, rpcURL string) (*Client, error) {
	eth, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", rpcURL, err)
	}
	return &Client{eth: eth, timestamps: make(map[uint64]uint64)}, nil
}

func (c *Client) Close() {
	if c.eth != nil {
		c.eth.Close()
	}
}

func (c *Client) GetChainID(ctx context.Context) (*big.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.chainID == nil {
		id, err := c.eth.ChainID(ctx)
		if err != nil {
			return nil, err
		}
		c.chainID = id
	}
	return new(big.Int).Set(c.chainID), nil
}

func (c *Client) LatestBlockNumber(ctx context.Context) (uint64, error) {
	return c.eth.BlockNumber(ctx)
}

// BlockTimestamp returns the timestamp of block number.
func (c *Client) BlockTimestamp(ctx context.Context, number uint64) (uint64, error) {
	c.mu.Lock()
	ts, ok := c.timestamps[number]
	c.mu.Unlock()
	if ok {
		return ts, nil
	}

	header, err := c.eth.HeaderByNumber(ctx, new(big.Int).SetUint64(number))
	if err != nil {
		return 0, fmt.Errorf("header %d: %w", number, err)
	}

	c.mu.Lock()
	c.timestamps[number] = header.Time
	c.mu.Unlock()
	return header.Time, nil
}

// CallContract performs an eth_call at blockNumber, or at the latest block when nil.
func (c *Client) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	return c.eth.CallContract(ctx, msg, blockNumber)
}
