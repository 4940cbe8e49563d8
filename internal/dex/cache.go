package dex

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"pairEngine/internal/model"
)

// addressCache is a concurrency-safe map keyed by contract address.
type addressCache[T any] struct {
	mu   sync.RWMutex
	data map[common.Address]T
}

func (c *addressCache[T]) Get(address common.Address) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.data[address]
	return v, ok
}

func (c *addressCache[T]) Set(address common.Address, v T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.data == nil {
		c.data = make(map[common.Address]T)
	}
	c.data[address] = v
}

func (c *addressCache[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data)
}

// PairMetaCache holds pair metadata by pair address.
type PairMetaCache struct {
	addressCache[model.PairMeta]
}

func NewPairMetaCache() *PairMetaCache { return &PairMetaCache{} }

// TokenMetaCache holds ERC20 metadata by token address.
type TokenMetaCache struct {
	addressCache[model.TokenMeta]
}

func NewTokenMetaCache() *TokenMetaCache { return &TokenMetaCache{} }
