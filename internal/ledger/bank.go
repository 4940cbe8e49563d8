// Package ledger is an in-memory host for pairs: token balances with a
// revertible journal, a manual block clock and a registry of swap callees.
package ledger

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"pairEngine/internal/fixedmath"
)

var (
	ErrInsufficientBalance = errors.New("ledger: transfer amount exceeds balance")
	ErrUnknownToken        = errors.New("ledger: unknown token")
	ErrTokenExists         = errors.New("ledger: token already registered")
)

// Bank holds balances of every registered token. It is not safe for concurrent use.
type Bank struct {
	tokens   map[common.Address]*Token
	balances map[common.Address]map[common.Address]*uint256.Int
	supply   map[common.Address]*uint256.Int
	journal  []change
	logger   *zap.Logger
}

type change struct {
	token  common.Address
	holder common.Address
	prev   *uint256.Int
	supply bool
}

func NewBank(logger *zap.Logger) *Bank {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bank{
		tokens:   make(map[common.Address]*Token),
		balances: make(map[common.Address]map[common.Address]*uint256.Int),
		supply:   make(map[common.Address]*uint256.Int),
		logger:   logger,
	}
}

// NewToken registers a token. feeBps is burned from every transfer, out of 10000.
func (b *Bank) NewToken(address common.Address, symbol string, feeBps uint16) (*Token, error) {
	if address == (common.Address{}) {
		return nil, fmt.Errorf("token %s: zero address", symbol)
	}
	if _, ok := b.tokens[address]; ok {
		return nil, fmt.Errorf("token %s: %w", symbol, ErrTokenExists)
	}
	if feeBps > feeDenominator {
		return nil, fmt.Errorf("token %s: fee %d exceeds %d", symbol, feeBps, feeDenominator)
	}
	t := &Token{bank: b, address: address, symbol: symbol, feeBps: feeBps}
	b.tokens[address] = t
	b.balances[address] = make(map[common.Address]*uint256.Int)
	b.supply[address] = new(uint256.Int)
	b.logger.Debug("token registered", zap.String("symbol", symbol), zap.String("address", address.Hex()))
	return t, nil
}

func (b *Bank) Token(address common.Address) (*Token, bool) {
	t, ok := b.tokens[address]
	return t, ok
}

// Tokens returns the registered tokens in no particular order.
func (b *Bank) Tokens() []*Token {
	out := make([]*Token, 0, len(b.tokens))
	for _, t := range b.tokens {
		out = append(out, t)
	}
	return out
}

func (b *Bank) BalanceOf(token, holder common.Address) *uint256.Int {
	if bal, ok := b.balances[token][holder]; ok {
		return bal.Clone()
	}
	return new(uint256.Int)
}

func (b *Bank) TotalSupply(token common.Address) *uint256.Int {
	if s, ok := b.supply[token]; ok {
		return s.Clone()
	}
	return new(uint256.Int)
}

// Snapshot returns an id that RevertToSnapshot can roll back to.
func (b *Bank) Snapshot() int { return len(b.journal) }

// RevertToSnapshot undoes every balance change made after Snapshot returned id.
func (b *Bank) RevertToSnapshot(id int) {
	if id < 0 || id > len(b.journal) {
		b.logger.Warn("revert to unknown snapshot", zap.Int("id", id), zap.Int("journal", len(b.journal)))
		return
	}
	for i := len(b.journal) - 1; i >= id; i-- {
		c := b.journal[i]
		if c.supply {
			b.supply[c.token] = c.prev
			continue
		}
		if c.prev == nil {
			delete(b.balances[c.token], c.holder)
		} else {
			b.balances[c.token][c.holder] = c.prev
		}
	}
	b.journal = b.journal[:id]
}

// Commit drops the journal. Snapshot ids taken before Commit become invalid.
func (b *Bank) Commit() { b.journal = b.journal[:0] }

func (b *Bank) setBalance(token, holder common.Address, v *uint256.Int) {
	b.journal = append(b.journal, change{token: token, holder: holder, prev: b.balances[token][holder]})
	b.balances[token][holder] = v
}

func (b *Bank) setSupply(token common.Address, v *uint256.Int) {
	b.journal = append(b.journal, change{token: token, prev: b.supply[token], supply: true})
	b.supply[token] = v
}

func (b *Bank) transfer(token, from, to common.Address, amount *uint256.Int, feeBps uint16) error {
	if _, ok := b.balances[token]; !ok {
		return ErrUnknownToken
	}
	bal := b.BalanceOf(token, from)
	if bal.Lt(amount) {
		return ErrInsufficientBalance
	}
	fee := new(uint256.Int)
	if feeBps > 0 {
		var err error
		if fee, err = fixedmath.MulDiv(amount, uint256.NewInt(uint64(feeBps)), uint256.NewInt(feeDenominator)); err != nil {
			return err
		}
	}
	received := new(uint256.Int).Sub(amount, fee)
	toBal, err := fixedmath.Add(b.BalanceOf(token, to), received)
	if from == to {
		toBal, err = fixedmath.Add(new(uint256.Int).Sub(bal, amount), received)
	}
	if err != nil {
		return err
	}

	b.setBalance(token, from, new(uint256.Int).Sub(bal, amount))
	b.setBalance(token, to, toBal)
	if !fee.IsZero() {
		b.setSupply(token, new(uint256.Int).Sub(b.supply[token], fee))
	}
	return nil
}

func (b *Bank) mint(token, to common.Address, amount *uint256.Int) error {
	if _, ok := b.balances[token]; !ok {
		return ErrUnknownToken
	}
	supply, err := fixedmath.Add(b.supply[token], amount)
	if err != nil {
		return err
	}
	b.setSupply(token, supply)
	b.setBalance(token, to, new(uint256.Int).Add(b.BalanceOf(token, to), amount))
	return nil
}
