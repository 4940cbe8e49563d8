package ledger

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"pairEngine/internal/pair"
)

const feeDenominator = 10000

// Token is a handle on one token's balances in a Bank.
type Token struct {
	bank    *Bank
	address common.Address
	symbol  string
	feeBps  uint16
}

func (t *Token) Address() common.Address { return t.address }
func (t *Token) Symbol() string          { return t.symbol }

// FeeBps is the share of each transfer that is burned, out of 10000.
func (t *Token) FeeBps() uint16 { return t.feeBps }

func (t *Token) BalanceOf(owner common.Address) *uint256.Int {
	return t.bank.BalanceOf(t.address, owner)
}

func (t *Token) TotalSupply() *uint256.Int { return t.bank.TotalSupply(t.address) }

// Transfer moves amount from from. The recipient receives amount less the transfer fee.
func (t *Token) Transfer(from, to common.Address, amount *uint256.Int) error {
	if err := t.bank.transfer(t.address, from, to, amount, t.feeBps); err != nil {
		return fmt.Errorf("%s transfer: %w", t.symbol, err)
	}
	return nil
}

func (t *Token) Mint(to common.Address, amount *uint256.Int) error {
	if err := t.bank.mint(t.address, to, amount); err != nil {
		return fmt.Errorf("%s mint: %w", t.symbol, err)
	}
	return nil
}

// Lookup resolves a registered token as a pair.Token.
func (b *Bank) Lookup(address common.Address) (pair.Token, bool) {
	t, ok := b.tokens[address]
	if !ok {
		return nil, false
	}
	return t, true
}
