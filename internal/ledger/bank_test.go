package ledger

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"
)

var (
	alice = common.HexToAddress("0x00000000000000000000000000000000000a11ce")
	bob   = common.HexToAddress("0x0000000000000000000000000000000000000b0b")
)

func TestTokenTransfer(t *testing.T) {
	bank := NewBank(zap.NewNop())
	tok, err := bank.NewToken(common.HexToAddress("0x1000000000000000000000000000000000000001"), "AAA", 0)
	if err != nil {
		t.Fatalf("new token: %v", err)
	}
	if err := tok.Mint(alice, uint256.NewInt(100)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := tok.Transfer(alice, bob, uint256.NewInt(40)); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if got := tok.BalanceOf(alice).Uint64(); got != 60 {
		t.Fatalf("alice balance: got %d", got)
	}
	if got := tok.BalanceOf(bob).Uint64(); got != 40 {
		t.Fatalf("bob balance: got %d", got)
	}
	if err := tok.Transfer(bob, alice, uint256.NewInt(41)); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected insufficient balance, got %v", err)
	}
}

func TestTokenTransferFee(t *testing.T) {
	bank := NewBank(nil)
	tok, err := bank.NewToken(common.HexToAddress("0x1000000000000000000000000000000000000002"), "FOT", 100)
	if err != nil {
		t.Fatalf("new token: %v", err)
	}
	if err := tok.Mint(alice, uint256.NewInt(1000)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := tok.Transfer(alice, bob, uint256.NewInt(500)); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if got := tok.BalanceOf(bob).Uint64(); got != 495 {
		t.Fatalf("bob balance: got %d want 495", got)
	}
	if got := tok.TotalSupply().Uint64(); got != 995 {
		t.Fatalf("supply: got %d want 995", got)
	}
}

func TestSelfTransfer(t *testing.T) {
	bank := NewBank(nil)
	tok, _ := bank.NewToken(common.HexToAddress("0x1000000000000000000000000000000000000003"), "AAA", 0)
	_ = tok.Mint(alice, uint256.NewInt(10))
	if err := tok.Transfer(alice, alice, uint256.NewInt(10)); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if got := tok.BalanceOf(alice).Uint64(); got != 10 {
		t.Fatalf("balance: got %d", got)
	}
}

func TestRevertToSnapshot(t *testing.T) {
	bank := NewBank(nil)
	tok, _ := bank.NewToken(common.HexToAddress("0x1000000000000000000000000000000000000004"), "AAA", 50)
	_ = tok.Mint(alice, uint256.NewInt(1000))

	id := bank.Snapshot()
	if err := tok.Transfer(alice, bob, uint256.NewInt(400)); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	_ = tok.Mint(bob, uint256.NewInt(7))
	bank.RevertToSnapshot(id)

	if got := tok.BalanceOf(alice).Uint64(); got != 1000 {
		t.Fatalf("alice balance: got %d", got)
	}
	if got := tok.BalanceOf(bob).Uint64(); got != 0 {
		t.Fatalf("bob balance: got %d", got)
	}
	if got := tok.TotalSupply().Uint64(); got != 1000 {
		t.Fatalf("supply: got %d", got)
	}
}

func TestNewTokenRejectsDuplicate(t *testing.T) {
	bank := NewBank(nil)
	addr := common.HexToAddress("0x1000000000000000000000000000000000000005")
	if _, err := bank.NewToken(addr, "AAA", 0); err != nil {
		t.Fatalf("new token: %v", err)
	}
	if _, err := bank.NewToken(addr, "BBB", 0); !errors.Is(err, ErrTokenExists) {
		t.Fatalf("expected duplicate error, got %v", err)
	}
	if _, err := bank.NewToken(common.Address{}, "ZERO", 0); err == nil {
		t.Fatalf("expected zero address error")
	}
}

func TestClock(t *testing.T) {
	c := NewClock(100)
	c.Advance(5)
	if c.Now() != 105 {
		t.Fatalf("now: got %d", c.Now())
	}
	c.Set(1 << 32)
	if uint32(c.Now()) != 0 {
		t.Fatalf("expected wrapped timestamp, got %d", uint32(c.Now()))
	}
}
