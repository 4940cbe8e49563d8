package factory

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"pairEngine/internal/ledger"
	"pairEngine/internal/pair"
)

var (
	factoryAddr = common.HexToAddress("0xfacf000000000000000000000000000000000001")
	admin       = common.HexToAddress("0xad00000000000000000000000000000000000001")
	stranger    = common.HexToAddress("0x5700000000000000000000000000000000000001")
	tokenLow    = common.HexToAddress("0x1000000000000000000000000000000000000001")
	tokenHigh   = common.HexToAddress("0x9000000000000000000000000000000000000001")
)

func newFactory(t *testing.T) (*Factory, *ledger.Bank) {
	t.Helper()
	bank := ledger.NewBank(zap.NewNop())
	if _, err := bank.NewToken(tokenLow, "LOW", 0); err != nil {
		t.Fatalf("token: %v", err)
	}
	if _, err := bank.NewToken(tokenHigh, "HIGH", 0); err != nil {
		t.Fatalf("token: %v", err)
	}
	f, err := New(Config{
		Address:           factoryAddr,
		FeeToSetter:       admin,
		SwapFeePoint:      DefaultSwapFeePoint,
		ProtocolFeeFactor: DefaultProtocolFeeFactor,
	}, bank.Lookup, Host{Clock: ledger.NewClock(0), Journal: bank}, zap.NewNop())
	if err != nil {
		t.Fatalf("new factory: %v", err)
	}
	return f, bank
}

func TestCreatePair(t *testing.T) {
	f, _ := newFactory(t)
	p, err := f.CreatePair(tokenHigh, tokenLow)
	if err != nil {
		t.Fatalf("create pair: %v", err)
	}
	if p.Token0() != tokenLow || p.Token1() != tokenHigh {
		t.Fatalf("tokens not sorted: %s %s", p.Token0().Hex(), p.Token1().Hex())
	}
	if p.Address() != PairAddress(factoryAddr, tokenLow, tokenHigh) {
		t.Fatalf("unexpected pair address %s", p.Address().Hex())
	}
	if p.Factory() != factoryAddr {
		t.Fatalf("unexpected factory %s", p.Factory().Hex())
	}

	got, ok := f.GetPair(tokenLow, tokenHigh)
	if !ok || got != p {
		t.Fatalf("get pair failed")
	}
	if _, err := f.CreatePair(tokenLow, tokenHigh); !errors.Is(err, ErrPairExists) {
		t.Fatalf("expected pair exists, got %v", err)
	}
	if n := len(f.AllPairs()); n != 1 {
		t.Fatalf("all pairs: got %d", n)
	}
}

func TestCreatePairRejectsBadTokens(t *testing.T) {
	f, _ := newFactory(t)
	if _, err := f.CreatePair(tokenLow, tokenLow); !errors.Is(err, pair.ErrIdenticalAddresses) {
		t.Fatalf("expected identical addresses, got %v", err)
	}
	if _, err := f.CreatePair(common.Address{}, tokenLow); !errors.Is(err, pair.ErrZeroAddress) {
		t.Fatalf("expected zero address, got %v", err)
	}
	unknown := common.HexToAddress("0x2000000000000000000000000000000000000002")
	if _, err := f.CreatePair(unknown, tokenLow); err == nil {
		t.Fatalf("expected unknown token error")
	}
}

func TestGovernanceRequiresSetter(t *testing.T) {
	f, _ := newFactory(t)
	feeTo := common.HexToAddress("0xfee0000000000000000000000000000000000001")

	if err := f.SetFeeTo(stranger, feeTo); !errors.Is(err, pair.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if err := f.SetFeeTo(admin, feeTo); err != nil {
		t.Fatalf("set fee to: %v", err)
	}
	if f.FeeTo() != feeTo {
		t.Fatalf("fee to not set")
	}
	if err := f.SetSwapFeePoint(admin, pair.FeePrecision+1); !errors.Is(err, pair.ErrInvalidFee) {
		t.Fatalf("expected invalid fee, got %v", err)
	}
	if err := f.SetSwapFeePoint(admin, 25); err != nil {
		t.Fatalf("set swap fee: %v", err)
	}
	if err := f.SetProtocolFeeFactor(stranger, 4); !errors.Is(err, pair.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if err := f.SetFeeToSetter(admin, stranger); err != nil {
		t.Fatalf("set setter: %v", err)
	}
	if err := f.SetProtocolFeeFactor(stranger, 4); err != nil {
		t.Fatalf("set factor: %v", err)
	}
	if f.ProtocolFeeFactor() != 4 {
		t.Fatalf("factor: got %d", f.ProtocolFeeFactor())
	}
}

func TestPairsReadFeesFresh(t *testing.T) {
	f, _ := newFactory(t)
	p, err := f.CreatePair(tokenLow, tokenHigh)
	if err != nil {
		t.Fatalf("create pair: %v", err)
	}
	if p.SwapFee() != DefaultSwapFeePoint {
		t.Fatalf("fee: got %d", p.SwapFee())
	}
	if err := f.SetSwapFeePoint(admin, 5); err != nil {
		t.Fatalf("set fee: %v", err)
	}
	if p.SwapFee() != 5 {
		t.Fatalf("pair did not see new default: %d", p.SwapFee())
	}

	if err := f.SetSwapFeeOverride(stranger, p.Address(), 50); !errors.Is(err, pair.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if err := f.SetSwapFeeOverride(admin, p.Address(), 50); err != nil {
		t.Fatalf("override: %v", err)
	}
	if err := f.SetSwapFeePoint(admin, 7); err != nil {
		t.Fatalf("set fee: %v", err)
	}
	if p.SwapFee() != 50 {
		t.Fatalf("override not applied: %d", p.SwapFee())
	}
	// Direct calls from anyone but the factory are rejected by the pair.
	if err := p.SetSwapFeeOverride(admin, 1); !errors.Is(err, pair.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestPairUsesBankJournal(t *testing.T) {
	f, bank := newFactory(t)
	p, err := f.CreatePair(tokenLow, tokenHigh)
	if err != nil {
		t.Fatalf("create pair: %v", err)
	}
	low, _ := bank.Token(tokenLow)
	high, _ := bank.Token(tokenHigh)
	amount := uint256.NewInt(1_000_000)
	_ = low.Mint(p.Address(), amount)
	_ = high.Mint(p.Address(), amount)
	if _, err := p.Mint(admin, admin); err != nil {
		t.Fatalf("mint: %v", err)
	}

	// Output leaves the pair and then comes back when the swap fails.
	if err := p.Swap(admin, uint256.NewInt(10), new(uint256.Int), admin, nil); !errors.Is(err, pair.ErrInsufficientInput) {
		t.Fatalf("expected insufficient input, got %v", err)
	}
	if got := low.BalanceOf(p.Address()); !got.Eq(amount) {
		t.Fatalf("pair balance not restored: %s", got.Dec())
	}
}

type taggedEvents struct {
	pairs []common.Address
	names []string
}

func (e *taggedEvents) PairEvent(p common.Address, ev pair.Event) {
	e.pairs = append(e.pairs, p)
	e.names = append(e.names, ev.EventName())
}

func TestEventsTaggedWithPair(t *testing.T) {
	bank := ledger.NewBank(nil)
	_, _ = bank.NewToken(tokenLow, "LOW", 0)
	_, _ = bank.NewToken(tokenHigh, "HIGH", 0)
	events := &taggedEvents{}
	f, err := New(Config{Address: factoryAddr, FeeToSetter: admin, SwapFeePoint: DefaultSwapFeePoint},
		bank.Lookup, Host{Clock: ledger.NewClock(0), Journal: bank, Events: events}, nil)
	if err != nil {
		t.Fatalf("new factory: %v", err)
	}
	p, err := f.CreatePair(tokenLow, tokenHigh)
	if err != nil {
		t.Fatalf("create pair: %v", err)
	}
	if err := p.Sync(); err != nil {
		t.Fatalf("sync: %v", err)
	}
	if len(events.names) != 1 || events.names[0] != "Sync" || events.pairs[0] != p.Address() {
		t.Fatalf("events: %v %v", events.names, events.pairs)
	}
}
