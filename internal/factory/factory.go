// Package factory creates pairs and holds the fee settings they read on every call.
package factory

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"pairEngine/internal/pair"
)

const (
	DefaultSwapFeePoint      uint16 = 30
	DefaultProtocolFeeFactor uint8  = 6
)

var ErrPairExists = errors.New("factory: pair exists")

// Host supplies the collaborators every pair shares. Callees, Journal and
// Events are optional.
type Host struct {
	Clock   pair.Clock
	Callees pair.CalleeRegistry
	Journal pair.Journal
	Events  EventSink
}

// EventSink receives the events of every pair, tagged with the emitting pair.
type EventSink interface {
	PairEvent(pair common.Address, ev pair.Event)
}

type pairEmitter struct {
	pair common.Address
	sink EventSink
}

func (e pairEmitter) Emit(ev pair.Event) { e.sink.PairEvent(e.pair, ev) }

// TokenLookup resolves a token address to its handle.
type TokenLookup func(address common.Address) (pair.Token, bool)

type Config struct {
	Address           common.Address
	FeeToSetter       common.Address
	FeeTo             common.Address
	SwapFeePoint      uint16
	ProtocolFeeFactor uint8
}

// Factory implements pair.FeeSource for the pairs it creates.
type Factory struct {
	address     common.Address
	feeToSetter common.Address
	feeTo       common.Address
	swapFee     uint16
	feeFactor   uint8

	tokens TokenLookup
	host   Host
	logger *zap.Logger

	pairs    map[[2]common.Address]*pair.Pair
	allPairs []*pair.Pair
}

func New(cfg Config, tokens TokenLookup, host Host, logger *zap.Logger) (*Factory, error) {
	if tokens == nil {
		return nil, fmt.Errorf("token lookup is nil")
	}
	if host.Clock == nil {
		return nil, fmt.Errorf("clock is nil")
	}
	if cfg.SwapFeePoint > pair.FeePrecision {
		return nil, fmt.Errorf("swap fee point %d: %w", cfg.SwapFeePoint, pair.ErrInvalidFee)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Factory{
		address:     cfg.Address,
		feeToSetter: cfg.FeeToSetter,
		feeTo:       cfg.FeeTo,
		swapFee:     cfg.SwapFeePoint,
		feeFactor:   cfg.ProtocolFeeFactor,
		tokens:      tokens,
		host:        host,
		logger:      logger,
		pairs:       make(map[[2]common.Address]*pair.Pair),
	}, nil
}

func (f *Factory) Address() common.Address     { return f.address }
func (f *Factory) SwapFeePoint() uint16        { return f.swapFee }
func (f *Factory) ProtocolFeeFactor() uint8    { return f.feeFactor }
func (f *Factory) FeeTo() common.Address       { return f.feeTo }
func (f *Factory) FeeToSetter() common.Address { return f.feeToSetter }

// SortTokens orders two token addresses, rejecting identical or zero addresses.
func SortTokens(tokenA, tokenB common.Address) (common.Address, common.Address, error) {
	switch bytes.Compare(tokenA.Bytes(), tokenB.Bytes()) {
	case 0:
		return common.Address{}, common.Address{}, pair.ErrIdenticalAddresses
	case 1:
		tokenA, tokenB = tokenB, tokenA
	}
	if tokenA == (common.Address{}) {
		return common.Address{}, common.Address{}, pair.ErrZeroAddress
	}
	return tokenA, tokenB, nil
}

// PairAddress derives the pair address from the factory and the sorted tokens.
func PairAddress(factory, token0, token1 common.Address) common.Address {
	return common.BytesToAddress(crypto.Keccak256(factory.Bytes(), token0.Bytes(), token1.Bytes())[12:])
}

func (f *Factory) CreatePair(tokenA, tokenB common.Address) (*pair.Pair, error) {
	token0, token1, err := SortTokens(tokenA, tokenB)
	if err != nil {
		return nil, err
	}
	key := [2]common.Address{token0, token1}
	if _, ok := f.pairs[key]; ok {
		return nil, ErrPairExists
	}
	t0, ok := f.tokens(token0)
	if !ok {
		return nil, fmt.Errorf("token %s not found", token0.Hex())
	}
	t1, ok := f.tokens(token1)
	if !ok {
		return nil, fmt.Errorf("token %s not found", token1.Hex())
	}

	address := PairAddress(f.address, token0, token1)
	var emitter pair.Emitter
	if f.host.Events != nil {
		emitter = pairEmitter{pair: address, sink: f.host.Events}
	}
	p, err := pair.New(pair.Config{
		Address: address,
		Factory: f.address,
		Token0:  t0,
		Token1:  t1,
		Fees:    f,
		Clock:   f.host.Clock,
		Callees: f.host.Callees,
		Journal: f.host.Journal,
		Emitter: emitter,
	}, f.logger)
	if err != nil {
		return nil, fmt.Errorf("new pair: %w", err)
	}
	f.pairs[key] = p
	f.allPairs = append(f.allPairs, p)

	f.logger.Info("pair created",
		zap.String("token0", token0.Hex()),
		zap.String("token1", token1.Hex()),
		zap.String("pair", address.Hex()),
		zap.Int("index", len(f.allPairs)-1),
	)
	return p, nil
}

// GetPair looks a pair up by its tokens in either order.
func (f *Factory) GetPair(tokenA, tokenB common.Address) (*pair.Pair, bool) {
	token0, token1, err := SortTokens(tokenA, tokenB)
	if err != nil {
		return nil, false
	}
	p, ok := f.pairs[[2]common.Address{token0, token1}]
	return p, ok
}

// AllPairs returns the pairs in creation order.
func (f *Factory) AllPairs() []*pair.Pair {
	out := make([]*pair.Pair, len(f.allPairs))
	copy(out, f.allPairs)
	return out
}

func (f *Factory) SetFeeTo(caller, feeTo common.Address) error {
	if caller != f.feeToSetter {
		return pair.ErrForbidden
	}
	f.feeTo = feeTo
	f.logger.Info("fee recipient set", zap.String("fee_to", feeTo.Hex()))
	return nil
}

func (f *Factory) SetFeeToSetter(caller, setter common.Address) error {
	if caller != f.feeToSetter {
		return pair.ErrForbidden
	}
	f.feeToSetter = setter
	return nil
}

func (f *Factory) SetSwapFeePoint(caller common.Address, fee uint16) error {
	if caller != f.feeToSetter {
		return pair.ErrForbidden
	}
	if fee > pair.FeePrecision {
		return pair.ErrInvalidFee
	}
	f.swapFee = fee
	f.logger.Info("swap fee set", zap.Uint16("fee", fee))
	return nil
}

func (f *Factory) SetProtocolFeeFactor(caller common.Address, factor uint8) error {
	if caller != f.feeToSetter {
		return pair.ErrForbidden
	}
	f.feeFactor = factor
	f.logger.Info("protocol fee factor set", zap.Uint8("factor", factor))
	return nil
}

// SetSwapFeeOverride sets one pair's fee point. pair.FeeInherit clears it.
func (f *Factory) SetSwapFeeOverride(caller, pairAddress common.Address, fee uint16) error {
	if caller != f.feeToSetter {
		return pair.ErrForbidden
	}
	for _, p := range f.allPairs {
		if p.Address() == pairAddress {
			return p.SetSwapFeeOverride(f.address, fee)
		}
	}
	return fmt.Errorf("pair %s not found", pairAddress.Hex())
}
