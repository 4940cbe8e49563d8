// Package pair implements the constant-product pair: reserve and liquidity
// accounting, swaps with a fee-adjusted invariant check, protocol fee minting
// and the time-weighted price accumulators.
package pair

import (
	"bytes"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"
)

// Config wires a pair to its collaborators. Journal, Emitter and Callees are optional.
type Config struct {
	Address common.Address
	Factory common.Address
	Token0  Token
	Token1  Token
	Fees    FeeSource
	Clock   Clock
	Callees CalleeRegistry
	Journal Journal
	Emitter Emitter
}

// Pair is a single pool. It is not safe for concurrent use; the host serializes calls.
type Pair struct {
	address common.Address
	factory common.Address
	token0  Token
	token1  Token
	fees    FeeSource
	clock   Clock
	callees CalleeRegistry
	journal Journal
	emitter Emitter
	logger  *zap.Logger

	reserve0             *uint256.Int
	reserve1             *uint256.Int
	blockTimestampLast   uint32
	price0CumulativeLast *uint256.Int
	price1CumulativeLast *uint256.Int
	kLast                *uint256.Int
	swapFeeOverride      uint16

	totalSupply *uint256.Int
	balances    map[common.Address]*uint256.Int
	principals  map[common.Address]Principal

	// frame is non-nil while a guarded call is running.
	frame *frame
}

type frame struct {
	snapshot int
	undo     []func()
	events   []Event
}

// New builds an empty pair. The tokens are ordered by address.
func New(cfg Config, logger *zap.Logger) (*Pair, error) {
	if cfg.Token0 == nil || cfg.Token1 == nil {
		return nil, fmt.Errorf("token is nil")
	}
	if cfg.Fees == nil {
		return nil, fmt.Errorf("fee source is nil")
	}
	if cfg.Clock == nil {
		return nil, fmt.Errorf("clock is nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	token0, token1 := cfg.Token0, cfg.Token1
	switch bytes.Compare(token0.Address().Bytes(), token1.Address().Bytes()) {
	case 0:
		return nil, ErrIdenticalAddresses
	case 1:
		token0, token1 = token1, token0
	}
	if token0.Address() == (common.Address{}) {
		return nil, ErrZeroAddress
	}

	return &Pair{
		address:              cfg.Address,
		factory:              cfg.Factory,
		token0:               token0,
		token1:               token1,
		fees:                 cfg.Fees,
		clock:                cfg.Clock,
		callees:              cfg.Callees,
		journal:              cfg.Journal,
		emitter:              cfg.Emitter,
		logger:               logger.With(zap.String("pair", cfg.Address.Hex())),
		reserve0:             new(uint256.Int),
		reserve1:             new(uint256.Int),
		price0CumulativeLast: new(uint256.Int),
		price1CumulativeLast: new(uint256.Int),
		kLast:                new(uint256.Int),
		swapFeeOverride:      FeeInherit,
		totalSupply:          new(uint256.Int),
		balances:             make(map[common.Address]*uint256.Int),
		principals:           make(map[common.Address]Principal),
	}, nil
}

// enter acquires the reentrancy guard and opens a call frame. The returned
// function must be deferred with a pointer to the call's named error result:
// on failure it undoes pair state, reverts the journal and drops the events.
func (p *Pair) enter() (func(*error), error) {
	if p.frame != nil {
		return nil, ErrLocked
	}
	f := &frame{snapshot: -1}
	if p.journal != nil {
		f.snapshot = p.journal.Snapshot()
	}
	p.frame = f

	return func(errp *error) {
		p.frame = nil
		if *errp != nil {
			for i := len(f.undo) - 1; i >= 0; i-- {
				f.undo[i]()
			}
			if p.journal != nil {
				p.journal.RevertToSnapshot(f.snapshot)
			}
			return
		}
		if p.emitter != nil {
			for _, ev := range f.events {
				p.emitter.Emit(ev)
			}
		}
	}, nil
}

func (p *Pair) record(undo func()) {
	if p.frame != nil {
		p.frame.undo = append(p.frame.undo, undo)
	}
}

func (p *Pair) emit(ev Event) {
	if p.frame != nil {
		p.frame.events = append(p.frame.events, ev)
		return
	}
	if p.emitter != nil {
		p.emitter.Emit(ev)
	}
}

func (p *Pair) Address() common.Address { return p.address }
func (p *Pair) Factory() common.Address { return p.factory }
func (p *Pair) Token0() common.Address  { return p.token0.Address() }
func (p *Pair) Token1() common.Address  { return p.token1.Address() }

// GetReserves returns copies of the recorded reserves and the last update timestamp.
func (p *Pair) GetReserves() (reserve0, reserve1 *uint256.Int, blockTimestampLast uint32) {
	return p.reserve0.Clone(), p.reserve1.Clone(), p.blockTimestampLast
}

func (p *Pair) PriceCumulativeLast() (price0, price1 *uint256.Int) {
	return p.price0CumulativeLast.Clone(), p.price1CumulativeLast.Clone()
}

func (p *Pair) KLast() *uint256.Int { return p.kLast.Clone() }

// SwapFee returns the fee point in effect: the pair override, else the factory default.
func (p *Pair) SwapFee() uint16 {
	if p.swapFeeOverride != FeeInherit {
		return p.swapFeeOverride
	}
	return p.fees.SwapFeePoint()
}

// SwapFeeOverride returns the raw override, FeeInherit when unset.
func (p *Pair) SwapFeeOverride() uint16 { return p.swapFeeOverride }

// SetSwapFeeOverride sets the pair's fee point. Only the factory may call it;
// FeeInherit clears the override.
func (p *Pair) SetSwapFeeOverride(caller common.Address, fee uint16) (err error) {
	exit, err := p.enter()
	if err != nil {
		return err
	}
	defer exit(&err)

	if caller != p.factory {
		return ErrForbidden
	}
	if fee != FeeInherit && fee > FeePrecision {
		return ErrInvalidFee
	}
	old := p.swapFeeOverride
	p.record(func() { p.swapFeeOverride = old })
	p.swapFeeOverride = fee
	return nil
}

// Snapshot returns the pair's persisted state.
func (p *Pair) Snapshot() Snapshot {
	return Snapshot{
		Reserve0:             p.reserve0.Clone(),
		Reserve1:             p.reserve1.Clone(),
		BlockTimestampLast:   p.blockTimestampLast,
		Price0CumulativeLast: p.price0CumulativeLast.Clone(),
		Price1CumulativeLast: p.price1CumulativeLast.Clone(),
		KLast:                p.kLast.Clone(),
		TotalSupply:          p.totalSupply.Clone(),
	}
}
