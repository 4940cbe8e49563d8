package pair

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

const (
	// MinimumLiquidity is locked at the zero address on the first mint.
	MinimumLiquidity = 1000
	// FeePrecision is the denominator of a swap fee point.
	FeePrecision = 10000
	// FeeInherit marks a pair without a swap fee override.
	FeeInherit uint16 = 0xFFFF
)

// Token is the token collaborator. Transfer either fully succeeds or returns an error.
// The amount received may be smaller than the amount sent (fee-on-transfer tokens).
type Token interface {
	Address() common.Address
	BalanceOf(owner common.Address) *uint256.Int
	Transfer(from, to common.Address, amount *uint256.Int) error
}

// FeeSource is queried on every call and never cached.
type FeeSource interface {
	SwapFeePoint() uint16
	ProtocolFeeFactor() uint8
	FeeTo() common.Address
}

// Clock returns the current block timestamp in seconds.
type Clock interface {
	Now() uint64
}

// Callee receives the flash-swap callback after outputs are transferred.
type Callee interface {
	OnSwap(sender common.Address, amount0Out, amount1Out *uint256.Int, data []byte) error
}

// CalleeFunc adapts a function to Callee.
type CalleeFunc func(sender common.Address, amount0Out, amount1Out *uint256.Int, data []byte) error

func (f CalleeFunc) OnSwap(sender common.Address, amount0Out, amount1Out *uint256.Int, data []byte) error {
	return f(sender, amount0Out, amount1Out, data)
}

// CalleeRegistry resolves the callee living at a recipient address.
type CalleeRegistry interface {
	Callee(addr common.Address) (Callee, bool)
}

// Journal lets the pair roll back token movements of a failed call.
type Journal interface {
	Snapshot() int
	RevertToSnapshot(id int)
}

// Emitter receives the events of successful calls, in order.
type Emitter interface {
	Emit(ev Event)
}

// Principal is a holder's pro-rata claim on reserves at its last share-balance change.
type Principal struct {
	Principal0     *uint256.Int
	Principal1     *uint256.Int
	TimeLastUpdate uint32
}

// Snapshot is the persisted state of a pair, used to seed a fresh pair.
type Snapshot struct {
	Reserve0             *uint256.Int
	Reserve1             *uint256.Int
	BlockTimestampLast   uint32
	Price0CumulativeLast *uint256.Int
	Price1CumulativeLast *uint256.Int
	KLast                *uint256.Int
	TotalSupply          *uint256.Int
}
