package pair

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Event is emitted by a pair. Concrete types: SyncEvent, MintEvent, BurnEvent, SwapEvent, TransferEvent.
type Event interface {
	EventName() string
}

type SyncEvent struct {
	Reserve0 *uint256.Int
	Reserve1 *uint256.Int
}

type MintEvent struct {
	Sender  common.Address
	Amount0 *uint256.Int
	Amount1 *uint256.Int
}

type BurnEvent struct {
	Sender  common.Address
	Amount0 *uint256.Int
	Amount1 *uint256.Int
	To      common.Address
}

type SwapEvent struct {
	Sender     common.Address
	Amount0In  *uint256.Int
	Amount1In  *uint256.Int
	Amount0Out *uint256.Int
	Amount1Out *uint256.Int
	To         common.Address
}

// TransferEvent records a liquidity share movement, including mints (From zero) and burns (To zero).
type TransferEvent struct {
	From  common.Address
	To    common.Address
	Value *uint256.Int
}

func (SyncEvent) EventName() string     { return "Sync" }
func (MintEvent) EventName() string     { return "Mint" }
func (BurnEvent) EventName() string     { return "Burn" }
func (SwapEvent) EventName() string     { return "Swap" }
func (TransferEvent) EventName() string { return "Transfer" }
