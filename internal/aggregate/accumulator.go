package aggregate

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"pairEngine/internal/model"
)

const feePrecision = 10_000

// Accumulator holds aggregate values for a pair window.
type Accumulator struct {
	ChainID     uint64
	PairAddress string
	PairMeta    model.PairMeta
	WindowStart uint64
	WindowEnd   uint64
	SwapCount   uint64
	Volume0     *big.Int
	Volume1     *big.Int
	Fee0        *big.Int
	Fee1        *big.Int
	// Reserve0 and Reserve1 are the last Sync seen in the window, nil if none.
	Reserve0   *big.Int
	Reserve1   *big.Int
	LastBlock  uint64
	LastTS     uint64
	FirstBlock uint64
}

func NewAccumulator(record model.TypedEventRecord, windowStart, windowEnd uint64) *Accumulator {
	return &Accumulator{
		ChainID:     record.ChainID,
		PairAddress: record.Address,
		PairMeta:    record.PairMeta,
		WindowStart: windowStart,
		WindowEnd:   windowEnd,
		Volume0:     big.NewInt(0),
		Volume1:     big.NewInt(0),
		Fee0:        big.NewInt(0),
		Fee1:        big.NewInt(0),
		LastBlock:   record.BlockNumber,
		LastTS:      record.Timestamp,
		FirstBlock:  record.BlockNumber,
	}
}

func (a *Accumulator) AddEvent(record model.TypedEventRecord) error {
	if record.Timestamp >= a.LastTS {
		a.LastTS = record.Timestamp
		a.LastBlock = record.BlockNumber
	}
	if a.FirstBlock == 0 || record.BlockNumber < a.FirstBlock {
		a.FirstBlock = record.BlockNumber
	}
	if record.PairMeta.Reserves != nil {
		a.PairMeta.Reserves = record.PairMeta.Reserves
	}

	switch strings.ToLower(record.EventName) {
	case "swap":
		var swap model.SwapEventData
		if err := json.Unmarshal(record.Decoded, &swap); err != nil {
			return fmt.Errorf("decode swap: %w", err)
		}
		return a.applySwap(swap)
	case "sync":
		var sync model.SyncEventData
		if err := json.Unmarshal(record.Decoded, &sync); err != nil {
			return fmt.Errorf("decode sync: %w", err)
		}
		return a.applySync(sync)
	default:
		return nil
	}
}

func (a *Accumulator) applySwap(swap model.SwapEventData) error {
	amounts, err := parseBigInts(swap.Amount0In, swap.Amount1In, swap.Amount0Out, swap.Amount1Out)
	if err != nil {
		return err
	}
	in0, in1, out0, out1 := amounts[0], amounts[1], amounts[2], amounts[3]

	a.Volume0.Add(a.Volume0, in0)
	a.Volume0.Add(a.Volume0, out0)
	a.Volume1.Add(a.Volume1, in1)
	a.Volume1.Add(a.Volume1, out1)

	if feePoint := a.PairMeta.SwapFeePoint; feePoint != 0 {
		a.Fee0.Add(a.Fee0, feeFromAmount(in0, feePoint))
		a.Fee1.Add(a.Fee1, feeFromAmount(in1, feePoint))
	}

	a.SwapCount++
	return nil
}

func (a *Accumulator) applySync(sync model.SyncEventData) error {
	reserves, err := parseBigInts(sync.Reserve0, sync.Reserve1)
	if err != nil {
		return err
	}
	a.Reserve0, a.Reserve1 = reserves[0], reserves[1]
	return nil
}

func parseBigInts(values ...string) ([]*big.Int, error) {
	out := make([]*big.Int, len(values))
	for i, value := range values {
		parsed, err := parseBigInt(value)
		if err != nil {
			return nil, err
		}
		out[i] = parsed
	}
	return out, nil
}

func parseBigInt(value string) (*big.Int, error) {
	if value == "" {
		return big.NewInt(0), nil
	}
	parsed, ok := new(big.Int).SetString(value, 10)
	if !ok || parsed.Sign() < 0 {
		return nil, fmt.Errorf("invalid amount: %s", value)
	}
	return parsed, nil
}

// feeFromAmount is the fee the pair kept on amountIn, floored.
func feeFromAmount(amountIn *big.Int, feePoint uint16) *big.Int {
	if amountIn == nil {
		return big.NewInt(0)
	}
	fee := new(big.Int).Mul(amountIn, big.NewInt(int64(feePoint)))
	return fee.Div(fee, big.NewInt(feePrecision))
}
