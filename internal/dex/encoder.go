package dex

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"

	"pairEngine/internal/model"
	"pairEngine/internal/pair"
)

// LogPosition locates an encoded log in the simulated chain.
type LogPosition struct {
	ChainID     uint64
	BlockNumber uint64
	BlockHash   common.Hash
	TxHash      common.Hash
	TxIndex     uint64
	LogIndex    uint64
	Timestamp   uint64
}

// EncodeEvent renders a pair event as the log the on-chain pair would emit.
func EncodeEvent(pairAddress common.Address, ev pair.Event, pos LogPosition, ingestedAt time.Time) (model.LogRecord, error) {
	pairABI, err := V2PairABI()
	if err != nil {
		return model.LogRecord{}, fmt.Errorf("parse pair abi: %w", err)
	}
	event, ok := pairABI.Events[ev.EventName()]
	if !ok {
		return model.LogRecord{}, fmt.Errorf("unsupported event name: %s", ev.EventName())
	}

	var indexed []common.Address
	var values []*uint256.Int
	switch e := ev.(type) {
	case pair.SwapEvent:
		indexed = []common.Address{e.Sender, e.To}
		values = []*uint256.Int{e.Amount0In, e.Amount1In, e.Amount0Out, e.Amount1Out}
	case pair.SyncEvent:
		values = []*uint256.Int{e.Reserve0, e.Reserve1}
	case pair.MintEvent:
		indexed = []common.Address{e.Sender}
		values = []*uint256.Int{e.Amount0, e.Amount1}
	case pair.BurnEvent:
		indexed = []common.Address{e.Sender, e.To}
		values = []*uint256.Int{e.Amount0, e.Amount1}
	case pair.TransferEvent:
		indexed = []common.Address{e.From, e.To}
		values = []*uint256.Int{e.Value}
	default:
		return model.LogRecord{}, fmt.Errorf("unsupported event type %T", ev)
	}

	args := make([]interface{}, len(values))
	for i, v := range values {
		if v == nil {
			args[i] = new(big.Int)
			continue
		}
		args[i] = v.ToBig()
	}
	data, err := event.Inputs.NonIndexed().Pack(args...)
	if err != nil {
		return model.LogRecord{}, fmt.Errorf("pack %s: %w", event.Name, err)
	}

	topics := make([]string, 0, len(indexed)+1)
	topics = append(topics, event.ID.Hex())
	for _, addr := range indexed {
		topics = append(topics, common.BytesToHash(addr.Bytes()).Hex())
	}

	return model.LogRecord{
		ChainID:     pos.ChainID,
		BlockNumber: pos.BlockNumber,
		BlockHash:   pos.BlockHash.Hex(),
		TxHash:      pos.TxHash.Hex(),
		TxIndex:     pos.TxIndex,
		LogIndex:    pos.LogIndex,
		Address:     pairAddress.Hex(),
		Topics:      topics,
		Data:        hexutil.Encode(data),
		Timestamp:   pos.Timestamp,
		IngestedAt:  ingestedAt.UTC().Format(time.RFC3339Nano),
	}, nil
}
