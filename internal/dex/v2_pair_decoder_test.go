package dex

import (
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"pairEngine/internal/model"
	"pairEngine/internal/pair"
)

func TestV2PairDecoderSwap(t *testing.T) {
	pairABI, err := V2PairABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}

	pairAddr := common.HexToAddress("0x1111111111111111111111111111111111111111")
	pairMetaCache := NewPairMetaCache()
	pairMetaCache.Set(pairAddr, model.PairMeta{
		Token0:       "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
		Token1:       "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb",
		SwapFeePoint: 30,
	})

	decoder, err := NewV2PairDecoder(DecoderConfig{})
	if err != nil {
		t.Fatalf("decoder: %v", err)
	}

	ctx := DecodeContext{
		PairMetaCache: pairMetaCache,
		Logger:        zap.NewNop(),
	}

	sender := common.HexToAddress("0x2222222222222222222222222222222222222222")
	to := common.HexToAddress("0x3333333333333333333333333333333333333333")

	data, err := pairABI.Events["Swap"].Inputs.NonIndexed().Pack(
		big.NewInt(1000),
		big.NewInt(0),
		big.NewInt(0),
		big.NewInt(1993),
	)
	if err != nil {
		t.Fatalf("pack swap: %v", err)
	}

	logRecord := buildLogRecord(pairAddr, pairABI.Events["Swap"].ID, data, []common.Hash{
		topicFromAddress(sender),
		topicFromAddress(to),
	})

	event, err := decoder.Decode(logRecord, ctx)
	if err != nil {
		t.Fatalf("decode swap: %v", err)
	}

	swap, ok := event.Decoded.(model.SwapEventData)
	if !ok {
		t.Fatalf("decoded type mismatch")
	}
	if swap.Amount0In != "1000" || swap.Amount1Out != "1993" || swap.Amount1In != "0" {
		t.Fatalf("amounts mismatch: %+v", swap)
	}
	if swap.Sender != sender.Hex() || swap.To != to.Hex() {
		t.Fatalf("address mismatch")
	}
	if event.PairMeta.SwapFeePoint != 30 {
		t.Fatalf("pair meta mismatch")
	}
	if event.Raw == nil || event.Raw.Topic0 != logRecord.Topics[0] {
		t.Fatalf("raw ref missing")
	}
}

func TestV2PairDecoderRejectsWrongTopicCount(t *testing.T) {
	pairABI, err := V2PairABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}
	decoder, err := NewV2PairDecoder(DecoderConfig{})
	if err != nil {
		t.Fatalf("decoder: %v", err)
	}
	data, _ := pairABI.Events["Mint"].Inputs.NonIndexed().Pack(big.NewInt(1), big.NewInt(2))
	logRecord := buildLogRecord(common.HexToAddress("0x1111111111111111111111111111111111111111"), pairABI.Events["Mint"].ID, data, nil)
	if _, err := decoder.Decode(logRecord, DecodeContext{}); err == nil {
		t.Fatalf("expected topic count error")
	}
}

func TestEncodeEventDecodesBack(t *testing.T) {
	decoder, err := NewV2PairDecoder(DecoderConfig{})
	if err != nil {
		t.Fatalf("decoder: %v", err)
	}
	pairAddr := common.HexToAddress("0x9999999999999999999999999999999999999999")
	provider := common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	pos := LogPosition{ChainID: 31337, BlockNumber: 3, LogIndex: 2, Timestamp: 1700000000}
	ingested := time.Unix(1700000000, 0)

	events := []pair.Event{
		pair.TransferEvent{From: common.Address{}, To: provider, Value: uint256.NewInt(5000)},
		pair.SyncEvent{Reserve0: uint256.NewInt(100), Reserve1: uint256.NewInt(200)},
		pair.MintEvent{Sender: provider, Amount0: uint256.NewInt(100), Amount1: uint256.NewInt(200)},
		pair.BurnEvent{Sender: provider, To: provider, Amount0: uint256.NewInt(7), Amount1: uint256.NewInt(8)},
	}
	var decoded []interface{}
	for _, ev := range events {
		record, err := EncodeEvent(pairAddr, ev, pos, ingested)
		if err != nil {
			t.Fatalf("encode %s: %v", ev.EventName(), err)
		}
		if record.Address != pairAddr.Hex() || record.ChainID != 31337 || record.LogIndex != 2 {
			t.Fatalf("position not carried: %+v", record)
		}
		typed, err := decoder.Decode(record, DecodeContext{})
		if err != nil {
			t.Fatalf("decode %s: %v", ev.EventName(), err)
		}
		if typed.EventName != ev.EventName() {
			t.Fatalf("event name: got %s want %s", typed.EventName, ev.EventName())
		}
		decoded = append(decoded, typed.Decoded)
	}

	if tr := decoded[0].(model.TransferEventData); tr.From != (common.Address{}).Hex() || tr.Value != "5000" {
		t.Fatalf("transfer mismatch: %+v", tr)
	}
	if s := decoded[1].(model.SyncEventData); s.Reserve0 != "100" || s.Reserve1 != "200" {
		t.Fatalf("sync mismatch: %+v", s)
	}
	if m := decoded[2].(model.MintEventData); m.Sender != provider.Hex() || m.Amount1 != "200" {
		t.Fatalf("mint mismatch: %+v", m)
	}
	if b := decoded[3].(model.BurnEventData); b.To != provider.Hex() || b.Amount0 != "7" {
		t.Fatalf("burn mismatch: %+v", b)
	}
}

func TestTopic0MapAlias(t *testing.T) {
	alias := "0x1234000000000000000000000000000000000000000000000000000000000000"
	decoder, err := NewV2PairDecoder(DecoderConfig{Topic0Map: map[string]string{alias: " sync "}})
	if err != nil {
		t.Fatalf("decoder: %v", err)
	}
	if !decoder.CanDecode(alias) {
		t.Fatalf("alias not registered")
	}
	if _, err := NewV2PairDecoder(DecoderConfig{Topic0Map: map[string]string{alias: "collect"}}); err == nil {
		t.Fatalf("expected unsupported event name error")
	}
}

func buildLogRecord(pairAddr common.Address, topic0 common.Hash, data []byte, indexed []common.Hash) model.LogRecord {
	topics := make([]string, 0, len(indexed)+1)
	topics = append(topics, topic0.Hex())
	for _, topic := range indexed {
		topics = append(topics, topic.Hex())
	}

	return model.LogRecord{
		ChainID:     31337,
		BlockNumber: 12345,
		BlockHash:   "0xabc",
		TxHash:      "0xdef",
		LogIndex:    1,
		Address:     pairAddr.Hex(),
		Topics:      topics,
		Data:        hexutil.Encode(data),
		Timestamp:   1700000000,
	}
}

func topicFromAddress(addr common.Address) common.Hash {
	return common.BytesToHash(addr.Bytes())
}
