package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"pairEngine/internal/dex"
	"pairEngine/internal/model"
	"pairEngine/internal/pair"
)

type captureWriter struct {
	values []interface{}
}

func (w *captureWriter) Write(value interface{}) error {
	w.values = append(w.values, value)
	return nil
}

func TestDecodeStream(t *testing.T) {
	pairAddr := common.HexToAddress("0x3000000000000000000000000000000000000003")
	record, err := dex.EncodeEvent(pairAddr, pair.SyncEvent{
		Reserve0: uint256.NewInt(1000),
		Reserve1: uint256.NewInt(2000),
	}, dex.LogPosition{ChainID: 1, BlockNumber: 7, LogIndex: 0, Timestamp: 100}, time.Unix(0, 0))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	syncLine, err := json.Marshal(record)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	foreign := record
	foreign.Topics = []string{"0x" + strings.Repeat("ab", 32)}
	foreignLine, _ := json.Marshal(foreign)

	input := strings.Join([]string{string(syncLine), "", "{not json", string(foreignLine)}, "\n")

	decoder, err := dex.NewV2PairDecoder(dex.DecoderConfig{})
	if err != nil {
		t.Fatalf("decoder: %v", err)
	}
	cache := dex.NewPairMetaCache()
	cache.Set(pairAddr, model.PairMeta{Token0: "0x1", Token1: "0x2", SwapFeePoint: 30})

	out, errs := &captureWriter{}, &captureWriter{}
	stats, err := decodeStream(bytes.NewBufferString(input), decoder, dex.DecodeContext{PairMetaCache: cache}, out, errs)
	if err != nil {
		t.Fatalf("decode stream: %v", err)
	}
	if stats != (decodeStats{Total: 3, Decoded: 1, Skipped: 1, Failed: 1}) {
		t.Fatalf("stats: %+v", stats)
	}

	event, ok := out.values[0].(*model.TypedEvent)
	if !ok || event.EventName != "Sync" || event.PairMeta.SwapFeePoint != 30 {
		t.Fatalf("unexpected event: %+v", out.values[0])
	}
	sync, ok := event.Decoded.(model.SyncEventData)
	if !ok || sync.Reserve0 != "1000" || sync.Reserve1 != "2000" {
		t.Fatalf("unexpected payload: %+v", event.Decoded)
	}
	decodeErr, ok := errs.values[0].(model.DecodeError)
	if !ok || decodeErr.Line != 3 {
		t.Fatalf("unexpected error record: %+v", errs.values[0])
	}
}
