package aggregate

import (
	"context"
	"encoding/json"
	"math/big"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"pairEngine/internal/model"
)

const (
	testPair   = "0x1111111111111111111111111111111111111111"
	testToken0 = "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	testToken1 = "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
)

type memorySink struct {
	metrics []model.PairWindowMetrics
	pairs   []model.Pair
}

func (s *memorySink) UpsertWindowMetrics(_ context.Context, metrics []model.PairWindowMetrics) error {
	s.metrics = append(s.metrics, metrics...)
	return nil
}

func (s *memorySink) UpsertPairs(_ context.Context, pairs []model.Pair) error {
	s.pairs = append(s.pairs, pairs...)
	return nil
}

func record(t *testing.T, name string, block, ts uint64, payload interface{}) model.TypedEventRecord {
	t.Helper()
	decoded, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return model.TypedEventRecord{
		EventHeader: model.EventHeader{
			ChainID:     31337,
			BlockNumber: block,
			Address:     testPair,
			EventName:   name,
			Timestamp:   ts,
		},
		Decoded:  decoded,
		PairMeta: model.PairMeta{Token0: testToken0, Token1: testToken1, SwapFeePoint: 30},
	}
}

func TestAggregatorWindows(t *testing.T) {
	sink := &memorySink{}
	agg, err := NewAggregator(Config{WindowSeconds: 60}, sink, nil, nil)
	if err != nil {
		t.Fatalf("new aggregator: %v", err)
	}
	agg.SetDecimals(common.HexToAddress(testToken0), 2)
	ctx := context.Background()

	events := []model.TypedEventRecord{
		record(t, "Sync", 1, 100, model.SyncEventData{Reserve0: "1000", Reserve1: "20000"}),
		record(t, "Swap", 2, 110, model.SwapEventData{Amount0In: "10000", Amount1In: "0", Amount0Out: "0", Amount1Out: "5000"}),
		record(t, "Sync", 2, 110, model.SyncEventData{Reserve0: "11000", Reserve1: "15000"}),
		record(t, "Mint", 3, 115, model.MintEventData{Amount0: "1", Amount1: "1"}),
		record(t, "Swap", 4, 130, model.SwapEventData{Amount0In: "0", Amount1In: "2000", Amount0Out: "1000", Amount1Out: "0"}),
	}
	for _, ev := range events {
		if err := agg.Add(ctx, ev); err != nil {
			t.Fatalf("add: %v", err)
		}
	}
	if err := agg.Flush(ctx); err != nil {
		t.Fatalf("flush: %v", err)
	}

	if len(sink.metrics) != 2 {
		t.Fatalf("windows: got %d want 2", len(sink.metrics))
	}
	first := sink.metrics[0]
	if first.WindowStart.Unix() != 60 || first.WindowEnd.Unix() != 120 {
		t.Fatalf("window bounds: %v %v", first.WindowStart, first.WindowEnd)
	}
	if first.SwapCount != 1 || first.Volume0 != "100.00" || first.Volume1 != "5000" {
		t.Fatalf("volumes: %+v", first)
	}
	if first.Fee0 != "0.30" || first.Fee1 != "0" {
		t.Fatalf("fees: %s %s", first.Fee0, first.Fee1)
	}
	if first.ReserveMethod != reserveMethodSync || first.Reserve0 == nil || *first.Reserve0 != "110.00" {
		t.Fatalf("reserves: %+v", first)
	}
	if first.FeeRate0 == nil || first.FeeRate1 != nil || first.APR == nil {
		t.Fatalf("rates: %+v", first)
	}

	second := sink.metrics[1]
	if second.Fee1 != "6" || second.Volume0 != "10.00" {
		t.Fatalf("second window: %+v", second)
	}
	if second.ReserveMethod != reserveMethodNone || second.Reserve0 != nil {
		t.Fatalf("second window reserves: %+v", second)
	}

	if len(sink.pairs) != 1 || sink.pairs[0].FirstSeenBlock != 1 || sink.pairs[0].SwapFeePoint != 30 {
		t.Fatalf("pairs: %+v", sink.pairs)
	}
}

func TestAggregatorSkipsBadPayload(t *testing.T) {
	sink := &memorySink{}
	agg, err := NewAggregator(Config{WindowSeconds: 60}, sink, nil, nil)
	if err != nil {
		t.Fatalf("new aggregator: %v", err)
	}
	bad := record(t, "Swap", 1, 100, model.SwapEventData{Amount0In: "-5"})
	if err := agg.Add(context.Background(), bad); err != nil {
		t.Fatalf("add: %v", err)
	}
	if agg.Stats().Failed != 1 {
		t.Fatalf("failed: %+v", agg.Stats())
	}
}

func TestAggregatorResumesFromState(t *testing.T) {
	state := &FileStateStore{Path: filepath.Join(t.TempDir(), "state.json")}
	ctx := context.Background()

	sink := &memorySink{}
	agg, err := NewAggregator(Config{WindowSeconds: 60, StateStore: state}, sink, nil, nil)
	if err != nil {
		t.Fatalf("new aggregator: %v", err)
	}
	_ = agg.Add(ctx, record(t, "Swap", 1, 100, model.SwapEventData{Amount0In: "1"}))
	if err := agg.Flush(ctx); err != nil {
		t.Fatalf("flush: %v", err)
	}
	ts, ok, err := state.Load(ctx)
	if err != nil || !ok || ts != 100 {
		t.Fatalf("state: %d %v %v", ts, ok, err)
	}

	again, err := NewAggregator(Config{WindowSeconds: 60, StateStore: state}, &memorySink{}, nil, nil)
	if err != nil {
		t.Fatalf("new aggregator: %v", err)
	}
	_ = again.Add(ctx, record(t, "Swap", 1, 100, model.SwapEventData{Amount0In: "1"}))
	_ = again.Add(ctx, record(t, "Swap", 2, 101, model.SwapEventData{Amount0In: "1"}))
	if s := again.Stats(); s.Skipped != 1 || s.Total != 2 {
		t.Fatalf("stats: %+v", s)
	}
}

func TestFeeFromAmountFloors(t *testing.T) {
	in, _ := parseBigInt("333")
	if got := feeFromAmount(in, 30).String(); got != "0" {
		t.Fatalf("fee: got %s", got)
	}
	in, _ = parseBigInt("1000000")
	if got := feeFromAmount(in, 25).String(); got != "2500" {
		t.Fatalf("fee: got %s", got)
	}
}

func TestWindowAPR(t *testing.T) {
	rate := feeRate(big.NewInt(3), big.NewInt(1000))
	apr := windowAPR(rate, rate, yearSeconds)
	if apr == nil || apr.FloatString(3) != "0.003" {
		t.Fatalf("apr: %v", apr)
	}
	// One side only is half the pair's value.
	apr = windowAPR(rate, nil, yearSeconds/2)
	if apr == nil || apr.FloatString(3) != "0.003" {
		t.Fatalf("one-sided apr: %v", apr)
	}
	if windowAPR(nil, nil, 60) != nil {
		t.Fatalf("expected nil apr without fees")
	}
	if got := formatTokenAmount(big.NewInt(-1234), 3); got != "-1.234" {
		t.Fatalf("format: got %s", got)
	}
	if got := formatTokenAmount(big.NewInt(5), 4); got != "0.0005" {
		t.Fatalf("format: got %s", got)
	}
}

func TestFileStateStoreKeepsNames(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "aggregate.json")
	ctx := context.Background()
	fast := &FileStateStore{Path: path, Name: "aggregator:60"}
	slow := &FileStateStore{Path: path, Name: "aggregator:3600"}

	if _, ok, err := fast.Load(ctx); ok || err != nil {
		t.Fatalf("empty load: %v %v", ok, err)
	}
	if err := fast.Save(ctx, 120); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := slow.Save(ctx, 3600); err != nil {
		t.Fatalf("save: %v", err)
	}
	if ts, ok, _ := fast.Load(ctx); !ok || ts != 120 {
		t.Fatalf("fast: %d %v", ts, ok)
	}
	if ts, ok, _ := slow.Load(ctx); !ok || ts != 3600 {
		t.Fatalf("slow: %d %v", ts, ok)
	}
}

type stateRows map[string]uint64

func (r stateRows) LoadState(_ context.Context, name string) (uint64, bool, error) {
	ts, ok := r[name]
	return ts, ok, nil
}

func (r stateRows) SaveState(_ context.Context, name string, ts uint64) error {
	r[name] = ts
	return nil
}

func TestDBStateStoreUsesName(t *testing.T) {
	ctx := context.Background()
	rows := stateRows{}
	store := &DBStateStore{Rows: rows, Name: "aggregator:300"}
	if _, ok, err := store.Load(ctx); ok || err != nil {
		t.Fatalf("empty load: %v %v", ok, err)
	}
	if err := store.Save(ctx, 900); err != nil {
		t.Fatalf("save: %v", err)
	}
	if rows["aggregator:300"] != 900 {
		t.Fatalf("rows: %v", rows)
	}
	var unset *DBStateStore
	if _, ok, err := unset.Load(ctx); ok || err != nil {
		t.Fatalf("nil store: %v %v", ok, err)
	}
}
