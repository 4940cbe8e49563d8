package aggregate

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"pairEngine/internal/dex"
	"pairEngine/internal/model"
	"pairEngine/internal/storage"
)

const feeMethodApprox = "approx_from_fee_point"

// Config controls aggregation behavior.
type Config struct {
	WindowSeconds uint64
	BatchSize     int
	RecomputeFrom uint64
	StateStore    StateStore
}

// PairSink is implemented by sinks that also keep pair metadata.
type PairSink interface {
	UpsertPairs(ctx context.Context, pairs []model.Pair) error
}

// Aggregator aggregates typed events into pair window metrics. Events for a
// pair must arrive in timestamp order; a window is written once an event of a
// later window arrives or on Flush.
type Aggregator struct {
	cfg          Config
	sink         storage.MetricsSink
	chain        ethereum.ContractCaller
	logger       *zap.Logger
	tokens       *dex.TokenMetaCache
	accumulators map[string]*Accumulator
	pairSeen     map[string]model.Pair

	started bool
	startTs uint64
	maxTs   uint64
	batch   []model.PairWindowMetrics
	pairs   []model.Pair
	stats   Stats
}

// Stats counts what the aggregator has seen.
type Stats struct {
	Total   int
	Windows int
	Skipped int
	Failed  int
}

// NewAggregator builds an aggregator. chain may be nil, in which case token
// decimals come only from SetDecimals and reserves only from Sync events.
func NewAggregator(cfg Config, sink storage.MetricsSink, chain ethereum.ContractCaller, logger *zap.Logger) (*Aggregator, error) {
	if sink == nil {
		return nil, fmt.Errorf("metrics sink is nil")
	}
	if cfg.WindowSeconds == 0 {
		return nil, fmt.Errorf("window seconds must be > 0")
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 1000
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Aggregator{
		cfg:          cfg,
		sink:         sink,
		chain:        chain,
		logger:       logger,
		tokens:       dex.NewTokenMetaCache(),
		accumulators: make(map[string]*Accumulator),
		pairSeen:     make(map[string]model.Pair),
		batch:        make([]model.PairWindowMetrics, 0, cfg.BatchSize),
	}, nil
}

// SetDecimals records a token's decimals so amounts are scaled without a chain call.
func (a *Aggregator) SetDecimals(token common.Address, decimals uint8) {
	a.tokens.Set(token, model.TokenMeta{Address: token.Hex(), Decimals: decimals})
}

func (a *Aggregator) Stats() Stats { return a.stats }

// Run executes aggregation over a typed events JSONL file.
func (a *Aggregator) Run(ctx context.Context, inputPath string) error {
	file, err := os.Open(inputPath)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 10*1024*1024)

	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var record model.TypedEventRecord
		if err := json.Unmarshal(line, &record); err != nil {
			a.stats.Total++
			a.stats.Failed++
			a.logger.Warn("decode typed event", zap.Error(err))
			continue
		}
		if err := a.Add(ctx, record); err != nil {
			return err
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scan input: %w", err)
	}

	if err := a.Flush(ctx); err != nil {
		return err
	}

	a.logger.Info("aggregate complete",
		zap.Int("total", a.stats.Total),
		zap.Int("windows", a.stats.Windows),
		zap.Int("skipped", a.stats.Skipped),
		zap.Int("failed", a.stats.Failed),
	)
	return nil
}

// Add folds one event into its pair's open window. Malformed events are
// counted and skipped; only sink and state errors are returned.
func (a *Aggregator) Add(ctx context.Context, record model.TypedEventRecord) error {
	if !a.started {
		startTs, err := a.loadStartTimestamp(ctx)
		if err != nil {
			return err
		}
		a.startTs, a.maxTs, a.started = startTs, startTs, true
	}
	a.stats.Total++

	if record.Timestamp <= a.startTs {
		a.stats.Skipped++
		return nil
	}

	windowStart := windowStart(record.Timestamp, a.cfg.WindowSeconds)
	windowEnd := windowStart + a.cfg.WindowSeconds

	accKey := pairKey(record.Address)
	acc := a.accumulators[accKey]
	if acc == nil {
		acc = NewAccumulator(record, windowStart, windowEnd)
		a.accumulators[accKey] = acc
	} else if acc.WindowStart != windowStart {
		a.closeWindow(ctx, acc)
		acc = NewAccumulator(record, windowStart, windowEnd)
		a.accumulators[accKey] = acc
	}

	if err := acc.AddEvent(record); err != nil {
		a.stats.Failed++
		a.logger.Warn("aggregate event", zap.Error(err), zap.String("pair", record.Address), zap.String("event", record.EventName))
		return nil
	}

	if record.Timestamp > a.maxTs {
		a.maxTs = record.Timestamp
	}

	if len(a.batch) >= a.cfg.BatchSize {
		if err := a.flushBatches(ctx); err != nil {
			return err
		}
		return a.saveState(ctx)
	}
	return nil
}

// Flush closes every open window and writes everything pending.
func (a *Aggregator) Flush(ctx context.Context) error {
	for _, acc := range a.accumulators {
		a.closeWindow(ctx, acc)
	}
	a.accumulators = make(map[string]*Accumulator)

	if err := a.flushBatches(ctx); err != nil {
		return err
	}

	a.cfg.RecomputeFrom = a.maxTs
	return a.saveState(ctx)
}

func (a *Aggregator) closeWindow(ctx context.Context, acc *Accumulator) {
	metrics, pair := a.flushAccumulator(ctx, acc)
	if metrics != nil {
		a.batch = append(a.batch, *metrics)
		a.stats.Windows++
	}
	if pair != nil {
		a.pairs = append(a.pairs, *pair)
	}
}

func (a *Aggregator) loadStartTimestamp(ctx context.Context) (uint64, error) {
	if a.cfg.RecomputeFrom > 0 {
		return a.cfg.RecomputeFrom - 1, nil
	}
	if a.cfg.StateStore == nil {
		return 0, nil
	}
	last, ok, err := a.cfg.StateStore.Load(ctx)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	return last, nil
}

func (a *Aggregator) saveState(ctx context.Context) error {
	if a.cfg.StateStore == nil {
		return nil
	}

	if len(a.accumulators) == 0 {
		return a.cfg.StateStore.Save(ctx, a.cfg.RecomputeFrom)
	}

	safeTs := minOpenWindowStart(a.accumulators)
	if safeTs > 0 {
		safeTs = safeTs - 1
	}
	if safeTs == 0 {
		safeTs = a.cfg.RecomputeFrom
	}
	return a.cfg.StateStore.Save(ctx, safeTs)
}

func (a *Aggregator) flushBatches(ctx context.Context) error {
	if len(a.pairs) > 0 {
		if ps, ok := a.sink.(PairSink); ok {
			if err := ps.UpsertPairs(ctx, a.pairs); err != nil {
				return fmt.Errorf("upsert pairs: %w", err)
			}
		}
		a.pairs = a.pairs[:0]
	}
	if len(a.batch) > 0 {
		if err := a.sink.UpsertWindowMetrics(ctx, a.batch); err != nil {
			return fmt.Errorf("upsert window metrics: %w", err)
		}
		a.batch = a.batch[:0]
	}
	return nil
}

func (a *Aggregator) flushAccumulator(ctx context.Context, acc *Accumulator) (*model.PairWindowMetrics, *model.Pair) {
	if acc == nil {
		return nil, nil
	}

	pairMeta := acc.PairMeta
	if pairMeta.Token0 == "" || pairMeta.Token1 == "" {
		a.logger.Warn("missing pair meta", zap.String("pair", acc.PairAddress))
		return nil, nil
	}

	pairRecord := a.registerPair(acc)

	decimals0 := a.tokenDecimals(ctx, pairMeta.Token0)
	decimals1 := a.tokenDecimals(ctx, pairMeta.Token1)

	reserve0, reserve1, reserveMethod := a.resolveReserves(ctx, acc)
	var reserve0Str, reserve1Str *string
	if reserve0 != nil {
		val := formatTokenAmount(reserve0, decimals0)
		reserve0Str = &val
	}
	if reserve1 != nil {
		val := formatTokenAmount(reserve1, decimals1)
		reserve1Str = &val
	}

	rate0, rate1 := feeRate(acc.Fee0, reserve0), feeRate(acc.Fee1, reserve1)

	return &model.PairWindowMetrics{
		ChainID:        acc.ChainID,
		PairAddress:    acc.PairAddress,
		WindowSizeSecs: int64(a.cfg.WindowSeconds),
		WindowStart:    time.Unix(int64(acc.WindowStart), 0).UTC(),
		WindowEnd:      time.Unix(int64(acc.WindowEnd), 0).UTC(),
		SwapCount:      acc.SwapCount,
		Volume0:        formatTokenAmount(acc.Volume0, decimals0),
		Volume1:        formatTokenAmount(acc.Volume1, decimals1),
		Fee0:           formatTokenAmount(acc.Fee0, decimals0),
		Fee1:           formatTokenAmount(acc.Fee1, decimals1),
		FeeRate0:       ratString(rate0),
		FeeRate1:       ratString(rate1),
		Reserve0:       reserve0Str,
		Reserve1:       reserve1Str,
		APR:            ratString(windowAPR(rate0, rate1, a.cfg.WindowSeconds)),
		FeeMethod:      feeMethodApprox,
		ReserveMethod:  reserveMethod,
	}, pairRecord
}

func (a *Aggregator) registerPair(acc *Accumulator) *model.Pair {
	key := pairKey(acc.PairAddress)
	pair := model.Pair{
		ChainID:        acc.ChainID,
		Address:        acc.PairAddress,
		Token0:         acc.PairMeta.Token0,
		Token1:         acc.PairMeta.Token1,
		SwapFeePoint:   acc.PairMeta.SwapFeePoint,
		FirstSeenBlock: acc.FirstBlock,
	}

	existing, ok := a.pairSeen[key]
	if ok && existing.FirstSeenBlock <= pair.FirstSeenBlock {
		return nil
	}

	a.pairSeen[key] = pair
	return &pair
}

// tokenDecimals falls back to 0, which leaves amounts in raw units.
func (a *Aggregator) tokenDecimals(ctx context.Context, token string) uint8 {
	if !common.IsHexAddress(token) {
		a.logger.Warn("invalid token address", zap.String("token", token))
		return 0
	}
	addr := common.HexToAddress(token)
	if meta, ok := a.tokens.Get(addr); ok {
		return meta.Decimals
	}
	if a.chain == nil {
		return 0
	}
	meta, err := dex.FetchTokenMeta(ctx, a.chain, addr, a.logger)
	if err != nil {
		a.logger.Warn("token decimals", zap.String("token", token), zap.Error(err))
		return 0
	}
	a.tokens.Set(addr, meta)
	return meta.Decimals
}

func windowStart(ts uint64, windowSec uint64) uint64 {
	return ts - (ts % windowSec)
}

func pairKey(address string) string {
	return strings.ToLower(address)
}

func minOpenWindowStart(acc map[string]*Accumulator) uint64 {
	var min uint64
	for _, entry := range acc {
		if entry == nil {
			continue
		}
		if min == 0 || entry.WindowStart < min {
			min = entry.WindowStart
		}
	}
	return min
}
