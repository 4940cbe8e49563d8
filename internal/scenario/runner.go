package scenario

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"pairEngine/internal/dex"
	"pairEngine/internal/factory"
	"pairEngine/internal/ledger"
	"pairEngine/internal/model"
	"pairEngine/internal/pair"
	"pairEngine/internal/storage"
)

// Options configures a Runner. Logs and OnEvent are optional.
type Options struct {
	ChainID uint64
	Logs    storage.Storage
	OnEvent func(ctx context.Context, ev model.TypedEvent) error
	Now     func() time.Time
}

// Result summarizes a run.
type Result struct {
	Steps          int
	ExpectedErrors int
	Logs           int
}

type pairEvent struct {
	pair common.Address
	ev   pair.Event
}

// Runner executes a scenario. Each step is one block with one transaction;
// a failed step leaves no trace in balances, pairs or logs.
type Runner struct {
	sc      *Scenario
	opts    Options
	logger  *zap.Logger
	bank    *ledger.Bank
	clock   *ledger.Clock
	callees *ledger.Callees
	factory *factory.Factory
	decoder *dex.V2PairDecoder

	accounts  map[string]common.Address
	tokens    map[string]*ledger.Token
	decimals  map[common.Address]uint8
	pairs     map[string]*pair.Pair
	pairOrder []string
	pairMeta  *dex.PairMetaCache
	tokenMeta *dex.TokenMetaCache

	block   uint64
	pending []pairEvent
}

// NewRunner builds the world a scenario starts from: accounts, tokens with
// their initial balances, the factory and its pairs.
func NewRunner(sc *Scenario, opts Options, logger *zap.Logger) (*Runner, error) {
	if sc == nil {
		return nil, fmt.Errorf("scenario is nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	decoder, err := dex.NewV2PairDecoder(dex.DecoderConfig{})
	if err != nil {
		return nil, fmt.Errorf("decoder: %w", err)
	}

	r := &Runner{
		sc:        sc,
		opts:      opts,
		logger:    logger,
		bank:      ledger.NewBank(logger),
		clock:     ledger.NewClock(sc.StartTime),
		callees:   ledger.NewCallees(),
		decoder:   decoder,
		accounts:  make(map[string]common.Address),
		tokens:    make(map[string]*ledger.Token),
		decimals:  make(map[common.Address]uint8),
		pairs:     make(map[string]*pair.Pair),
		pairMeta:  dex.NewPairMetaCache(),
		tokenMeta: dex.NewTokenMetaCache(),
	}
	if err := r.setup(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Runner) setup() error {
	for _, a := range r.sc.Accounts {
		addr, err := addressOrDerived("account", a.Name, a.Address)
		if err != nil {
			return err
		}
		r.accounts[a.Name] = addr
	}

	for _, spec := range r.sc.Tokens {
		addr, err := addressOrDerived("token", spec.Symbol, spec.Address)
		if err != nil {
			return err
		}
		tok, err := r.bank.NewToken(addr, spec.Symbol, spec.FeeBps)
		if err != nil {
			return fmt.Errorf("token %s: %w", spec.Symbol, err)
		}
		r.tokens[spec.Symbol] = tok
		r.decimals[addr] = spec.Decimals
		r.tokenMeta.Set(addr, model.TokenMeta{Address: addr.Hex(), Decimals: spec.Decimals, Symbol: spec.Symbol, Name: spec.Symbol})
		for holder, amount := range spec.Balances {
			to, err := r.resolve(holder)
			if err != nil {
				return fmt.Errorf("token %s balance: %w", spec.Symbol, err)
			}
			v, err := parseAmount(amount)
			if err != nil {
				return fmt.Errorf("token %s balance for %s: %w", spec.Symbol, holder, err)
			}
			if err := tok.Mint(to, v); err != nil {
				return err
			}
		}
	}

	fc, err := r.factoryConfig()
	if err != nil {
		return err
	}
	r.factory, err = factory.New(fc, r.bank.Lookup, factory.Host{
		Clock:   r.clock,
		Callees: r.callees,
		Journal: r.bank,
		Events:  r,
	}, r.logger)
	if err != nil {
		return fmt.Errorf("factory: %w", err)
	}

	for _, spec := range r.sc.Pairs {
		if err := r.createPair(spec); err != nil {
			return fmt.Errorf("pair %s: %w", spec.Name, err)
		}
	}

	r.bank.Commit()
	r.refreshMeta()
	// Restored pairs announce their reserves in the genesis block.
	return r.publish(context.Background(), crypto.Keccak256Hash([]byte(r.sc.Name+":genesis")))
}

func (r *Runner) factoryConfig() (factory.Config, error) {
	spec := r.sc.Factory
	addr, err := addressOrDerived("factory", "factory", spec.Address)
	if err != nil {
		return factory.Config{}, err
	}
	cfg := factory.Config{
		Address:           addr,
		SwapFeePoint:      factory.DefaultSwapFeePoint,
		ProtocolFeeFactor: factory.DefaultProtocolFeeFactor,
	}
	if spec.FeeToSetter != "" {
		if cfg.FeeToSetter, err = r.resolve(spec.FeeToSetter); err != nil {
			return factory.Config{}, fmt.Errorf("fee_to_setter: %w", err)
		}
	}
	if spec.FeeTo != "" {
		if cfg.FeeTo, err = r.resolve(spec.FeeTo); err != nil {
			return factory.Config{}, fmt.Errorf("fee_to: %w", err)
		}
	}
	if spec.SwapFeePoint != nil {
		cfg.SwapFeePoint = *spec.SwapFeePoint
	}
	if spec.ProtocolFeeFactor != nil {
		cfg.ProtocolFeeFactor = *spec.ProtocolFeeFactor
	}
	return cfg, nil
}

func (r *Runner) createPair(spec PairSpec) error {
	tokenA, err := r.token(spec.TokenA)
	if err != nil {
		return err
	}
	tokenB, err := r.token(spec.TokenB)
	if err != nil {
		return err
	}
	p, err := r.factory.CreatePair(tokenA.Address(), tokenB.Address())
	if err != nil {
		return err
	}
	r.pairs[spec.Name] = p
	r.pairOrder = append(r.pairOrder, spec.Name)

	if spec.FeeOverride != nil {
		if err := r.factory.SetSwapFeeOverride(r.factory.FeeToSetter(), p.Address(), *spec.FeeOverride); err != nil {
			return fmt.Errorf("fee override: %w", err)
		}
	}
	r.refreshMeta()

	if spec.Snapshot == "" {
		return nil
	}
	holder, err := r.resolve(spec.Holder)
	if err != nil {
		return fmt.Errorf("holder: %w", err)
	}
	return r.restore(p, spec.Snapshot, holder)
}

// restore funds the pair with the snapshot balances and seeds its state.
func (r *Runner) restore(p *pair.Pair, path string, holder common.Address) error {
	if !filepath.IsAbs(path) && r.sc.dir != "" {
		path = filepath.Join(r.sc.dir, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read snapshot: %w", err)
	}
	var snap model.PairSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("parse snapshot: %w", err)
	}
	if !strings.EqualFold(snap.Token0, p.Token0().Hex()) || !strings.EqualFold(snap.Token1, p.Token1().Hex()) {
		return fmt.Errorf("snapshot tokens %s/%s do not match pair", snap.Token0, snap.Token1)
	}
	state, err := SnapshotFromModel(snap)
	if err != nil {
		return err
	}

	balance0, balance1 := state.Reserve0, state.Reserve1
	if snap.Balance0 != "" {
		if balance0, err = parseAmount(snap.Balance0); err != nil {
			return fmt.Errorf("balance0: %w", err)
		}
	}
	if snap.Balance1 != "" {
		if balance1, err = parseAmount(snap.Balance1); err != nil {
			return fmt.Errorf("balance1: %w", err)
		}
	}
	if err := r.tokenAt(p.Token0()).Mint(p.Address(), balance0); err != nil {
		return err
	}
	if err := r.tokenAt(p.Token1()).Mint(p.Address(), balance1); err != nil {
		return err
	}
	return p.Restore(state, holder)
}

// SnapshotFromModel converts a stored snapshot into pair state. Empty
// fields are zero.
func SnapshotFromModel(s model.PairSnapshot) (pair.Snapshot, error) {
	out := pair.Snapshot{BlockTimestampLast: s.BlockTimestampLast}
	fields := []struct {
		name  string
		value string
		dst   **uint256.Int
	}{
		{"reserve0", s.Reserve0, &out.Reserve0},
		{"reserve1", s.Reserve1, &out.Reserve1},
		{"price0_cumulative_last", s.Price0CumulativeLast, &out.Price0CumulativeLast},
		{"price1_cumulative_last", s.Price1CumulativeLast, &out.Price1CumulativeLast},
		{"k_last", s.KLast, &out.KLast},
		{"total_supply", s.TotalSupply, &out.TotalSupply},
	}
	for _, f := range fields {
		if f.value == "" {
			*f.dst = new(uint256.Int)
			continue
		}
		v, err := parseAmount(f.value)
		if err != nil {
			return pair.Snapshot{}, fmt.Errorf("%s: %w", f.name, err)
		}
		*f.dst = v
	}
	return out, nil
}

// PairEvent collects pair events until the step commits.
func (r *Runner) PairEvent(p common.Address, ev pair.Event) {
	r.pending = append(r.pending, pairEvent{pair: p, ev: ev})
}

// Run executes every step in order. A step that fails without a matching
// expect_error stops the run.
func (r *Runner) Run(ctx context.Context) (Result, error) {
	var res Result
	for i, step := range r.sc.Steps {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if i > 0 {
			r.clock.Advance(r.sc.BlockTime)
		}
		r.block++
		txHash := crypto.Keccak256Hash([]byte(r.sc.Name), binary.BigEndian.AppendUint64(nil, uint64(i)))

		id := r.bank.Snapshot()
		r.pending = r.pending[:0]
		err := actions[step.Action](r, step)
		if err != nil {
			r.bank.RevertToSnapshot(id)
			r.pending = r.pending[:0]
			if step.ExpectError == "" {
				return res, fmt.Errorf("step %d (%s): %w", i, step.Action, err)
			}
			if !matchesExpected(err, step.ExpectError) {
				return res, fmt.Errorf("step %d (%s): expected %q, got %w", i, step.Action, step.ExpectError, err)
			}
			res.ExpectedErrors++
			r.logger.Info("step failed as expected",
				zap.Int("step", i),
				zap.String("action", step.Action),
				zap.String("kind", pair.KindOf(err).String()),
				zap.Error(err),
			)
		} else if step.ExpectError != "" {
			return res, fmt.Errorf("step %d (%s): expected %q, got success", i, step.Action, step.ExpectError)
		}
		r.bank.Commit()
		r.refreshMeta()

		n := len(r.pending)
		if err := r.publish(ctx, txHash); err != nil {
			return res, fmt.Errorf("step %d (%s): %w", i, step.Action, err)
		}
		res.Logs += n
		res.Steps++
		r.logger.Debug("step done",
			zap.Int("step", i),
			zap.String("action", step.Action),
			zap.Uint64("block", r.block),
			zap.Int("logs", n),
		)
	}
	r.logger.Info("scenario complete",
		zap.String("name", r.sc.Name),
		zap.Int("steps", res.Steps),
		zap.Int("expected_errors", res.ExpectedErrors),
		zap.Int("logs", res.Logs),
	)
	return res, nil
}

// publish encodes the pending events as logs of the current block, stores
// them and hands their decoded form to OnEvent.
func (r *Runner) publish(ctx context.Context, txHash common.Hash) error {
	if len(r.pending) == 0 {
		return nil
	}
	pos := dex.LogPosition{
		ChainID:     r.opts.ChainID,
		BlockNumber: r.block,
		BlockHash:   crypto.Keccak256Hash(binary.BigEndian.AppendUint64([]byte(r.sc.Name), r.block)),
		TxHash:      txHash,
		Timestamp:   r.clock.Now(),
	}
	ingestedAt := r.opts.Now()

	logs := make([]model.LogRecord, 0, len(r.pending))
	for i, pe := range r.pending {
		pos.LogIndex = uint64(i)
		record, err := dex.EncodeEvent(pe.pair, pe.ev, pos, ingestedAt)
		if err != nil {
			return fmt.Errorf("encode %s: %w", pe.ev.EventName(), err)
		}
		logs = append(logs, record)
	}
	r.pending = r.pending[:0]

	if r.opts.Logs != nil {
		if err := r.opts.Logs.PutLogBatch(ctx, logs); err != nil {
			return fmt.Errorf("store logs: %w", err)
		}
	}
	if r.opts.OnEvent == nil {
		return nil
	}
	decodeCtx := dex.DecodeContext{
		Context:        ctx,
		PairMetaCache:  r.pairMeta,
		TokenMetaCache: r.tokenMeta,
		Logger:         r.logger,
	}
	for _, record := range logs {
		ev, err := r.decoder.Decode(record, decodeCtx)
		if err != nil {
			return fmt.Errorf("decode %s: %w", record.TxHash, err)
		}
		if err := r.opts.OnEvent(ctx, *ev); err != nil {
			return err
		}
	}
	return nil
}

// refreshMeta keeps decoded pair metadata in step with fee changes.
func (r *Runner) refreshMeta() {
	for _, name := range r.pairOrder {
		p := r.pairs[name]
		r0, r1, ts := p.GetReserves()
		r.pairMeta.Set(p.Address(), model.PairMeta{
			Token0:       p.Token0().Hex(),
			Token1:       p.Token1().Hex(),
			SwapFeePoint: p.SwapFee(),
			Reserves: &model.PairReserves{
				Reserve0:           r0.Dec(),
				Reserve1:           r1.Dec(),
				BlockTimestampLast: ts,
			},
		})
	}
}

// Decimals returns the declared decimals of every token.
func (r *Runner) Decimals() map[common.Address]uint8 {
	out := make(map[common.Address]uint8, len(r.decimals))
	for k, v := range r.decimals {
		out[k] = v
	}
	return out
}

// PairSnapshots returns the current state of every pair in declaration order.
func (r *Runner) PairSnapshots() []model.PairSnapshot {
	out := make([]model.PairSnapshot, 0, len(r.pairOrder))
	for _, name := range r.pairOrder {
		p := r.pairs[name]
		s := p.Snapshot()
		t0, _ := r.tokenMeta.Get(p.Token0())
		t1, _ := r.tokenMeta.Get(p.Token1())
		out = append(out, model.PairSnapshot{
			ChainID:              r.opts.ChainID,
			Address:              p.Address().Hex(),
			BlockNumber:          r.block,
			Token0:               p.Token0().Hex(),
			Token1:               p.Token1().Hex(),
			Token0Meta:           &t0,
			Token1Meta:           &t1,
			SwapFeePoint:         p.SwapFee(),
			Reserve0:             s.Reserve0.Dec(),
			Reserve1:             s.Reserve1.Dec(),
			Balance0:             r.tokenAt(p.Token0()).BalanceOf(p.Address()).Dec(),
			Balance1:             r.tokenAt(p.Token1()).BalanceOf(p.Address()).Dec(),
			BlockTimestampLast:   s.BlockTimestampLast,
			Price0CumulativeLast: s.Price0CumulativeLast.Dec(),
			Price1CumulativeLast: s.Price1CumulativeLast.Dec(),
			KLast:                s.KLast.Dec(),
			TotalSupply:          s.TotalSupply.Dec(),
		})
	}
	return out
}

// Pair returns a named pair.
func (r *Runner) Pair(name string) (*pair.Pair, bool) {
	p, ok := r.pairs[name]
	return p, ok
}

// BalanceOf returns a token balance by symbol and account name.
func (r *Runner) BalanceOf(symbol, holder string) (*uint256.Int, error) {
	tok, err := r.token(symbol)
	if err != nil {
		return nil, err
	}
	addr, err := r.resolve(holder)
	if err != nil {
		return nil, err
	}
	return tok.BalanceOf(addr), nil
}

func (r *Runner) token(symbol string) (*ledger.Token, error) {
	tok, ok := r.tokens[symbol]
	if !ok {
		return nil, fmt.Errorf("unknown token %q", symbol)
	}
	return tok, nil
}

func (r *Runner) tokenAt(addr common.Address) *ledger.Token {
	tok, _ := r.bank.Token(addr)
	return tok
}

func (r *Runner) pair(name string) (*pair.Pair, error) {
	p, ok := r.pairs[name]
	if !ok {
		return nil, fmt.Errorf("unknown pair %q", name)
	}
	return p, nil
}

// resolve maps an account or pair name, or a hex address, to an address.
func (r *Runner) resolve(name string) (common.Address, error) {
	if addr, ok := r.accounts[name]; ok {
		return addr, nil
	}
	if p, ok := r.pairs[name]; ok {
		return p.Address(), nil
	}
	if common.IsHexAddress(name) {
		return common.HexToAddress(name), nil
	}
	return common.Address{}, fmt.Errorf("unknown account %q", name)
}

func addressOrDerived(kind, name, address string) (common.Address, error) {
	if address == "" {
		return common.BytesToAddress(crypto.Keccak256([]byte(kind + ":" + name))[12:]), nil
	}
	if !common.IsHexAddress(address) {
		return common.Address{}, fmt.Errorf("%s %s: invalid address %s", kind, name, address)
	}
	return common.HexToAddress(address), nil
}

func parseAmount(s string) (*uint256.Int, error) {
	v, err := uint256.FromDecimal(strings.ReplaceAll(strings.TrimSpace(s), "_", ""))
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return v, nil
}

func matchesExpected(err error, expected string) bool {
	if pair.KindOf(err).String() == expected {
		return true
	}
	return strings.Contains(err.Error(), expected)
}
