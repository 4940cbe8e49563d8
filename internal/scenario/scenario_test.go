package scenario

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"pairEngine/internal/model"
	"pairEngine/internal/storage"
)

const basicScenario = `
name: basic
start_time: 1700000000
block_time: 12
accounts:
  - name: alice
  - name: bob
tokens:
  - symbol: AAA
    decimals: 18
    balances: {alice: "10000000", bob: "1000000"}
  - symbol: BBB
    decimals: 6
    balances: {alice: "10000000", bob: "1000000"}
pairs:
  - name: main
    token_a: AAA
    token_b: BBB
steps:
  - action: add_liquidity
    pair: main
    from: alice
    amounts: {AAA: "1000000", BBB: "1000000"}
  - action: swap
    pair: main
    from: bob
    token: AAA
    amount_in: "10000"
  - action: swap
    pair: main
    from: bob
    token: AAA
    amount_in: "1000"
    amount_out: "100000"
    expect_error: invariant_violation
  - action: remove_liquidity
    pair: main
    from: alice
    amount: all
`

func mustRun(t *testing.T, src string, opts Options) (*Runner, Result) {
	t.Helper()
	sc, err := Parse([]byte(src))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	r, err := NewRunner(sc, opts, zap.NewNop())
	if err != nil {
		t.Fatalf("new runner: %v", err)
	}
	res, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	return r, res
}

func balance(t *testing.T, r *Runner, symbol, holder string) uint64 {
	t.Helper()
	v, err := r.BalanceOf(symbol, holder)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	return v.Uint64()
}

func TestRunBasicScenario(t *testing.T) {
	logs := &storage.MemoryStorage{}
	var names []string
	r, res := mustRun(t, basicScenario, Options{
		ChainID: 31337,
		Logs:    logs,
		OnEvent: func(_ context.Context, ev model.TypedEvent) error {
			names = append(names, ev.EventName)
			return nil
		},
	})

	if res.Steps != 4 || res.ExpectedErrors != 1 {
		t.Fatalf("result: %+v", res)
	}
	want := []string{
		"Transfer", "Transfer", "Sync", "Mint",
		"Sync", "Swap",
		"Transfer", "Transfer", "Sync", "Burn",
	}
	if strings.Join(names, ",") != strings.Join(want, ",") {
		t.Fatalf("events: got %v want %v", names, want)
	}
	if got := len(logs.Logs()); got != len(want) || res.Logs != len(want) {
		t.Fatalf("logs: stored %d counted %d", got, res.Logs)
	}

	// 10000 in at 30 bps against 1e6/1e6 quotes 9871 out.
	if got := balance(t, r, "AAA", "bob"); got != 990_000 {
		t.Fatalf("bob AAA: got %d", got)
	}
	if got := balance(t, r, "BBB", "bob"); got != 1_009_871 {
		t.Fatalf("bob BBB: got %d", got)
	}
	if got := balance(t, r, "AAA", "alice"); got != 10_008_990 {
		t.Fatalf("alice AAA: got %d", got)
	}
	if got := balance(t, r, "BBB", "alice"); got != 9_989_138 {
		t.Fatalf("alice BBB: got %d", got)
	}

	p, _ := r.Pair("main")
	if got := p.TotalSupply().Uint64(); got != 1000 {
		t.Fatalf("total supply: got %d", got)
	}
	snaps := r.PairSnapshots()
	if len(snaps) != 1 || snaps[0].TotalSupply != "1000" || snaps[0].ChainID != 31337 {
		t.Fatalf("snapshots: %+v", snaps)
	}
	if snaps[0].Reserve0 != snaps[0].Balance0 || snaps[0].Reserve1 != snaps[0].Balance1 {
		t.Fatalf("reserves out of sync with balances: %+v", snaps[0])
	}
}

func TestLogsCarryBlockPosition(t *testing.T) {
	logs := &storage.MemoryStorage{}
	mustRun(t, basicScenario, Options{ChainID: 1, Logs: logs})
	records := logs.Logs()
	if records[0].BlockNumber != 1 || records[0].Timestamp != 1700000000 {
		t.Fatalf("first log: block %d ts %d", records[0].BlockNumber, records[0].Timestamp)
	}
	swap := records[5]
	if swap.BlockNumber != 2 || swap.Timestamp != 1700000012 || swap.LogIndex != 1 {
		t.Fatalf("swap log: block %d ts %d index %d", swap.BlockNumber, swap.Timestamp, swap.LogIndex)
	}
	// The failed step still takes a block.
	burn := records[9]
	if burn.BlockNumber != 4 || burn.Timestamp != 1700000036 {
		t.Fatalf("burn log: block %d ts %d", burn.BlockNumber, burn.Timestamp)
	}
}

const flashScenario = `
name: flash
start_time: 1000
block_time: 1
accounts:
  - name: lp
  - name: carol
tokens:
  - symbol: AAA
    balances: {lp: "1000000", carol: "10000"}
  - symbol: BBB
    balances: {lp: "1000000"}
pairs:
  - name: main
    token_a: AAA
    token_b: BBB
steps:
  - action: add_liquidity
    pair: main
    from: lp
    amounts: {AAA: "1000000", BBB: "1000000"}
  - action: flash_swap
    pair: main
    from: carol
    token: AAA
    amount_out: "1000"
    repay: "1003"
    expect_error: invariant_violation
  - action: flash_swap
    pair: main
    from: carol
    token: AAA
    amount_out: "1000"
    repay: "1004"
`

func TestFlashSwapRepaysInCallback(t *testing.T) {
	r, res := mustRun(t, flashScenario, Options{})
	if res.ExpectedErrors != 1 {
		t.Fatalf("result: %+v", res)
	}
	if got := balance(t, r, "AAA", "carol"); got != 9996 {
		t.Fatalf("carol AAA: got %d", got)
	}
	p, _ := r.Pair("main")
	r0, r1, _ := p.GetReserves()
	total := new(uint256.Int).Add(r0, r1)
	if total.Uint64() != 2_000_004 {
		t.Fatalf("reserves: %s %s", r0.Dec(), r1.Dec())
	}
}

func TestUnexpectedErrorStopsRun(t *testing.T) {
	src := strings.Replace(flashScenario, "    expect_error: invariant_violation\n", "", 1)
	sc, err := Parse([]byte(src))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	r, err := NewRunner(sc, Options{}, nil)
	if err != nil {
		t.Fatalf("new runner: %v", err)
	}
	res, err := r.Run(context.Background())
	if err == nil || !strings.Contains(err.Error(), "step 1") {
		t.Fatalf("expected step 1 failure, got %v", err)
	}
	if res.Steps != 1 {
		t.Fatalf("steps: got %d", res.Steps)
	}
}

func TestExpectedErrorMustOccur(t *testing.T) {
	src := strings.Replace(flashScenario, `repay: "1004"`, "repay: \"1004\"\n    expect_error: K", 1)
	sc, err := Parse([]byte(src))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	r, err := NewRunner(sc, Options{}, nil)
	if err != nil {
		t.Fatalf("new runner: %v", err)
	}
	if _, err := r.Run(context.Background()); err == nil || !strings.Contains(err.Error(), "got success") {
		t.Fatalf("expected missing failure, got %v", err)
	}
}

func TestRestoreFromSnapshot(t *testing.T) {
	dir := t.TempDir()
	snapshot := `{
  "token0": "0x1000000000000000000000000000000000000001",
  "token1": "0x2000000000000000000000000000000000000002",
  "reserve0": "500000",
  "reserve1": "2000000",
  "balance1": "2000100",
  "block_timestamp_last": 100,
  "total_supply": "1000000"
}`
	if err := os.WriteFile(filepath.Join(dir, "pair.json"), []byte(snapshot), 0o644); err != nil {
		t.Fatalf("write snapshot: %v", err)
	}
	src := `
name: restore
start_time: 200
accounts:
  - name: alice
tokens:
  - symbol: AAA
    address: "0x1000000000000000000000000000000000000001"
  - symbol: BBB
    address: "0x2000000000000000000000000000000000000002"
pairs:
  - name: main
    token_a: BBB
    token_b: AAA
    snapshot: pair.json
    holder: alice
steps:
  - action: skim
    pair: main
    to: alice
`
	path := filepath.Join(dir, "restore.yaml")
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatalf("write scenario: %v", err)
	}
	sc, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	logs := &storage.MemoryStorage{}
	r, err := NewRunner(sc, Options{Logs: logs}, nil)
	if err != nil {
		t.Fatalf("new runner: %v", err)
	}
	if _, err := r.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	p, _ := r.Pair("main")
	if got := p.BalanceOf(r.accounts["alice"]).Uint64(); got != 999_000 {
		t.Fatalf("holder shares: got %d", got)
	}
	r0, r1, ts := p.GetReserves()
	if r0.Uint64() != 500_000 || r1.Uint64() != 2_000_000 || ts != 100 {
		t.Fatalf("reserves: %s %s %d", r0.Dec(), r1.Dec(), ts)
	}
	if got := balance(t, r, "BBB", "alice"); got != 100 {
		t.Fatalf("skimmed: got %d", got)
	}
	// Genesis block carries the restore events.
	if records := logs.Logs(); len(records) == 0 || records[0].BlockNumber != 0 {
		t.Fatalf("genesis logs: %+v", records)
	}
}

func TestParseRejectsBadScenarios(t *testing.T) {
	cases := map[string]string{
		"unknown action": `
tokens: [{symbol: A}, {symbol: B}]
steps: [{action: teleport}]
`,
		"unknown field": `
tokens: [{symbol: A}, {symbol: B}]
colour: blue
`,
		"one token": `
tokens: [{symbol: A}]
`,
		"duplicate name": `
accounts: [{name: A}]
tokens: [{symbol: A}, {symbol: B}]
`,
	}
	for name, src := range cases {
		if _, err := Parse([]byte(src)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestQuoteOut(t *testing.T) {
	out, err := QuoteOut(uint256.NewInt(1000), uint256.NewInt(100_000), uint256.NewInt(100_000), 30)
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if out.Uint64() != 987 {
		t.Fatalf("quote: got %d", out.Uint64())
	}
	if _, err := QuoteOut(uint256.NewInt(1), uint256.NewInt(100_000), uint256.NewInt(10), 30); err == nil {
		t.Fatalf("expected empty quote error")
	}
}

func TestExampleScenario(t *testing.T) {
	sc, err := Load(filepath.Join("..", "..", "scenarios", "basic.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	r, err := NewRunner(sc, Options{ChainID: 1}, nil)
	if err != nil {
		t.Fatalf("new runner: %v", err)
	}
	res, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.ExpectedErrors != 3 {
		t.Fatalf("expected errors: got %d", res.ExpectedErrors)
	}
	// The protocol fee was on while the pair traded, so the burn minted shares
	// to the treasury.
	p, _ := r.Pair("weth-usdc")
	if p.BalanceOf(r.accounts["treasury"]).IsZero() {
		t.Fatalf("treasury received no protocol fee")
	}
}
