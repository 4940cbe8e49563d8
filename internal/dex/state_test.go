package dex

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// fakeChain answers eth_calls from canned return values keyed by target and method.
type fakeChain struct {
	responses map[common.Address]map[string][]interface{}
	abis      map[common.Address]abi.ABI
	failures  int
	calls     int
}

func (f *fakeChain) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	f.calls++
	if f.failures > 0 {
		f.failures--
		return nil, errors.New("connection reset")
	}
	parsed, ok := f.abis[*msg.To]
	if !ok {
		return nil, fmt.Errorf("no contract at %s", msg.To.Hex())
	}
	for name, method := range parsed.Methods {
		if !bytes.Equal(method.ID, msg.Data[:4]) {
			continue
		}
		values, ok := f.responses[*msg.To][name]
		if !ok {
			return nil, fmt.Errorf("execution reverted")
		}
		return method.Outputs.Pack(values...)
	}
	return nil, fmt.Errorf("execution reverted")
}

func newFakeChain(t *testing.T, pairAddr, token0, token1 common.Address) *fakeChain {
	t.Helper()
	pairABI, err := V2PairABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}
	erc20, err := erc20StringABI.get()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}
	token := func(symbol string, balance int64) map[string][]interface{} {
		return map[string][]interface{}{
			"decimals":  {uint8(18)},
			"symbol":    {symbol},
			"name":      {symbol + " token"},
			"balanceOf": {big.NewInt(balance)},
		}
	}
	return &fakeChain{
		abis: map[common.Address]abi.ABI{pairAddr: pairABI, token0: erc20, token1: erc20},
		responses: map[common.Address]map[string][]interface{}{
			pairAddr: {
				"token0":               {token0},
				"token1":               {token1},
				"getReserves":          {big.NewInt(5000), big.NewInt(9000), uint32(1700000000)},
				"price0CumulativeLast": {big.NewInt(11)},
				"price1CumulativeLast": {big.NewInt(22)},
				"kLast":                {big.NewInt(45000000)},
				"totalSupply":          {big.NewInt(6708)},
			},
			token0: token("AAA", 5010),
			token1: token("BBB", 9000),
		},
	}
}

func TestFetchPairState(t *testing.T) {
	pairAddr := common.HexToAddress("0x1111111111111111111111111111111111111111")
	token0 := common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	token1 := common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
	chain := newFakeChain(t, pairAddr, token0, token1)
	chain.failures = 1

	snap, err := FetchPairState(context.Background(), chain, 56, pairAddr, 100, NewTokenMetaCache(), RetryPolicy{MaxRetries: 2, BaseDelay: 1}, nil)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if snap.Token0 != token0.Hex() || snap.Token1 != token1.Hex() {
		t.Fatalf("tokens mismatch: %+v", snap)
	}
	if snap.Reserve0 != "5000" || snap.Reserve1 != "9000" || snap.BlockTimestampLast != 1700000000 {
		t.Fatalf("reserves mismatch: %+v", snap)
	}
	if snap.KLast != "45000000" || snap.TotalSupply != "6708" || snap.Price1CumulativeLast != "22" {
		t.Fatalf("accumulators mismatch: %+v", snap)
	}
	if snap.Balance0 != "5010" || snap.Balance1 != "9000" {
		t.Fatalf("balances mismatch: %+v", snap)
	}
	if snap.Token0Meta == nil || snap.Token0Meta.Symbol != "AAA" || snap.Token0Meta.Decimals != 18 {
		t.Fatalf("token meta mismatch: %+v", snap.Token0Meta)
	}
}

func TestFetchPairStateGivesUp(t *testing.T) {
	pairAddr := common.HexToAddress("0x1111111111111111111111111111111111111111")
	chain := newFakeChain(t, pairAddr, common.HexToAddress("0xaa"), common.HexToAddress("0xbb"))
	chain.failures = 10

	if _, err := FetchPairState(context.Background(), chain, 56, pairAddr, 0, nil, RetryPolicy{MaxRetries: 1, BaseDelay: 1}, nil); err == nil {
		t.Fatalf("expected error")
	}
	if chain.calls != 2 {
		t.Fatalf("calls: got %d want 2", chain.calls)
	}
}

func TestDecoderFetchesUnknownPairMeta(t *testing.T) {
	pairAddr := common.HexToAddress("0x1111111111111111111111111111111111111111")
	token0 := common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	token1 := common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
	chain := newFakeChain(t, pairAddr, token0, token1)

	pairABI, _ := V2PairABI()
	data, _ := pairABI.Events["Sync"].Inputs.NonIndexed().Pack(big.NewInt(1), big.NewInt(2))
	record := buildLogRecord(pairAddr, pairABI.Events["Sync"].ID, data, nil)

	decoder, err := NewV2PairDecoder(DecoderConfig{})
	if err != nil {
		t.Fatalf("decoder: %v", err)
	}
	cache := NewPairMetaCache()
	ev, err := decoder.Decode(record, DecodeContext{
		Chain:           chain,
		PairMetaCache:   cache,
		TokenMetaCache:  NewTokenMetaCache(),
		IncludeLiveMeta: true,
	})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ev.PairMeta.Token0 != token0.Hex() || ev.PairMeta.Reserves == nil || ev.PairMeta.Reserves.Reserve1 != "9000" {
		t.Fatalf("meta mismatch: %+v", ev.PairMeta)
	}
	if cache.Len() != 1 {
		t.Fatalf("meta not cached")
	}
}
