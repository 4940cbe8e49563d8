package dex

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"pairEngine/internal/model"
)

// FetchPairState reads everything needed to restore a pair at blockNumber.
// Zero reads the latest block. Token metadata is filled when tokenCache is set.
func FetchPairState(ctx context.Context, caller ethereum.ContractCaller, chainID uint64, pair common.Address, blockNumber uint64, tokenCache *TokenMetaCache, retry RetryPolicy, logger *zap.Logger) (model.PairSnapshot, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	snap := model.PairSnapshot{
		ChainID:     chainID,
		Address:     pair.Hex(),
		BlockNumber: blockNumber,
	}

	var meta model.PairMeta
	err := retry.do(ctx, func(ctx context.Context) error {
		var err error
		meta, err = FetchPairMeta(ctx, caller, pair, tokenCache, logger)
		return err
	})
	if err != nil {
		return snap, fmt.Errorf("pair meta: %w", err)
	}
	snap.Token0 = meta.Token0
	snap.Token1 = meta.Token1
	if tokenCache != nil {
		if m, ok := tokenCache.Get(common.HexToAddress(meta.Token0)); ok {
			snap.Token0Meta = &m
		}
		if m, ok := tokenCache.Get(common.HexToAddress(meta.Token1)); ok {
			snap.Token1Meta = &m
		}
	}

	var reserves *model.PairReserves
	err = retry.do(ctx, func(ctx context.Context) error {
		var err error
		reserves, err = FetchPairReserves(ctx, caller, pair, blockNumber)
		return err
	})
	if err != nil {
		return snap, fmt.Errorf("reserves: %w", err)
	}
	snap.Reserve0 = reserves.Reserve0
	snap.Reserve1 = reserves.Reserve1
	snap.BlockTimestampLast = reserves.BlockTimestampLast

	pairABI, err := V2PairABI()
	if err != nil {
		return snap, fmt.Errorf("parse pair abi: %w", err)
	}
	erc20ABI, err := erc20StringABI.get()
	if err != nil {
		return snap, fmt.Errorf("parse erc20 string abi: %w", err)
	}
	block := blockArg(blockNumber)

	reads := []struct {
		target common.Address
		method string
		args   []interface{}
		dst    *string
		onPair bool
	}{
		{pair, "price0CumulativeLast", nil, &snap.Price0CumulativeLast, true},
		{pair, "price1CumulativeLast", nil, &snap.Price1CumulativeLast, true},
		{pair, "kLast", nil, &snap.KLast, true},
		{pair, "totalSupply", nil, &snap.TotalSupply, true},
		{common.HexToAddress(meta.Token0), "balanceOf", []interface{}{pair}, &snap.Balance0, false},
		{common.HexToAddress(meta.Token1), "balanceOf", []interface{}{pair}, &snap.Balance1, false},
	}
	for _, r := range reads {
		parsed := erc20ABI
		if r.onPair {
			parsed = pairABI
		}
		err := retry.do(ctx, func(ctx context.Context) error {
			v, err := callBigInt(ctx, caller, r.target, parsed, r.method, block, r.args...)
			if err != nil {
				return err
			}
			*r.dst = v.String()
			return nil
		})
		if err != nil {
			return snap, fmt.Errorf("%s: %w", r.method, err)
		}
	}

	logger.Info("pair state fetched",
		zap.String("pair", snap.Address),
		zap.Uint64("block", blockNumber),
		zap.String("reserve0", snap.Reserve0),
		zap.String("reserve1", snap.Reserve1),
		zap.String("total_supply", snap.TotalSupply),
	)
	return snap, nil
}
