package aggregate

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"pairEngine/internal/dex"
	"pairEngine/internal/model"
)

const (
	reserveMethodSync   = "sync_event"
	reserveMethodMeta   = "live_meta"
	reserveMethodBlock  = "get_reserves_block"
	reserveMethodLatest = "get_reserves_latest"
	reserveMethodNone   = "unavailable"
)

// resolveReserves picks the reserves a window's fee rate is measured against:
// the last Sync in the window, then decoder live metadata, then getReserves.
func (a *Aggregator) resolveReserves(ctx context.Context, acc *Accumulator) (*big.Int, *big.Int, string) {
	if acc.Reserve0 != nil && acc.Reserve1 != nil {
		return acc.Reserve0, acc.Reserve1, reserveMethodSync
	}
	if r := acc.PairMeta.Reserves; r != nil {
		if r0, r1, ok := parseReserves(r); ok {
			return r0, r1, reserveMethodMeta
		}
	}
	if a.chain == nil || !common.IsHexAddress(acc.PairAddress) {
		return nil, nil, reserveMethodNone
	}

	pair := common.HexToAddress(acc.PairAddress)
	if acc.LastBlock > 0 {
		if r, err := dex.FetchPairReserves(ctx, a.chain, pair, acc.LastBlock); err == nil {
			if r0, r1, ok := parseReserves(r); ok {
				return r0, r1, reserveMethodBlock
			}
		}
	}
	r, err := dex.FetchPairReserves(ctx, a.chain, pair, 0)
	if err != nil {
		a.logger.Warn("reserves fetch failed", zap.String("pair", acc.PairAddress), zap.Error(err))
		return nil, nil, reserveMethodNone
	}
	if r0, r1, ok := parseReserves(r); ok {
		return r0, r1, reserveMethodLatest
	}
	return nil, nil, reserveMethodNone
}

func parseReserves(r *model.PairReserves) (*big.Int, *big.Int, bool) {
	r0, err0 := parseBigInt(r.Reserve0)
	r1, err1 := parseBigInt(r.Reserve1)
	if err0 != nil || err1 != nil {
		return nil, nil, false
	}
	return r0, r1, true
}
