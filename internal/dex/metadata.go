package dex

import (
	"bytes"
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"pairEngine/internal/model"
)

// FetchPairMeta loads the pair's tokens from chain and warms the token cache.
// The swap fee point is not readable from a pair and is left zero.
func FetchPairMeta(ctx context.Context, caller ethereum.ContractCaller, pair common.Address, tokenCache *TokenMetaCache, logger *zap.Logger) (model.PairMeta, error) {
	if caller == nil {
		return model.PairMeta{}, fmt.Errorf("chain client is nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	pairABI, err := V2PairABI()
	if err != nil {
		return model.PairMeta{}, fmt.Errorf("parse pair abi: %w", err)
	}

	token0, err := callAddress(ctx, caller, pair, pairABI, "token0", nil)
	if err != nil {
		return model.PairMeta{}, err
	}
	token1, err := callAddress(ctx, caller, pair, pairABI, "token1", nil)
	if err != nil {
		return model.PairMeta{}, err
	}

	if tokenCache != nil {
		for _, token := range []common.Address{token0, token1} {
			if _, ok := tokenCache.Get(token); ok {
				continue
			}
			tokenMeta, err := FetchTokenMeta(ctx, caller, token, logger)
			if err != nil {
				logger.Warn("token metadata fetch failed", zap.String("token", token.Hex()), zap.Error(err))
			}
			tokenCache.Set(token, tokenMeta)
		}
	}

	return model.PairMeta{
		Token0: token0.Hex(),
		Token1: token1.Hex(),
	}, nil
}

// FetchPairReserves reads getReserves at a block height. Zero means latest.
func FetchPairReserves(ctx context.Context, caller ethereum.ContractCaller, pair common.Address, blockNumber uint64) (*model.PairReserves, error) {
	if caller == nil {
		return nil, fmt.Errorf("chain client is nil")
	}
	pairABI, err := V2PairABI()
	if err != nil {
		return nil, fmt.Errorf("parse pair abi: %w", err)
	}

	values, err := callPairMethod(ctx, caller, pair, pairABI, "getReserves", blockArg(blockNumber))
	if err != nil {
		return nil, err
	}
	if len(values) != 3 {
		return nil, fmt.Errorf("unexpected getReserves values: %d", len(values))
	}
	reserve0, err := asBigInt(values[0])
	if err != nil {
		return nil, fmt.Errorf("reserve0: %w", err)
	}
	reserve1, err := asBigInt(values[1])
	if err != nil {
		return nil, fmt.Errorf("reserve1: %w", err)
	}
	ts, err := asBigInt(values[2])
	if err != nil {
		return nil, fmt.Errorf("block timestamp: %w", err)
	}
	return &model.PairReserves{
		Reserve0:           reserve0.String(),
		Reserve1:           reserve1.String(),
		BlockTimestampLast: uint32(ts.Uint64()),
	}, nil
}

func blockArg(blockNumber uint64) *big.Int {
	if blockNumber == 0 {
		return nil
	}
	return new(big.Int).SetUint64(blockNumber)
}

func callPairMethod(ctx context.Context, caller ethereum.ContractCaller, pair common.Address, pairABI abi.ABI, method string, block *big.Int, args ...interface{}) ([]interface{}, error) {
	data, err := pairABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	msg := ethereum.CallMsg{To: &pair, Data: data}
	resp, err := caller.CallContract(ctx, msg, block)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	values, err := pairABI.Unpack(method, resp)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("unpack %s: empty result", method)
	}
	return values, nil
}

func callAddress(ctx context.Context, caller ethereum.ContractCaller, target common.Address, parsed abi.ABI, method string, block *big.Int) (common.Address, error) {
	values, err := callPairMethod(ctx, caller, target, parsed, method, block)
	if err != nil {
		return common.Address{}, err
	}
	addr, err := asAddress(values[0])
	if err != nil {
		return common.Address{}, fmt.Errorf("%s: %w", method, err)
	}
	return addr, nil
}

func callBigInt(ctx context.Context, caller ethereum.ContractCaller, target common.Address, parsed abi.ABI, method string, block *big.Int, args ...interface{}) (*big.Int, error) {
	values, err := callPairMethod(ctx, caller, target, parsed, method, block, args...)
	if err != nil {
		return nil, err
	}
	v, err := asBigInt(values[0])
	if err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}
	return v, nil
}

// FetchTokenMeta loads token metadata via ERC20 calls.
func FetchTokenMeta(ctx context.Context, caller ethereum.ContractCaller, token common.Address, logger *zap.Logger) (model.TokenMeta, error) {
	meta := model.TokenMeta{Address: token.Hex()}
	if caller == nil {
		return meta, fmt.Errorf("chain client is nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	stringABI, err := erc20StringABI.get()
	if err != nil {
		return meta, fmt.Errorf("parse erc20 string abi: %w", err)
	}
	bytes32ABI, err := erc20Bytes32ABI.get()
	if err != nil {
		return meta, fmt.Errorf("parse erc20 bytes32 abi: %w", err)
	}

	values, err := callPairMethod(ctx, caller, token, stringABI, "decimals", nil)
	if err != nil {
		return meta, err
	}
	if meta.Decimals, err = asUint8(values[0]); err != nil {
		return meta, err
	}

	// Older tokens return symbol and name as bytes32.
	text := func(method string) string {
		if values, err := callPairMethod(ctx, caller, token, stringABI, method, nil); err == nil {
			if s, ok := values[0].(string); ok {
				return s
			}
		}
		values, err := callPairMethod(ctx, caller, token, bytes32ABI, method, nil)
		if err != nil {
			logger.Debug("token text call failed", zap.String("token", token.Hex()), zap.String("method", method), zap.Error(err))
			return ""
		}
		s, _ := bytes32ToString(values[0])
		return s
	}
	meta.Symbol = text("symbol")
	meta.Name = text("name")
	return meta, nil
}

func bytes32ToString(value interface{}) (string, bool) {
	switch v := value.(type) {
	case [32]byte:
		return string(bytes.TrimRight(v[:], "\x00")), true
	case []byte:
		return string(bytes.TrimRight(v, "\x00")), true
	default:
		return "", false
	}
}

func asAddress(value interface{}) (common.Address, error) {
	switch v := value.(type) {
	case common.Address:
		return v, nil
	case *common.Address:
		return *v, nil
	default:
		return common.Address{}, fmt.Errorf("unsupported address type %T", value)
	}
}

func asBigInt(value interface{}) (*big.Int, error) {
	switch v := value.(type) {
	case *big.Int:
		return new(big.Int).Set(v), nil
	case big.Int:
		return new(big.Int).Set(&v), nil
	case uint8:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint16:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint32:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint64:
		return new(big.Int).SetUint64(v), nil
	default:
		return nil, fmt.Errorf("unsupported int type %T", value)
	}
}

func asUint8(value interface{}) (uint8, error) {
	switch v := value.(type) {
	case uint8:
		return v, nil
	case uint16:
		return uint8(v), nil
	case uint32:
		return uint8(v), nil
	case uint64:
		return uint8(v), nil
	case *big.Int:
		return uint8(v.Uint64()), nil
	default:
		return 0, fmt.Errorf("unsupported uint8 type %T", value)
	}
}
