package dex

import (
	"context"

	"github.com/ethereum/go-ethereum"
	"go.uber.org/zap"

	"pairEngine/internal/model"
)

// Decoder defines a log decoder.
type Decoder interface {
	CanDecode(topic0 string) bool
	Decode(log model.LogRecord, ctx DecodeContext) (*model.TypedEvent, error)
}

// DecodeContext provides shared dependencies for decoders. Chain may be nil
// when every pair is already in PairMetaCache.
type DecodeContext struct {
	Context         context.Context
	Chain           ethereum.ContractCaller
	PairMetaCache   *PairMetaCache
	TokenMetaCache  *TokenMetaCache
	Logger          *zap.Logger
	IncludeLiveMeta bool
}
