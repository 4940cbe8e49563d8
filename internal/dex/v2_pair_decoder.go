package dex

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"go.uber.org/zap"

	"pairEngine/internal/model"
)

// DecoderConfig configures decoder behavior.
type DecoderConfig struct {
	Topic0Map map[string]string
}

// V2PairDecoder decodes constant-product pair events.
type V2PairDecoder struct {
	pairABI     abi.ABI
	topicToName map[string]string
}

// NewV2PairDecoder builds a pair decoder. Topic0Map adds aliases for forks
// that emit the same payloads under different signatures.
func NewV2PairDecoder(cfg DecoderConfig) (*V2PairDecoder, error) {
	pairABI, err := V2PairABI()
	if err != nil {
		return nil, err
	}

	topicToName := make(map[string]string, len(pairABI.Events))
	for name, event := range pairABI.Events {
		topicToName[strings.ToLower(event.ID.Hex())] = name
	}

	for topic0, name := range cfg.Topic0Map {
		original := name
		name = normalizeEventName(name)
		if name == "" {
			return nil, fmt.Errorf("unsupported event name in topic0 map: %s", original)
		}
		if topic0 == "" {
			continue
		}
		topicToName[strings.ToLower(topic0)] = name
	}

	return &V2PairDecoder{
		pairABI:     pairABI,
		topicToName: topicToName,
	}, nil
}

// CanDecode checks if the topic0 is supported.
func (d *V2PairDecoder) CanDecode(topic0 string) bool {
	if topic0 == "" {
		return false
	}
	_, ok := d.topicToName[strings.ToLower(topic0)]
	return ok
}

// Decode converts a LogRecord into a TypedEvent.
func (d *V2PairDecoder) Decode(log model.LogRecord, ctx DecodeContext) (*model.TypedEvent, error) {
	if len(log.Topics) == 0 {
		return nil, fmt.Errorf("missing topics")
	}
	name, ok := d.topicToName[strings.ToLower(log.Topics[0])]
	if !ok {
		return nil, fmt.Errorf("unsupported topic0: %s", log.Topics[0])
	}

	if !common.IsHexAddress(log.Address) {
		return nil, fmt.Errorf("invalid pair address: %s", log.Address)
	}
	pair := common.HexToAddress(log.Address)

	pairMeta, err := getPairMeta(ctx, pair, log.BlockNumber)
	if err != nil {
		return nil, err
	}

	var decoded interface{}
	switch name {
	case "Swap":
		decoded, err = d.decodeSwap(log)
	case "Sync":
		decoded, err = d.decodeSync(log)
	case "Mint":
		decoded, err = d.decodeMint(log)
	case "Burn":
		decoded, err = d.decodeBurn(log)
	case "Transfer":
		decoded, err = d.decodeTransfer(log)
	default:
		return nil, fmt.Errorf("unsupported event name: %s", name)
	}
	if err != nil {
		return nil, err
	}
	return buildTypedEvent(log, name, decoded, pairMeta), nil
}

func normalizeEventName(name string) string {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "swap":
		return "Swap"
	case "sync":
		return "Sync"
	case "mint":
		return "Mint"
	case "burn":
		return "Burn"
	case "transfer":
		return "Transfer"
	default:
		return ""
	}
}

// getPairMeta prefers the cache. Without a chain client an unknown pair
// decodes with empty metadata.
func getPairMeta(ctx DecodeContext, pair common.Address, blockNumber uint64) (model.PairMeta, error) {
	var meta model.PairMeta
	var ok bool
	if ctx.PairMetaCache != nil {
		meta, ok = ctx.PairMetaCache.Get(pair)
	}
	if ctx.Chain == nil {
		return meta, nil
	}

	callCtx := ctx.Context
	if callCtx == nil {
		callCtx = context.Background()
	}

	if !ok {
		var err error
		meta, err = FetchPairMeta(callCtx, ctx.Chain, pair, ctx.TokenMetaCache, ctx.Logger)
		if err != nil {
			return model.PairMeta{}, err
		}
		if ctx.PairMetaCache != nil {
			ctx.PairMetaCache.Set(pair, meta)
		}
	}

	if ctx.IncludeLiveMeta {
		reserves, err := FetchPairReserves(callCtx, ctx.Chain, pair, blockNumber)
		if err == nil {
			meta.Reserves = reserves
		} else if ctx.Logger != nil {
			ctx.Logger.Debug("getReserves call failed", zap.String("pair", pair.Hex()), zap.Error(err))
		}
	}
	return meta, nil
}

func buildTypedEvent(log model.LogRecord, name string, decoded interface{}, meta model.PairMeta) *model.TypedEvent {
	return &model.TypedEvent{
		EventHeader: model.EventHeader{
			ChainID:     log.ChainID,
			BlockNumber: log.BlockNumber,
			BlockHash:   log.BlockHash,
			TxHash:      log.TxHash,
			LogIndex:    log.LogIndex,
			Address:     log.Address,
			EventName:   name,
			Timestamp:   log.Timestamp,
		},
		Decoded:  decoded,
		PairMeta: meta,
		Raw:      &model.RawLogRef{Topic0: log.Topics[0], Data: log.Data},
	}
}

func (d *V2PairDecoder) decodeSwap(log model.LogRecord) (model.SwapEventData, error) {
	event := d.pairABI.Events["Swap"]
	var indexed struct {
		Sender common.Address
		To     common.Address
	}
	if err := parseIndexed(event, log.Topics, &indexed); err != nil {
		return model.SwapEventData{}, err
	}

	amounts, err := unpackAmounts(event, log.Data, 4)
	if err != nil {
		return model.SwapEventData{}, err
	}
	return model.SwapEventData{
		Sender:     indexed.Sender.Hex(),
		To:         indexed.To.Hex(),
		Amount0In:  amounts[0],
		Amount1In:  amounts[1],
		Amount0Out: amounts[2],
		Amount1Out: amounts[3],
	}, nil
}

func (d *V2PairDecoder) decodeSync(log model.LogRecord) (model.SyncEventData, error) {
	event := d.pairABI.Events["Sync"]
	if len(log.Topics) != 1 {
		return model.SyncEventData{}, fmt.Errorf("expected 1 topics, got %d", len(log.Topics))
	}
	amounts, err := unpackAmounts(event, log.Data, 2)
	if err != nil {
		return model.SyncEventData{}, err
	}
	return model.SyncEventData{Reserve0: amounts[0], Reserve1: amounts[1]}, nil
}

func (d *V2PairDecoder) decodeMint(log model.LogRecord) (model.MintEventData, error) {
	event := d.pairABI.Events["Mint"]
	var indexed struct {
		Sender common.Address
	}
	if err := parseIndexed(event, log.Topics, &indexed); err != nil {
		return model.MintEventData{}, err
	}
	amounts, err := unpackAmounts(event, log.Data, 2)
	if err != nil {
		return model.MintEventData{}, err
	}
	return model.MintEventData{
		Sender:  indexed.Sender.Hex(),
		Amount0: amounts[0],
		Amount1: amounts[1],
	}, nil
}

func (d *V2PairDecoder) decodeBurn(log model.LogRecord) (model.BurnEventData, error) {
	event := d.pairABI.Events["Burn"]
	var indexed struct {
		Sender common.Address
		To     common.Address
	}
	if err := parseIndexed(event, log.Topics, &indexed); err != nil {
		return model.BurnEventData{}, err
	}
	amounts, err := unpackAmounts(event, log.Data, 2)
	if err != nil {
		return model.BurnEventData{}, err
	}
	return model.BurnEventData{
		Sender:  indexed.Sender.Hex(),
		To:      indexed.To.Hex(),
		Amount0: amounts[0],
		Amount1: amounts[1],
	}, nil
}

func (d *V2PairDecoder) decodeTransfer(log model.LogRecord) (model.TransferEventData, error) {
	event := d.pairABI.Events["Transfer"]
	var indexed struct {
		From common.Address
		To   common.Address
	}
	if err := parseIndexed(event, log.Topics, &indexed); err != nil {
		return model.TransferEventData{}, err
	}
	amounts, err := unpackAmounts(event, log.Data, 1)
	if err != nil {
		return model.TransferEventData{}, err
	}
	return model.TransferEventData{
		From:  indexed.From.Hex(),
		To:    indexed.To.Hex(),
		Value: amounts[0],
	}, nil
}

func parseIndexed(event abi.Event, topics []string, out interface{}) error {
	indexedTopics, err := parseIndexedTopics(event, topics)
	if err != nil {
		return err
	}
	if err := abi.ParseTopics(out, indexedArguments(event.Inputs), indexedTopics); err != nil {
		return fmt.Errorf("parse topics: %w", err)
	}
	return nil
}

// unpackAmounts decodes the event data as n unsigned integers rendered in decimal.
func unpackAmounts(event abi.Event, dataHex string, n int) ([]string, error) {
	values, err := unpackNonIndexed(event, dataHex)
	if err != nil {
		return nil, err
	}
	if len(values) != n {
		return nil, fmt.Errorf("unexpected %s values: %d", strings.ToLower(event.Name), len(values))
	}
	out := make([]string, n)
	for i, value := range values {
		v, err := asBigInt(value)
		if err != nil {
			return nil, err
		}
		out[i] = v.String()
	}
	return out, nil
}

func parseIndexedTopics(event abi.Event, topics []string) ([]common.Hash, error) {
	indexedCount := len(indexedArguments(event.Inputs))
	if len(topics) != indexedCount+1 {
		return nil, fmt.Errorf("expected %d topics, got %d", indexedCount+1, len(topics))
	}
	return parseTopicHashes(topics[1:])
}

func parseTopicHashes(topics []string) ([]common.Hash, error) {
	out := make([]common.Hash, 0, len(topics))
	for _, topic := range topics {
		data, err := hexutil.Decode(topic)
		if err != nil {
			return nil, fmt.Errorf("invalid topic: %w", err)
		}
		if len(data) > 32 {
			return nil, fmt.Errorf("topic length %d", len(data))
		}
		out = append(out, common.BytesToHash(data))
	}
	return out, nil
}

func indexedArguments(args abi.Arguments) abi.Arguments {
	indexed := make(abi.Arguments, 0, len(args))
	for _, arg := range args {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	return indexed
}

func unpackNonIndexed(event abi.Event, dataHex string) ([]interface{}, error) {
	data, err := hexutil.Decode(dataHex)
	if err != nil {
		return nil, fmt.Errorf("invalid data: %w", err)
	}
	values, err := event.Inputs.NonIndexed().Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", event.Name, err)
	}
	return values, nil
}
