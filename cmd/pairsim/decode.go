package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"pairEngine/internal/chain"
	"pairEngine/internal/config"
	"pairEngine/internal/dex"
	"pairEngine/internal/model"
)

func runDecode(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadDecode(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}
	for flag, value := range map[string]string{"in": cfg.In, "out": cfg.Out, "errors": cfg.Errors} {
		if value == "" {
			return fmt.Errorf("--%s is required", flag)
		}
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	decoder, err := dex.NewV2PairDecoder(dex.DecoderConfig{Topic0Map: cfg.Topic0Map})
	if err != nil {
		return err
	}
	decodeCtx := dex.DecodeContext{
		Context:         ctx,
		PairMetaCache:   dex.NewPairMetaCache(),
		TokenMetaCache:  dex.NewTokenMetaCache(),
		Logger:          logger,
		IncludeLiveMeta: cfg.IncludeLiveMeta,
	}
	if cfg.RPCURL != "" {
		client, err := chain.NewClient(ctx, cfg.RPCURL)
		if err != nil {
			return fmt.Errorf("connect rpc: %w", err)
		}
		defer client.Close()
		decodeCtx.Chain = client
	}
	if cfg.PairsFile != "" {
		n, err := seedPairMeta(cfg.PairsFile, decodeCtx.PairMetaCache, decodeCtx.TokenMetaCache)
		if err != nil {
			return err
		}
		logger.Info("pair metadata loaded", zap.String("path", cfg.PairsFile), zap.Int("pairs", n))
	}

	in, err := os.Open(cfg.In)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer in.Close()
	out, err := newJSONLWriter(cfg.Out)
	if err != nil {
		return err
	}
	defer out.Close()
	errs, err := newJSONLWriter(cfg.Errors)
	if err != nil {
		return err
	}
	defer errs.Close()

	logger.Info("decode start",
		zap.String("in", cfg.In),
		zap.Bool("rpc", decodeCtx.Chain != nil),
		zap.Bool("include_live_meta", cfg.IncludeLiveMeta),
	)
	stats, err := decodeStream(in, decoder, decodeCtx, out, errs)
	if err != nil {
		return err
	}
	logger.Info("decode complete",
		zap.Int("total", stats.Total),
		zap.Int("decoded", stats.Decoded),
		zap.Int("skipped", stats.Skipped),
		zap.Int("failed", stats.Failed),
	)
	return nil
}

type recordWriter interface {
	Write(value interface{}) error
}

type decodeStats struct {
	Total   int
	Decoded int
	Skipped int
	Failed  int
}

// decodeStream decodes one LogRecord per line. Logs of other contracts are
// skipped; lines that fail to parse or decode go to errs with their line number.
func decodeStream(r io.Reader, decoder dex.Decoder, decodeCtx dex.DecodeContext, out, errs recordWriter) (decodeStats, error) {
	var stats decodeStats
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)

	for lineNo := 1; scanner.Scan(); lineNo++ {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		stats.Total++

		var record model.LogRecord
		if err := json.Unmarshal(line, &record); err != nil {
			stats.Failed++
			_ = errs.Write(model.DecodeError{Line: lineNo, Error: err.Error()})
			continue
		}
		if topic0 := record.Topic0(); topic0 != "" && !decoder.CanDecode(topic0) {
			stats.Skipped++
			continue
		}
		event, err := decoder.Decode(record, decodeCtx)
		if err != nil {
			stats.Failed++
			_ = errs.Write(decodeErrorFromRecord(lineNo, record, err))
			continue
		}
		if err := out.Write(event); err != nil {
			return stats, err
		}
		stats.Decoded++
	}
	if err := scanner.Err(); err != nil {
		return stats, fmt.Errorf("scan input: %w", err)
	}
	return stats, nil
}

// seedPairMeta fills the caches from a pairs file written by simulate, so
// simulated logs decode without a node.
func seedPairMeta(path string, pairs *dex.PairMetaCache, tokens *dex.TokenMetaCache) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read pairs: %w", err)
	}
	var snapshots []model.PairSnapshot
	if err := json.Unmarshal(data, &snapshots); err != nil {
		return 0, fmt.Errorf("parse pairs: %w", err)
	}
	for _, snap := range snapshots {
		if !common.IsHexAddress(snap.Address) {
			return 0, fmt.Errorf("invalid pair address: %s", snap.Address)
		}
		pairs.Set(common.HexToAddress(snap.Address), model.PairMeta{
			Token0:       snap.Token0,
			Token1:       snap.Token1,
			SwapFeePoint: snap.SwapFeePoint,
		})
		for _, meta := range []*model.TokenMeta{snap.Token0Meta, snap.Token1Meta} {
			if meta != nil && common.IsHexAddress(meta.Address) {
				tokens.Set(common.HexToAddress(meta.Address), *meta)
			}
		}
	}
	return len(snapshots), nil
}

func decodeErrorFromRecord(lineNo int, record model.LogRecord, err error) model.DecodeError {
	return model.DecodeError{
		Line:        lineNo,
		ChainID:     record.ChainID,
		BlockNumber: record.BlockNumber,
		TxHash:      record.TxHash,
		LogIndex:    record.LogIndex,
		Address:     record.Address,
		Topic0:      record.Topic0(),
		Error:       err.Error(),
	}
}
