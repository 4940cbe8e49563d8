package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"pairEngine/internal/chain"
	"pairEngine/internal/config"
	"pairEngine/internal/dex"
	"pairEngine/internal/model"
	"pairEngine/internal/storage"
	"pairEngine/internal/storage/postgres"
)

// runSnapshot reads pair state from a node. The output can seed scenario
// pairs through their snapshot field.
func runSnapshot(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadSnapshot(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.RPCURL == "" {
		return fmt.Errorf("rpc url is required")
	}
	pairs, err := config.ParseAddresses(cfg.Pairs)
	if err != nil {
		return err
	}
	if len(pairs) == 0 {
		return fmt.Errorf("pair list is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer chainClient.Close()

	id, err := chainClient.GetChainID(ctx)
	if err != nil {
		return fmt.Errorf("chain id: %w", err)
	}
	chainID := id.Uint64()
	block := cfg.Block
	if block == 0 {
		if block, err = chainClient.LatestBlockNumber(ctx); err != nil {
			return fmt.Errorf("latest block: %w", err)
		}
	}
	blockTime, err := chainClient.BlockTimestamp(ctx, block)
	if err != nil {
		return fmt.Errorf("block timestamp: %w", err)
	}

	var sinks []storage.SnapshotSink
	if cfg.Out != "" {
		sinks = append(sinks, storage.NewJsonlStorage(cfg.Out))
	}
	if cfg.PGDSN != "" {
		store, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer store.Close()
		if cfg.PGMigrate {
			if err := store.Migrate(ctx); err != nil {
				return err
			}
		}
		sinks = append(sinks, store)
	}

	logger.Info("snapshot start",
		zap.Uint64("chain_id", chainID),
		zap.Uint64("block", block),
		zap.Uint64("block_time", blockTime),
		zap.Int("pairs", len(pairs)),
		zap.String("out", cfg.Out),
		zap.String("pg_dsn", redactDSN(cfg.PGDSN)),
	)

	tokenCache := dex.NewTokenMetaCache()
	retry := dex.RetryPolicy{MaxRetries: cfg.MaxRetries, BaseDelay: cfg.RetryBackoff}
	snapshots := make([]model.PairSnapshot, 0, len(pairs))
	for _, pair := range pairs {
		snap, err := dex.FetchPairState(ctx, chainClient, chainID, pair, block, tokenCache, retry, logger)
		if err != nil {
			return fmt.Errorf("pair %s: %w", pair.Hex(), err)
		}
		snapshots = append(snapshots, snap)
	}

	for _, sink := range sinks {
		if err := sink.UpsertPairSnapshots(ctx, snapshots); err != nil {
			return err
		}
	}

	logger.Info("snapshot complete", zap.Int("pairs", len(snapshots)))
	return nil
}
