package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"pairEngine/internal/aggregate"
	"pairEngine/internal/chain"
	"pairEngine/internal/config"
	"pairEngine/internal/storage"
	"pairEngine/internal/storage/postgres"
)

func runAggregate(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadAggregate(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}
	switch {
	case cfg.Input == "":
		return fmt.Errorf("--in is required")
	case cfg.PGDSN == "" && cfg.Out == "":
		return fmt.Errorf("one of --pg-dsn or --out is required")
	}
	windowSeconds, err := config.WindowSeconds(cfg.Window)
	if err != nil {
		return err
	}
	recomputeFrom, err := config.ParseTimestamp(cfg.RecomputeFrom)
	if err != nil {
		return fmt.Errorf("recompute-from: %w", err)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var caller ethereum.ContractCaller
	if cfg.RPCURL != "" {
		client, err := chain.NewClient(ctx, cfg.RPCURL)
		if err != nil {
			return fmt.Errorf("connect rpc: %w", err)
		}
		defer client.Close()
		caller = client
	}

	sink, state, closeSink, err := openAggregateSink(ctx, cfg, windowSeconds)
	if err != nil {
		return err
	}
	defer closeSink()

	agg, err := aggregate.NewAggregator(aggregate.Config{
		WindowSeconds: windowSeconds,
		BatchSize:     cfg.BatchSize,
		RecomputeFrom: recomputeFrom,
		StateStore:    state,
	}, sink, caller, logger)
	if err != nil {
		return err
	}

	logger.Info("aggregate start",
		zap.String("in", cfg.Input),
		zap.String("pg_dsn", redactDSN(cfg.PGDSN)),
		zap.Uint64("window_seconds", windowSeconds),
		zap.Uint64("recompute_from", recomputeFrom),
		zap.Bool("rpc", caller != nil),
	)
	if err := agg.Run(ctx, cfg.Input); err != nil {
		return err
	}
	stats := agg.Stats()
	logger.Info("aggregate complete",
		zap.Int("events", stats.Total),
		zap.Int("windows", stats.Windows),
		zap.Int("skipped", stats.Skipped),
		zap.Int("failed", stats.Failed),
	)
	return nil
}

// openAggregateSink picks Postgres when a DSN is set and a JSONL file
// otherwise. Resume state lives next to the metrics unless a state file is
// named; each window size keeps its own progress.
func openAggregateSink(ctx context.Context, cfg config.AggregateConfig, windowSeconds uint64) (storage.MetricsSink, aggregate.StateStore, func(), error) {
	stateName := fmt.Sprintf("aggregator:%d", windowSeconds)
	var fileState aggregate.StateStore
	if cfg.StateFile != "" {
		fileState = &aggregate.FileStateStore{Path: cfg.StateFile, Name: stateName}
	}

	if cfg.PGDSN == "" {
		return storage.NewJsonlStorage(cfg.Out), fileState, func() {}, nil
	}
	store, err := postgres.NewStore(ctx, cfg.PGDSN)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("connect postgres: %w", err)
	}
	if fileState != nil {
		return store, fileState, store.Close, nil
	}
	return store, &aggregate.DBStateStore{Rows: store, Name: stateName}, store.Close, nil
}
