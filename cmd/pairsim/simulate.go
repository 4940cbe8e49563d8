package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"pairEngine/internal/aggregate"
	"pairEngine/internal/config"
	"pairEngine/internal/model"
	"pairEngine/internal/scenario"
	"pairEngine/internal/storage"
	"pairEngine/internal/storage/postgres"
)

// runSimulate replays a scenario and pushes its logs through the same decode
// and aggregate path that live logs take.
func runSimulate(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadSimulate(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.Scenario == "" {
		return fmt.Errorf("scenario path is required")
	}
	windowSeconds, err := config.WindowSeconds(cfg.Window)
	if err != nil {
		return err
	}

	sc, err := scenario.Load(cfg.Scenario)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var store *postgres.Store
	var logSink storage.Storage
	var metricsSink storage.MetricsSink
	if cfg.PGDSN != "" {
		store, err = postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer store.Close()
		if cfg.PGMigrate {
			if err := store.Migrate(ctx); err != nil {
				return err
			}
		}
		logSink, metricsSink = store, store
	} else {
		for _, path := range []string{cfg.Logs, cfg.Metrics} {
			if err := resetFile(path); err != nil {
				return err
			}
		}
		logSink = storage.NewJsonlStorage(cfg.Logs)
		metricsSink = storage.NewJsonlStorage(cfg.Metrics)
	}

	eventWriter, err := newJSONLWriter(cfg.Events)
	if err != nil {
		return err
	}
	defer eventWriter.Close()

	agg, err := aggregate.NewAggregator(aggregate.Config{WindowSeconds: windowSeconds}, metricsSink, nil, logger)
	if err != nil {
		return err
	}

	runner, err := scenario.NewRunner(sc, scenario.Options{
		ChainID: cfg.ChainID,
		Logs:    logSink,
		OnEvent: func(ctx context.Context, ev model.TypedEvent) error {
			if err := eventWriter.Write(ev); err != nil {
				return err
			}
			record, err := ev.Record()
			if err != nil {
				return err
			}
			return agg.Add(ctx, record)
		},
	}, logger)
	if err != nil {
		return err
	}
	for token, decimals := range runner.Decimals() {
		agg.SetDecimals(token, decimals)
	}

	logger.Info("simulate start",
		zap.String("scenario", cfg.Scenario),
		zap.Int("steps", len(sc.Steps)),
		zap.Uint64("chain_id", cfg.ChainID),
		zap.Uint64("window_seconds", windowSeconds),
		zap.String("pg_dsn", redactDSN(cfg.PGDSN)),
	)

	result, err := runner.Run(ctx)
	if err != nil {
		return err
	}
	if err := agg.Flush(ctx); err != nil {
		return err
	}
	if err := writePairs(cfg.Pairs, runner.PairSnapshots()); err != nil {
		return err
	}
	if store != nil {
		if err := store.UpsertPairSnapshots(ctx, runner.PairSnapshots()); err != nil {
			return err
		}
	}

	stats := agg.Stats()
	logger.Info("simulate complete",
		zap.Int("steps", result.Steps),
		zap.Int("expected_errors", result.ExpectedErrors),
		zap.Int("logs", result.Logs),
		zap.Int("windows", stats.Windows),
		zap.String("pairs", cfg.Pairs),
	)
	return nil
}

func writePairs(path string, snapshots []model.PairSnapshot) error {
	if path == "" {
		return nil
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create dir: %w", err)
		}
	}
	data, err := json.MarshalIndent(snapshots, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal pairs: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write pairs: %w", err)
	}
	return nil
}

// resetFile truncates an output that is otherwise appended to.
func resetFile(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("reset %s: %w", path, err)
	}
	return nil
}
