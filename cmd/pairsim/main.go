package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	root := &cobra.Command{
		Use:          "pairsim",
		Short:        "Constant-product pair simulator",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	simulateCmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run a scenario against in-memory pairs",
		RunE:  runSimulate,
	}

	simulateCmd.Flags().String("scenario", "", "scenario YAML path")
	simulateCmd.Flags().String("logs", "./data/logs.jsonl", "output raw logs JSONL")
	simulateCmd.Flags().String("events", "./data/typed_events.jsonl", "output typed events JSONL")
	simulateCmd.Flags().String("metrics", "./data/metrics.jsonl", "output window metrics JSONL")
	simulateCmd.Flags().String("pairs", "./data/pairs.json", "output final pair snapshots JSON")
	simulateCmd.Flags().Uint64("chain-id", 31337, "chain id stamped on logs")
	simulateCmd.Flags().String("window", "5m", "aggregation window (e.g. 1m, 5m, 1h)")
	simulateCmd.Flags().String("pg-dsn", "", "Postgres DSN; replaces the logs and metrics files")
	simulateCmd.Flags().Bool("pg-migrate", false, "create tables before writing")
	simulateCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(simulateCmd)

	snapshotCmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Read live pair state into snapshots",
		RunE:  runSnapshot,
	}

	snapshotCmd.Flags().String("rpc", "", "RPC URL")
	snapshotCmd.Flags().StringSlice("pair", nil, "pair addresses (comma-separated)")
	snapshotCmd.Flags().Uint64("block", 0, "block to read at, 0 means latest")
	snapshotCmd.Flags().String("out", "./data/snapshots.jsonl", "output snapshots JSONL")
	snapshotCmd.Flags().String("pg-dsn", "", "Postgres DSN")
	snapshotCmd.Flags().Bool("pg-migrate", false, "create tables before writing")
	snapshotCmd.Flags().Int("max-retries", 5, "maximum retry attempts")
	snapshotCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	snapshotCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(snapshotCmd)

	decodeCmd := &cobra.Command{
		Use:   "decode",
		Short: "Decode raw pair logs into typed events",
		RunE:  runDecode,
	}

	decodeCmd.Flags().String("rpc", "", "RPC URL, used for pairs missing from --pairs")
	decodeCmd.Flags().String("in", "", "input raw logs JSONL")
	decodeCmd.Flags().String("out", "./data/typed_events.jsonl", "output typed events JSONL")
	decodeCmd.Flags().String("errors", "./data/decode_errors.jsonl", "decode errors JSONL")
	decodeCmd.Flags().String("pairs", "", "pair snapshots JSON from simulate")
	decodeCmd.Flags().String("topic0-map", "", "extra topic0->event mappings (comma-separated key=value)")
	decodeCmd.Flags().Bool("include-live-meta", false, "include getReserves at the log block (requires archive RPC)")
	decodeCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(decodeCmd)

	aggregateCmd := &cobra.Command{
		Use:   "aggregate",
		Short: "Aggregate typed events into window metrics",
		RunE:  runAggregate,
	}

	aggregateCmd.Flags().String("rpc", "", "RPC URL, used for token decimals and reserves")
	aggregateCmd.Flags().String("in", "", "input typed events JSONL")
	aggregateCmd.Flags().String("out", "./data/metrics.jsonl", "output window metrics JSONL when no Postgres DSN is set")
	aggregateCmd.Flags().String("window", "5m", "aggregation window (e.g. 1m, 5m, 1h)")
	aggregateCmd.Flags().String("pg-dsn", "", "Postgres DSN")
	aggregateCmd.Flags().Int("batch-size", 1000, "batch size for DB writes")
	aggregateCmd.Flags().String("state-file", "", "optional local state file for progress tracking")
	aggregateCmd.Flags().String("recompute-from", "", "recompute from timestamp (unix seconds or RFC3339)")
	aggregateCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(aggregateCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}

func redactDSN(dsn string) string {
	if dsn == "" {
		return dsn
	}
	return "***"
}
