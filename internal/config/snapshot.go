package config

import (
	"time"

	"github.com/spf13/pflag"
)

// SnapshotConfig holds configuration for the snapshot command.
type SnapshotConfig struct {
	RPCURL       string
	Pairs        []string
	Block        uint64
	Out          string
	PGDSN        string
	PGMigrate    bool
	MaxRetries   int
	RetryBackoff time.Duration
	LogLevel     string
}

// LoadSnapshot merges config file, environment variables, and flags into SnapshotConfig.
func LoadSnapshot(cfgFile string, flags *pflag.FlagSet) (SnapshotConfig, error) {
	v, err := newViper(cfgFile, "snapshot", flags, map[string]interface{}{
		"out":           "./data/snapshots.jsonl",
		"max-retries":   5,
		"retry-backoff": 500 * time.Millisecond,
	})
	if err != nil {
		return SnapshotConfig{}, err
	}

	return SnapshotConfig{
		RPCURL:       v.GetString("rpc"),
		Pairs:        getStringSlice(v, "pair"),
		Block:        v.GetUint64("block"),
		Out:          v.GetString("out"),
		PGDSN:        v.GetString("pg-dsn"),
		PGMigrate:    v.GetBool("pg-migrate"),
		MaxRetries:   v.GetInt("max-retries"),
		RetryBackoff: v.GetDuration("retry-backoff"),
		LogLevel:     v.GetString("log-level"),
	}, nil
}
