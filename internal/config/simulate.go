package config

import (
	"github.com/spf13/pflag"
)

// SimulateConfig holds configuration for the simulate command.
type SimulateConfig struct {
	Scenario  string
	Logs      string
	Events    string
	Metrics   string
	Pairs     string
	ChainID   uint64
	Window    string
	PGDSN     string
	PGMigrate bool
	LogLevel  string
}

// LoadSimulate merges config file, environment variables, and flags into SimulateConfig.
func LoadSimulate(cfgFile string, flags *pflag.FlagSet) (SimulateConfig, error) {
	v, err := newViper(cfgFile, "simulate", flags, map[string]interface{}{
		"logs":     "./data/logs.jsonl",
		"events":   "./data/typed_events.jsonl",
		"metrics":  "./data/metrics.jsonl",
		"pairs":    "./data/pairs.json",
		"chain-id": uint64(31337),
		"window":   "5m",
	})
	if err != nil {
		return SimulateConfig{}, err
	}

	return SimulateConfig{
		Scenario:  v.GetString("scenario"),
		Logs:      v.GetString("logs"),
		Events:    v.GetString("events"),
		Metrics:   v.GetString("metrics"),
		Pairs:     v.GetString("pairs"),
		ChainID:   v.GetUint64("chain-id"),
		Window:    v.GetString("window"),
		PGDSN:     v.GetString("pg-dsn"),
		PGMigrate: v.GetBool("pg-migrate"),
		LogLevel:  v.GetString("log-level"),
	}, nil
}
