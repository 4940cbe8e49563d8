package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
)

// AggregateConfig holds configuration for aggregation.
type AggregateConfig struct {
	RPCURL        string
	Input         string
	Out           string
	Window        string
	PGDSN         string
	BatchSize     int
	StateFile     string
	RecomputeFrom string
	LogLevel      string
}

// LoadAggregate merges config file, environment variables, and flags into AggregateConfig.
func LoadAggregate(cfgFile string, flags *pflag.FlagSet) (AggregateConfig, error) {
	v, err := newViper(cfgFile, "aggregate", flags, map[string]interface{}{
		"in":         "./data/typed_events.jsonl",
		"out":        "./data/metrics.jsonl",
		"batch-size": 1000,
		"window":     "5m",
	})
	if err != nil {
		return AggregateConfig{}, err
	}

	return AggregateConfig{
		RPCURL:        v.GetString("rpc"),
		Input:         v.GetString("in"),
		Out:           v.GetString("out"),
		Window:        v.GetString("window"),
		PGDSN:         v.GetString("pg-dsn"),
		BatchSize:     v.GetInt("batch-size"),
		StateFile:     v.GetString("state-file"),
		RecomputeFrom: v.GetString("recompute-from"),
		LogLevel:      v.GetString("log-level"),
	}, nil
}

// WindowSeconds parses a window duration such as "5m" into whole seconds.
func WindowSeconds(window string) (uint64, error) {
	d, err := time.ParseDuration(window)
	if err != nil {
		return 0, fmt.Errorf("invalid window: %w", err)
	}
	if d < time.Second {
		return 0, fmt.Errorf("window must be at least 1s")
	}
	return uint64(d / time.Second), nil
}

// ParseTimestamp parses unix seconds or an RFC3339 time. Blank input is zero.
func ParseTimestamp(input string) (uint64, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return 0, nil
	}
	if ts, err := strconv.ParseUint(input, 10, 64); err == nil {
		return ts, nil
	}
	tm, err := time.Parse(time.RFC3339, input)
	if err != nil {
		return 0, fmt.Errorf("timestamp %q: want unix seconds or RFC3339", input)
	}
	if tm.Unix() < 0 {
		return 0, fmt.Errorf("timestamp %q is before 1970", input)
	}
	return uint64(tm.Unix()), nil
}
