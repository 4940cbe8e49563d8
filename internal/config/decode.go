package config

import (
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// DecodeConfig holds configuration for the decode command.
type DecodeConfig struct {
	RPCURL          string
	In              string
	Out             string
	Errors          string
	PairsFile       string
	LogLevel        string
	Topic0Map       map[string]string
	IncludeLiveMeta bool
}

// LoadDecode merges config file, environment variables, and flags into DecodeConfig.
func LoadDecode(cfgFile string, flags *pflag.FlagSet) (DecodeConfig, error) {
	v, err := newViper(cfgFile, "decode", flags, map[string]interface{}{
		"in":                "./data/logs.jsonl",
		"out":               "./data/typed_events.jsonl",
		"errors":            "./data/decode_errors.jsonl",
		"include-live-meta": false,
	})
	if err != nil {
		return DecodeConfig{}, err
	}

	return DecodeConfig{
		RPCURL:          v.GetString("rpc"),
		In:              v.GetString("in"),
		Out:             v.GetString("out"),
		Errors:          v.GetString("errors"),
		PairsFile:       v.GetString("pairs"),
		LogLevel:        v.GetString("log-level"),
		Topic0Map:       getStringMap(v, "topic0-map"),
		IncludeLiveMeta: v.GetBool("include-live-meta"),
	}, nil
}

// getStringMap reads a map from a config file table or from a
// "key=value,key=value" flag or environment value. Entries missing either side
// are dropped.
func getStringMap(v *viper.Viper, key string) map[string]string {
	out := make(map[string]string)
	if raw, ok := v.Get(key).(string); ok {
		for _, entry := range splitAndClean(raw) {
			k, val, found := strings.Cut(entry, "=")
			k, val = strings.TrimSpace(k), strings.TrimSpace(val)
			if found && k != "" && val != "" {
				out[k] = val
			}
		}
		return out
	}
	for k, val := range v.GetStringMapString(key) {
		if val != "" {
			out[k] = val
		}
	}
	return out
}
