// Package config loads command settings from flags, PAIRENGINE_* environment
// variables and an optional config file, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "PAIRENGINE"

// newViper layers flags over PAIRENGINE_* variables over the config file over
// defaults. A top-level table named after the command overrides the file's
// shared keys, so one file can configure every command.
func newViper(cfgFile, section string, flags *pflag.FlagSet, defaults map[string]interface{}) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("log-level", "info")
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	if err := readConfig(v, cfgFile); err != nil {
		return nil, err
	}
	if overrides := v.GetStringMap(section); len(overrides) > 0 {
		if err := v.MergeConfigMap(overrides); err != nil {
			return nil, fmt.Errorf("merge %s section: %w", section, err)
		}
	}
	return v, nil
}

// readConfig reads cfgFile, or ./pairsim.{yaml,toml,json} when it exists.
func readConfig(v *viper.Viper, cfgFile string) error {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("pairsim")
		v.AddConfigPath(".")
	}
	err := v.ReadInConfig()
	var notFound viper.ConfigFileNotFoundError
	if err != nil && (cfgFile != "" || !errors.As(err, &notFound)) {
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

// ParseAddresses converts hex strings to addresses, skipping blanks and
// duplicates. Every invalid entry is reported.
func ParseAddresses(inputs []string) ([]common.Address, error) {
	var errs []error
	seen := make(map[common.Address]bool, len(inputs))
	addresses := make([]common.Address, 0, len(inputs))
	for _, input := range cleanStrings(inputs) {
		if !common.IsHexAddress(input) {
			errs = append(errs, fmt.Errorf("invalid address: %s", input))
			continue
		}
		addr := common.HexToAddress(input)
		if !seen[addr] {
			seen[addr] = true
			addresses = append(addresses, addr)
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return addresses, nil
}

func getStringSlice(v *viper.Viper, key string) []string {
	if !v.IsSet(key) {
		return nil
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case []string:
		return cleanStrings(typed)
	case string:
		return splitAndClean(typed)
	case []interface{}:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			items = append(items, fmt.Sprintf("%v", item))
		}
		return cleanStrings(items)
	default:
		return nil
	}
}

func splitAndClean(input string) []string {
	if input == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	return cleanStrings(parts)
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}
