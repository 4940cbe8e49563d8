// Package scenario runs scripted pair interactions described in YAML against
// an in-memory factory and token ledger.
package scenario

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario is the root of a scenario file.
type Scenario struct {
	Name string `yaml:"name"`
	// StartTime is the clock at the first step, in unix seconds.
	StartTime uint64 `yaml:"start_time"`
	// BlockTime is added to the clock before every step after the first.
	BlockTime uint64      `yaml:"block_time"`
	Factory   FactorySpec `yaml:"factory"`
	Accounts  []Account   `yaml:"accounts"`
	Tokens    []TokenSpec `yaml:"tokens"`
	Pairs     []PairSpec  `yaml:"pairs"`
	Steps     []Step      `yaml:"steps"`

	// dir resolves relative snapshot paths.
	dir string
}

type FactorySpec struct {
	Address           string  `yaml:"address"`
	FeeToSetter       string  `yaml:"fee_to_setter"`
	FeeTo             string  `yaml:"fee_to"`
	SwapFeePoint      *uint16 `yaml:"swap_fee_point"`
	ProtocolFeeFactor *uint8  `yaml:"protocol_fee_factor"`
}

// Account names an address. An empty address is derived from the name.
type Account struct {
	Name    string `yaml:"name"`
	Address string `yaml:"address"`
}

type TokenSpec struct {
	Symbol   string `yaml:"symbol"`
	Address  string `yaml:"address"`
	Decimals uint8  `yaml:"decimals"`
	// FeeBps is burned from every transfer, out of 10000.
	FeeBps uint16 `yaml:"fee_bps"`
	// Balances are minted before the first step, keyed by account name.
	Balances map[string]string `yaml:"balances"`
}

type PairSpec struct {
	Name   string `yaml:"name"`
	TokenA string `yaml:"token_a"`
	TokenB string `yaml:"token_b"`
	// Snapshot is a JSON pair snapshot to restore the pair from.
	Snapshot string `yaml:"snapshot"`
	// Holder receives the restored liquidity shares.
	Holder      string  `yaml:"holder"`
	FeeOverride *uint16 `yaml:"fee_override"`
}

// Step is one scripted call. Which fields apply depends on Action.
type Step struct {
	Action     string            `yaml:"action"`
	Pair       string            `yaml:"pair"`
	Token      string            `yaml:"token"`
	From       string            `yaml:"from"`
	To         string            `yaml:"to"`
	Amount     string            `yaml:"amount"`
	Amounts    map[string]string `yaml:"amounts"`
	AmountIn   string            `yaml:"amount_in"`
	AmountOut  string            `yaml:"amount_out"`
	Repay      string            `yaml:"repay"`
	RepayToken string            `yaml:"repay_token"`
	Seconds    uint64            `yaml:"seconds"`
	Fee        *uint16           `yaml:"fee"`
	Factor     *uint8            `yaml:"factor"`
	// ExpectError is a pair error kind such as "invariant_violation", or a
	// substring of the error message.
	ExpectError string `yaml:"expect_error"`
}

// Load reads and validates a scenario file.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	sc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	sc.dir = filepath.Dir(path)
	return sc, nil
}

// Parse decodes a scenario, rejecting unknown fields.
func Parse(data []byte) (*Scenario, error) {
	var sc Scenario
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&sc); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	if err := sc.validate(); err != nil {
		return nil, err
	}
	return &sc, nil
}

func (s *Scenario) validate() error {
	if len(s.Tokens) < 2 {
		return fmt.Errorf("scenario needs at least two tokens")
	}
	seen := make(map[string]bool)
	for _, a := range s.Accounts {
		if a.Name == "" {
			return fmt.Errorf("account without name")
		}
		if seen[a.Name] {
			return fmt.Errorf("duplicate name %q", a.Name)
		}
		seen[a.Name] = true
	}
	for _, t := range s.Tokens {
		if t.Symbol == "" {
			return fmt.Errorf("token without symbol")
		}
		if seen[t.Symbol] {
			return fmt.Errorf("duplicate name %q", t.Symbol)
		}
		seen[t.Symbol] = true
	}
	for _, p := range s.Pairs {
		if p.Name == "" {
			return fmt.Errorf("pair without name")
		}
		if seen[p.Name] {
			return fmt.Errorf("duplicate name %q", p.Name)
		}
		seen[p.Name] = true
	}
	for i, step := range s.Steps {
		if _, ok := actions[step.Action]; !ok {
			return fmt.Errorf("step %d: unknown action %q", i, step.Action)
		}
	}
	return nil
}
