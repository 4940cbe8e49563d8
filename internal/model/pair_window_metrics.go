package model

import "time"

// PairWindowMetrics stores aggregated metrics for a pair window.
type PairWindowMetrics struct {
	ChainID        uint64    `json:"chain_id"`
	PairAddress    string    `json:"pair_address"`
	WindowSizeSecs int64     `json:"window_size_seconds"`
	WindowStart    time.Time `json:"window_start"`
	WindowEnd      time.Time `json:"window_end"`
	SwapCount      uint64    `json:"swap_count"`
	Volume0        string    `json:"volume0"`
	Volume1        string    `json:"volume1"`
	Fee0           string    `json:"fee0"`
	Fee1           string    `json:"fee1"`
	FeeRate0       *string   `json:"fee_rate0,omitempty"`
	FeeRate1       *string   `json:"fee_rate1,omitempty"`
	Reserve0       *string   `json:"reserve0,omitempty"`
	Reserve1       *string   `json:"reserve1,omitempty"`
	APR            *string   `json:"apr,omitempty"`
	FeeMethod      string    `json:"fee_method"`
	ReserveMethod  string    `json:"reserve_method"`
}
