package model

// Pair is a pair metadata record for storage.
type Pair struct {
	ChainID        uint64 `json:"chain_id"`
	Address        string `json:"address"`
	Token0         string `json:"token0"`
	Token1         string `json:"token1"`
	SwapFeePoint   uint16 `json:"swap_fee_point"`
	FirstSeenBlock uint64 `json:"first_seen_block"`
}
