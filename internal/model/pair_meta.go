package model

// PairMeta captures immutable pair metadata with optional live fields.
type PairMeta struct {
	Token0       string        `json:"token0"`
	Token1       string        `json:"token1"`
	SwapFeePoint uint16        `json:"swap_fee_point"`
	Reserves     *PairReserves `json:"reserves,omitempty"`
}

// PairReserves includes the getReserves fields.
type PairReserves struct {
	Reserve0           string `json:"reserve0"`
	Reserve1           string `json:"reserve1"`
	BlockTimestampLast uint32 `json:"block_timestamp_last"`
}
