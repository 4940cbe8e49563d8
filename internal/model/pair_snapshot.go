package model

// PairSnapshot is the state of a pair read at one block.
type PairSnapshot struct {
	ChainID              uint64     `json:"chain_id"`
	Address              string     `json:"address"`
	BlockNumber          uint64     `json:"block_number"`
	Token0               string     `json:"token0"`
	Token1               string     `json:"token1"`
	Token0Meta           *TokenMeta `json:"token0_meta,omitempty"`
	Token1Meta           *TokenMeta `json:"token1_meta,omitempty"`
	SwapFeePoint         uint16     `json:"swap_fee_point"`
	Reserve0             string     `json:"reserve0"`
	Reserve1             string     `json:"reserve1"`
	Balance0             string     `json:"balance0"`
	Balance1             string     `json:"balance1"`
	BlockTimestampLast   uint32     `json:"block_timestamp_last"`
	Price0CumulativeLast string     `json:"price0_cumulative_last"`
	Price1CumulativeLast string     `json:"price1_cumulative_last"`
	KLast                string     `json:"k_last"`
	TotalSupply          string     `json:"total_supply"`
}
