package model

// EventHeader locates a decoded log and names its event. It is embedded so
// the fields stay flat in JSON.
type EventHeader struct {
	ChainID     uint64 `json:"chain_id"`
	BlockNumber uint64 `json:"block_number"`
	BlockHash   string `json:"block_hash"`
	TxHash      string `json:"tx_hash"`
	LogIndex    uint64 `json:"log_index"`
	Address     string `json:"address"`
	EventName   string `json:"event_name"`
	Timestamp   uint64 `json:"timestamp"`
}

// TypedEvent is a decoded pair event enriched with metadata.
type TypedEvent struct {
	EventHeader
	Decoded  interface{} `json:"decoded"`
	PairMeta PairMeta    `json:"pair_meta"`
	Raw      *RawLogRef  `json:"raw,omitempty"`
}

// RawLogRef keeps a minimal raw reference for traceability.
type RawLogRef struct {
	Topic0 string `json:"topic0"`
	Data   string `json:"data"`
}
