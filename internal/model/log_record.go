package model

import "fmt"

// LogRecord is the normalized representation of a pair log for storage. Logs
// produced by the simulator carry the simulated block and timestamp.
type LogRecord struct {
	ChainID     uint64   `json:"chain_id"`
	BlockNumber uint64   `json:"block_number"`
	BlockHash   string   `json:"block_hash"`
	TxHash      string   `json:"tx_hash"`
	TxIndex     uint64   `json:"tx_index"`
	LogIndex    uint64   `json:"log_index"`
	Address     string   `json:"address"`
	Topics      []string `json:"topics"`
	Data        string   `json:"data"`
	Removed     bool     `json:"removed"`
	Timestamp   uint64   `json:"timestamp"`
	IngestedAt  string   `json:"ingested_at"`
}

// Topic0 is the event signature hash, empty for anonymous logs.
func (lr LogRecord) Topic0() string {
	if len(lr.Topics) == 0 {
		return ""
	}
	return lr.Topics[0]
}

// Key identifies the log within its chain; it matches the pair_logs primary key.
func (lr LogRecord) Key() string {
	return fmt.Sprintf("%d:%s:%d", lr.ChainID, lr.TxHash, lr.LogIndex)
}
