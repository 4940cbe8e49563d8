package model

import "encoding/json"

// TypedEventRecord is a TypedEvent read back from JSON, with the payload left
// raw until the consumer knows the event name.
type TypedEventRecord struct {
	EventHeader
	Decoded  json.RawMessage `json:"decoded"`
	PairMeta PairMeta        `json:"pair_meta"`
	Raw      *RawLogRef      `json:"raw,omitempty"`
}

// Record converts a decoded event into its aggregation form.
func (e TypedEvent) Record() (TypedEventRecord, error) {
	decoded, err := json.Marshal(e.Decoded)
	if err != nil {
		return TypedEventRecord{}, err
	}
	return TypedEventRecord{EventHeader: e.EventHeader, Decoded: decoded, PairMeta: e.PairMeta, Raw: e.Raw}, nil
}
