package storage

import (
	"encoding/json"
	"fmt"

	"spendings/internal/core"
)

// EncodeRecords serializes records with dates as YYYY-MM-DD.
func EncodeRecords(records []core.Record) ([]byte, error) {
	if records == nil {
		records = []core.Record{}
	}
	data, err := json.Marshal(records)
	if err != nil {
		return nil, fmt.Errorf("encode records: %w", err)
	}
	return data, nil
}

// DecodeRecords is the inverse of EncodeRecords. Decoded records are
// validated so a hand-edited blob cannot smuggle in invalid state.
func DecodeRecords(data []byte) ([]core.Record, error) {
	var records []core.Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode records: %w", err)
	}
	for i, r := range records {
		if err := r.Validate(); err != nil {
			return nil, fmt.Errorf("decode records: record %d: %w", i, err)
		}
	}
	if records == nil {
		records = []core.Record{}
	}
	return records, nil
}
