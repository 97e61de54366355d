package storage

import (
	"context"
	"errors"
	"fmt"

	"spendings/internal/core"
	"spendings/internal/log"
)

// BlobRecordStore implements RecordStore on top of any BlobStore.
type BlobRecordStore struct {
	blobs  BlobStore
	key    string
	logger *log.Logger
}

// NewRecordStore stores records under RecordsKey in blobs.
func NewRecordStore(blobs BlobStore, logger *log.Logger) *BlobRecordStore {
	if logger == nil {
		logger = log.Discard()
	}
	return &BlobRecordStore{
		blobs:  blobs,
		key:    RecordsKey,
		logger: logger.WithComponent(log.ComponentStorage),
	}
}

func (s *BlobRecordStore) Save(ctx context.Context, records []core.Record) error {
	data, err := EncodeRecords(records)
	if err != nil {
		return err
	}
	if err := s.blobs.Put(ctx, s.key, data); err != nil {
		return fmt.Errorf("save records: %w", err)
	}
	s.logger.DebugContext(ctx, "Records saved",
		log.FieldKey, s.key,
		log.FieldRecords, len(records),
		log.FieldBytes, len(data))
	return nil
}

// Load treats a missing or undecodable blob as no data. Only failures of the
// underlying store are returned.
func (s *BlobRecordStore) Load(ctx context.Context) ([]core.Record, error) {
	data, err := s.blobs.Get(ctx, s.key)
	if errors.Is(err, ErrNotFound) {
		return []core.Record{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load records: %w", err)
	}

	records, err := DecodeRecords(data)
	if err != nil {
		s.logger.WarnContext(ctx, "Discarding unreadable stored records",
			log.FieldOperation, log.OpLoad,
			log.FieldKey, s.key,
			log.FieldError, err)
		return []core.Record{}, nil
	}
	return records, nil
}

func (s *BlobRecordStore) Clear(ctx context.Context) error {
	if err := s.blobs.Delete(ctx, s.key); err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("clear records: %w", err)
	}
	return nil
}
