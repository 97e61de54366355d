// Package storage persists the current record list. Records are stored as one
// JSON blob under RecordsKey in a key-value BlobStore; SQLite, memory and
// MongoDB implementations share the same codec and quota semantics.
package storage

import (
	"context"
	"errors"

	"spendings/internal/core"
)

// RecordsKey is the key the record list is stored under.
const RecordsKey = "spendingsweb_expenses"

var (
	ErrQuotaExceeded = errors.New("storage quota exceeded")
	ErrNotFound      = errors.New("key not found")
)

// RecordStore is the persistence collaborator of the ledger.
type RecordStore interface {
	Save(ctx context.Context, records []core.Record) error
	// Load returns no records, not an error, when nothing was saved yet.
	Load(ctx context.Context) ([]core.Record, error)
	Clear(ctx context.Context) error
}

// BlobStore is a key-value store of opaque values. Get returns ErrNotFound
// for a missing key; Put returns ErrQuotaExceeded when the value would not fit.
type BlobStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}
