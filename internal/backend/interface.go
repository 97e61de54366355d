// Package backend builds the configured record store.
package backend

import (
	"context"

	"spendings/internal/storage"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult contains the store and an optional cleanup function
type BackendResult struct {
	Store   storage.RecordStore
	Cleanup CleanupFunc
}

// Close runs Cleanup if there is one.
func (r *BackendResult) Close() error {
	if r == nil || r.Cleanup == nil {
		return nil
	}
	return r.Cleanup()
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// QuotaBytes bounds stored data; 0 disables the check.
	QuotaBytes int64

	// SQLite specific
	SQLiteDBPath string

	// MongoDB specific
	MongoURI      string
	MongoDatabase string
}

// BackendType represents the type of backend
type BackendType string

const (
	MemoryBackend BackendType = "memory"
	SQLiteBackend BackendType = "sqlite"
	MongoBackend  BackendType = "mongo"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case MemoryBackend, SQLiteBackend, MongoBackend:
		return true
	default:
		return false
	}
}
