package backend

import (
	"context"
	"fmt"
	"time"

	"spendings/internal/log"
	"spendings/internal/storage"
	"spendings/internal/storage/memory"
	"spendings/internal/storage/mongo"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.Discard()
	}
	return &DefaultFactory{logger: logger.WithComponent(log.ComponentBackend)}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case SQLiteBackend:
		return f.createSQLiteBackend(config)
	case MongoBackend:
		return f.createMongoBackend(ctx, config)
	case MemoryBackend:
		return f.createMemoryBackend(config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createSQLiteBackend(config Config) (*BackendResult, error) {
	blobs, err := storage.NewSQLiteStore(config.SQLiteDBPath, config.QuotaBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite store: %w", err)
	}

	f.logger.Info("Initialized SQLite backend",
		"db_path", config.SQLiteDBPath,
		"quota_bytes", config.QuotaBytes)

	return &BackendResult{
		Store:   storage.NewRecordStore(blobs, f.logger),
		Cleanup: blobs.Close,
	}, nil
}

func (f *DefaultFactory) createMongoBackend(ctx context.Context, config Config) (*BackendResult, error) {
	blobs, err := mongo.Connect(ctx, config.MongoURI, config.MongoDatabase, config.QuotaBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize MongoDB store: %w", err)
	}

	f.logger.Info("Initialized MongoDB backend", "database", config.MongoDatabase)

	return &BackendResult{
		Store: storage.NewRecordStore(blobs, f.logger),
		Cleanup: func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return blobs.Close(ctx)
		},
	}, nil
}

func (f *DefaultFactory) createMemoryBackend(config Config) (*BackendResult, error) {
	f.logger.Info("Initialized memory backend", "quota_bytes", config.QuotaBytes)

	return &BackendResult{
		Store: storage.NewRecordStore(memory.New(config.QuotaBytes), f.logger),
	}, nil
}
