package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// SQLiteStore is a BlobStore backed by a single SQLite table. A positive
// quota bounds the total size of all stored values.
type SQLiteStore struct {
	db      *sql.DB
	queries *Queries
	quota   int64
}

func NewSQLiteStore(dbPath string, quota int64) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One writer keeps the quota check and the upsert consistent.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{
		db:      db,
		queries: New(db),
		quota:   quota,
	}, nil
}

func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := s.queries.GetBlob(ctx, key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get blob %s: %w", key, err)
	}
	return value, nil
}

func (s *SQLiteStore) Put(ctx context.Context, key string, value []byte) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	q := s.queries.WithTx(tx)
	if s.quota > 0 {
		used, err := q.OtherBlobsSize(ctx, key)
		if err != nil {
			return fmt.Errorf("measure stored blobs: %w", err)
		}
		if used+int64(len(value)) > s.quota {
			return ErrQuotaExceeded
		}
	}
	if err := q.UpsertBlob(ctx, UpsertBlobParams{Key: key, Value: value}); err != nil {
		return fmt.Errorf("put blob %s: %w", key, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit blob %s: %w", key, err)
	}
	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	n, err := s.queries.DeleteBlob(ctx, key)
	if err != nil {
		return fmt.Errorf("delete blob %s: %w", key, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
