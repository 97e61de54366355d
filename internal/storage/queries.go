package storage

import (
	"context"
	"database/sql"
)

type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

const getBlob = `SELECT value FROM blobs WHERE key = ?`

func (q *Queries) GetBlob(ctx context.Context, key string) ([]byte, error) {
	row := q.db.QueryRowContext(ctx, getBlob, key)
	var value []byte
	err := row.Scan(&value)
	return value, err
}

const upsertBlob = `INSERT INTO blobs (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`

type UpsertBlobParams struct {
	Key   string
	Value []byte
}

func (q *Queries) UpsertBlob(ctx context.Context, arg UpsertBlobParams) error {
	_, err := q.db.ExecContext(ctx, upsertBlob, arg.Key, arg.Value)
	return err
}

const deleteBlob = `DELETE FROM blobs WHERE key = ?`

func (q *Queries) DeleteBlob(ctx context.Context, key string) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteBlob, key)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const otherBlobsSize = `SELECT COALESCE(SUM(LENGTH(value)), 0) FROM blobs WHERE key != ?`

// OtherBlobsSize returns the bytes held by every key except key.
func (q *Queries) OtherBlobsSize(ctx context.Context, key string) (int64, error) {
	row := q.db.QueryRowContext(ctx, otherBlobsSize, key)
	var size int64
	err := row.Scan(&size)
	return size, err
}
