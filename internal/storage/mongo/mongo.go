// Package mongo is a BlobStore keeping each key as one MongoDB document.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"spendings/internal/storage"
)

// CollectionName is the collection holding the blobs.
const CollectionName = "blobs"

// Collection is the subset of *mongo.Collection the store uses.
type Collection interface {
	FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) *mongo.SingleResult
	ReplaceOne(ctx context.Context, filter interface{}, replacement interface{}, opts ...*options.ReplaceOptions) (*mongo.UpdateResult, error)
	DeleteOne(ctx context.Context, filter interface{}, opts ...*options.DeleteOptions) (*mongo.DeleteResult, error)
}

type blobDocument struct {
	Key       string    `bson:"_id"`
	Value     []byte    `bson:"value"`
	UpdatedAt time.Time `bson:"updatedAt"`
}

type Store struct {
	client *mongo.Client
	coll   Collection
	quota  int64
}

// Connect dials uri, checks the connection and returns a store on
// database.blobs.
func Connect(ctx context.Context, uri, database string, quota int64) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}
	s := NewWithCollection(client.Database(database).Collection(CollectionName), quota)
	s.client = client
	return s, nil
}

// NewWithCollection wraps an existing collection.
func NewWithCollection(coll Collection, quota int64) *Store {
	return &Store{coll: coll, quota: quota}
}

func (s *Store) Close(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	return s.client.Disconnect(ctx)
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	var doc blobDocument
	err := s.coll.FindOne(ctx, bson.M{"_id": key}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find blob %s: %w", key, err)
	}
	return doc.Value, nil
}

// Put upserts the document for key. The quota bounds each value on its own.
func (s *Store) Put(ctx context.Context, key string, value []byte) error {
	if s.quota > 0 && int64(len(value)) > s.quota {
		return storage.ErrQuotaExceeded
	}
	doc := blobDocument{Key: key, Value: value, UpdatedAt: time.Now().UTC()}
	_, err := s.coll.ReplaceOne(ctx, bson.M{"_id": key}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("replace blob %s: %w", key, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	res, err := s.coll.DeleteOne(ctx, bson.M{"_id": key})
	if err != nil {
		return fmt.Errorf("delete blob %s: %w", key, err)
	}
	if res.DeletedCount == 0 {
		return storage.ErrNotFound
	}
	return nil
}
