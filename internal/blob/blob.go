// Package blob stores item pictures either in the database or in an
// S3-compatible bucket.
package blob

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/erazemk/catalog/internal/db"
	"github.com/erazemk/catalog/internal/store"
)

// ErrNotFound is returned by Get for unknown keys.
var ErrNotFound = errors.New("blob not found")

// Store is a key/value store for image bytes.
type Store interface {
	Put(ctx context.Context, key string, data []byte, mime string) error
	Get(ctx context.Context, key string) (data []byte, mime string, err error)
	Delete(ctx context.Context, key string) error
}

// ItemKey returns a fresh key for a picture of the given item. Every upload
// gets its own key so the previous picture can be removed afterwards.
func ItemKey(itemID int64) string {
	return fmt.Sprintf("items/%d/%s.jpg", itemID, uuid.New())
}

// DBStore keeps blobs in the item_images table.
type DBStore struct {
	db *db.DB
}

// NewDBStore creates a DBStore.
func NewDBStore(database *db.DB) *DBStore {
	return &DBStore{db: database}
}

func (s *DBStore) Put(ctx context.Context, key string, data []byte, mime string) error {
	return store.PutImage(ctx, s.db, key, data, mime)
}

func (s *DBStore) Get(ctx context.Context, key string) ([]byte, string, error) {
	data, mime, err := store.GetImage(ctx, s.db, key)
	if err != nil {
		return nil, "", err
	}
	if data == nil {
		return nil, "", ErrNotFound
	}
	return data, mime, nil
}

func (s *DBStore) Delete(ctx context.Context, key string) error {
	return store.DeleteImage(ctx, s.db, key)
}
