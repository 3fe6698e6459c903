package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/erazemk/catalog/internal/db"
)

// PutImage stores image bytes under key, replacing any previous value.
func PutImage(ctx context.Context, q db.Querier, key string, data []byte, mime string) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO item_images (key, data, mime) VALUES (?, ?, ?)
		 ON CONFLICT (key) DO UPDATE SET data = excluded.data, mime = excluded.mime`,
		key, data, mime,
	)
	if err != nil {
		return fmt.Errorf("storing image: %w", err)
	}
	return nil
}

// GetImage returns the image stored under key. Returns nil data if absent.
func GetImage(ctx context.Context, q db.Querier, key string) ([]byte, string, error) {
	var data []byte
	var mime string
	err := q.QueryRowContext(ctx,
		`SELECT data, mime FROM item_images WHERE key = ?`, key,
	).Scan(&data, &mime)
	if err == sql.ErrNoRows {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("getting image: %w", err)
	}
	return data, mime, nil
}

// DeleteImage removes the image stored under key.
func DeleteImage(ctx context.Context, q db.Querier, key string) error {
	_, err := q.ExecContext(ctx, `DELETE FROM item_images WHERE key = ?`, key)
	if err != nil {
		return fmt.Errorf("deleting image: %w", err)
	}
	return nil
}
