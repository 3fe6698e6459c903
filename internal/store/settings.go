package store

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/erazemk/catalog/internal/db"
)

// GetSessionKey retrieves the session signing key from the database.
// If no key exists, it generates one, stores it, and returns it.
// Uses an insert that ignores conflicts followed by a re-select so that
// concurrent first starts agree on a single key.
func GetSessionKey(ctx context.Context, q db.Querier) (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating session key: %w", err)
	}
	candidate := hex.EncodeToString(buf)

	_, err := q.ExecContext(ctx,
		`INSERT INTO settings (key, value) VALUES ('session_key', ?)
		 ON CONFLICT (key) DO NOTHING`,
		candidate,
	)
	if err != nil {
		return "", fmt.Errorf("storing session_key: %w", err)
	}

	var key string
	err = q.QueryRowContext(ctx,
		`SELECT value FROM settings WHERE key = 'session_key'`,
	).Scan(&key)
	if err != nil {
		return "", fmt.Errorf("querying session_key: %w", err)
	}

	return key, nil
}
