package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/erazemk/catalog/internal/db"
	"github.com/erazemk/catalog/internal/model"
)

// GetSession returns an unexpired session by the hash of its id.
func GetSession(ctx context.Context, q db.Querier, idHash string) (*model.SessionData, error) {
	s := &model.SessionData{IDHash: idHash}
	var userID sql.NullInt64
	var csrf sql.NullString
	var flashes string
	err := q.QueryRowContext(ctx,
		`SELECT user_id, name, picture, csrf_token, flashes, created_at, expires_at
		 FROM sessions WHERE id_hash = ? AND expires_at > ?`,
		idHash, time.Now().UTC(),
	).Scan(&userID, &s.Name, &s.Picture, &csrf, &flashes, &s.CreatedAt, &s.ExpiresAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting session: %w", err)
	}

	s.UserID = userID.Int64
	s.CSRFToken = csrf.String
	if err := json.Unmarshal([]byte(flashes), &s.Flashes); err != nil {
		return nil, fmt.Errorf("decoding session flashes: %w", err)
	}
	return s, nil
}

func encodeFlashes(flashes []string) (string, error) {
	if flashes == nil {
		flashes = []string{}
	}
	b, err := json.Marshal(flashes)
	if err != nil {
		return "", fmt.Errorf("encoding session flashes: %w", err)
	}
	return string(b), nil
}

func nullUserID(id int64) sql.NullInt64 {
	return sql.NullInt64{Int64: id, Valid: id != 0}
}

// CreateSession inserts a session under a new id. The CSRF token column is
// left alone; see SetSessionCSRFToken and TakeSessionCSRFToken.
func CreateSession(ctx context.Context, q db.Querier, s *model.SessionData) error {
	flashes, err := encodeFlashes(s.Flashes)
	if err != nil {
		return err
	}

	_, err = q.ExecContext(ctx,
		`INSERT INTO sessions (id_hash, user_id, name, picture, flashes, created_at, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		s.IDHash, nullUserID(s.UserID), s.Name, s.Picture, flashes, s.CreatedAt.UTC(), s.ExpiresAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("creating session: %w", err)
	}
	return nil
}

// UpdateSession writes an existing, unexpired session. It reports false
// without writing anything if the row is gone, e.g. because another request
// logged out or renewed the session in the meantime.
func UpdateSession(ctx context.Context, q db.Querier, s *model.SessionData) (bool, error) {
	flashes, err := encodeFlashes(s.Flashes)
	if err != nil {
		return false, err
	}

	res, err := q.ExecContext(ctx,
		`UPDATE sessions SET user_id = ?, name = ?, picture = ?, flashes = ?, expires_at = ?
		 WHERE id_hash = ? AND expires_at > ?`,
		nullUserID(s.UserID), s.Name, s.Picture, flashes, s.ExpiresAt.UTC(),
		s.IDHash, time.Now().UTC(),
	)
	if err != nil {
		return false, fmt.Errorf("updating session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("updating session: %w", err)
	}
	return n == 1, nil
}

// SetSessionCSRFToken stores the pending CSRF token of a session. An empty
// token clears it.
func SetSessionCSRFToken(ctx context.Context, q db.Querier, idHash, token string) error {
	var value sql.NullString
	if token != "" {
		value = sql.NullString{String: token, Valid: true}
	}
	_, err := q.ExecContext(ctx, `UPDATE sessions SET csrf_token = ? WHERE id_hash = ?`, value, idHash)
	if err != nil {
		return fmt.Errorf("setting csrf token: %w", err)
	}
	return nil
}

// TakeSessionCSRFToken removes and returns the pending CSRF token of a
// session. ok is false when there was no token or another request took it
// first.
func TakeSessionCSRFToken(ctx context.Context, q db.Querier, idHash string) (token string, ok bool, err error) {
	var current sql.NullString
	err = q.QueryRowContext(ctx,
		`SELECT csrf_token FROM sessions WHERE id_hash = ?`, idHash,
	).Scan(&current)
	if err == sql.ErrNoRows || (err == nil && !current.Valid) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("reading csrf token: %w", err)
	}

	res, err := q.ExecContext(ctx,
		`UPDATE sessions SET csrf_token = NULL WHERE id_hash = ? AND csrf_token = ?`,
		idHash, current.String,
	)
	if err != nil {
		return "", false, fmt.Errorf("clearing csrf token: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return "", false, fmt.Errorf("clearing csrf token: %w", err)
	}
	if n != 1 {
		return "", false, nil
	}
	return current.String, true, nil
}

// DeleteSession removes a session.
func DeleteSession(ctx context.Context, q db.Querier, idHash string) error {
	_, err := q.ExecContext(ctx, `DELETE FROM sessions WHERE id_hash = ?`, idHash)
	if err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}

// DeleteExpiredSessions removes sessions that expired before now and returns
// how many were removed.
func DeleteExpiredSessions(ctx context.Context, q db.Querier, now time.Time) (int64, error) {
	res, err := q.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= ?`, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("deleting expired sessions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("deleting expired sessions: %w", err)
	}
	return n, nil
}
