package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/erazemk/catalog/internal/db"
	"github.com/erazemk/catalog/internal/model"
)

// CreateUser creates a new user. It returns nil, nil if a user with the
// same email already exists.
func CreateUser(ctx context.Context, q db.Querier, name, email, picture string) (*model.User, error) {
	var id int64
	err := q.QueryRowContext(ctx,
		`INSERT INTO users (name, email, picture) VALUES (?, ?, ?)
		 ON CONFLICT (email) DO NOTHING RETURNING id`,
		name, email, picture,
	).Scan(&id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("creating user: %w", err)
	}

	return GetUser(ctx, q, id)
}

// GetUser returns a user by ID.
func GetUser(ctx context.Context, q db.Querier, id int64) (*model.User, error) {
	u := &model.User{}
	err := q.QueryRowContext(ctx,
		`SELECT id, name, email, picture, created_at FROM users WHERE id = ?`, id,
	).Scan(&u.ID, &u.Name, &u.Email, &u.Picture, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting user: %w", err)
	}
	return u, nil
}

// GetUserByEmail returns a user by email address.
func GetUserByEmail(ctx context.Context, q db.Querier, email string) (*model.User, error) {
	u := &model.User{}
	err := q.QueryRowContext(ctx,
		`SELECT id, name, email, picture, created_at FROM users WHERE email = ?`, email,
	).Scan(&u.ID, &u.Name, &u.Email, &u.Picture, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting user by email: %w", err)
	}
	return u, nil
}
