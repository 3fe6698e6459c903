package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/erazemk/catalog/internal/db"
	"github.com/erazemk/catalog/internal/model"
)

// ListCategories returns all categories ordered by name.
func ListCategories(ctx context.Context, q db.Querier) ([]model.Category, error) {
	rows, err := q.QueryContext(ctx, `SELECT id, name FROM categories ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("listing categories: %w", err)
	}
	defer rows.Close()

	var categories []model.Category
	for rows.Next() {
		var c model.Category
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, fmt.Errorf("scanning category: %w", err)
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

// GetCategory returns a category by ID.
func GetCategory(ctx context.Context, q db.Querier, id int64) (*model.Category, error) {
	c := &model.Category{}
	err := q.QueryRowContext(ctx,
		`SELECT id, name FROM categories WHERE id = ?`, id,
	).Scan(&c.ID, &c.Name)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting category: %w", err)
	}
	return c, nil
}
