package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/erazemk/catalog/internal/db"
	"github.com/erazemk/catalog/internal/model"
)

const itemSelect = `SELECT i.id, i.name, i.description, i.category_id, i.user_id,
        i.image_key, i.image_mime, i.time_created, i.time_updated,
        c.name AS category_name, u.name AS owner_name, u.picture AS owner_picture
 FROM items i
 JOIN categories c ON c.id = i.category_id
 JOIN users u ON u.id = i.user_id`

// ErrNotFound is returned by writes that target an item that no longer
// exists.
var ErrNotFound = errors.New("item not found")

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (*model.Item, error) {
	item := &model.Item{}
	var imageKey, imageMime sql.NullString
	err := row.Scan(&item.ID, &item.Name, &item.Description, &item.CategoryID, &item.UserID,
		&imageKey, &imageMime, &item.TimeCreated, &item.TimeUpdated,
		&item.CategoryName, &item.OwnerName, &item.OwnerPicture)
	if err != nil {
		return nil, err
	}
	item.ImageKey = imageKey.String
	item.ImageMime = imageMime.String
	return item, nil
}

func scanItems(rows *sql.Rows) ([]model.Item, error) {
	defer rows.Close()

	var items []model.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning item: %w", err)
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

// CreateItem creates a new item owned by userID.
func CreateItem(ctx context.Context, q db.Querier, name, description string, categoryID, userID int64) (*model.Item, error) {
	var id int64
	err := q.QueryRowContext(ctx,
		`INSERT INTO items (name, description, category_id, user_id, time_created)
		 VALUES (?, ?, ?, ?, ?) RETURNING id`,
		name, description, categoryID, userID, time.Now().UTC(),
	).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("creating item: %w", err)
	}

	return GetItem(ctx, q, id)
}

// GetItem returns an item by ID together with its category and owner names.
func GetItem(ctx context.Context, q db.Querier, id int64) (*model.Item, error) {
	item, err := scanItem(q.QueryRowContext(ctx, itemSelect+` WHERE i.id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting item: %w", err)
	}
	return item, nil
}

// ListItemsByCategory returns the items of a category ordered by name.
func ListItemsByCategory(ctx context.Context, q db.Querier, categoryID int64) ([]model.Item, error) {
	rows, err := q.QueryContext(ctx, itemSelect+` WHERE i.category_id = ? ORDER BY i.name`, categoryID)
	if err != nil {
		return nil, fmt.Errorf("listing items: %w", err)
	}
	return scanItems(rows)
}

// ListLatestItems returns the most recently created or updated items.
func ListLatestItems(ctx context.Context, q db.Querier, limit int) ([]model.Item, error) {
	rows, err := q.QueryContext(ctx,
		itemSelect+` ORDER BY COALESCE(i.time_updated, i.time_created) DESC, i.id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing latest items: %w", err)
	}
	return scanItems(rows)
}

// UpdateItem updates an item's name, description and category. The owner is
// never changed. ErrNotFound is returned if the item does not exist.
func UpdateItem(ctx context.Context, q db.Querier, id int64, name, description string, categoryID int64) error {
	res, err := q.ExecContext(ctx,
		`UPDATE items SET name = ?, description = ?, category_id = ?, time_updated = ?
		 WHERE id = ?`,
		name, description, categoryID, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("updating item: %w", err)
	}
	return requireOneRow(res, "updating item")
}

func requireOneRow(res sql.Result, doing string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", doing, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", doing, ErrNotFound)
	}
	return nil
}

// SetItemImage records the blob key and MIME type of an item's image.
func SetItemImage(ctx context.Context, q db.Querier, id int64, key, mime string) error {
	res, err := q.ExecContext(ctx,
		`UPDATE items SET image_key = ?, image_mime = ?, time_updated = ? WHERE id = ?`,
		key, mime, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("setting item image: %w", err)
	}
	return requireOneRow(res, "setting item image")
}

// DeleteItem removes an item.
func DeleteItem(ctx context.Context, q db.Querier, id int64) error {
	_, err := q.ExecContext(ctx, `DELETE FROM items WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting item: %w", err)
	}
	return nil
}
