// Package authz decides whether a session identity may change an item.
package authz

import (
	"context"
	"errors"

	"github.com/erazemk/catalog/internal/db"
	"github.com/erazemk/catalog/internal/model"
	"github.com/erazemk/catalog/internal/session"
	"github.com/erazemk/catalog/internal/store"
)

var (
	// ErrUnauthenticated is returned for anonymous sessions.
	ErrUnauthenticated = errors.New("login required")
	// ErrForbidden is returned when the item belongs to someone else.
	ErrForbidden = errors.New("you can only modify your own items")
)

// AuthorizeMutation checks that ident may create or modify the item with the
// given id. It returns the existing item, or nil when no such item exists
// (itemID 0 or an unknown id), in which case the caller decides whether that
// means "create" or "not found".
func AuthorizeMutation(ctx context.Context, q db.Querier, ident *session.Identity, itemID int64) (*model.Item, error) {
	if ident == nil {
		return nil, ErrUnauthenticated
	}
	if itemID == 0 {
		return nil, nil
	}

	item, err := store.GetItem(ctx, q, itemID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, nil
	}
	if item.UserID != ident.UserID {
		return nil, ErrForbidden
	}
	return item, nil
}
