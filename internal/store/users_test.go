package store

import (
	"context"
	"testing"

	"github.com/erazemk/catalog/internal/db"
	"github.com/erazemk/catalog/internal/model"
)

func TestCreateAndGetUser(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	user, err := CreateUser(ctx, database, "Ann", "ann@example.com", model.AvatarURL("ann@example.com"))
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if user.Name != "Ann" {
		t.Errorf("expected name 'Ann', got %q", user.Name)
	}

	got, err := GetUser(ctx, database, user.ID)
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if got.Email != "ann@example.com" {
		t.Errorf("expected email 'ann@example.com', got %q", got.Email)
	}
	if got.Picture != model.AvatarURL("ann@example.com") {
		t.Errorf("unexpected picture %q", got.Picture)
	}
}

func TestGetUserByEmail(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	CreateUser(ctx, database, "Alice", "alice@example.com", "")

	user, err := GetUserByEmail(ctx, database, "alice@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail: %v", err)
	}
	if user == nil {
		t.Fatal("expected user, got nil")
	}
	if user.Name != "Alice" {
		t.Errorf("expected 'Alice', got %q", user.Name)
	}

	missing, err := GetUserByEmail(ctx, database, "bob@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail: %v", err)
	}
	if missing != nil {
		t.Error("expected nil for missing user")
	}
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	first, err := CreateUser(ctx, database, "A", "dup@example.com", "")
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	second, err := CreateUser(ctx, database, "B", "dup@example.com", "")
	if err != nil {
		t.Fatalf("CreateUser with taken email: %v", err)
	}
	if second != nil {
		t.Errorf("expected nil for taken email, got %+v", second)
	}

	got, err := GetUserByEmail(ctx, database, "dup@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail: %v", err)
	}
	if got.ID != first.ID || got.Name != "A" {
		t.Errorf("existing user changed: %+v", got)
	}
}
