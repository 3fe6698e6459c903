package store

import (
	"context"
	"sort"
	"testing"

	"github.com/erazemk/catalog/internal/db"
)

func TestListCategoriesSorted(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	categories, err := ListCategories(ctx, database)
	if err != nil {
		t.Fatalf("ListCategories: %v", err)
	}
	if len(categories) == 0 {
		t.Fatal("expected seeded categories")
	}
	sorted := sort.SliceIsSorted(categories, func(i, j int) bool {
		return categories[i].Name < categories[j].Name
	})
	if !sorted {
		t.Errorf("expected categories ordered by name, got %v", categories)
	}
}

func TestGetCategory(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	c, err := GetCategory(ctx, database, 2)
	if err != nil {
		t.Fatalf("GetCategory: %v", err)
	}
	if c == nil || c.Name != "Basketball" {
		t.Errorf("expected category 2 to be Basketball, got %+v", c)
	}

	missing, err := GetCategory(ctx, database, 999)
	if err != nil {
		t.Fatalf("GetCategory: %v", err)
	}
	if missing != nil {
		t.Error("expected nil for missing category")
	}
}
