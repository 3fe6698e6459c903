package db

import (
	"context"
	"embed"
	"fmt"
	"sync"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrationsFS embed.FS

// goose keeps its dialect and base FS in package state.
var gooseMu sync.Mutex

// Migrate applies all pending migrations for the database's dialect.
// Applied migrations are recorded by goose, so running it again is a no-op.
func Migrate(ctx context.Context, d *DB) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(migrationsFS)
	goose.SetLogger(goose.NopLogger())

	dialect, dir := "sqlite3", "migrations/sqlite"
	if d.Dialect == DialectPostgres {
		dialect, dir = "pgx", "migrations/postgres"
	}
	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("setting migration dialect: %w", err)
	}

	if err := goose.UpContext(ctx, d.DB, dir); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	return nil
}
