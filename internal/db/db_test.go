package db

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

func TestRebind(t *testing.T) {
	tests := []struct {
		dialect Dialect
		query   string
		want    string
	}{
		{DialectSQLite, "SELECT * FROM items WHERE id = ?", "SELECT * FROM items WHERE id = ?"},
		{DialectPostgres, "SELECT * FROM items WHERE id = ?", "SELECT * FROM items WHERE id = $1"},
		{DialectPostgres, "UPDATE items SET name = ?, description = ? WHERE id = ?", "UPDATE items SET name = $1, description = $2 WHERE id = $3"},
		{DialectPostgres, "SELECT 1", "SELECT 1"},
	}

	for _, tt := range tests {
		if got := rebind(tt.dialect, tt.query); got != tt.want {
			t.Errorf("rebind(%q, %q) = %q, want %q", tt.dialect, tt.query, got, tt.want)
		}
	}
}

func TestSQLiteDSN(t *testing.T) {
	require.Equal(t,
		"catalog.sqlite3?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)&_pragma=synchronous(NORMAL)&_time_format=sqlite",
		sqliteDSN("catalog.sqlite3"))
	require.Contains(t, sqliteDSN("file:x.db?mode=rwc"), "mode=rwc&_pragma=")
}

func TestMigrateIsIdempotent(t *testing.T) {
	d := NewTestDB(t)

	require.NoError(t, Migrate(context.Background(), d))

	var n int
	require.NoError(t, d.QueryRowContext(context.Background(), `SELECT COUNT(*) FROM categories`).Scan(&n))
	require.Equal(t, 9, n, "seed categories must be inserted exactly once")
}

func countUsers(t *testing.T, d *DB) int {
	t.Helper()
	var n int
	require.NoError(t, d.QueryRowContext(context.Background(), `SELECT COUNT(*) FROM users`).Scan(&n))
	return n
}

func TestWithTxCommitsOnSuccess(t *testing.T) {
	d := NewTestDB(t)

	err := d.WithTx(context.Background(), func(ctx context.Context, q Querier) error {
		_, err := q.ExecContext(ctx, `INSERT INTO users (name, email) VALUES (?, ?)`, "Ann", "ann@example.com")
		return err
	})
	require.NoError(t, err)
	require.Equal(t, 1, countUsers(t, d))
}

func TestWithTxRollsBackOnError(t *testing.T) {
	d := NewTestDB(t)

	err := d.WithTx(context.Background(), func(ctx context.Context, q Querier) error {
		_, err := q.ExecContext(ctx, `INSERT INTO users (name, email) VALUES (?, ?)`, "Ann", "ann@example.com")
		require.NoError(t, err)
		return errors.New("boom")
	})
	require.Error(t, err)
	require.Equal(t, 0, countUsers(t, d), "must roll back when fn fails")
}

func TestWithTxRollsBackOnPanic(t *testing.T) {
	d := NewTestDB(t)

	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected panic to propagate")
		}
		require.Equal(t, 0, countUsers(t, d), "must roll back on panic")
	}()

	_ = d.WithTx(context.Background(), func(ctx context.Context, q Querier) error {
		_, err := q.ExecContext(ctx, `INSERT INTO users (name, email) VALUES (?, ?)`, "Ann", "ann@example.com")
		require.NoError(t, err)
		panic("kaput")
	})
}

func TestWithTxPostgresPlaceholders(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()

	d := &DB{DB: mockDB, Dialect: DialectPostgres}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM items WHERE id = $1`)).
		WithArgs(5).
		WillReturnError(errors.New("boom"))
	mock.ExpectRollback()

	err = d.WithTx(context.Background(), func(ctx context.Context, q Querier) error {
		_, err := q.ExecContext(ctx, `DELETE FROM items WHERE id = ?`, 5)
		return err
	})
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTxCommitFailure(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()

	d := &DB{DB: mockDB, Dialect: DialectSQLite}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM items WHERE id = ?`)).
		WithArgs(5).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit().WillReturnError(errors.New("disk full"))

	err = d.WithTx(context.Background(), func(ctx context.Context, q Querier) error {
		_, err := q.ExecContext(ctx, `DELETE FROM items WHERE id = ?`, 5)
		return err
	})
	require.ErrorContains(t, err, "committing transaction")
	require.NoError(t, mock.ExpectationsWereMet())
}
