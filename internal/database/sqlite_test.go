package database

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	// A pooled second connection would see its own empty in-memory database
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec("CREATE TABLE entries (id INTEGER PRIMARY KEY, value TEXT NOT NULL)")
	require.NoError(t, err)
	return db
}

func countEntries(t *testing.T, db *sql.DB) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM entries").Scan(&n))
	return n
}

func TestTransactionCommits(t *testing.T) {
	db := openTestDB(t)

	err := Transaction(context.Background(), db, func(tx *sql.Tx) error {
		if _, err := tx.Exec("INSERT INTO entries (value) VALUES (?)", "a"); err != nil {
			return err
		}
		_, err := tx.Exec("INSERT INTO entries (value) VALUES (?)", "b")
		return err
	})
	require.NoError(t, err)

	assert.Equal(t, 2, countEntries(t, db))
}

func TestTransactionRollsBackOnError(t *testing.T) {
	db := openTestDB(t)
	boom := errors.New("boom")

	err := Transaction(context.Background(), db, func(tx *sql.Tx) error {
		if _, err := tx.Exec("INSERT INTO entries (value) VALUES (?)", "a"); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	assert.Equal(t, 0, countEntries(t, db), "failed transaction must leave no rows")
}

func TestTransactionRollsBackOnPanic(t *testing.T) {
	db := openTestDB(t)

	assert.Panics(t, func() {
		Transaction(context.Background(), db, func(tx *sql.Tx) error {
			if _, err := tx.Exec("INSERT INTO entries (value) VALUES (?)", "a"); err != nil {
				return err
			}
			panic("mid-transaction panic")
		})
	})

	assert.Equal(t, 0, countEntries(t, db))
}

func TestMigrateIsIdempotent(t *testing.T) {
	db := openTestDB(t)

	require.NoError(t, Migrate(db))
	require.NoError(t, Migrate(db))

	var applied int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM migrations").Scan(&applied))
	assert.Equal(t, len(migrations), applied)
}
