package store_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/phrazzld/genjobs/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openCounter(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`CREATE TABLE counter (n INTEGER NOT NULL)`)
	require.NoError(t, err)
	return db
}

func count(t *testing.T, db *sql.DB) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM counter`).Scan(&n))
	return n
}

func insert(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO counter (n) VALUES (1)`)
	return err
}

func TestRunInTransaction_Commits(t *testing.T) {
	db := openCounter(t)

	err := store.RunInTransaction(context.Background(), db, insert)
	require.NoError(t, err)
	assert.Equal(t, 1, count(t, db))
}

func TestRunInTransaction_RollsBackOnError(t *testing.T) {
	db := openCounter(t)
	boom := errors.New("boom")

	err := store.RunInTransaction(context.Background(), db, func(ctx context.Context, tx *sql.Tx) error {
		if err := insert(ctx, tx); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, count(t, db))
}

func TestRunInTransaction_RollsBackOnPanic(t *testing.T) {
	db := openCounter(t)

	assert.PanicsWithValue(t, "step exploded", func() {
		_ = store.RunInTransaction(context.Background(), db, func(ctx context.Context, tx *sql.Tx) error {
			_ = insert(ctx, tx)
			panic("step exploded")
		})
	})
	assert.Equal(t, 0, count(t, db))
}

func TestRunInTransaction_BeginFails(t *testing.T) {
	db := openCounter(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := store.RunInTransaction(ctx, db, insert)
	assert.ErrorIs(t, err, store.ErrTransactionFailed)
}
