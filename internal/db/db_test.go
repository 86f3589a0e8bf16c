package db_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BrandonDHaskell/budgetbot/internal/db"
)

func TestRebind(t *testing.T) {
	assert.Equal(t, "SELECT ? , ?", db.Rebind("sqlite", "SELECT ? , ?"))
	assert.Equal(t, "SELECT $1 , $2", db.Rebind("postgres", "SELECT ? , ?"))
}

func TestOpen_SQLiteMigratesAndSeeds(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "budgetbot.db")

	conn, err := db.Open(ctx, db.Config{Driver: "sqlite", Path: path})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	// Migrating twice is a no-op.
	require.NoError(t, db.Migrate(ctx, conn, "sqlite"))

	require.NoError(t, db.SeedDev(ctx, conn, db.SeedDevOptions{Driver: "sqlite", InitiatorID: 42}))
	require.NoError(t, db.SeedDev(ctx, conn, db.SeedDevOptions{Driver: "sqlite", InitiatorID: 42}))

	var n int
	require.NoError(t, conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM approvals;").Scan(&n))
	assert.Equal(t, 2, n)
}

func TestOpen_SchemaRejectsTooManyApprovals(t *testing.T) {
	ctx := context.Background()
	conn, err := db.Open(ctx, db.Config{Path: filepath.Join(t.TempDir(), "x.db")})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	_, err = conn.ExecContext(ctx, `
INSERT INTO approvals(amount, expense_item, expense_group, partner, comment, period,
  payment_method, approvals_needed, approvals_received, status, initiator_id)
VALUES ('1', 'a', 'b', 'c', 'd', '01.2024', 'cash', 1, 2, 'Approved', 1);`)
	assert.Error(t, err)
}

func TestWorker_RollsBackOnError(t *testing.T) {
	ctx := context.Background()
	conn, err := db.Open(ctx, db.Config{Path: filepath.Join(t.TempDir(), "w.db")})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	w := db.NewWorker(conn, db.WithQueueSize(4))
	t.Cleanup(w.Close)

	boom := assert.AnError
	err = w.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO approvals(amount, expense_item, expense_group, partner, comment, period,
  payment_method, approvals_needed, status, initiator_id)
VALUES ('1', 'a', 'b', 'c', 'd', '01.2024', 'cash', 1, 'Not processed', 1);`); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	var n int
	require.NoError(t, conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM approvals;").Scan(&n))
	assert.Equal(t, 0, n)
}
