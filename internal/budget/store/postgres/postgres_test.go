package postgres_test

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BrandonDHaskell/budgetbot/internal/budget/store"
	"github.com/BrandonDHaskell/budgetbot/internal/budget/store/postgres"
	"github.com/BrandonDHaskell/budgetbot/internal/budget/types"
	"github.com/BrandonDHaskell/budgetbot/internal/db"
)

// openTestDB connects to BUDGETBOT_TEST_POSTGRES_DSN and truncates the
// budget tables. Tests are skipped when the variable is unset.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := os.Getenv("BUDGETBOT_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("BUDGETBOT_TEST_POSTGRES_DSN not set")
	}

	ctx := context.Background()
	conn, err := db.Open(ctx, db.Config{Driver: db.DriverPostgres, DSN: dsn})
	require.NoError(t, err)
	_, err = conn.ExecContext(ctx, `TRUNCATE transition_events, approvals RESTART IDENTITY;`)
	require.NoError(t, err)

	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestRecordStore_Lifecycle(t *testing.T) {
	conn := openTestDB(t)
	s := postgres.NewRecordStore(conn)
	ctx := context.Background()

	id, err := s.Create(ctx, types.ExpenseRecord{
		Amount:          decimal.RequireFromString("120.50"),
		ExpenseItem:     "Office",
		ExpenseGroup:    "Admin",
		Partner:         "Acme",
		Comment:         "chairs",
		Period:          []types.Period{{Month: time.March, Year: 2025}},
		PaymentMethod:   types.PaymentCash,
		ApprovalsNeeded: 1,
		Status:          types.StatusNotProcessed,
		InitiatorID:     5,
	})
	require.NoError(t, err)

	approved := types.StatusApproved
	one := 1
	require.NoError(t, s.Update(ctx, id, store.RecordPatch{
		Status: &approved, ApprovalsReceived: &one, ApprovedBy: []string{"@boss"},
	}))

	got, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("120.5").Equal(got.Amount))
	assert.Equal(t, types.StatusApproved, got.Status)
	assert.Equal(t, []string{"@boss"}, got.ApprovedBy)

	unsettled, err := s.FindUnsettled(ctx)
	require.NoError(t, err)
	assert.Len(t, unsettled, 1)

	_, err = s.Get(ctx, id+100)
	assert.ErrorIs(t, err, store.ErrRecordNotFound)
}

func TestTransitionEventStore_Prune(t *testing.T) {
	conn := openTestDB(t)
	records := postgres.NewRecordStore(conn)
	events := postgres.NewTransitionEventStore(conn)
	ctx := context.Background()

	id, err := records.Create(ctx, types.ExpenseRecord{
		Amount: decimal.NewFromInt(1), Period: []types.Period{{Month: time.May, Year: 2025}},
		PaymentMethod: types.PaymentCash, ApprovalsNeeded: 1, Status: types.StatusNotProcessed,
	})
	require.NoError(t, err)

	now := time.Now().UTC()
	require.NoError(t, events.RecordEvent(ctx, store.TransitionEventRecord{RecordID: id, ToStatus: types.StatusNotProcessed, OccurredAt: now.Add(-200 * 24 * time.Hour)}))
	require.NoError(t, events.RecordEvent(ctx, store.TransitionEventRecord{RecordID: id, ToStatus: types.StatusApproved, OccurredAt: now}))

	n, err := events.PruneOlderThan(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	left, err := events.ListByRecord(ctx, id)
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, types.StatusApproved, left[0].ToStatus)
}
