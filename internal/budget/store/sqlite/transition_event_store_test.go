package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BrandonDHaskell/budgetbot/internal/budget/store"
	"github.com/BrandonDHaskell/budgetbot/internal/budget/store/sqlite"
	"github.com/BrandonDHaskell/budgetbot/internal/budget/types"
)

func TestTransitionEventStore_RecordAndList(t *testing.T) {
	conn := openTestDB(t)
	w := newTestWriter(t, conn)
	records := sqlite.NewRecordStore(conn, w)
	events := sqlite.NewTransitionEventStore(conn, w)
	ctx := context.Background()

	id, err := records.Create(ctx, sampleRecord())
	require.NoError(t, err)

	base := time.Date(2024, 8, 1, 10, 0, 0, 0, time.UTC)
	evID := uuid.New()
	require.NoError(t, events.RecordEvent(ctx, store.TransitionEventRecord{
		EventID: evID, RecordID: id, ActorID: 1001, ActorName: "@alice",
		Department: types.DepartmentInitiator, Action: types.ActionSubmit,
		ToStatus: types.StatusNotProcessed, OccurredAt: base,
	}))
	require.NoError(t, events.RecordEvent(ctx, store.TransitionEventRecord{
		RecordID: id, ActorID: 2002, ActorName: "@boss",
		Department: types.DepartmentHead, Action: types.ActionApprove,
		FromStatus: types.StatusNotProcessed, ToStatus: types.StatusPending, OccurredAt: base.Add(time.Minute),
	}))

	got, err := events.ListByRecord(ctx, id)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, evID, got[0].EventID)
	assert.Equal(t, types.Status(""), got[0].FromStatus)
	assert.Equal(t, types.StatusPending, got[1].ToStatus)
	assert.NotEqual(t, uuid.Nil, got[1].EventID)
	assert.True(t, base.Add(time.Minute).Equal(got[1].OccurredAt))
}

func TestTransitionEventStore_PruneOlderThan(t *testing.T) {
	conn := openTestDB(t)
	w := newTestWriter(t, conn)
	records := sqlite.NewRecordStore(conn, w)
	events := sqlite.NewTransitionEventStore(conn, w)
	ctx := context.Background()

	id, err := records.Create(ctx, sampleRecord())
	require.NoError(t, err)

	now := time.Now().UTC()
	for _, age := range []time.Duration{100 * 24 * time.Hour, 95 * 24 * time.Hour, time.Hour} {
		require.NoError(t, events.RecordEvent(ctx, store.TransitionEventRecord{
			RecordID: id, Department: types.DepartmentHead, Action: types.ActionApprove,
			ToStatus: types.StatusApproved, OccurredAt: now.Add(-age),
		}))
	}

	deleted, err := events.PruneOlderThan(ctx, now.Add(-90*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	left, err := events.ListByRecord(ctx, id)
	require.NoError(t, err)
	assert.Len(t, left, 1)
}
