package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/BrandonDHaskell/budgetbot/internal/budget/types"
)

// TransitionEventRecord captures one committed workflow transition for the
// audit log.
type TransitionEventRecord struct {
	EventID    uuid.UUID
	RecordID   int64
	ActorID    int64
	ActorName  string
	Department types.Department
	Action     types.Action
	FromStatus types.Status // empty for submissions
	ToStatus   types.Status
	OccurredAt time.Time
}

// TransitionEventStore persists transitions as an append-only audit log.
type TransitionEventStore interface {
	RecordEvent(ctx context.Context, rec TransitionEventRecord) error
	// ListByRecord returns events for one record, oldest first.
	ListByRecord(ctx context.Context, recordID int64) ([]TransitionEventRecord, error)
	PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
