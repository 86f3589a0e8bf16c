package store

import (
	"context"
	"errors"

	"github.com/BrandonDHaskell/budgetbot/internal/budget/types"
)

var ErrRecordNotFound = errors.New("record not found")

// RecordPatch lists the mutable columns of an expense record. Nil fields
// are left untouched; ApprovedBy, when set, replaces the stored list.
type RecordPatch struct {
	Status            *types.Status
	ApprovalsReceived *int
	ApprovedBy        []string
}

// RecordStore persists expense records. Records are never deleted.
type RecordStore interface {
	Create(ctx context.Context, rec types.ExpenseRecord) (int64, error)
	// Get returns ErrRecordNotFound when no row has the given id.
	Get(ctx context.Context, id int64) (types.ExpenseRecord, error)
	Update(ctx context.Context, id int64, patch RecordPatch) error
	// FindUnsettled returns records whose status is neither Paid nor
	// Rejected, ordered by id.
	FindUnsettled(ctx context.Context) ([]types.ExpenseRecord, error)
}
