package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/BrandonDHaskell/budgetbot/internal/budget/store"
	"github.com/BrandonDHaskell/budgetbot/internal/budget/types"
)

// RecordStore keeps expense records in a map. Intended for tests and
// dev runs without a database.
type RecordStore struct {
	mu     sync.RWMutex
	nextID int64
	data   map[int64]types.ExpenseRecord
}

func NewRecordStore() *RecordStore {
	return &RecordStore{data: make(map[int64]types.ExpenseRecord)}
}

func (s *RecordStore) Create(_ context.Context, rec types.ExpenseRecord) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	rec = rec.Clone()
	rec.ID = s.nextID
	if rec.ApprovedBy == nil {
		rec.ApprovedBy = []string{}
	}
	s.data[rec.ID] = rec
	return rec.ID, nil
}

func (s *RecordStore) Get(_ context.Context, id int64) (types.ExpenseRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.data[id]
	if !ok {
		return types.ExpenseRecord{}, store.ErrRecordNotFound
	}
	return rec.Clone(), nil
}

func (s *RecordStore) Update(_ context.Context, id int64, patch store.RecordPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.data[id]
	if !ok {
		return store.ErrRecordNotFound
	}
	if patch.Status != nil {
		rec.Status = *patch.Status
	}
	if patch.ApprovalsReceived != nil {
		rec.ApprovalsReceived = *patch.ApprovalsReceived
	}
	if patch.ApprovedBy != nil {
		rec.ApprovedBy = append([]string(nil), patch.ApprovedBy...)
	}
	s.data[id] = rec
	return nil
}

func (s *RecordStore) FindUnsettled(_ context.Context) ([]types.ExpenseRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]types.ExpenseRecord, 0)
	for _, rec := range s.data {
		if !rec.Status.IsTerminal() {
			out = append(out, rec.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
