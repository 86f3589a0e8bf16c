package memory

import (
	"context"
	"sync"
	"time"

	"github.com/BrandonDHaskell/budgetbot/internal/budget/store"
)

// TransitionEventStore is an in-memory append-only log of workflow
// transitions.
type TransitionEventStore struct {
	mu     sync.Mutex
	events []store.TransitionEventRecord
}

func NewTransitionEventStore() *TransitionEventStore {
	return &TransitionEventStore{}
}

func (s *TransitionEventStore) RecordEvent(_ context.Context, rec store.TransitionEventRecord) error {
	if rec.OccurredAt.IsZero() {
		rec.OccurredAt = time.Now().UTC()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, rec)
	return nil
}

func (s *TransitionEventStore) ListByRecord(_ context.Context, recordID int64) ([]store.TransitionEventRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []store.TransitionEventRecord
	for _, ev := range s.events {
		if ev.RecordID == recordID {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (s *TransitionEventStore) PruneOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.events[:0]
	var deleted int64
	for _, ev := range s.events {
		if ev.OccurredAt.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, ev)
	}
	s.events = kept
	return deleted, nil
}

// Events returns a copy of all recorded events. Test-only helper.
func (s *TransitionEventStore) Events() []store.TransitionEventRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]store.TransitionEventRecord, len(s.events))
	copy(out, s.events)
	return out
}
