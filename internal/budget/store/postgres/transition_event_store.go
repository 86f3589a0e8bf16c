package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/BrandonDHaskell/budgetbot/internal/budget/store"
	"github.com/BrandonDHaskell/budgetbot/internal/budget/types"
)

type TransitionEventStore struct {
	db *sql.DB
}

func NewTransitionEventStore(db *sql.DB) *TransitionEventStore {
	return &TransitionEventStore{db: db}
}

func (s *TransitionEventStore) RecordEvent(ctx context.Context, rec store.TransitionEventRecord) error {
	if rec.EventID == uuid.Nil {
		rec.EventID = uuid.New()
	}
	if rec.OccurredAt.IsZero() {
		rec.OccurredAt = time.Now().UTC()
	}

	if _, err := s.db.ExecContext(ctx, `
INSERT INTO transition_events(
  event_id, record_id, actor_id, actor_name, department, action,
  from_status, to_status, occurred_at_ms
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9);`,
		rec.EventID, rec.RecordID, rec.ActorID, rec.ActorName,
		string(rec.Department), string(rec.Action),
		string(rec.FromStatus), string(rec.ToStatus), rec.OccurredAt.UTC().UnixMilli(),
	); err != nil {
		return fmt.Errorf("RecordEvent insert: %w", err)
	}
	return nil
}

func (s *TransitionEventStore) ListByRecord(ctx context.Context, recordID int64) ([]store.TransitionEventRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT event_id, record_id, actor_id, actor_name, department, action,
       from_status, to_status, occurred_at_ms
FROM transition_events
WHERE record_id = $1
ORDER BY occurred_at_ms;`, recordID)
	if err != nil {
		return nil, fmt.Errorf("ListByRecord: %w", err)
	}
	defer rows.Close()

	var out []store.TransitionEventRecord
	for rows.Next() {
		var (
			ev                   store.TransitionEventRecord
			dept, action         string
			fromStatus, toStatus string
			occurredMs           int64
		)
		if err := rows.Scan(&ev.EventID, &ev.RecordID, &ev.ActorID, &ev.ActorName, &dept, &action,
			&fromStatus, &toStatus, &occurredMs); err != nil {
			return nil, fmt.Errorf("ListByRecord scan: %w", err)
		}
		ev.Department = types.Department(dept)
		ev.Action = types.Action(action)
		ev.FromStatus = types.Status(fromStatus)
		ev.ToStatus = types.Status(toStatus)
		ev.OccurredAt = time.UnixMilli(occurredMs).UTC()
		out = append(out, ev)
	}
	return out, rows.Err()
}

func (s *TransitionEventStore) PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM transition_events WHERE occurred_at_ms < $1;`, cutoff.UTC().UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("PruneOlderThan: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
