package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/BrandonDHaskell/budgetbot/internal/budget/store"
	"github.com/BrandonDHaskell/budgetbot/internal/budget/types"
	dbpkg "github.com/BrandonDHaskell/budgetbot/internal/db"
)

type TransitionEventStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewTransitionEventStore(db *sql.DB, writer *dbpkg.Worker) *TransitionEventStore {
	return &TransitionEventStore{db: db, writer: writer}
}

func (s *TransitionEventStore) RecordEvent(ctx context.Context, rec store.TransitionEventRecord) error {
	if rec.EventID == uuid.Nil {
		rec.EventID = uuid.New()
	}
	if rec.OccurredAt.IsZero() {
		rec.OccurredAt = time.Now().UTC()
	}

	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO transition_events(
  event_id, record_id, actor_id, actor_name, department, action,
  from_status, to_status, occurred_at_ms
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?);
`,
			rec.EventID.String(), rec.RecordID, rec.ActorID, rec.ActorName,
			string(rec.Department), string(rec.Action),
			string(rec.FromStatus), string(rec.ToStatus), rec.OccurredAt.UTC().UnixMilli(),
		); err != nil {
			return fmt.Errorf("RecordEvent insert: %w", err)
		}
		return nil
	})
}

func (s *TransitionEventStore) ListByRecord(ctx context.Context, recordID int64) ([]store.TransitionEventRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT event_id, record_id, actor_id, actor_name, department, action,
       from_status, to_status, occurred_at_ms
FROM transition_events
WHERE record_id = ?
ORDER BY occurred_at_ms, rowid;`, recordID)
	if err != nil {
		return nil, fmt.Errorf("ListByRecord: %w", err)
	}
	defer rows.Close()

	var out []store.TransitionEventRecord
	for rows.Next() {
		var (
			ev                    store.TransitionEventRecord
			eventID, dept, action string
			fromStatus, toStatus  string
			occurredMs            int64
		)
		if err := rows.Scan(&eventID, &ev.RecordID, &ev.ActorID, &ev.ActorName, &dept, &action,
			&fromStatus, &toStatus, &occurredMs); err != nil {
			return nil, fmt.Errorf("ListByRecord scan: %w", err)
		}
		if ev.EventID, err = uuid.Parse(eventID); err != nil {
			return nil, fmt.Errorf("ListByRecord event id: %w", err)
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

// PruneOlderThan deletes events that occurred before cutoff and returns the
// number of rows removed.
func (s *TransitionEventStore) PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	cutoffMs := cutoff.UTC().UnixMilli()

	var deleted int64
	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
DELETE FROM transition_events
WHERE occurred_at_ms < ?;
`, cutoffMs)
		if err != nil {
			return fmt.Errorf("PruneOlderThan: %w", err)
		}
		deleted, _ = res.RowsAffected()
		return nil
	})
	return deleted, err
}
