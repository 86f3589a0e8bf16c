package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/BrandonDHaskell/budgetbot/internal/budget/store"
	"github.com/BrandonDHaskell/budgetbot/internal/budget/types"
	dbpkg "github.com/BrandonDHaskell/budgetbot/internal/db"
)

type RecordStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewRecordStore(db *sql.DB, writer *dbpkg.Worker) *RecordStore {
	return &RecordStore{db: db, writer: writer}
}

const recordColumns = `id, amount, expense_item, expense_group, partner, comment, period,
  payment_method, approvals_needed, approvals_received, status, approved_by, initiator_id`

func (s *RecordStore) Create(ctx context.Context, rec types.ExpenseRecord) (int64, error) {
	approvedBy, err := encodeApprovedBy(rec.ApprovedBy)
	if err != nil {
		return 0, fmt.Errorf("Create: %w", err)
	}

	var id int64
	err = s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
INSERT INTO approvals(
  amount, expense_item, expense_group, partner, comment, period,
  payment_method, approvals_needed, approvals_received, status, approved_by, initiator_id
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);
`,
			rec.Amount.String(), rec.ExpenseItem, rec.ExpenseGroup, rec.Partner, rec.Comment,
			types.FormatPeriods(rec.Period), string(rec.PaymentMethod),
			rec.ApprovalsNeeded, rec.ApprovalsReceived, string(rec.Status), approvedBy, rec.InitiatorID,
		)
		if err != nil {
			return fmt.Errorf("Create insert: %w", err)
		}
		id, err = res.LastInsertId()
		if err != nil {
			return fmt.Errorf("Create last id: %w", err)
		}
		return nil
	})
	return id, err
}

func (s *RecordStore) Get(ctx context.Context, id int64) (types.ExpenseRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM approvals WHERE id = ?;`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return types.ExpenseRecord{}, store.ErrRecordNotFound
	}
	if err != nil {
		return types.ExpenseRecord{}, fmt.Errorf("Get: %w", err)
	}
	return rec, nil
}

func (s *RecordStore) Update(ctx context.Context, id int64, patch store.RecordPatch) error {
	var (
		sets []string
		args []any
	)
	if patch.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, string(*patch.Status))
	}
	if patch.ApprovalsReceived != nil {
		sets = append(sets, "approvals_received = ?")
		args = append(args, *patch.ApprovalsReceived)
	}
	if patch.ApprovedBy != nil {
		enc, err := encodeApprovedBy(patch.ApprovedBy)
		if err != nil {
			return fmt.Errorf("Update: %w", err)
		}
		sets = append(sets, "approved_by = ?")
		args = append(args, enc)
	}
	args = append(args, id)

	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		var q string
		if len(sets) == 0 {
			q = "SELECT id FROM approvals WHERE id = ?;"
			var got int64
			err := tx.QueryRowContext(ctx, q, id).Scan(&got)
			if errors.Is(err, sql.ErrNoRows) {
				return store.ErrRecordNotFound
			}
			return err
		}
		q = "UPDATE approvals SET " + strings.Join(sets, ", ") + " WHERE id = ?;"
		res, err := tx.ExecContext(ctx, q, args...)
		if err != nil {
			return fmt.Errorf("Update: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return store.ErrRecordNotFound
		}
		return nil
	})
}

func (s *RecordStore) FindUnsettled(ctx context.Context) ([]types.ExpenseRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT `+recordColumns+`
FROM approvals
WHERE status NOT IN (?, ?)
ORDER BY id;`, string(types.StatusPaid), string(types.StatusRejected))
	if err != nil {
		return nil, fmt.Errorf("FindUnsettled: %w", err)
	}
	defer rows.Close()

	out := make([]types.ExpenseRecord, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("FindUnsettled scan: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(sc scanner) (types.ExpenseRecord, error) {
	var (
		rec                    types.ExpenseRecord
		amount, period, method string
		status, approvedBy     string
	)
	if err := sc.Scan(
		&rec.ID, &amount, &rec.ExpenseItem, &rec.ExpenseGroup, &rec.Partner, &rec.Comment, &period,
		&method, &rec.ApprovalsNeeded, &rec.ApprovalsReceived, &status, &approvedBy, &rec.InitiatorID,
	); err != nil {
		return rec, err
	}

	var err error
	if rec.Amount, err = decimal.NewFromString(amount); err != nil {
		return rec, fmt.Errorf("record %d amount: %w", rec.ID, err)
	}
	if rec.Period, err = types.ParsePeriods(period); err != nil {
		return rec, fmt.Errorf("record %d period: %w", rec.ID, err)
	}
	if err := json.Unmarshal([]byte(approvedBy), &rec.ApprovedBy); err != nil {
		return rec, fmt.Errorf("record %d approved_by: %w", rec.ID, err)
	}
	if rec.ApprovedBy == nil {
		rec.ApprovedBy = []string{}
	}
	rec.PaymentMethod = types.PaymentMethod(method)
	rec.Status = types.Status(status)
	if !rec.Status.IsValid() {
		return rec, fmt.Errorf("record %d status: unknown %q", rec.ID, status)
	}
	return rec, nil
}

func encodeApprovedBy(names []string) (string, error) {
	if names == nil {
		names = []string{}
	}
	b, err := json.Marshal(names)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
