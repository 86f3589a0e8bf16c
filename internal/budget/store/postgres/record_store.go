// Package postgres implements the budget stores on PostgreSQL through
// lib/pq. The schema is applied by db.Open with the postgres migrations.
package postgres

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
)

type RecordStore struct {
	db *sql.DB
}

func NewRecordStore(db *sql.DB) *RecordStore {
	return &RecordStore{db: db}
}

const recordColumns = `id, amount::text, expense_item, expense_group, partner, comment, period,
  payment_method, approvals_needed, approvals_received, status, approved_by, initiator_id`

func (s *RecordStore) Create(ctx context.Context, rec types.ExpenseRecord) (int64, error) {
	approvedBy := rec.ApprovedBy
	if approvedBy == nil {
		approvedBy = []string{}
	}
	enc, err := json.Marshal(approvedBy)
	if err != nil {
		return 0, fmt.Errorf("Create: %w", err)
	}

	var id int64
	err = s.db.QueryRowContext(ctx, `
INSERT INTO approvals(
  amount, expense_item, expense_group, partner, comment, period,
  payment_method, approvals_needed, approvals_received, status, approved_by, initiator_id
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
RETURNING id;`,
		rec.Amount.String(), rec.ExpenseItem, rec.ExpenseGroup, rec.Partner, rec.Comment,
		types.FormatPeriods(rec.Period), string(rec.PaymentMethod),
		rec.ApprovalsNeeded, rec.ApprovalsReceived, string(rec.Status), string(enc), rec.InitiatorID,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("Create insert: %w", err)
	}
	return id, nil
}

func (s *RecordStore) Get(ctx context.Context, id int64) (types.ExpenseRecord, error) {
	rec, err := scanRecord(s.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM approvals WHERE id = $1;`, id))
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
	next := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if patch.Status != nil {
		next("status", string(*patch.Status))
	}
	if patch.ApprovalsReceived != nil {
		next("approvals_received", *patch.ApprovalsReceived)
	}
	if patch.ApprovedBy != nil {
		enc, err := json.Marshal(patch.ApprovedBy)
		if err != nil {
			return fmt.Errorf("Update: %w", err)
		}
		next("approved_by", string(enc))
	}
	if len(sets) == 0 {
		_, err := s.Get(ctx, id)
		return err
	}

	args = append(args, id)
	q := fmt.Sprintf("UPDATE approvals SET %s WHERE id = $%d;", strings.Join(sets, ", "), len(args))
	res, err := s.db.ExecContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("Update: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrRecordNotFound
	}
	return nil
}

func (s *RecordStore) FindUnsettled(ctx context.Context) ([]types.ExpenseRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT `+recordColumns+`
FROM approvals
WHERE status NOT IN ($1, $2)
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
