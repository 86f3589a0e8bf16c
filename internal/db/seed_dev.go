package db

import (
	"context"
	"database/sql"
	"fmt"
)

type SeedDevOptions struct {
	Driver string
	// InitiatorID owns the demo records; 0 leaves the table untouched.
	InitiatorID int64
}

// SeedDev inserts a handful of unsettled demo records into an empty
// approvals table so /show_not_paid has something to list in dev.
func SeedDev(ctx context.Context, db *sql.DB, opt SeedDevOptions) error {
	if opt.InitiatorID == 0 {
		return nil
	}

	var n int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM approvals;").Scan(&n); err != nil {
		return fmt.Errorf("seed count approvals: %w", err)
	}
	if n > 0 {
		return nil
	}

	demo := []struct {
		amount, item, group, partner, comment, period, method string
		needed                                                int
		status                                                string
	}{
		{"1200", "Office", "Admin", "Stationery Ltd", "paper and pens", "08.2024", "cash", 1, "Not processed"},
		{"75000", "Servers", "IT", "Hetzner", "yearly rent", "08.2024 09.2024", "noncash", 2, "Not processed"},
	}

	q := Rebind(opt.Driver, `
INSERT INTO approvals(
  amount, expense_item, expense_group, partner, comment, period,
  payment_method, approvals_needed, approvals_received, status, approved_by, initiator_id
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, ?, '[]', ?);`)

	for _, d := range demo {
		if _, err := db.ExecContext(ctx, q,
			d.amount, d.item, d.group, d.partner, d.comment, d.period,
			d.method, d.needed, d.status, opt.InitiatorID,
		); err != nil {
			return fmt.Errorf("seed approval %s: %w", d.item, err)
		}
	}
	return nil
}
