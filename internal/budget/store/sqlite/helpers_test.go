package sqlite_test

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/BrandonDHaskell/budgetbot/internal/budget/types"
	"github.com/BrandonDHaskell/budgetbot/internal/db"
)

// openTestDB returns an in-memory SQLite connection with the same PRAGMAs
// and schema as production. Closed automatically when the test finishes.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	// Shared-cache URI keeps the database alive while the pool reopens conns.
	dsn := fmt.Sprintf(
		"file:test_%s?mode=memory&cache=shared&_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)",
		strings.ReplaceAll(t.Name(), "/", "_"),
	)

	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("openTestDB: sql.Open: %v", err)
	}

	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(0)

	if err := conn.Ping(); err != nil {
		conn.Close()
		t.Fatalf("openTestDB: ping: %v", err)
	}

	if err := db.Migrate(context.Background(), conn, db.DriverSQLite); err != nil {
		conn.Close()
		t.Fatalf("openTestDB: migrate: %v", err)
	}

	t.Cleanup(func() { conn.Close() })
	return conn
}

// newTestWriter returns a db.Worker backed by conn, closed on cleanup.
func newTestWriter(t *testing.T, conn *sql.DB) *db.Worker {
	t.Helper()

	w := db.NewWorker(conn)
	t.Cleanup(func() { w.Close() })
	return w
}

func sampleRecord() types.ExpenseRecord {
	return types.ExpenseRecord{
		Amount:          decimal.RequireFromString("50000.25"),
		ExpenseItem:     "Servers",
		ExpenseGroup:    "IT",
		Partner:         "Hetzner",
		Comment:         "rent; yearly",
		Period:          []types.Period{{Month: time.August, Year: 2024}, {Month: time.September, Year: 2024}},
		PaymentMethod:   types.PaymentNoncash,
		ApprovalsNeeded: 2,
		Status:          types.StatusNotProcessed,
		InitiatorID:     1001,
	}
}
