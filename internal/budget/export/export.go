// Package export turns paid records into accounting spreadsheet rows.
package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"google.golang.org/api/option"

	"github.com/BrandonDHaskell/budgetbot/internal/budget/types"
)

const shareScale = 10

// Rows builds one row per accrual period, splitting the amount evenly and
// rounding each share half-up to ten decimals:
// [today, share, item, group, partner, "", "", comment, 01.MM.YYYY, method].
func Rows(rec types.ExpenseRecord, now time.Time) [][]string {
	if len(rec.Period) == 0 {
		return nil
	}
	share := rec.Amount.DivRound(decimal.NewFromInt(int64(len(rec.Period))), shareScale).StringFixed(shareScale)
	today := now.Format("02.01.2006")

	rows := make([][]string, 0, len(rec.Period))
	for _, p := range rec.Period {
		rows = append(rows, []string{
			today,
			share,
			rec.ExpenseItem,
			rec.ExpenseGroup,
			rec.Partner,
			"",
			"",
			rec.Comment,
			p.SheetDate(),
			string(rec.PaymentMethod),
		})
	}
	return rows
}

type settings struct {
	loc    *time.Location
	now    func() time.Time
	client []option.ClientOption
}

type Option func(*settings)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *settings) { s.now = now }
}

// WithClientOptions passes extra options to the Sheets API client.
func WithClientOptions(opts ...option.ClientOption) Option {
	return func(s *settings) { s.client = append(s.client, opts...) }
}

// newSettings resolves tz (Europe/Moscow when empty) and applies opts.
func newSettings(tz string, opts []Option) (settings, error) {
	if tz == "" {
		tz = "Europe/Moscow"
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return settings{}, fmt.Errorf("export timezone %q: %w", tz, err)
	}
	s := settings{loc: loc, now: time.Now}
	for _, o := range opts {
		o(&s)
	}
	return s, nil
}

func (s settings) today() time.Time { return s.now().In(s.loc) }

// CSVExporter appends rows to a local CSV file. It stands in for the
// spreadsheet in dev and tests.
type CSVExporter struct {
	path string
	set  settings

	mu sync.Mutex
}

// NewCSVExporter writes to path; dates are taken in the named zone.
func NewCSVExporter(path, tz string, opts ...Option) (*CSVExporter, error) {
	set, err := newSettings(tz, opts)
	if err != nil {
		return nil, err
	}
	return &CSVExporter{path: path, set: set}, nil
}

func (e *CSVExporter) Export(ctx context.Context, rec types.ExpenseRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	rows := Rows(rec, e.set.today())

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(e.path), 0o755); err != nil {
		return fmt.Errorf("export mkdir: %w", err)
	}
	f, err := os.OpenFile(e.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("export open: %w", err)
	}
	w := csv.NewWriter(f)
	if err := w.WriteAll(rows); err != nil {
		_ = f.Close()
		return fmt.Errorf("export record %d: %w", rec.ID, err)
	}
	return f.Close()
}
