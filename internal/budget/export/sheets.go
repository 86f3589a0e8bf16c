package export

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/BrandonDHaskell/budgetbot/internal/budget/types"
)

type SheetsConfig struct {
	SpreadsheetID string
	// SheetName is the worksheet rows are appended to. Defaults to "Sheet1".
	SheetName string
	// CredentialsFile is a service account key; empty uses application
	// default credentials.
	CredentialsFile string
	Timezone        string
}

// SheetsExporter appends rows to a Google Sheets worksheet.
type SheetsExporter struct {
	values        *sheets.SpreadsheetsValuesService
	spreadsheetID string
	appendRange   string
	set           settings
}

func NewSheetsExporter(ctx context.Context, cfg SheetsConfig, opts ...Option) (*SheetsExporter, error) {
	if cfg.SpreadsheetID == "" {
		return nil, errors.New("sheets export: spreadsheet id is required")
	}
	set, err := newSettings(cfg.Timezone, opts)
	if err != nil {
		return nil, err
	}
	name := cfg.SheetName
	if name == "" {
		name = "Sheet1"
	}

	clientOpts := []option.ClientOption{option.WithScopes(sheets.SpreadsheetsScope)}
	if cfg.CredentialsFile != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	clientOpts = append(clientOpts, set.client...)

	svc, err := sheets.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("sheets export: client: %w", err)
	}
	return &SheetsExporter{
		values:        svc.Spreadsheets.Values,
		spreadsheetID: cfg.SpreadsheetID,
		appendRange:   "'" + strings.ReplaceAll(name, "'", "''") + "'!A1",
		set:           set,
	}, nil
}

// Export appends one row per accrual period, letting the sheet parse dates
// and numbers as if typed by a user.
func (e *SheetsExporter) Export(ctx context.Context, rec types.ExpenseRecord) error {
	rows := Rows(rec, e.set.today())
	if len(rows) == 0 {
		return nil
	}
	values := make([][]interface{}, len(rows))
	for i, row := range rows {
		cells := make([]interface{}, len(row))
		for j, c := range row {
			cells[j] = c
		}
		values[i] = cells
	}

	_, err := e.values.Append(e.spreadsheetID, e.appendRange, &sheets.ValueRange{Values: values}).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("sheets export record %d: %w", rec.ID, err)
	}
	return nil
}
