package export_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"

	"github.com/BrandonDHaskell/budgetbot/internal/budget/export"
	"github.com/BrandonDHaskell/budgetbot/internal/budget/types"
)

type appendCall struct {
	path  string
	query map[string]string
	rows  [][]string
}

// fakeSheets answers values:append like the Sheets API.
type fakeSheets struct {
	mu     sync.Mutex
	calls  []appendCall
	status int
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Values [][]string `json:"values"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)

	f.mu.Lock()
	f.calls = append(f.calls, appendCall{
		path: r.URL.Path,
		query: map[string]string{
			"valueInputOption": r.URL.Query().Get("valueInputOption"),
			"insertDataOption": r.URL.Query().Get("insertDataOption"),
		},
		rows: body.Values,
	})
	status := f.status
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if status != 0 {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"error":{"code":403,"message":"caller lacks permission"}}`))
		return
	}
	_, _ = w.Write([]byte(`{"spreadsheetId":"sheet-id","updates":{"updatedRows":2}}`))
}

func newSheetsExporter(t *testing.T, fake *fakeSheets) *export.SheetsExporter {
	t.Helper()
	ts := httptest.NewServer(fake)
	t.Cleanup(ts.Close)

	clock := func() time.Time { return time.Date(2024, 9, 5, 9, 0, 0, 0, time.UTC) }
	e, err := export.NewSheetsExporter(context.Background(), export.SheetsConfig{
		SpreadsheetID: "sheet-id",
		SheetName:     "Payments",
	}, export.WithClock(clock), export.WithClientOptions(
		option.WithEndpoint(ts.URL+"/"),
		option.WithoutAuthentication(),
	))
	require.NoError(t, err)
	return e
}

func TestSheetsExporter_AppendsRows(t *testing.T) {
	fake := &fakeSheets{}
	e := newSheetsExporter(t, fake)

	rec := paidRecord("100",
		types.Period{Month: time.August, Year: 2024},
		types.Period{Month: time.September, Year: 2024},
	)
	require.NoError(t, e.Export(context.Background(), rec))

	fake.mu.Lock()
	defer fake.mu.Unlock()
	require.Len(t, fake.calls, 1)
	call := fake.calls[0]
	assert.True(t, strings.HasPrefix(call.path, "/v4/spreadsheets/sheet-id/values/"), call.path)
	assert.True(t, strings.HasSuffix(call.path, ":append"), call.path)
	assert.Contains(t, call.path, "Payments")
	assert.Equal(t, "USER_ENTERED", call.query["valueInputOption"])
	assert.Equal(t, "INSERT_ROWS", call.query["insertDataOption"])
	require.Len(t, call.rows, 2)
	assert.Equal(t, []string{"05.09.2024", "50.0000000000", "Ads", "Marketing", "Acme", "", "", "banner", "01.08.2024", "noncash"}, call.rows[0])
	assert.Equal(t, "01.09.2024", call.rows[1][8])
}

func TestSheetsExporter_APIError(t *testing.T) {
	fake := &fakeSheets{status: http.StatusForbidden}
	e := newSheetsExporter(t, fake)

	err := e.Export(context.Background(), paidRecord("10", types.Period{Month: time.May, Year: 2024}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sheets export record 3")
}

func TestNewSheetsExporter_RequiresSpreadsheetID(t *testing.T) {
	_, err := export.NewSheetsExporter(context.Background(), export.SheetsConfig{})
	assert.Error(t, err)
}
