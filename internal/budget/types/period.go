package types

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Period is one settlement month bucket.
type Period struct {
	Month time.Month
	Year  int
}

// String returns the canonical MM.YYYY form used for storage.
func (p Period) String() string {
	return fmt.Sprintf("%02d.%04d", int(p.Month), p.Year)
}

// SheetDate returns the first day of the month as dd.mm.yyyy.
func (p Period) SheetDate() string {
	return "01." + p.String()
}

// MinPeriodYear is the earliest accepted accrual year.
const MinPeriodYear = 2000

// ParsePeriod accepts mm.yy or mm.yyyy with unsigned digits only; yy is
// taken as 20yy and four-digit years must be MinPeriodYear or later.
func ParsePeriod(tok string) (Period, error) {
	parts := strings.Split(strings.TrimSpace(tok), ".")
	if len(parts) != 2 {
		return Period{}, fmt.Errorf("period %q: want mm.yy", tok)
	}
	if !isDigits(parts[0]) || len(parts[0]) > 2 {
		return Period{}, fmt.Errorf("period %q: bad month", tok)
	}
	month, _ := strconv.Atoi(parts[0])
	if month < 1 || month > 12 {
		return Period{}, fmt.Errorf("period %q: bad month", tok)
	}
	if !isDigits(parts[1]) || (len(parts[1]) != 2 && len(parts[1]) != 4) {
		return Period{}, fmt.Errorf("period %q: bad year", tok)
	}
	year, _ := strconv.Atoi(parts[1])
	if len(parts[1]) == 2 {
		year += 2000
	}
	if year < MinPeriodYear {
		return Period{}, fmt.Errorf("period %q: year before %d", tok, MinPeriodYear)
	}
	return Period{Month: time.Month(month), Year: year}, nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// ParsePeriods splits s on whitespace and commas and parses every token.
// At least one token is required.
func ParsePeriods(s string) ([]Period, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n'
	})
	if len(fields) == 0 {
		return nil, fmt.Errorf("at least one period is required")
	}
	out := make([]Period, 0, len(fields))
	for _, f := range fields {
		p, err := ParsePeriod(f)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// FormatPeriods joins periods in canonical form, space separated.
func FormatPeriods(ps []Period) string {
	parts := make([]string, len(ps))
	for i, p := range ps {
		parts[i] = p.String()
	}
	return strings.Join(parts, " ")
}
