// Package brl parses Brazilian-locale numbers and day-first dates as they
// appear in bank statement exports.
package brl

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// dateLayouts are tried in order. Day-first layouts come before ISO so that
// ambiguous strings like "03/04/2025" resolve to April 3rd, matching the
// convention of the source files.
var dateLayouts = []string{
	"02/01/2006",
	"2/1/2006",
	"02-01-2006",
	"2006-01-02",
	"02/01/06",
}

// ParseAmount converts a Brazilian-formatted monetary string to a float64:
// "." thousands separators are stripped and the decimal comma becomes a
// decimal point, so "10.000,50" parses to 10000.50. Strings that are already
// integral ("1500") parse unchanged. Currency prefixes ("R$") and surrounding
// whitespace are tolerated.
func ParseAmount(s string) (float64, error) {
	cleaned := strings.TrimSpace(s)
	cleaned = strings.TrimPrefix(cleaned, "R$")
	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" {
		return 0, fmt.Errorf("empty amount")
	}

	cleaned = strings.ReplaceAll(cleaned, ".", "")
	cleaned = strings.ReplaceAll(cleaned, ",", ".")

	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return 0, fmt.Errorf("amount %q is not numeric: %w", s, err)
	}
	f, _ := d.Float64()
	return f, nil
}

// ParseDate parses a day-first date string into a calendar date (time
// component zeroed, UTC). ISO dates are accepted as a fallback since
// spreadsheet cells occasionally arrive already normalized.
func ParseDate(s string) (time.Time, error) {
	cleaned := strings.TrimSpace(s)
	if cleaned == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}

	// Spreadsheet cells sometimes carry a time suffix; drop it.
	if i := strings.IndexAny(cleaned, " T"); i > 0 {
		cleaned = cleaned[:i]
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, cleaned); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("date %q does not match any supported layout", s)
}
