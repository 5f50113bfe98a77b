// Package csv parses column-name driven CSV statements, the fallback path
// for banks without a dedicated positional parser.
package csv

import (
	"bytes"
	"context"
	gocsv "encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"github.com/rumor-ml/commons.systems/treasury/internal/brl"
	"github.com/rumor-ml/commons.systems/treasury/internal/parser"
)

// columnAliases maps header-name variants (Portuguese and English) to the
// canonical column roles.
var columnAliases = map[string]string{
	"date":            "date",
	"data":            "date",
	"description":     "description",
	"descricao":       "description",
	"descrição":       "description",
	"desc":            "description",
	"amount":          "amount",
	"valor":           "amount",
	"saldo":           "balance",
	"opening_balance": "balance",
}

// Parser implements generic CSV parsing with a stateless design, safe for
// concurrent use.
type Parser struct{}

var parserInstance = &Parser{}

// NewParser returns the shared CSV parser instance
func NewParser() *Parser {
	return parserInstance
}

// Name returns the parser identifier
func (p *Parser) Name() string {
	return "csv"
}

// CanParse checks the extension and that the header row names at least a
// date and an amount column
func (p *Parser) CanParse(filename string, header []byte) bool {
	if strings.ToLower(filepath.Ext(filename)) != ".csv" {
		return false
	}

	line := string(header)
	if i := strings.IndexAny(line, "\r\n"); i >= 0 {
		line = line[:i]
	}

	roles := make(map[string]bool)
	for _, field := range strings.FieldsFunc(line, func(r rune) bool { return r == ',' || r == ';' }) {
		if role, ok := columnAliases[strings.ToLower(strings.TrimSpace(field))]; ok {
			roles[role] = true
		}
	}
	return roles["date"] && roles["amount"]
}

// Parse extracts transactions (and balances, when a balance column exists)
// from a CSV statement. Input that is not valid UTF-8 is decoded as Latin-1,
// which Brazilian bank exports commonly use.
func (p *Parser) Parse(ctx context.Context, r io.Reader, meta *parser.Metadata) (*parser.RawStatement, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV content%s: %w", fileInfo(meta), err)
	}
	if !utf8.Valid(content) {
		decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(content)
		if err != nil {
			return nil, fmt.Errorf("failed to decode Latin-1 content%s: %w", fileInfo(meta), err)
		}
		content = decoded
	}

	reader := gocsv.NewReader(bytes.NewReader(content))
	reader.Comma = sniffDelimiter(content)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV records%s: %w", fileInfo(meta), err)
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("%w: CSV needs a header row and at least one data row", parser.ErrUnrecognizedLayout)
	}

	cols, err := mapColumns(records[0])
	if err != nil {
		return nil, err
	}

	stmt := &parser.RawStatement{}
	seenBalanceDates := make(map[string]struct{})

	for i, record := range records[1:] {
		rowNum := i + 2

		if len(record) == 0 || (len(record) == 1 && strings.TrimSpace(record[0]) == "") {
			continue
		}

		date, err := brl.ParseDate(field(record, cols["date"]))
		if err != nil {
			if meta != nil && meta.Strict() {
				return nil, fmt.Errorf("row %d: invalid date: %w", rowNum, err)
			}
			stmt.Skipped.BadDate++
			continue
		}

		if balCol, ok := cols["balance"]; ok {
			if balStr := strings.TrimSpace(field(record, balCol)); balStr != "" {
				if opening, err := parseNumber(balStr); err == nil {
					key := date.Format("2006-01-02")
					if _, seen := seenBalanceDates[key]; !seen {
						seenBalanceDates[key] = struct{}{}
						bal, err := parser.NewRawBalance(date, opening)
						if err != nil {
							return nil, fmt.Errorf("row %d: %w", rowNum, err)
						}
						stmt.Balances = append(stmt.Balances, *bal)
					}
				}
			}
		}

		amount, err := parseNumber(field(record, cols["amount"]))
		if err != nil {
			if meta != nil && meta.Strict() {
				return nil, fmt.Errorf("row %d: invalid amount: %w", rowNum, err)
			}
			stmt.Skipped.BadAmount++
			continue
		}

		description := strings.TrimSpace(field(record, cols["description"]))
		if description == "" {
			if meta != nil && meta.Strict() {
				return nil, fmt.Errorf("row %d: empty description", rowNum)
			}
			stmt.Skipped.MissingFields++
			continue
		}

		txn, err := parser.NewRawTransaction(date, description, amount)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", rowNum, err)
		}
		stmt.Transactions = append(stmt.Transactions, *txn)
	}

	return stmt, nil
}

// mapColumns resolves header names to column indexes. Date, description and
// amount are required; balance is optional.
func mapColumns(header []string) (map[string]int, error) {
	cols := make(map[string]int)
	for i, name := range header {
		if role, ok := columnAliases[strings.ToLower(strings.TrimSpace(name))]; ok {
			if _, dup := cols[role]; !dup {
				cols[role] = i
			}
		}
	}
	for _, required := range []string{"date", "description", "amount"} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("%w: missing %s column in header %v", parser.ErrUnrecognizedLayout, required, header)
		}
	}
	return cols, nil
}

// parseNumber accepts plain decimal notation first and falls back to
// Brazilian formatting. "1.234" is read as a plain decimal, matching how
// the original generic import treated numeric CSV columns.
func parseNumber(s string) (float64, error) {
	cleaned := strings.TrimSpace(s)
	if f, err := strconv.ParseFloat(cleaned, 64); err == nil {
		return f, nil
	}
	return brl.ParseAmount(cleaned)
}

// sniffDelimiter picks ";" when the first line has more semicolons than
// commas; Brazilian exports use either.
func sniffDelimiter(content []byte) rune {
	line := content
	if i := bytes.IndexAny(content, "\r\n"); i >= 0 {
		line = content[:i]
	}
	if bytes.Count(line, []byte(";")) > bytes.Count(line, []byte(",")) {
		return ';'
	}
	return ','
}

func field(record []string, idx int) string {
	if idx < len(record) {
		return record[idx]
	}
	return ""
}

// fileInfo returns a formatted filename string for error messages
func fileInfo(meta *parser.Metadata) string {
	if meta != nil && meta.Filename() != "" {
		return fmt.Sprintf(" from %s", meta.Filename())
	}
	return ""
}
