// Package arbi parses Banco Arbi spreadsheet statements.
//
// The layout is fixed by the bank's exporter: an 8-row banner, then a header
// row, then data rows. Columns are addressed positionally; adding support
// for another bank means registering a new parser, never branching here.
package arbi

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/rumor-ml/commons.systems/treasury/internal/brl"
	"github.com/rumor-ml/commons.systems/treasury/internal/parser"
)

// headerRow is the zero-based index of the header row (the 9th visual row
// starts the data).
const headerRow = 7

// Zero-based column positions in the Arbi export.
const (
	colAccount      = 0
	colBalance      = 2
	colDate         = 4
	colNature       = 6
	colAmount       = 8
	colBranch       = 9
	colCounterparty = 14
)

// Parser implements Arbi xlsx parsing with a stateless design. The struct
// has no fields because the layout is fixed; each call operates solely on
// the input data, so the parser is safe for concurrent use.
type Parser struct{}

var parserInstance = &Parser{}

// NewParser returns the shared Arbi parser instance
func NewParser() *Parser {
	return parserInstance
}

// Name returns the parser identifier
func (p *Parser) Name() string {
	return "arbi"
}

// CanParse checks extension and the xlsx ZIP magic number
func (p *Parser) CanParse(filename string, header []byte) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext != ".xlsx" && ext != ".xls" {
		return false
	}
	return bytes.HasPrefix(header, []byte("PK"))
}

// Parse extracts the transaction and balance streams from an Arbi export.
// Row-level data errors (bad date, non-numeric amount) skip the row and are
// counted in the skip report; in strict mode they abort the parse instead.
// Structural mismatches fail the whole file with ErrUnrecognizedLayout.
func (p *Parser) Parse(ctx context.Context, r io.Reader, meta *parser.Metadata) (*parser.RawStatement, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open spreadsheet%s: %w", fileInfo(meta), err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: workbook has no sheets", parser.ErrUnrecognizedLayout)
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q%s: %w", sheets[0], fileInfo(meta), err)
	}

	if len(rows) <= headerRow+1 {
		return nil, fmt.Errorf("%w: expected header at row %d followed by data, got %d rows",
			parser.ErrUnrecognizedLayout, headerRow+1, len(rows))
	}
	if len(rows[headerRow]) <= colAmount {
		return nil, fmt.Errorf("%w: header row has %d columns, need at least %d",
			parser.ErrUnrecognizedLayout, len(rows[headerRow]), colAmount+1)
	}

	stmt := &parser.RawStatement{}
	seenBalanceDates := make(map[string]struct{})

	for i, row := range rows[headerRow+1:] {
		rowNum := headerRow + 2 + i // 1-based, as a spreadsheet user would count

		// Balance stream: date + balance columns, first value per calendar
		// date wins in file order. An empty balance cell is normal (the
		// exporter repeats the opening balance only on some rows) and is
		// not a data error.
		if balStr := cell(row, colBalance); strings.TrimSpace(balStr) != "" {
			if date, err := brl.ParseDate(cell(row, colDate)); err == nil {
				if opening, err := brl.ParseAmount(balStr); err == nil {
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

		// Transaction stream, filtered independently of the balance stream.
		txn, reason, err := p.parseTransactionRow(row)
		if err != nil {
			if meta != nil && meta.Strict() {
				return nil, fmt.Errorf("row %d: %w", rowNum, err)
			}
			switch reason {
			case skipBadDate:
				stmt.Skipped.BadDate++
			case skipBadAmount:
				stmt.Skipped.BadAmount++
			default:
				stmt.Skipped.MissingFields++
			}
			continue
		}
		stmt.Transactions = append(stmt.Transactions, *txn)
	}

	return stmt, nil
}

type skipReason int

const (
	skipNone skipReason = iota
	skipBadDate
	skipBadAmount
	skipMissingFields
)

// parseTransactionRow extracts one transaction from a data row. The
// description is synthesized from branch, account number and counterparty
// rather than taken from a single source column.
func (p *Parser) parseTransactionRow(row []string) (*parser.RawTransaction, skipReason, error) {
	branch := strings.TrimSpace(cell(row, colBranch))
	account := strings.TrimSpace(cell(row, colAccount))
	counterparty := strings.TrimSpace(cell(row, colCounterparty))
	if branch == "" && account == "" && counterparty == "" {
		return nil, skipMissingFields, fmt.Errorf("row has no description fields")
	}
	description := strings.Join([]string{branch, account, counterparty}, " - ")

	date, err := brl.ParseDate(cell(row, colDate))
	if err != nil {
		return nil, skipBadDate, fmt.Errorf("invalid transaction date: %w", err)
	}

	amount, err := brl.ParseAmount(cell(row, colAmount))
	if err != nil {
		return nil, skipBadAmount, fmt.Errorf("invalid amount: %w", err)
	}

	// Nature flag: "D" marks a debit, anything else is a credit as parsed.
	if strings.EqualFold(strings.TrimSpace(cell(row, colNature)), "D") {
		amount = -amount
	}

	txn, err := parser.NewRawTransaction(date, description, amount)
	if err != nil {
		return nil, skipMissingFields, err
	}
	return txn, skipNone, nil
}

// cell returns the value at idx, or "" when the row is shorter. excelize
// trims trailing empty cells, so short rows are routine.
func cell(row []string, idx int) string {
	if idx < len(row) {
		return row[idx]
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
