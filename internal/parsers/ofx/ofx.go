// Package ofx parses OFX/QFX bank statements, the common interchange format
// for banks without a dedicated spreadsheet layout.
package ofx

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aclindsa/ofxgo"

	"github.com/rumor-ml/commons.systems/treasury/internal/parser"
)

// Parser implements OFX/QFX parsing with a stateless design, safe for
// concurrent use.
type Parser struct{}

var parserInstance = &Parser{}

// NewParser returns the shared OFX parser instance
func NewParser() *Parser {
	return parserInstance
}

// Name returns the parser identifier
func (p *Parser) Name() string {
	return "ofx"
}

// CanParse checks extension and OFX header markers (v1 SGML and v2 XML)
func (p *Parser) CanParse(filename string, header []byte) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext != ".ofx" && ext != ".qfx" {
		return false
	}

	headerUpper := strings.ToUpper(string(header))
	return strings.Contains(headerUpper, "OFXHEADER") ||
		strings.Contains(headerUpper, "<?OFX") ||
		strings.Contains(headerUpper, "<OFX>")
}

// Parse extracts transactions from an OFX bank statement, plus one opening
// balance from the ledger balance when present. Credit card and investment
// statements are not treasury material and fail the parse.
func (p *Parser) Parse(ctx context.Context, r io.Reader, meta *parser.Metadata) (*parser.RawStatement, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read OFX content%s: %w", fileInfo(meta), err)
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	response, err := ofxgo.ParseResponse(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("%w: not a valid OFX file%s: %v", parser.ErrUnrecognizedLayout, fileInfo(meta), err)
	}

	if len(response.Bank) == 0 {
		return nil, fmt.Errorf("%w: OFX file has no bank statement (creditcard: %d, investment: %d)",
			parser.ErrUnrecognizedLayout, len(response.CreditCard), len(response.InvStmt))
	}

	bankStmt, ok := response.Bank[0].(*ofxgo.StatementResponse)
	if !ok {
		return nil, fmt.Errorf("unexpected bank statement type %T", response.Bank[0])
	}
	if bankStmt.BankTranList == nil {
		return nil, fmt.Errorf("%w: bank statement has no transaction list", parser.ErrUnrecognizedLayout)
	}

	stmt := &parser.RawStatement{}

	// Ledger balance becomes the opening balance for its as-of date.
	if !bankStmt.DtAsOf.Time.IsZero() {
		opening, exact := bankStmt.BalAmt.Float64()
		if !exact {
			// Two-decimal amounts always fit in a float64; inexact values
			// indicate an unusual source and are worth surfacing.
			fmt.Fprintf(os.Stderr, "Warning: ledger balance %s cannot be represented exactly\n", bankStmt.BalAmt.String())
		}
		bal, err := parser.NewRawBalance(dateOnly(bankStmt.DtAsOf.Time), opening)
		if err != nil {
			return nil, fmt.Errorf("invalid ledger balance: %w", err)
		}
		stmt.Balances = append(stmt.Balances, *bal)
	}

	for i, txn := range bankStmt.BankTranList.Transactions {
		raw, err := extractTransaction(txn)
		if err != nil {
			if meta != nil && meta.Strict() {
				return nil, fmt.Errorf("transaction %d: %w", i, err)
			}
			stmt.Skipped.MissingFields++
			continue
		}
		stmt.Transactions = append(stmt.Transactions, *raw)
	}

	return stmt, nil
}

// extractTransaction converts one OFX transaction. OFX amounts are already
// signed (debits negative), so no nature-flag correction applies.
func extractTransaction(txn ofxgo.Transaction) (*parser.RawTransaction, error) {
	date := txn.DtPosted.Time
	if date.IsZero() {
		date = txn.DtUser.Time
	}
	if date.IsZero() {
		return nil, fmt.Errorf("transaction %s missing posted and user date", txn.FiTID.String())
	}

	description := strings.TrimSpace(txn.Name.String())
	if description == "" {
		description = strings.TrimSpace(txn.Memo.String())
	}
	if description == "" {
		return nil, fmt.Errorf("transaction %s missing name and memo", txn.FiTID.String())
	}

	amount, _ := txn.TrnAmt.Float64()

	return parser.NewRawTransaction(dateOnly(date), description, amount)
}

// dateOnly zeroes the time component; records carry calendar dates.
func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// fileInfo returns a formatted filename string for error messages
func fileInfo(meta *parser.Metadata) string {
	if meta != nil && meta.Filename() != "" {
		return fmt.Sprintf(" from %s", meta.Filename())
	}
	return ""
}
