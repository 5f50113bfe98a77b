// Package parser defines the strategy interface every statement layout
// parser implements, and the raw record types they produce.
package parser

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"
)

// ErrUnrecognizedLayout signals a structural failure: the file does not
// match the layout the parser expects (wrong header offset, missing
// columns). Structural failures abort the whole file, unlike row-level data
// errors which are skipped and counted.
var ErrUnrecognizedLayout = errors.New("unrecognized statement layout")

// Parser is the strategy interface for all statement layout parsers
type Parser interface {
	// Name returns the layout identifier (e.g. "arbi", "csv", "ofx")
	Name() string

	// CanParse checks whether this parser can handle the file, based on
	// the filename and the first bytes of content
	CanParse(filename string, header []byte) bool

	// Parse extracts the transaction and balance streams from the file.
	// The two streams are filtered independently: a row rejected from one
	// may still contribute to the other.
	Parse(ctx context.Context, r io.Reader, meta *Metadata) (*RawStatement, error)
}

// Metadata carries upload context into a parse: source filename, target
// account, uploader identity, and the row-error policy.
type Metadata struct {
	filename   string
	accountID  string
	uploader   string
	uploadedAt time.Time
	strict     bool
}

// NewMetadata creates validated parse metadata
func NewMetadata(filename string, uploadedAt time.Time) (*Metadata, error) {
	if filename == "" {
		return nil, fmt.Errorf("filename cannot be empty")
	}
	if uploadedAt.IsZero() {
		return nil, fmt.Errorf("upload time cannot be zero")
	}
	return &Metadata{filename: filename, uploadedAt: uploadedAt}, nil
}

// Filename returns the source filename
func (m *Metadata) Filename() string { return m.filename }

// AccountID returns the target account, if known at parse time
func (m *Metadata) AccountID() string { return m.accountID }

// Uploader returns the uploader identity (email)
func (m *Metadata) Uploader() string { return m.uploader }

// UploadedAt returns the upload time
func (m *Metadata) UploadedAt() time.Time { return m.uploadedAt }

// Strict reports whether row-level data errors abort the parse instead of
// being skipped and counted
func (m *Metadata) Strict() bool { return m.strict }

// SetAccountID sets the target account
func (m *Metadata) SetAccountID(id string) { m.accountID = id }

// SetUploader sets the uploader identity
func (m *Metadata) SetUploader(email string) { m.uploader = email }

// SetStrict switches row-level errors from skip-and-count to fail-fast
func (m *Metadata) SetStrict(strict bool) { m.strict = strict }

// RawStatement is the two-stream output of a parse, before persistence
type RawStatement struct {
	Transactions []RawTransaction
	Balances     []RawBalance
	Skipped      SkipReport
}

// SkipReport counts data rows dropped during a permissive parse, by reason.
// Silent loss is otherwise invisible to the operator, so callers surface
// these counts in the import summary.
type SkipReport struct {
	BadDate       int `json:"bad_date"`
	BadAmount     int `json:"bad_amount"`
	MissingFields int `json:"missing_fields"`
}

// Total returns the number of skipped rows across all reasons
func (s SkipReport) Total() int {
	return s.BadDate + s.BadAmount + s.MissingFields
}

// RawTransaction is a ledger movement before normalization into the domain
type RawTransaction struct {
	date        time.Time
	description string
	amount      float64
}

// Date returns the transaction date
func (r *RawTransaction) Date() time.Time { return r.date }

// Description returns the transaction description
func (r *RawTransaction) Description() string { return r.description }

// Amount returns the signed amount (credits positive, debits negative)
func (r *RawTransaction) Amount() float64 { return r.amount }

// NewRawTransaction creates a validated raw transaction
func NewRawTransaction(date time.Time, description string, amount float64) (*RawTransaction, error) {
	if date.IsZero() {
		return nil, fmt.Errorf("transaction date cannot be zero")
	}
	if description == "" {
		return nil, fmt.Errorf("description cannot be empty")
	}
	return &RawTransaction{date: date, description: description, amount: amount}, nil
}

// RawBalance is a daily opening balance before normalization
type RawBalance struct {
	date    time.Time
	opening float64
}

// Date returns the balance date
func (r *RawBalance) Date() time.Time { return r.date }

// Opening returns the opening balance value
func (r *RawBalance) Opening() float64 { return r.opening }

// NewRawBalance creates a validated raw balance
func NewRawBalance(date time.Time, opening float64) (*RawBalance, error) {
	if date.IsZero() {
		return nil, fmt.Errorf("balance date cannot be zero")
	}
	return &RawBalance{date: date, opening: opening}, nil
}
