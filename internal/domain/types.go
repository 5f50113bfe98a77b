// Package domain defines the treasury data model: funds, accounts, ledger
// transactions, daily opening balances and the import audit log.
package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DateLayout is the canonical date representation used across records and
// store keys. Dates carry no time component.
const DateLayout = "2006-01-02"

// Fund is an investment fund whose accounts are tracked by the dashboard
type Fund struct {
	ID            string `json:"fund_id" firestore:"fundId"`
	Name          string `json:"name" firestore:"name"`
	CNPJ          string `json:"cnpj" firestore:"cnpj"`
	Administrator string `json:"administrator" firestore:"administrator"`
}

// NewFund creates a validated fund with a generated ID
func NewFund(name, cnpj, administrator string) (*Fund, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("fund name cannot be empty")
	}
	return &Fund{
		ID:            uuid.NewString(),
		Name:          name,
		CNPJ:          cnpj,
		Administrator: administrator,
	}, nil
}

// Account is a bank account belonging to a fund
type Account struct {
	ID       string `json:"acct_id" firestore:"acctId"`
	FundID   string `json:"fund_id" firestore:"fundId"`
	Bank     string `json:"bank" firestore:"bank"`
	Agency   string `json:"agency" firestore:"agency"`
	Number   string `json:"number" firestore:"number"`
	Nickname string `json:"nickname" firestore:"nickname"`
}

// NewAccount creates a validated account with a generated ID.
// When nickname is empty it defaults to "{bank}-{number}".
func NewAccount(fundID, bank, agency, number, nickname string) (*Account, error) {
	if fundID == "" {
		return nil, fmt.Errorf("fund ID cannot be empty")
	}
	if strings.TrimSpace(bank) == "" {
		return nil, fmt.Errorf("bank cannot be empty")
	}
	if nickname == "" {
		nickname = fmt.Sprintf("%s-%s", bank, number)
	}
	return &Account{
		ID:       uuid.NewString(),
		FundID:   fundID,
		Bank:     bank,
		Agency:   agency,
		Number:   number,
		Nickname: nickname,
	}, nil
}

// Transaction is a single ledger movement for an account.
//
// Sign convention:
//
//	Positive = credit/inflow
//	Negative = debit/outflow
//
// Parsers must normalize to this convention regardless of how the source
// file represents debits.
//
// Identity for deduplication is the (Date, Description, Amount) tuple: two
// records are the same transaction iff the tuple is equal, even when they
// arrive from different files.
type Transaction struct {
	AccountID   string  `json:"acct_id" firestore:"acctId"`
	Date        string  `json:"date" firestore:"date"` // YYYY-MM-DD
	Description string  `json:"description" firestore:"description"`
	Amount      float64 `json:"amount" firestore:"amount"`
	Liquidation bool    `json:"liquidation" firestore:"liquidation"`
	Filename    string  `json:"filename,omitempty" firestore:"filename"`
	Uploader    string  `json:"uploader_email,omitempty" firestore:"uploaderEmail"`
}

// NewTransaction creates a validated transaction
func NewTransaction(accountID, date, description string, amount float64) (*Transaction, error) {
	if accountID == "" {
		return nil, fmt.Errorf("account ID cannot be empty")
	}
	if _, err := time.Parse(DateLayout, date); err != nil {
		return nil, fmt.Errorf("invalid date format: %w", err)
	}
	if strings.TrimSpace(description) == "" {
		return nil, fmt.Errorf("description cannot be empty")
	}
	return &Transaction{
		AccountID:   accountID,
		Date:        date,
		Description: description,
		Amount:      amount,
	}, nil
}

// Balance is an account's opening balance as of the start of a calendar
// date. At most one balance exists per (account, date); re-imports upsert.
type Balance struct {
	AccountID      string  `json:"acct_id" firestore:"acctId"`
	Date           string  `json:"date" firestore:"date"` // YYYY-MM-DD
	OpeningBalance float64 `json:"opening_balance" firestore:"openingBalance"`
	Filename       string  `json:"filename,omitempty" firestore:"filename"`
	Uploader       string  `json:"uploader_email,omitempty" firestore:"uploaderEmail"`
}

// NewBalance creates a validated balance record
func NewBalance(accountID, date string, openingBalance float64) (*Balance, error) {
	if accountID == "" {
		return nil, fmt.Errorf("account ID cannot be empty")
	}
	if _, err := time.Parse(DateLayout, date); err != nil {
		return nil, fmt.Errorf("invalid date format: %w", err)
	}
	return &Balance{
		AccountID:      accountID,
		Date:           date,
		OpeningBalance: openingBalance,
	}, nil
}

// ImportLogEntry records that a calendar date has been ingested for an
// account from a given source file. It is an audit trail and a coarse
// date-granularity pre-filter for re-imports.
type ImportLogEntry struct {
	AccountID string `json:"acct_id" firestore:"acctId"`
	Date      string `json:"import_date" firestore:"importDate"` // YYYY-MM-DD
	Filename  string `json:"filename" firestore:"filename"`
	Uploader  string `json:"uploader_email" firestore:"uploaderEmail"`
}

// NewImportLogEntry creates a validated import log entry
func NewImportLogEntry(accountID, date, filename, uploader string) (*ImportLogEntry, error) {
	if accountID == "" {
		return nil, fmt.Errorf("account ID cannot be empty")
	}
	if _, err := time.Parse(DateLayout, date); err != nil {
		return nil, fmt.Errorf("invalid date format: %w", err)
	}
	return &ImportLogEntry{
		AccountID: accountID,
		Date:      date,
		Filename:  filename,
		Uploader:  uploader,
	}, nil
}
