// Package store defines the persistence contract shared by the Firestore
// and SQLite backends.
package store

import (
	"context"
	"errors"

	"github.com/rumor-ml/commons.systems/treasury/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist
var ErrNotFound = errors.New("record not found")

// Store is the persistence interface for treasury records. All methods are
// safe for concurrent use.
//
// Write-path contracts:
//   - InsertTransactions appends; duplicate detection happens upstream.
//   - UpsertBalance replaces any existing balance for the same
//     (account, date) pair, keeping at most one per day.
//   - AppendImportLog adds audit entries after the corresponding
//     transactions have been committed.
//   - DeleteFile removes every record imported from a filename
//     (transactions, balances and import log entries) in one call, so a
//     bad upload can be rolled back and re-imported.
type Store interface {
	CreateFund(ctx context.Context, fund *domain.Fund) error
	ListFunds(ctx context.Context) ([]*domain.Fund, error)

	CreateAccount(ctx context.Context, account *domain.Account) error
	GetAccount(ctx context.Context, accountID string) (*domain.Account, error)
	ListAccounts(ctx context.Context) ([]*domain.Account, error)

	InsertTransactions(ctx context.Context, txns []*domain.Transaction) error
	ListTransactions(ctx context.Context, accountID string) ([]*domain.Transaction, error)
	ListAllTransactions(ctx context.Context) ([]*domain.Transaction, error)

	UpsertBalance(ctx context.Context, balance *domain.Balance) error
	ListBalances(ctx context.Context, accountID string) ([]*domain.Balance, error)

	AppendImportLog(ctx context.Context, entries []*domain.ImportLogEntry) error
	ImportedDates(ctx context.Context, accountID string) (map[string]struct{}, error)
	ListImportLog(ctx context.Context) ([]*domain.ImportLogEntry, error)

	DeleteFile(ctx context.Context, filename string) error

	Close() error
}
