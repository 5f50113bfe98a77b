// Package sqlite implements the treasury store on a local SQLite file,
// used for development and for offline batch imports.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/rumor-ml/commons.systems/treasury/internal/dedup"
	"github.com/rumor-ml/commons.systems/treasury/internal/domain"
	"github.com/rumor-ml/commons.systems/treasury/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS funds (
	id            TEXT PRIMARY KEY,
	name          TEXT NOT NULL,
	cnpj          TEXT NOT NULL DEFAULT '',
	administrator TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS accounts (
	id       TEXT PRIMARY KEY,
	fund_id  TEXT NOT NULL REFERENCES funds(id),
	bank     TEXT NOT NULL,
	agency   TEXT NOT NULL DEFAULT '',
	number   TEXT NOT NULL DEFAULT '',
	nickname TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS transactions (
	acct_id        TEXT NOT NULL REFERENCES accounts(id),
	fingerprint    TEXT NOT NULL,
	date           TEXT NOT NULL,
	description    TEXT NOT NULL,
	amount         REAL NOT NULL,
	liquidation    INTEGER NOT NULL DEFAULT 0,
	filename       TEXT NOT NULL DEFAULT '',
	uploader_email TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (acct_id, fingerprint)
);

CREATE TABLE IF NOT EXISTS balances (
	acct_id         TEXT NOT NULL REFERENCES accounts(id),
	date            TEXT NOT NULL,
	opening_balance REAL NOT NULL,
	filename        TEXT NOT NULL DEFAULT '',
	uploader_email  TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (acct_id, date)
);

CREATE TABLE IF NOT EXISTS import_log (
	acct_id        TEXT NOT NULL REFERENCES accounts(id),
	import_date    TEXT NOT NULL,
	filename       TEXT NOT NULL,
	uploader_email TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (acct_id, import_date)
);

CREATE INDEX IF NOT EXISTS idx_transactions_filename ON transactions(filename);
CREATE INDEX IF NOT EXISTS idx_balances_filename ON balances(filename);
`

// Store implements the treasury store on SQLite
type Store struct {
	db *sql.DB
}

var _ store.Store = (*Store)(nil)

// Open creates or opens a SQLite database at path and applies the schema.
// Use ":memory:" for an ephemeral database.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", path, err)
	}

	// SQLite has a single writer; one pooled connection also keeps
	// in-memory databases on the same connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateFund inserts a fund
func (s *Store) CreateFund(ctx context.Context, fund *domain.Fund) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO funds (id, name, cnpj, administrator) VALUES (?, ?, ?, ?)`,
		fund.ID, fund.Name, fund.CNPJ, fund.Administrator)
	if err != nil {
		return fmt.Errorf("failed to create fund %s: %w", fund.ID, err)
	}
	return nil
}

// ListFunds returns all funds ordered by name
func (s *Store) ListFunds(ctx context.Context) ([]*domain.Fund, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, cnpj, administrator FROM funds ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query funds: %w", err)
	}
	defer rows.Close()

	var funds []*domain.Fund
	for rows.Next() {
		var fund domain.Fund
		if err := rows.Scan(&fund.ID, &fund.Name, &fund.CNPJ, &fund.Administrator); err != nil {
			return nil, fmt.Errorf("failed to scan fund: %w", err)
		}
		funds = append(funds, &fund)
	}
	return funds, rows.Err()
}

// CreateAccount inserts an account
func (s *Store) CreateAccount(ctx context.Context, account *domain.Account) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO accounts (id, fund_id, bank, agency, number, nickname) VALUES (?, ?, ?, ?, ?, ?)`,
		account.ID, account.FundID, account.Bank, account.Agency, account.Number, account.Nickname)
	if err != nil {
		return fmt.Errorf("failed to create account %s: %w", account.ID, err)
	}
	return nil
}

// GetAccount returns one account by ID
func (s *Store) GetAccount(ctx context.Context, accountID string) (*domain.Account, error) {
	var account domain.Account
	err := s.db.QueryRowContext(ctx,
		`SELECT id, fund_id, bank, agency, number, nickname FROM accounts WHERE id = ?`, accountID).
		Scan(&account.ID, &account.FundID, &account.Bank, &account.Agency, &account.Number, &account.Nickname)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("account %s: %w", accountID, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account %s: %w", accountID, err)
	}
	return &account, nil
}

// ListAccounts returns all accounts ordered by nickname
func (s *Store) ListAccounts(ctx context.Context) ([]*domain.Account, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, fund_id, bank, agency, number, nickname FROM accounts ORDER BY nickname`)
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*domain.Account
	for rows.Next() {
		var account domain.Account
		if err := rows.Scan(&account.ID, &account.FundID, &account.Bank, &account.Agency, &account.Number, &account.Nickname); err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, &account)
	}
	return accounts, rows.Err()
}

// InsertTransactions writes a batch of transactions in one database
// transaction. The content fingerprint keys each row, so re-writing the
// same transaction overwrites rather than duplicates.
func (s *Store) InsertTransactions(ctx context.Context, txns []*domain.Transaction) error {
	if len(txns) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO transactions
		 (acct_id, fingerprint, date, description, amount, liquidation, filename, uploader_email)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, txn := range txns {
		_, err := stmt.ExecContext(ctx,
			txn.AccountID, dedup.TransactionFingerprint(txn), txn.Date, txn.Description,
			txn.Amount, boolToInt(txn.Liquidation), txn.Filename, txn.Uploader)
		if err != nil {
			return fmt.Errorf("failed to insert transaction on %s: %w", txn.Date, err)
		}
	}

	return tx.Commit()
}

// ListTransactions returns all transactions for an account, oldest first
func (s *Store) ListTransactions(ctx context.Context, accountID string) ([]*domain.Transaction, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT acct_id, date, description, amount, liquidation, filename, uploader_email
		 FROM transactions WHERE acct_id = ? ORDER BY date, description`, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions for account %s: %w", accountID, err)
	}
	return scanTransactions(rows)
}

// ListAllTransactions returns every stored transaction, oldest first
func (s *Store) ListAllTransactions(ctx context.Context) ([]*domain.Transaction, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT acct_id, date, description, amount, liquidation, filename, uploader_email
		 FROM transactions ORDER BY date, description`)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	return scanTransactions(rows)
}

// UpsertBalance writes the opening balance for (account, date)
func (s *Store) UpsertBalance(ctx context.Context, balance *domain.Balance) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO balances (acct_id, date, opening_balance, filename, uploader_email)
		 VALUES (?, ?, ?, ?, ?)`,
		balance.AccountID, balance.Date, balance.OpeningBalance, balance.Filename, balance.Uploader)
	if err != nil {
		return fmt.Errorf("failed to upsert balance %s/%s: %w", balance.AccountID, balance.Date, err)
	}
	return nil
}

// ListBalances returns all opening balances for an account, oldest first
func (s *Store) ListBalances(ctx context.Context, accountID string) ([]*domain.Balance, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT acct_id, date, opening_balance, filename, uploader_email
		 FROM balances WHERE acct_id = ? ORDER BY date`, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to query balances for account %s: %w", accountID, err)
	}
	defer rows.Close()

	var balances []*domain.Balance
	for rows.Next() {
		var balance domain.Balance
		if err := rows.Scan(&balance.AccountID, &balance.Date, &balance.OpeningBalance, &balance.Filename, &balance.Uploader); err != nil {
			return nil, fmt.Errorf("failed to scan balance: %w", err)
		}
		balances = append(balances, &balance)
	}
	return balances, rows.Err()
}

// AppendImportLog writes audit entries, replacing any earlier entry for
// the same (account, date)
func (s *Store) AppendImportLog(ctx context.Context, entries []*domain.ImportLogEntry) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, entry := range entries {
		_, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO import_log (acct_id, import_date, filename, uploader_email)
			 VALUES (?, ?, ?, ?)`,
			entry.AccountID, entry.Date, entry.Filename, entry.Uploader)
		if err != nil {
			return fmt.Errorf("failed to insert import log entry %s: %w", entry.Date, err)
		}
	}

	return tx.Commit()
}

// ImportedDates returns the set of calendar dates already logged for an
// account
func (s *Store) ImportedDates(ctx context.Context, accountID string) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT import_date FROM import_log WHERE acct_id = ?`, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to query import log for account %s: %w", accountID, err)
	}
	defer rows.Close()

	dates := make(map[string]struct{})
	for rows.Next() {
		var date string
		if err := rows.Scan(&date); err != nil {
			return nil, fmt.Errorf("failed to scan import date: %w", err)
		}
		dates[date] = struct{}{}
	}
	return dates, rows.Err()
}

// ListImportLog returns the full audit log, newest first
func (s *Store) ListImportLog(ctx context.Context) ([]*domain.ImportLogEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT acct_id, import_date, filename, uploader_email FROM import_log ORDER BY import_date DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query import log: %w", err)
	}
	defer rows.Close()

	var entries []*domain.ImportLogEntry
	for rows.Next() {
		var entry domain.ImportLogEntry
		if err := rows.Scan(&entry.AccountID, &entry.Date, &entry.Filename, &entry.Uploader); err != nil {
			return nil, fmt.Errorf("failed to scan import log entry: %w", err)
		}
		entries = append(entries, &entry)
	}
	return entries, rows.Err()
}

// DeleteFile removes every record imported from the given filename
func (s *Store) DeleteFile(ctx context.Context, filename string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"transactions", "balances", "import_log"} {
		if _, err := tx.ExecContext(ctx,
			fmt.Sprintf(`DELETE FROM %s WHERE filename = ?`, table), filename); err != nil {
			return fmt.Errorf("failed to delete from %s for file %s: %w", table, filename, err)
		}
	}

	return tx.Commit()
}

func scanTransactions(rows *sql.Rows) ([]*domain.Transaction, error) {
	defer rows.Close()

	var txns []*domain.Transaction
	for rows.Next() {
		var txn domain.Transaction
		var liquidation int
		if err := rows.Scan(&txn.AccountID, &txn.Date, &txn.Description, &txn.Amount, &liquidation, &txn.Filename, &txn.Uploader); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txn.Liquidation = liquidation != 0
		txns = append(txns, &txn)
	}
	return txns, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
