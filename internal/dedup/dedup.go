// Package dedup provides the two-stage transaction deduplication applied
// on import: a coarse pre-filter on already-imported calendar dates, then
// an exact content check via SHA256 fingerprinting.
package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/rumor-ml/commons.systems/treasury/internal/domain"
)

// Fingerprint creates a SHA256 hash of date, amount, and description.
// Format: SHA256("{date}|{amount}|{normalizedDescription}")
// Amount is formatted with 2 decimal places for consistency.
// Description is normalized: lowercase and trimmed.
func Fingerprint(date string, amount float64, description string) string {
	normalizedDesc := strings.ToLower(strings.TrimSpace(description))
	formattedAmount := fmt.Sprintf("%.2f", amount)

	input := fmt.Sprintf("%s|%s|%s", date, formattedAmount, normalizedDesc)

	hash := sha256.Sum256([]byte(input))
	return hex.EncodeToString(hash[:])
}

// TransactionFingerprint fingerprints a domain transaction
func TransactionFingerprint(txn *domain.Transaction) string {
	return Fingerprint(txn.Date, txn.Amount, txn.Description)
}

// FilterByImportLog drops candidates whose calendar date already appears in
// the account's import log. Dates not yet logged survive, and one pending
// log entry per new date is returned. Callers append these only after the
// transaction inserts commit, and only for dates whose rows passed
// FilterNewTransactions; logging a date whose every row was a content
// duplicate would suppress later genuinely new rows on that date.
//
// This pre-filter is coarse on purpose: a date counts as imported even if
// the new file holds extra transactions for it. FilterNewTransactions is
// the authoritative content-level gate.
func FilterByImportLog(candidates []*domain.Transaction, importedDates map[string]struct{}, accountID, filename, uploader string) ([]*domain.Transaction, []*domain.ImportLogEntry, error) {
	var survivors []*domain.Transaction
	var pending []*domain.ImportLogEntry
	pendingDates := make(map[string]struct{})

	for _, txn := range candidates {
		if _, imported := importedDates[txn.Date]; imported {
			continue
		}
		survivors = append(survivors, txn)

		if _, queued := pendingDates[txn.Date]; queued {
			continue
		}
		pendingDates[txn.Date] = struct{}{}
		entry, err := domain.NewImportLogEntry(accountID, txn.Date, filename, uploader)
		if err != nil {
			return nil, nil, fmt.Errorf("import log entry for %s: %w", txn.Date, err)
		}
		pending = append(pending, entry)
	}

	return survivors, pending, nil
}

// FilterNewTransactions drops candidates whose (date, amount, description)
// fingerprint already exists among the stored transactions. Repeats within
// the candidate batch itself are also collapsed to one occurrence.
func FilterNewTransactions(candidates, existing []*domain.Transaction) []*domain.Transaction {
	seen := make(map[string]struct{}, len(existing))
	for _, txn := range existing {
		seen[TransactionFingerprint(txn)] = struct{}{}
	}

	var fresh []*domain.Transaction
	for _, txn := range candidates {
		fp := TransactionFingerprint(txn)
		if _, dup := seen[fp]; dup {
			continue
		}
		seen[fp] = struct{}{}
		fresh = append(fresh, txn)
	}

	return fresh
}
