// Package pipeline orchestrates statement imports: parse, deduplicate,
// classify and persist.
package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rumor-ml/commons.systems/treasury/internal/cache"
	"github.com/rumor-ml/commons.systems/treasury/internal/dedup"
	"github.com/rumor-ml/commons.systems/treasury/internal/domain"
	"github.com/rumor-ml/commons.systems/treasury/internal/logger"
	"github.com/rumor-ml/commons.systems/treasury/internal/parser"
	"github.com/rumor-ml/commons.systems/treasury/internal/registry"
	"github.com/rumor-ml/commons.systems/treasury/internal/rules"
	"github.com/rumor-ml/commons.systems/treasury/internal/store"
)

// ImportRequest describes one statement file to ingest
type ImportRequest struct {
	Reader    io.Reader
	Filename  string
	AccountID string
	Model     string // bank model name; empty means detect from content
	Uploader  string
	Strict    bool
}

// ImportSummary reports what one import actually changed
type ImportSummary struct {
	Filename            string `json:"filename"`
	Balances            int    `json:"balances"`
	NewTransactions     int    `json:"new_transactions"`
	DuplicatesByLog     int    `json:"duplicates_by_log"`
	DuplicatesByContent int    `json:"duplicates_by_content"`
	RowsSkipped         int    `json:"rows_skipped"`
}

// Pipeline wires the parser registry, the rules engine and the store into
// the import flow
type Pipeline struct {
	registry *registry.Registry
	store    store.Store
	rules    *rules.Engine
	cache    *cache.Cache
}

// New creates an import pipeline. The cache may be nil when no read
// caching is in play (one-shot CLI imports).
func New(reg *registry.Registry, st store.Store, engine *rules.Engine, c *cache.Cache) *Pipeline {
	return &Pipeline{
		registry: reg,
		store:    st,
		rules:    engine,
		cache:    c,
	}
}

// Import ingests one statement file.
//
// Order of operations matters for auditability: balances are upserted
// first, then deduplicated transactions are inserted, and only after the
// inserts commit are the pending import log entries appended. A crash
// mid-import therefore never logs a date whose transactions were lost.
func (p *Pipeline) Import(ctx context.Context, req ImportRequest) (*ImportSummary, error) {
	log := logger.FromContext(ctx)

	account, err := p.store.GetAccount(ctx, req.AccountID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve account: %w", err)
	}

	stmt, err := p.parse(ctx, req)
	if err != nil {
		return nil, err
	}

	summary := &ImportSummary{
		Filename:    req.Filename,
		RowsSkipped: stmt.Skipped.Total(),
	}

	for _, raw := range stmt.Balances {
		balance, err := domain.NewBalance(account.ID, raw.Date().Format(domain.DateLayout), raw.Opening())
		if err != nil {
			return nil, fmt.Errorf("invalid balance: %w", err)
		}
		balance.Filename = req.Filename
		balance.Uploader = req.Uploader
		if err := p.store.UpsertBalance(ctx, balance); err != nil {
			return nil, fmt.Errorf("failed to upsert balance for %s: %w", balance.Date, err)
		}
		summary.Balances++
	}

	candidates, err := p.toDomain(stmt.Transactions, account.ID, req)
	if err != nil {
		return nil, err
	}

	importedDates, err := p.store.ImportedDates(ctx, account.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load import log: %w", err)
	}

	survivors, pendingLog, err := dedup.FilterByImportLog(candidates, importedDates, account.ID, req.Filename, req.Uploader)
	if err != nil {
		return nil, err
	}
	summary.DuplicatesByLog = len(candidates) - len(survivors)

	existing, err := p.store.ListTransactions(ctx, account.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load stored transactions: %w", err)
	}

	fresh := dedup.FilterNewTransactions(survivors, existing)
	summary.DuplicatesByContent = len(survivors) - len(fresh)
	summary.NewTransactions = len(fresh)

	// Only dates whose transactions actually commit get logged. A date
	// whose every candidate was rejected by the content filter must stay
	// unlogged, or the date pre-filter would suppress a later file's
	// genuinely new transaction on it.
	freshDates := make(map[string]struct{}, len(fresh))
	for _, txn := range fresh {
		freshDates[txn.Date] = struct{}{}
	}
	logEntries := make([]*domain.ImportLogEntry, 0, len(pendingLog))
	for _, entry := range pendingLog {
		if _, ok := freshDates[entry.Date]; ok {
			logEntries = append(logEntries, entry)
		}
	}

	if err := p.store.InsertTransactions(ctx, fresh); err != nil {
		return nil, fmt.Errorf("failed to insert transactions: %w", err)
	}
	if err := p.store.AppendImportLog(ctx, logEntries); err != nil {
		return nil, fmt.Errorf("failed to append import log: %w", err)
	}

	if p.cache != nil {
		p.cache.InvalidateAll()
	}

	log.Info().
		Str("file", req.Filename).
		Str("account", account.Nickname).
		Int("new", summary.NewTransactions).
		Int("dup_log", summary.DuplicatesByLog).
		Int("dup_content", summary.DuplicatesByContent).
		Int("balances", summary.Balances).
		Int("skipped", summary.RowsSkipped).
		Msg("import complete")

	return summary, nil
}

// DeleteFile removes everything imported from a filename so the file can
// be corrected and re-uploaded
func (p *Pipeline) DeleteFile(ctx context.Context, filename string) error {
	if err := p.store.DeleteFile(ctx, filename); err != nil {
		return fmt.Errorf("failed to delete records for %s: %w", filename, err)
	}
	if p.cache != nil {
		p.cache.InvalidateAll()
	}
	logger.FromContext(ctx).Info().Str("file", filename).Msg("file records deleted")
	return nil
}

// parse resolves the parser (explicit model or content detection) and runs
// it over the request body
func (p *Pipeline) parse(ctx context.Context, req ImportRequest) (*parser.RawStatement, error) {
	content, err := io.ReadAll(req.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", req.Filename, err)
	}

	var selected parser.Parser
	if req.Model != "" {
		selected, err = p.registry.Get(req.Model)
	} else {
		header := content
		if len(header) > 512 {
			header = header[:512]
		}
		selected, err = p.registry.Detect(req.Filename, header)
	}
	if err != nil {
		return nil, err
	}

	meta, err := parser.NewMetadata(req.Filename, time.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to create metadata: %w", err)
	}
	meta.SetAccountID(req.AccountID)
	meta.SetUploader(req.Uploader)
	meta.SetStrict(req.Strict)

	stmt, err := selected.Parse(ctx, bytes.NewReader(content), meta)
	if err != nil {
		return nil, fmt.Errorf("parsing %s with %s: %w", req.Filename, selected.Name(), err)
	}
	return stmt, nil
}

// toDomain converts raw parser output to domain transactions, applying the
// classification rules
func (p *Pipeline) toDomain(raws []parser.RawTransaction, accountID string, req ImportRequest) ([]*domain.Transaction, error) {
	txns := make([]*domain.Transaction, 0, len(raws))
	for _, raw := range raws {
		txn, err := domain.NewTransaction(accountID, raw.Date().Format(domain.DateLayout), raw.Description(), raw.Amount())
		if err != nil {
			return nil, fmt.Errorf("invalid transaction: %w", err)
		}
		txn.Filename = req.Filename
		txn.Uploader = req.Uploader

		if p.rules != nil {
			if result, matched := p.rules.Match(txn.Description); matched {
				txn.Liquidation = result.Liquidation
			}
		}

		txns = append(txns, txn)
	}
	return txns, nil
}
