// Package firestore implements the treasury store on Google Cloud
// Firestore, the managed backend used in production deployments.
package firestore

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/rumor-ml/commons.systems/treasury/internal/dedup"
	"github.com/rumor-ml/commons.systems/treasury/internal/domain"
	"github.com/rumor-ml/commons.systems/treasury/internal/store"
)

const (
	collectionFunds        = "treasury-funds"
	collectionAccounts     = "treasury-accounts"
	collectionTransactions = "treasury-transactions"
	collectionBalances     = "treasury-balances"
	collectionImportLog    = "treasury-import-log"
)

// Client wraps Firestore with treasury-specific operations. It satisfies
// store.Store and additionally exposes the Firebase Auth client for token
// verification in the HTTP middleware.
type Client struct {
	Firestore *firestore.Client
	Auth      *auth.Client
	projectID string
}

var _ store.Store = (*Client)(nil)

// NewClient creates a new Firestore-backed store. Credentials come from
// Application Default Credentials unless credsPath points at a service
// account file.
func NewClient(ctx context.Context, projectID, credsPath string) (*Client, error) {
	conf := &firebase.Config{ProjectID: projectID}

	var opts []option.ClientOption
	if credsPath != "" {
		opts = append(opts, option.WithCredentialsFile(credsPath))
	}

	app, err := firebase.NewApp(ctx, conf, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Firebase app: %w", err)
	}

	firestoreClient, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create Firestore client: %w", err)
	}

	authClient, err := app.Auth(ctx)
	if err != nil {
		firestoreClient.Close()
		return nil, fmt.Errorf("failed to create Auth client: %w", err)
	}

	return &Client{
		Firestore: firestoreClient,
		Auth:      authClient,
		projectID: projectID,
	}, nil
}

// Close closes the Firestore client
func (c *Client) Close() error {
	return c.Firestore.Close()
}

// CreateFund creates a new fund document keyed by fund ID
func (c *Client) CreateFund(ctx context.Context, fund *domain.Fund) error {
	_, err := c.Firestore.Collection(collectionFunds).Doc(fund.ID).Set(ctx, fund)
	if err != nil {
		return fmt.Errorf("failed to create fund %s: %w", fund.ID, err)
	}
	return nil
}

// ListFunds retrieves all funds ordered by name
func (c *Client) ListFunds(ctx context.Context) ([]*domain.Fund, error) {
	iter := c.Firestore.Collection(collectionFunds).
		OrderBy("name", firestore.Asc).
		Documents(ctx)

	var funds []*domain.Fund
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to iterate funds: %w", err)
		}

		var fund domain.Fund
		if err := doc.DataTo(&fund); err != nil {
			return nil, fmt.Errorf("failed to parse fund: %w", err)
		}
		funds = append(funds, &fund)
	}

	return funds, nil
}

// CreateAccount creates a new account document keyed by account ID
func (c *Client) CreateAccount(ctx context.Context, account *domain.Account) error {
	_, err := c.Firestore.Collection(collectionAccounts).Doc(account.ID).Set(ctx, account)
	if err != nil {
		return fmt.Errorf("failed to create account %s: %w", account.ID, err)
	}
	return nil
}

// GetAccount retrieves one account by ID
func (c *Client) GetAccount(ctx context.Context, accountID string) (*domain.Account, error) {
	doc, err := c.Firestore.Collection(collectionAccounts).Doc(accountID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, fmt.Errorf("account %s: %w", accountID, store.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get account %s: %w", accountID, err)
	}

	var account domain.Account
	if err := doc.DataTo(&account); err != nil {
		return nil, fmt.Errorf("failed to parse account: %w", err)
	}
	return &account, nil
}

// ListAccounts retrieves all accounts ordered by nickname
func (c *Client) ListAccounts(ctx context.Context) ([]*domain.Account, error) {
	iter := c.Firestore.Collection(collectionAccounts).
		OrderBy("nickname", firestore.Asc).
		Documents(ctx)

	var accounts []*domain.Account
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to iterate accounts: %w", err)
		}

		var account domain.Account
		if err := doc.DataTo(&account); err != nil {
			return nil, fmt.Errorf("failed to parse account: %w", err)
		}
		accounts = append(accounts, &account)
	}

	return accounts, nil
}

// InsertTransactions writes a batch of transactions. Document IDs are
// derived from the account and the content fingerprint, so re-writing the
// same transaction overwrites rather than duplicates.
func (c *Client) InsertTransactions(ctx context.Context, txns []*domain.Transaction) error {
	if len(txns) == 0 {
		return nil
	}

	bw := c.Firestore.BulkWriter(ctx)
	jobs := make([]*firestore.BulkWriterJob, 0, len(txns))
	for _, txn := range txns {
		docID := transactionDocID(txn)
		job, err := bw.Set(c.Firestore.Collection(collectionTransactions).Doc(docID), txn)
		if err != nil {
			bw.End()
			return fmt.Errorf("failed to enqueue transaction %s: %w", docID, err)
		}
		jobs = append(jobs, job)
	}
	bw.End()

	for _, job := range jobs {
		if _, err := job.Results(); err != nil {
			return fmt.Errorf("failed to write transaction: %w", err)
		}
	}
	return nil
}

// ListTransactions retrieves all transactions for an account, oldest first
func (c *Client) ListTransactions(ctx context.Context, accountID string) ([]*domain.Transaction, error) {
	iter := c.Firestore.Collection(collectionTransactions).
		Where("acctId", "==", accountID).
		OrderBy("date", firestore.Asc).
		Documents(ctx)

	return collectTransactions(iter)
}

// ListAllTransactions retrieves every stored transaction, oldest first
func (c *Client) ListAllTransactions(ctx context.Context) ([]*domain.Transaction, error) {
	iter := c.Firestore.Collection(collectionTransactions).
		OrderBy("date", firestore.Asc).
		Documents(ctx)

	return collectTransactions(iter)
}

// UpsertBalance writes the opening balance for (account, date). The
// deterministic document ID enforces at most one balance per day.
func (c *Client) UpsertBalance(ctx context.Context, balance *domain.Balance) error {
	docID := fmt.Sprintf("%s-%s", balance.AccountID, balance.Date)
	_, err := c.Firestore.Collection(collectionBalances).Doc(docID).Set(ctx, balance)
	if err != nil {
		return fmt.Errorf("failed to upsert balance %s: %w", docID, err)
	}
	return nil
}

// ListBalances retrieves all opening balances for an account, oldest first
func (c *Client) ListBalances(ctx context.Context, accountID string) ([]*domain.Balance, error) {
	iter := c.Firestore.Collection(collectionBalances).
		Where("acctId", "==", accountID).
		OrderBy("date", firestore.Asc).
		Documents(ctx)

	var balances []*domain.Balance
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to iterate balances for account %s: %w", accountID, err)
		}

		var balance domain.Balance
		if err := doc.DataTo(&balance); err != nil {
			return nil, fmt.Errorf("failed to parse balance: %w", err)
		}
		balances = append(balances, &balance)
	}

	return balances, nil
}

// AppendImportLog writes audit entries keyed by (account, date)
func (c *Client) AppendImportLog(ctx context.Context, entries []*domain.ImportLogEntry) error {
	if len(entries) == 0 {
		return nil
	}

	bw := c.Firestore.BulkWriter(ctx)
	jobs := make([]*firestore.BulkWriterJob, 0, len(entries))
	for _, entry := range entries {
		docID := fmt.Sprintf("%s-%s", entry.AccountID, entry.Date)
		job, err := bw.Set(c.Firestore.Collection(collectionImportLog).Doc(docID), entry)
		if err != nil {
			bw.End()
			return fmt.Errorf("failed to enqueue import log entry %s: %w", docID, err)
		}
		jobs = append(jobs, job)
	}
	bw.End()

	for _, job := range jobs {
		if _, err := job.Results(); err != nil {
			return fmt.Errorf("failed to write import log entry: %w", err)
		}
	}
	return nil
}

// ImportedDates returns the set of calendar dates already logged for an
// account
func (c *Client) ImportedDates(ctx context.Context, accountID string) (map[string]struct{}, error) {
	iter := c.Firestore.Collection(collectionImportLog).
		Where("acctId", "==", accountID).
		Documents(ctx)

	dates := make(map[string]struct{})
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to iterate import log for account %s: %w", accountID, err)
		}

		var entry domain.ImportLogEntry
		if err := doc.DataTo(&entry); err != nil {
			return nil, fmt.Errorf("failed to parse import log entry: %w", err)
		}
		dates[entry.Date] = struct{}{}
	}

	return dates, nil
}

// ListImportLog retrieves the full audit log, newest first
func (c *Client) ListImportLog(ctx context.Context) ([]*domain.ImportLogEntry, error) {
	iter := c.Firestore.Collection(collectionImportLog).
		OrderBy("importDate", firestore.Desc).
		Documents(ctx)

	var entries []*domain.ImportLogEntry
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to iterate import log: %w", err)
		}

		var entry domain.ImportLogEntry
		if err := doc.DataTo(&entry); err != nil {
			return nil, fmt.Errorf("failed to parse import log entry: %w", err)
		}
		entries = append(entries, &entry)
	}

	return entries, nil
}

// DeleteFile removes every record imported from the given filename across
// the transaction, balance and import log collections
func (c *Client) DeleteFile(ctx context.Context, filename string) error {
	for _, collection := range []string{collectionTransactions, collectionBalances, collectionImportLog} {
		if err := c.deleteByFilename(ctx, collection, filename); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) deleteByFilename(ctx context.Context, collection, filename string) error {
	iter := c.Firestore.Collection(collection).
		Where("filename", "==", filename).
		Documents(ctx)

	bw := c.Firestore.BulkWriter(ctx)
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			bw.End()
			return fmt.Errorf("failed to iterate %s for file %s: %w", collection, filename, err)
		}
		if _, err := bw.Delete(doc.Ref); err != nil {
			bw.End()
			return fmt.Errorf("failed to enqueue delete in %s: %w", collection, err)
		}
	}
	bw.End()
	return nil
}

func collectTransactions(iter *firestore.DocumentIterator) ([]*domain.Transaction, error) {
	var txns []*domain.Transaction
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to iterate transactions: %w", err)
		}

		var txn domain.Transaction
		if err := doc.DataTo(&txn); err != nil {
			return nil, fmt.Errorf("failed to parse transaction: %w", err)
		}
		txns = append(txns, &txn)
	}

	return txns, nil
}

func transactionDocID(txn *domain.Transaction) string {
	return fmt.Sprintf("%s-%s", txn.AccountID, dedup.TransactionFingerprint(txn))
}
