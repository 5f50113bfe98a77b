package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/rumor-ml/commons.systems/treasury/internal/cache"
	"github.com/rumor-ml/commons.systems/treasury/internal/config"
	"github.com/rumor-ml/commons.systems/treasury/internal/firestore"
	"github.com/rumor-ml/commons.systems/treasury/internal/logger"
	"github.com/rumor-ml/commons.systems/treasury/internal/middleware"
	"github.com/rumor-ml/commons.systems/treasury/internal/parser"
	"github.com/rumor-ml/commons.systems/treasury/internal/pipeline"
	"github.com/rumor-ml/commons.systems/treasury/internal/registry"
	"github.com/rumor-ml/commons.systems/treasury/internal/report"
	"github.com/rumor-ml/commons.systems/treasury/internal/rules"
	"github.com/rumor-ml/commons.systems/treasury/internal/scanner"
	"github.com/rumor-ml/commons.systems/treasury/internal/server"
	"github.com/rumor-ml/commons.systems/treasury/internal/sqlite"
	"github.com/rumor-ml/commons.systems/treasury/internal/store"
	"github.com/rumor-ml/commons.systems/treasury/internal/ui"
)

const version = "0.1.0"

var (
	versionFlag = flag.Bool("version", false, "Show version")
	configFile  = flag.String("config", "", "YAML config file (default: sqlite backend, treasury.db)")
	verbose     = flag.Bool("verbose", false, "Show debug logs")

	// Import flags
	importFile = flag.String("import", "", "Statement file to import")
	scanDir    = flag.String("scan", "", "Directory to scan for statement files ({dir}/{account-nickname}/file)")
	accountID  = flag.String("account", "", "Target account ID for -import")
	model      = flag.String("model", "", "Bank model (arbi, csv, ofx); empty means detect from content")
	uploader   = flag.String("uploader", "", "Uploader email recorded in the audit trail")
	strict     = flag.Bool("strict", false, "Abort imports on row-level data errors")
	dryRun     = flag.Bool("dry-run", false, "Parse without writing to the store")
	rulesFile  = flag.String("rules", "", "Classification rules file (default: embedded rules)")

	// Maintenance and reporting flags
	deleteFile = flag.String("delete-file", "", "Delete every record imported from this filename")
	weeklyFor  = flag.String("weekly", "", "Print the weekly report for an account ID")
	weekEnding = flag.String("week-ending", "", "Week-ending date for -weekly (YYYY-MM-DD, default today)")

	// Server flag
	serve = flag.Bool("serve", false, "Run the HTTP API server")
)

func main() {
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, `treasury - bank statement ingestion for fund treasury reporting

Usage:
  treasury [flags]

Flags:
`)
		flag.PrintDefaults()
		fmt.Fprint(os.Stderr, `
Examples:
  # Import one Arbi spreadsheet
  treasury -import extrato.xlsx -account acct-123 -model arbi

  # Batch-import a directory tree ({dir}/{account-nickname}/file)
  treasury -scan ~/extratos

  # Roll back a bad upload
  treasury -delete-file extrato.xlsx

  # Weekly report
  treasury -weekly acct-123 -week-ending 2025-03-14

  # Run the API server
  treasury -serve -config config.yaml

`)
	}

	flag.Parse()

	if *versionFlag {
		fmt.Printf("treasury version %s\n", version)
		os.Exit(0)
	}

	if err := run(); err != nil {
		ui.Error(err.Error())
		os.Exit(1)
	}
}

func run() error {
	cfg := config.Default()
	if *configFile != "" {
		loaded, err := config.Load(*configFile)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if *strict {
		cfg.Strict = true
	}

	log := logger.New(*verbose)
	ctx := logger.WithContext(context.Background(), log)

	switch {
	case *importFile != "":
		return runImport(ctx, cfg)
	case *scanDir != "":
		return runScan(ctx, cfg)
	case *deleteFile != "":
		return runDeleteFile(ctx, cfg)
	case *weeklyFor != "":
		return runWeekly(ctx, cfg)
	case *serve:
		return runServe(ctx, cfg)
	default:
		flag.Usage()
		return fmt.Errorf("nothing to do: pass -import, -scan, -delete-file, -weekly or -serve")
	}
}

// openStore builds the configured store. The verifier is non-nil only for
// the Firestore backend, which carries Firebase Auth.
func openStore(ctx context.Context, cfg *config.Config) (store.Store, middleware.TokenVerifier, error) {
	switch cfg.Backend {
	case config.BackendFirestore:
		client, err := firestore.NewClient(ctx, cfg.ProjectID, cfg.Credentials)
		if err != nil {
			return nil, nil, err
		}
		return client, client.Auth, nil
	case config.BackendSQLite:
		st, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return st, nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}

func loadRules(cfg *config.Config) (*rules.Engine, error) {
	path := cfg.RulesFile
	if *rulesFile != "" {
		path = *rulesFile
	}
	if path != "" {
		return rules.LoadFromFile(path)
	}
	return rules.LoadEmbedded()
}

func newPipeline(ctx context.Context, cfg *config.Config) (*pipeline.Pipeline, store.Store, error) {
	st, _, err := openStore(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	engine, err := loadRules(cfg)
	if err != nil {
		st.Close()
		return nil, nil, err
	}
	return pipeline.New(registry.New(), st, engine, nil), st, nil
}

func runImport(ctx context.Context, cfg *config.Config) error {
	ui.Header("Treasury Import")

	if *accountID == "" {
		return fmt.Errorf("-import requires -account")
	}

	if *dryRun {
		return dryRunParse(ctx, *importFile)
	}

	p, st, err := newPipeline(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	ui.Step(1, 2, fmt.Sprintf("Importing %s", filepath.Base(*importFile)))

	f, err := os.Open(*importFile)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", *importFile, err)
	}
	defer f.Close()

	summary, err := p.Import(ctx, pipeline.ImportRequest{
		Reader:    f,
		Filename:  filepath.Base(*importFile),
		AccountID: *accountID,
		Model:     *model,
		Uploader:  *uploader,
		Strict:    cfg.Strict,
	})
	if err != nil {
		return err
	}

	ui.Step(2, 2, "Summary")
	printSummary(summary)
	return nil
}

func runScan(ctx context.Context, cfg *config.Config) error {
	ui.Header("Treasury Batch Import")

	ui.Step(1, 3, fmt.Sprintf("Scanning %s", *scanDir))
	files, err := scanner.New(*scanDir).Scan()
	if err != nil {
		return err
	}
	ui.Success(fmt.Sprintf("Found %d statement files", len(files)))

	if *dryRun {
		for _, file := range files {
			ui.Info(fmt.Sprintf("%s (account nickname: %s)", file.Path, file.AccountNickname))
		}
		fmt.Printf("Dry run complete. Would process %d files.\n", len(files))
		return nil
	}
	if len(files) == 0 {
		return fmt.Errorf("no statement files found in %s", *scanDir)
	}

	p, st, err := newPipeline(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	ui.Step(2, 3, "Resolving accounts")
	accounts, err := st.ListAccounts(ctx)
	if err != nil {
		return err
	}
	byNickname := make(map[string]string, len(accounts))
	for _, account := range accounts {
		byNickname[account.Nickname] = account.ID
	}

	ui.Step(3, 3, "Importing")
	var failures int
	for _, file := range files {
		acctID, ok := byNickname[file.AccountNickname]
		if !ok {
			ui.Warning(fmt.Sprintf("%s: no account with nickname %q, skipping", filepath.Base(file.Path), file.AccountNickname))
			failures++
			continue
		}

		f, err := os.Open(file.Path)
		if err != nil {
			ui.Warning(fmt.Sprintf("%s: %v", file.Path, err))
			failures++
			continue
		}

		summary, err := p.Import(ctx, pipeline.ImportRequest{
			Reader:    f,
			Filename:  filepath.Base(file.Path),
			AccountID: acctID,
			Model:     *model,
			Uploader:  *uploader,
			Strict:    cfg.Strict,
		})
		f.Close()
		if err != nil {
			ui.Warning(fmt.Sprintf("%s: %v", filepath.Base(file.Path), err))
			failures++
			continue
		}

		ui.Success(fmt.Sprintf("%s: %d new, %d duplicates, %d balances",
			filepath.Base(file.Path), summary.NewTransactions,
			summary.DuplicatesByLog+summary.DuplicatesByContent, summary.Balances))
	}

	if failures > 0 {
		return fmt.Errorf("%d of %d files failed", failures, len(files))
	}
	return nil
}

func runDeleteFile(ctx context.Context, cfg *config.Config) error {
	ui.Header("Delete File Records")

	p, st, err := newPipeline(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := p.DeleteFile(ctx, *deleteFile); err != nil {
		return err
	}
	ui.Success(fmt.Sprintf("Removed all records imported from %s", *deleteFile))
	return nil
}

func runWeekly(ctx context.Context, cfg *config.Config) error {
	st, _, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	end := time.Now().UTC()
	if *weekEnding != "" {
		end, err = time.Parse("2006-01-02", *weekEnding)
		if err != nil {
			return fmt.Errorf("invalid -week-ending (expected YYYY-MM-DD): %w", err)
		}
	}

	txns, err := st.ListTransactions(ctx, *weeklyFor)
	if err != nil {
		return err
	}

	rep := report.Weekly(txns, end)

	ui.Header(fmt.Sprintf("Weekly Report %s .. %s", rep.Start, rep.End))
	ui.Detail("Opening balance", fmt.Sprintf("%.2f", rep.OpeningBalance))
	ui.Detail("Inflows", fmt.Sprintf("%.2f", rep.Inflows))
	ui.Detail("Outflows", fmt.Sprintf("%.2f", rep.Outflows))
	ui.Detail("Net", fmt.Sprintf("%.2f", rep.Net))
	ui.Detail("Closing balance", fmt.Sprintf("%.2f", rep.ClosingBalance))
	ui.Detail("Liquidation in", fmt.Sprintf("%.2f", rep.LiquidationInflows))
	ui.Detail("Liquidation out", fmt.Sprintf("%.2f", rep.LiquidationOutflows))
	ui.Detail("Transactions", rep.TransactionCount)
	return nil
}

func runServe(ctx context.Context, cfg *config.Config) error {
	st, verifier, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}

	engine, err := loadRules(cfg)
	if err != nil {
		st.Close()
		return err
	}

	c := cache.New()
	p := pipeline.New(registry.New(), st, engine, c)
	srv := server.New(st, p, c, verifier)
	defer srv.Close()

	addr := fmt.Sprintf(":%d", cfg.Port)
	logger.FromContext(ctx).Info().
		Str("addr", addr).
		Str("backend", cfg.Backend).
		Msg("treasury API listening")

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return httpServer.ListenAndServe()
}

// dryRunParse parses a statement and prints what an import would see,
// without touching the store
func dryRunParse(ctx context.Context, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	header := make([]byte, 512)
	n, _ := f.Read(header)
	if _, err := f.Seek(0, 0); err != nil {
		return fmt.Errorf("failed to seek: %w", err)
	}

	reg := registry.New()
	var selected parser.Parser
	if *model != "" {
		selected, err = reg.Get(*model)
	} else {
		selected, err = reg.Detect(path, header[:n])
	}
	if err != nil {
		return err
	}

	meta, err := parser.NewMetadata(filepath.Base(path), time.Now())
	if err != nil {
		return err
	}
	meta.SetStrict(*strict)

	stmt, err := selected.Parse(ctx, f, meta)
	if err != nil {
		return err
	}

	ui.Info(fmt.Sprintf("Parser: %s", selected.Name()))
	ui.Detail("Transactions", len(stmt.Transactions))
	ui.Detail("Balances", len(stmt.Balances))
	ui.Detail("Rows skipped", stmt.Skipped.Total())
	fmt.Println("Dry run complete. Nothing written.")
	return nil
}

func printSummary(summary *pipeline.ImportSummary) {
	ui.Success(fmt.Sprintf("Imported %s", summary.Filename))
	ui.Detail("New transactions", summary.NewTransactions)
	ui.Detail("Duplicates (by log)", summary.DuplicatesByLog)
	ui.Detail("Duplicates (content)", summary.DuplicatesByContent)
	ui.Detail("Opening balances", summary.Balances)
	if summary.RowsSkipped > 0 {
		ui.Warning(fmt.Sprintf("%d rows skipped (bad date, amount or description)", summary.RowsSkipped))
	}
}
