// Package handlers implements the treasury HTTP API.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rumor-ml/commons.systems/treasury/internal/cache"
	"github.com/rumor-ml/commons.systems/treasury/internal/domain"
	"github.com/rumor-ml/commons.systems/treasury/internal/logger"
	"github.com/rumor-ml/commons.systems/treasury/internal/middleware"
	"github.com/rumor-ml/commons.systems/treasury/internal/pipeline"
	"github.com/rumor-ml/commons.systems/treasury/internal/report"
	"github.com/rumor-ml/commons.systems/treasury/internal/store"
)

// maxUploadBytes caps statement uploads at 32 MiB
const maxUploadBytes = 32 << 20

// APIHandler handles API requests
type APIHandler struct {
	store    store.Store
	pipeline *pipeline.Pipeline
	cache    *cache.Cache
}

// NewAPIHandler creates a new API handler
func NewAPIHandler(st store.Store, p *pipeline.Pipeline, c *cache.Cache) *APIHandler {
	return &APIHandler{store: st, pipeline: p, cache: c}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

// HealthCheck handles GET /health
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(HealthResponse{
		Status:  "ok",
		Service: "treasury-api",
	})
}

// Funds handles GET and POST /api/funds
func (h *APIHandler) Funds(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		funds, err := cache.GetOrLoad(h.cache, "funds", func() ([]*domain.Fund, error) {
			return h.store.ListFunds(r.Context())
		})
		if err != nil {
			h.serverError(w, r, "Failed to fetch funds", err)
			return
		}
		writeJSON(w, r, funds)

	case http.MethodPost:
		var body struct {
			Name          string `json:"name"`
			CNPJ          string `json:"cnpj"`
			Administrator string `json:"administrator"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		fund, err := domain.NewFund(body.Name, body.CNPJ, body.Administrator)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := h.store.CreateFund(r.Context(), fund); err != nil {
			h.serverError(w, r, "Failed to create fund", err)
			return
		}
		h.cache.InvalidateAll()
		writeJSONStatus(w, r, http.StatusCreated, fund)

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// Accounts handles GET and POST /api/accounts
func (h *APIHandler) Accounts(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		accounts, err := cache.GetOrLoad(h.cache, "accounts", func() ([]*domain.Account, error) {
			return h.store.ListAccounts(r.Context())
		})
		if err != nil {
			h.serverError(w, r, "Failed to fetch accounts", err)
			return
		}
		writeJSON(w, r, accounts)

	case http.MethodPost:
		var body struct {
			FundID   string `json:"fund_id"`
			Bank     string `json:"bank"`
			Agency   string `json:"agency"`
			Number   string `json:"number"`
			Nickname string `json:"nickname"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		account, err := domain.NewAccount(body.FundID, body.Bank, body.Agency, body.Number, body.Nickname)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := h.store.CreateAccount(r.Context(), account); err != nil {
			h.serverError(w, r, "Failed to create account", err)
			return
		}
		h.cache.InvalidateAll()
		writeJSONStatus(w, r, http.StatusCreated, account)

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// Import handles POST /api/import with a multipart body: the statement
// file plus acct_id and optional model and strict fields. The uploader
// identity comes from the verified token.
func (h *APIHandler) Import(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		http.Error(w, "Invalid multipart body", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "Missing statement file", http.StatusBadRequest)
		return
	}
	defer file.Close()

	accountID := r.FormValue("acct_id")
	if accountID == "" {
		http.Error(w, "Missing acct_id", http.StatusBadRequest)
		return
	}

	uploader, _ := middleware.GetUploader(r.Context())

	summary, err := h.pipeline.Import(r.Context(), pipeline.ImportRequest{
		Reader:    file,
		Filename:  header.Filename,
		AccountID: accountID,
		Model:     r.FormValue("model"),
		Uploader:  uploader,
		Strict:    r.FormValue("strict") == "true",
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, "Unknown account", http.StatusNotFound)
			return
		}
		logger.FromContext(r.Context()).Error().Err(err).Str("file", header.Filename).Msg("import failed")
		http.Error(w, "Import failed: "+err.Error(), http.StatusUnprocessableEntity)
		return
	}

	writeJSON(w, r, summary)
}

// Transactions handles GET /api/transactions?acct_id=
func (h *APIHandler) Transactions(w http.ResponseWriter, r *http.Request) {
	accountID := r.URL.Query().Get("acct_id")
	if accountID == "" {
		http.Error(w, "Missing acct_id", http.StatusBadRequest)
		return
	}

	txns, err := cache.GetOrLoad(h.cache, "transactions:"+accountID, func() ([]*domain.Transaction, error) {
		return h.store.ListTransactions(r.Context(), accountID)
	})
	if err != nil {
		h.serverError(w, r, "Failed to fetch transactions", err)
		return
	}
	writeJSON(w, r, txns)
}

// Balances handles GET /api/balances?acct_id=
func (h *APIHandler) Balances(w http.ResponseWriter, r *http.Request) {
	accountID := r.URL.Query().Get("acct_id")
	if accountID == "" {
		http.Error(w, "Missing acct_id", http.StatusBadRequest)
		return
	}

	balances, err := cache.GetOrLoad(h.cache, "balances:"+accountID, func() ([]*domain.Balance, error) {
		return h.store.ListBalances(r.Context(), accountID)
	})
	if err != nil {
		h.serverError(w, r, "Failed to fetch balances", err)
		return
	}
	writeJSON(w, r, balances)
}

// Files handles GET /api/files (the import audit log) and DELETE
// /api/files?filename= (roll back one upload)
func (h *APIHandler) Files(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		entries, err := cache.GetOrLoad(h.cache, "import-log", func() ([]*domain.ImportLogEntry, error) {
			return h.store.ListImportLog(r.Context())
		})
		if err != nil {
			h.serverError(w, r, "Failed to fetch import log", err)
			return
		}
		writeJSON(w, r, entries)

	case http.MethodDelete:
		filename := r.URL.Query().Get("filename")
		if filename == "" {
			http.Error(w, "Missing filename", http.StatusBadRequest)
			return
		}
		if err := h.pipeline.DeleteFile(r.Context(), filename); err != nil {
			h.serverError(w, r, "Failed to delete file records", err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// Cashflow handles GET /api/reports/cashflow?acct_id=. Omitting acct_id
// aggregates across all accounts.
func (h *APIHandler) Cashflow(w http.ResponseWriter, r *http.Request) {
	txns, ok := h.accountTransactions(w, r)
	if !ok {
		return
	}
	writeJSON(w, r, report.ComputeCashflow(txns))
}

// BalanceSeries handles GET /api/reports/balance-series?acct_id=.
// Omitting acct_id aggregates across all accounts.
func (h *APIHandler) BalanceSeries(w http.ResponseWriter, r *http.Request) {
	txns, ok := h.accountTransactions(w, r)
	if !ok {
		return
	}
	writeJSON(w, r, report.BalanceSeries(txns))
}

// Weekly handles GET /api/reports/weekly?acct_id=&week_ending=YYYY-MM-DD.
// week_ending defaults to today; omitting acct_id aggregates across all
// accounts.
func (h *APIHandler) Weekly(w http.ResponseWriter, r *http.Request) {
	txns, ok := h.accountTransactions(w, r)
	if !ok {
		return
	}

	weekEnding := time.Now().UTC()
	if raw := r.URL.Query().Get("week_ending"); raw != "" {
		parsed, err := time.Parse(domain.DateLayout, raw)
		if err != nil {
			http.Error(w, "Invalid week_ending (expected YYYY-MM-DD)", http.StatusBadRequest)
			return
		}
		weekEnding = parsed
	}

	writeJSON(w, r, report.Weekly(txns, weekEnding))
}

// accountTransactions loads the transactions named by the acct_id query
// parameter, or every account's transactions when it is absent (the
// dashboard aggregate view)
func (h *APIHandler) accountTransactions(w http.ResponseWriter, r *http.Request) ([]*domain.Transaction, bool) {
	accountID := r.URL.Query().Get("acct_id")

	var txns []*domain.Transaction
	var err error
	if accountID == "" {
		txns, err = cache.GetOrLoad(h.cache, "transactions:all", func() ([]*domain.Transaction, error) {
			return h.store.ListAllTransactions(r.Context())
		})
	} else {
		txns, err = cache.GetOrLoad(h.cache, "transactions:"+accountID, func() ([]*domain.Transaction, error) {
			return h.store.ListTransactions(r.Context(), accountID)
		})
	}
	if err != nil {
		h.serverError(w, r, "Failed to fetch transactions", err)
		return nil, false
	}
	return txns, true
}

func (h *APIHandler) serverError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	logger.FromContext(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg(msg)
	http.Error(w, msg, http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, r *http.Request, v any) {
	writeJSONStatus(w, r, http.StatusOK, v)
}

func writeJSONStatus(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.FromContext(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("failed to encode response")
	}
}
