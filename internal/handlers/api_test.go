package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rumor-ml/commons.systems/treasury/internal/cache"
	"github.com/rumor-ml/commons.systems/treasury/internal/domain"
	"github.com/rumor-ml/commons.systems/treasury/internal/pipeline"
	"github.com/rumor-ml/commons.systems/treasury/internal/registry"
	"github.com/rumor-ml/commons.systems/treasury/internal/rules"
	"github.com/rumor-ml/commons.systems/treasury/internal/sqlite"
)

func newTestHandler(t *testing.T) (*APIHandler, *domain.Account) {
	t.Helper()

	st, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	ctx := context.Background()
	fund, err := domain.NewFund("FIDC Teste", "", "")
	require.NoError(t, err)
	require.NoError(t, st.CreateFund(ctx, fund))

	account, err := domain.NewAccount(fund.ID, "arbi", "0001", "12345-6", "conta arbi")
	require.NoError(t, err)
	require.NoError(t, st.CreateAccount(ctx, account))

	engine, err := rules.LoadEmbedded()
	require.NoError(t, err)

	c := cache.New()
	p := pipeline.New(registry.New(), st, engine, c)
	return NewAPIHandler(st, p, c), account
}

func multipartUpload(t *testing.T, filename, content string, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)

	for k, v := range fields {
		require.NoError(t, writer.WriteField(k, v))
	}
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func doImport(t *testing.T, h *APIHandler, accountID string) *httptest.ResponseRecorder {
	t.Helper()
	csv := "data,descricao,valor\n01/03/2025,TED recebida,1000.00\n02/03/2025,Liquidação,-500.00\n"
	body, contentType := multipartUpload(t, "marco.csv", csv, map[string]string{
		"acct_id": accountID,
		"model":   "csv",
	})

	req := httptest.NewRequest(http.MethodPost, "/api/import", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	h.Import(w, req)
	return w
}

func TestHealthCheck(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	HealthCheck(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
}

func TestFundsEndpoint(t *testing.T) {
	h, _ := newTestHandler(t)

	body := strings.NewReader(`{"name":"FIDC Novo","cnpj":"00.000.000/0001-00"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/funds", body)
	w := httptest.NewRecorder()
	h.Funds(w, req)
	require.Equal(t, http.StatusCreated, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/funds", nil)
	w = httptest.NewRecorder()
	h.Funds(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var funds []*domain.Fund
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &funds))
	assert.Len(t, funds, 2)
}

func TestFundsEndpoint_RejectsEmptyName(t *testing.T) {
	h, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/api/funds", strings.NewReader(`{"name":""}`))
	w := httptest.NewRecorder()
	h.Funds(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAccountsEndpoint(t *testing.T) {
	h, account := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/accounts", nil)
	w := httptest.NewRecorder()
	h.Accounts(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var accounts []*domain.Account
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &accounts))
	require.Len(t, accounts, 1)
	assert.Equal(t, account.ID, accounts[0].ID)
}

func TestImportEndpoint(t *testing.T) {
	h, account := newTestHandler(t)

	w := doImport(t, h, account.ID)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var summary pipeline.ImportSummary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &summary))
	assert.Equal(t, 2, summary.NewTransactions)

	// Transactions are now queryable.
	req := httptest.NewRequest(http.MethodGet, "/api/transactions?acct_id="+account.ID, nil)
	rw := httptest.NewRecorder()
	h.Transactions(rw, req)
	require.Equal(t, http.StatusOK, rw.Code)

	var txns []*domain.Transaction
	require.NoError(t, json.Unmarshal(rw.Body.Bytes(), &txns))
	assert.Len(t, txns, 2)
}

func TestImportEndpoint_UnknownAccount(t *testing.T) {
	h, _ := newTestHandler(t)

	w := doImport(t, h, "missing")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestImportEndpoint_MissingFile(t *testing.T) {
	h, account := newTestHandler(t)

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	require.NoError(t, writer.WriteField("acct_id", account.ID))
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/import", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	w := httptest.NewRecorder()
	h.Import(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestFilesEndpoint(t *testing.T) {
	h, account := newTestHandler(t)
	doImport(t, h, account.ID)

	req := httptest.NewRequest(http.MethodGet, "/api/files", nil)
	w := httptest.NewRecorder()
	h.Files(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var entries []*domain.ImportLogEntry
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &entries))
	assert.Len(t, entries, 2)

	req = httptest.NewRequest(http.MethodDelete, "/api/files?filename=marco.csv", nil)
	w = httptest.NewRecorder()
	h.Files(w, req)
	require.Equal(t, http.StatusNoContent, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/transactions?acct_id="+account.ID, nil)
	w = httptest.NewRecorder()
	h.Transactions(w, req)
	var txns []*domain.Transaction
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &txns))
	assert.Empty(t, txns)
}

func TestReportEndpoints(t *testing.T) {
	h, account := newTestHandler(t)
	doImport(t, h, account.ID)

	req := httptest.NewRequest(http.MethodGet, "/api/reports/cashflow?acct_id="+account.ID, nil)
	w := httptest.NewRecorder()
	h.Cashflow(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var cf struct {
		Inflows  float64 `json:"inflows"`
		Outflows float64 `json:"outflows"`
		Net      float64 `json:"net"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &cf))
	assert.Equal(t, 1000.0, cf.Inflows)
	assert.Equal(t, -500.0, cf.Outflows)
	assert.Equal(t, 500.0, cf.Net)

	req = httptest.NewRequest(http.MethodGet, "/api/reports/balance-series?acct_id="+account.ID, nil)
	w = httptest.NewRecorder()
	h.BalanceSeries(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/reports/weekly?acct_id="+account.ID+"&week_ending=2025-03-05", nil)
	w = httptest.NewRecorder()
	h.Weekly(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var weekly struct {
		Start               string  `json:"start"`
		LiquidationOutflows float64 `json:"liquidation_outflows"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &weekly))
	assert.Equal(t, "2025-02-27", weekly.Start)
	assert.Equal(t, -500.0, weekly.LiquidationOutflows)
}

func TestReportEndpoints_AllAccounts(t *testing.T) {
	h, account := newTestHandler(t)
	doImport(t, h, account.ID)

	// Without acct_id the reports aggregate every account.
	req := httptest.NewRequest(http.MethodGet, "/api/reports/cashflow", nil)
	w := httptest.NewRecorder()
	h.Cashflow(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var cf struct {
		Inflows  float64 `json:"inflows"`
		Outflows float64 `json:"outflows"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &cf))
	assert.Equal(t, 1000.0, cf.Inflows)
	assert.Equal(t, -500.0, cf.Outflows)

	req = httptest.NewRequest(http.MethodGet, "/api/reports/weekly?week_ending=2025-03-05", nil)
	w = httptest.NewRecorder()
	h.Weekly(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var weekly struct {
		TransactionCount int `json:"transaction_count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &weekly))
	assert.Equal(t, 2, weekly.TransactionCount)
}

func TestWeekly_InvalidDate(t *testing.T) {
	h, account := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/reports/weekly?acct_id="+account.ID+"&week_ending=05/03/2025", nil)
	w := httptest.NewRecorder()
	h.Weekly(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMissingAccountIDQuery(t *testing.T) {
	h, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/transactions", nil)
	w := httptest.NewRecorder()
	h.Transactions(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
