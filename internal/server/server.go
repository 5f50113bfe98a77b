// Package server wires the treasury HTTP API together.
package server

import (
	"net/http"

	"github.com/rumor-ml/commons.systems/treasury/internal/cache"
	"github.com/rumor-ml/commons.systems/treasury/internal/handlers"
	"github.com/rumor-ml/commons.systems/treasury/internal/middleware"
	"github.com/rumor-ml/commons.systems/treasury/internal/pipeline"
	"github.com/rumor-ml/commons.systems/treasury/internal/store"
)

// Server hosts the treasury API
type Server struct {
	store store.Store
	mux   *http.ServeMux
}

// New creates a server over an already-open store. The verifier is nil
// when running without authentication (local sqlite development), in
// which case routes are exposed unprotected.
func New(st store.Store, p *pipeline.Pipeline, c *cache.Cache, verifier middleware.TokenVerifier) *Server {
	s := &Server{
		store: st,
		mux:   http.NewServeMux(),
	}
	s.setupRoutes(p, c, verifier)
	return s
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes(p *pipeline.Pipeline, c *cache.Cache, verifier middleware.TokenVerifier) {
	// Health check (no auth required)
	s.mux.HandleFunc("/health", handlers.HealthCheck)

	apiHandler := handlers.NewAPIHandler(s.store, p, c)

	protect := func(h http.HandlerFunc) http.Handler {
		if verifier == nil {
			return h
		}
		return middleware.NewAuthMiddleware(verifier).RequireAuth(h)
	}

	s.mux.Handle("/api/funds", protect(apiHandler.Funds))
	s.mux.Handle("/api/accounts", protect(apiHandler.Accounts))
	s.mux.Handle("/api/import", protect(apiHandler.Import))
	s.mux.Handle("/api/transactions", protect(apiHandler.Transactions))
	s.mux.Handle("/api/balances", protect(apiHandler.Balances))
	s.mux.Handle("/api/files", protect(apiHandler.Files))
	s.mux.Handle("/api/reports/cashflow", protect(apiHandler.Cashflow))
	s.mux.Handle("/api/reports/balance-series", protect(apiHandler.BalanceSeries))
	s.mux.Handle("/api/reports/weekly", protect(apiHandler.Weekly))
}

// Handler returns the HTTP handler with middleware applied
func (s *Server) Handler() http.Handler {
	return middleware.CORS(s.mux)
}

// Close closes the server resources
func (s *Server) Close() error {
	return s.store.Close()
}
