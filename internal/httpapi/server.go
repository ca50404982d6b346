// Package httpapi wires the HTTP surface of the ledger service.
// It keeps handlers thin, delegating business rules to the service layer.
package httpapi

import (
	"log/slog"
	"net/http"

	chi "github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"

	"github.com/tinoosan/bankledger/internal/i18n"
	"github.com/tinoosan/bankledger/internal/service/account"
	"github.com/tinoosan/bankledger/internal/service/query"
	"github.com/tinoosan/bankledger/internal/service/transfer"
)

// Deps groups the collaborators the HTTP layer needs.
type Deps struct {
	Accounts    account.Service
	Transfers   transfer.Service
	Queries     query.Service
	Idempotency IdempotencyStore
	Catalog     *i18n.Catalog
	// Ready lists the backends probed by /readyz.
	Ready []ReadyChecker
	// CORSAllowedOrigins enables CORS when non-empty.
	CORSAllowedOrigins []string
}

// Server wires handlers and middleware using Chi.
type Server struct {
	accountSvc  account.Service
	transferSvc transfer.Service
	querySvc    query.Service
	idemStore   IdempotencyStore
	catalog     *i18n.Catalog
	ready       []ReadyChecker
	validate    *validator.Validate
	log         *slog.Logger
	rt          *chi.Mux
}

// New constructs the HTTP server with routes and middleware.
// The logger is used by request logging, panic recovery and error reporting.
func New(d Deps, logger *slog.Logger) *Server {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(requestLogger(logger))
	r.Use(recoverer(logger))
	r.Use(metricsMiddleware)
	if len(d.CORSAllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: d.CORSAllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Accept-Language", "Content-Type", "Idempotency-Key", "X-Request-Id"},
			ExposedHeaders: []string{"X-Request-Id"},
			MaxAge:         300,
		}))
	}

	s := &Server{
		accountSvc:  d.Accounts,
		transferSvc: d.Transfers,
		querySvc:    d.Queries,
		idemStore:   d.Idempotency,
		catalog:     d.Catalog,
		ready:       d.Ready,
		validate:    newValidator(),
		log:         logger,
		rt:          r,
	}
	s.routes()
	return s
}

// Handler exposes the configured http.Handler.
func (s *Server) Handler() http.Handler { return s.rt }

// routes declares the public HTTP API endpoints and attaches any per-route middleware.
func (s *Server) routes() {
	// Users (v1)
	s.rt.With(s.validatePostUser()).Post("/v1/users", s.postUser)
	s.rt.Get("/v1/users", s.listUsers)
	s.rt.Get("/v1/users/{id}", s.getUser)
	// Accounts (v1)
	s.rt.With(s.validatePostAccount()).Post("/v1/accounts", s.postAccount)
	s.rt.Get("/v1/accounts", s.listAccounts)
	s.rt.Get("/v1/accounts/{id}", s.getAccount)
	s.rt.Get("/v1/accounts/{id}/transactions", s.listAccountTransactions)
	// Transfers (v1)
	s.rt.With(s.validatePostTransfer()).Post("/v1/transfers", s.postTransfer)
	s.rt.Get("/v1/transactions/{id}", s.getTransaction)
	// Health and metrics (unversioned)
	s.rt.Get("/healthz", s.healthz)
	s.rt.Get("/readyz", s.readyz)
	s.rt.Method(http.MethodGet, "/metrics", metricsHandler())
}
