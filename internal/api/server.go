package api

import (
	"net/http"
	"time"

	"contractor-ledger-go/internal/ledger"
	"contractor-ledger-go/internal/reconcile"
	"contractor-ledger-go/internal/store"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
)

// Server exposes the ledger contract over HTTP.
type Server struct {
	ledger   *ledger.Service
	store    store.LedgerStore
	engine   *reconcile.Engine
	validate *validator.Validate
}

func NewServer(ledgerService *ledger.Service, st store.LedgerStore, engine *reconcile.Engine) *Server {
	return &Server{
		ledger:   ledgerService,
		store:    st,
		engine:   engine,
		validate: validator.New(),
	}
}

// Router wires the exposed contract onto a chi router.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/accounts", s.handleCreateAccount)
		r.Get("/accounts", s.handleListAccounts)
		r.Get("/accounts/{accountId}/balance", s.handleGetBalance)
		r.Put("/accounts/{accountId}/commission", s.handleSetCommission)
		r.Delete("/accounts/{accountId}", s.handleDeactivateAccount)
		r.Post("/accounts/{accountId}/deposits", s.handleDeposit)
		r.Post("/accounts/{accountId}/withdrawals", s.handleWithdraw)
		r.Post("/accounts/{accountId}/exchange", s.handleExchange)
		r.Get("/accounts/{accountId}/operations", s.handleListOperations)

		r.Get("/operations/{operationId}", s.handleGetOperation)
		r.Patch("/operations/{operationId}", s.handleAmendOperation)
		r.Delete("/operations/{operationId}", s.handleDeleteOperation)

		r.Put("/rates/{date}", s.handleSetRate)
		r.Get("/rates", s.handleListRates)
		r.Delete("/rates/{date}", s.handleDeleteRate)

		r.Post("/reconciliation", s.handleReconcile)
		r.Get("/reports/daily-checks", s.handleDailyChecks)
	})

	return r
}
