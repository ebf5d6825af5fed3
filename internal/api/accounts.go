package api

import (
	"net/http"
	"strconv"
	"time"

	"contractor-ledger-go/internal/ledger"
	"contractor-ledger-go/internal/models"
	"contractor-ledger-go/internal/store"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

type accountResponse struct {
	Id                string `json:"id"`
	Name              string `json:"name"`
	BalanceRub        string `json:"balanceRub"`
	BalanceUsdt       string `json:"balanceUsdt"`
	CommissionPercent string `json:"commissionPercent"`
	Active            bool   `json:"active"`
}

func toAccountResponse(a *models.Account) accountResponse {
	return accountResponse{
		Id:                a.Id,
		Name:              a.Name,
		BalanceRub:        a.BalanceRub.StringFixed(2),
		BalanceUsdt:       a.BalanceUsdt.StringFixed(2),
		CommissionPercent: a.CommissionPercent.String(),
		Active:            a.Active,
	}
}

func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name" validate:"required"`
	}
	if !s.decodeBody(w, r, &req) {
		return
	}

	account, err := s.ledger.CreateAccount(r.Context(), req.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAccountResponse(account))
}

func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := s.ledger.ListAccounts(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	resp := make([]accountResponse, len(accounts))
	for i := range accounts {
		resp[i] = toAccountResponse(&accounts[i])
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetBalance(w http.ResponseWriter, r *http.Request) {
	summary, err := s.ledger.BalanceSummary(r.Context(), chi.URLParam(r, "accountId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"accountId":         summary.AccountId,
		"name":              summary.Name,
		"balanceRub":        summary.BalanceRub.StringFixed(2),
		"balanceUsdt":       summary.BalanceUsdt.StringFixed(2),
		"commissionPercent": summary.CommissionPercent.String(),
		"commissionCharged": summary.CommissionCharged.StringFixed(2),
	})
}

func (s *Server) handleSetCommission(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Percent string `json:"percent" validate:"required"`
	}
	if !s.decodeBody(w, r, &req) {
		return
	}
	percent, err := decimal.NewFromString(req.Percent)
	if err != nil {
		badRequest(w, "percent must be a decimal number")
		return
	}

	if err := s.ledger.SetCommission(r.Context(), chi.URLParam(r, "accountId"), percent); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeactivateAccount(w http.ResponseWriter, r *http.Request) {
	if err := s.ledger.DeactivateAccount(r.Context(), chi.URLParam(r, "accountId")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type moneyRequest struct {
	Amount      string `json:"amount" validate:"required"`
	Currency    string `json:"currency" validate:"required,oneof=RUB USDT"`
	ActorUserId int64  `json:"actorUserId"`
	ActorLabel  string `json:"actorLabel"`
	Description string `json:"description"`
	// Check-deposit metadata
	Check   bool   `json:"check"`
	Payer   string `json:"payer"`
	FileRef string `json:"fileRef"`
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	var req moneyRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		badRequest(w, "amount must be a decimal number")
		return
	}

	operationId, err := s.ledger.Deposit(r.Context(), ledger.DepositParams{
		AccountId:   chi.URLParam(r, "accountId"),
		Actor:       ledger.Actor{UserId: req.ActorUserId, Label: req.ActorLabel},
		Amount:      amount,
		Currency:    req.Currency,
		Check:       req.Check,
		Payer:       req.Payer,
		FileRef:     req.FileRef,
		Description: req.Description,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"operationId": operationId})
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	var req moneyRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		badRequest(w, "amount must be a decimal number")
		return
	}

	operationId, err := s.ledger.Withdraw(r.Context(), chi.URLParam(r, "accountId"),
		ledger.Actor{UserId: req.ActorUserId, Label: req.ActorLabel}, amount, req.Currency, req.Description)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"operationId": operationId})
}

func (s *Server) handleExchange(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AmountRub   string `json:"amountRub" validate:"required"`
		Rate        string `json:"rate" validate:"required"`
		ActorUserId int64  `json:"actorUserId"`
		ActorLabel  string `json:"actorLabel"`
	}
	if !s.decodeBody(w, r, &req) {
		return
	}
	amountRub, err := decimal.NewFromString(req.AmountRub)
	if err != nil {
		badRequest(w, "amountRub must be a decimal number")
		return
	}
	rate, err := decimal.NewFromString(req.Rate)
	if err != nil {
		badRequest(w, "rate must be a decimal number")
		return
	}

	result, err := s.ledger.Exchange(r.Context(), chi.URLParam(r, "accountId"),
		ledger.Actor{UserId: req.ActorUserId, Label: req.ActorLabel}, amountRub, rate)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{
		"operationId":           result.OperationId,
		"commissionOperationId": result.CommissionOperationId,
		"amountRub":             result.AmountRub.StringFixed(2),
		"rate":                  result.Rate.String(),
		"amountUsdt":            result.AmountUsdt.StringFixed(2),
		"commissionUsdt":        result.CommissionUsdt.StringFixed(2),
		"netUsdt":               result.NetUsdt.StringFixed(2),
	})
}

func (s *Server) handleListOperations(w http.ResponseWriter, r *http.Request) {
	params := store.ListOperationsParams{
		AccountId:     chi.URLParam(r, "accountId"),
		IncludeChecks: r.URL.Query().Get("includeChecks") == "true",
	}
	if v := r.URL.Query().Get("type"); v != "" {
		params.Types = []string{v}
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil {
			badRequest(w, "limit must be an integer")
			return
		}
		params.Limit = limit
	}
	var ok bool
	if params.From, ok = parseDateParam(w, r, "from", s.ledger.Location()); !ok {
		return
	}
	if params.To, ok = parseDateParam(w, r, "to", s.ledger.Location()); !ok {
		return
	}
	if params.To != nil {
		next := params.To.AddDate(0, 0, 1) // inclusive end date
		params.To = &next
	}

	operations, err := s.ledger.ListOperations(r.Context(), params)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOperationResponses(operations))
}

func parseDate(v string, loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(models.DateLayout, v, loc)
}

func parseDateParam(w http.ResponseWriter, r *http.Request, name string, loc *time.Location) (*time.Time, bool) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return nil, true
	}
	t, err := time.ParseInLocation(models.DateLayout, v, loc)
	if err != nil {
		badRequest(w, name+" must be a YYYY-MM-DD date")
		return nil, false
	}
	return &t, true
}
