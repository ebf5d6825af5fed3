package api

import (
	"net/http"
	"time"

	"contractor-ledger-go/internal/ledger"
	"contractor-ledger-go/internal/models"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

type operationResponse struct {
	OperationId  string `json:"operationId"`
	AccountId    string `json:"accountId"`
	ActorUserId  int64  `json:"actorUserId,omitempty"`
	ActorLabel   string `json:"actorLabel,omitempty"`
	Type         string `json:"type"`
	Amount       string `json:"amount"`
	Currency     string `json:"currency"`
	ExchangeRate string `json:"exchangeRate,omitempty"`
	Payer        string `json:"payer,omitempty"`
	FileRef      string `json:"fileRef,omitempty"`
	Description  string `json:"description,omitempty"`
	AuditNote    string `json:"auditNote,omitempty"`
	Summary      string `json:"summary"`
	CreatedAt    string `json:"createdAt"`
}

func toOperationResponse(op *models.Operation) operationResponse {
	resp := operationResponse{
		OperationId: op.OperationId,
		AccountId:   op.AccountId,
		ActorUserId: op.ActorUserId,
		ActorLabel:  op.ActorLabel,
		Type:        op.Type,
		Amount:      op.Amount.StringFixed(2),
		Currency:    op.Currency,
		Payer:       op.Payer,
		FileRef:     op.FileRef,
		Description: op.Description,
		AuditNote:   op.AuditNote,
		Summary:     op.Summary(),
		CreatedAt:   op.CreatedAt.Format(time.RFC3339),
	}
	if op.Rated {
		resp.ExchangeRate = op.ExchangeRate.String()
	}
	return resp
}

func toOperationResponses(operations []models.Operation) []operationResponse {
	resp := make([]operationResponse, len(operations))
	for i := range operations {
		resp[i] = toOperationResponse(&operations[i])
	}
	return resp
}

func (s *Server) handleGetOperation(w http.ResponseWriter, r *http.Request) {
	operation, err := s.ledger.GetOperation(r.Context(), chi.URLParam(r, "operationId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOperationResponse(operation))
}

func (s *Server) handleAmendOperation(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Amount      *string `json:"amount"`
		Rate        *string `json:"rate"`
		Description *string `json:"description"`
		Payer       *string `json:"payer"`
		Timestamp   *string `json:"timestamp"` // RFC 3339
	}
	if !s.decodeBody(w, r, &req) {
		return
	}

	params := ledger.AmendParams{
		OperationId: chi.URLParam(r, "operationId"),
		Description: req.Description,
		Payer:       req.Payer,
	}
	if req.Amount != nil {
		amount, err := decimal.NewFromString(*req.Amount)
		if err != nil {
			badRequest(w, "amount must be a decimal number")
			return
		}
		params.Amount = &amount
	}
	if req.Rate != nil {
		rate, err := decimal.NewFromString(*req.Rate)
		if err != nil {
			badRequest(w, "rate must be a decimal number")
			return
		}
		params.Rate = &rate
	}
	if req.Timestamp != nil {
		ts, err := time.Parse(time.RFC3339, *req.Timestamp)
		if err != nil {
			badRequest(w, "timestamp must be RFC 3339")
			return
		}
		params.Timestamp = &ts
	}

	if err := s.ledger.AmendOperation(r.Context(), params); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteOperation(w http.ResponseWriter, r *http.Request) {
	result, err := s.ledger.DeleteOperation(r.Context(), chi.URLParam(r, "operationId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"operationId": result.OperationId,
		"accountId":   result.AccountId,
		"balanceRub":  result.BalanceRub.StringFixed(2),
		"balanceUsdt": result.BalanceUsdt.StringFixed(2),
	})
}
