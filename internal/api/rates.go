package api

import (
	"net/http"
	"strconv"
	"time"

	"contractor-ledger-go/internal/models"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

func (s *Server) handleSetRate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Rate string `json:"rate" validate:"required"`
	}
	if !s.decodeBody(w, r, &req) {
		return
	}
	rate, err := decimal.NewFromString(req.Rate)
	if err != nil {
		badRequest(w, "rate must be a decimal number")
		return
	}
	date := chi.URLParam(r, "date")
	if _, err := time.Parse(models.DateLayout, date); err != nil {
		badRequest(w, "date must be YYYY-MM-DD")
		return
	}

	if err := s.store.UpsertRate(r.Context(), date, rate); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListRates(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			badRequest(w, "limit must be an integer")
			return
		}
		limit = parsed
	}

	rates, err := s.store.ListRates(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}

	type rateResponse struct {
		Date string `json:"date"`
		Rate string `json:"rate"`
	}
	resp := make([]rateResponse, len(rates))
	for i, rate := range rates {
		resp[i] = rateResponse{Date: rate.ExchangeDate, Rate: rate.Rate.String()}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDeleteRate(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteRate(r.Context(), chi.URLParam(r, "date")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
