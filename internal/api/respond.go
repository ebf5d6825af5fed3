package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"contractor-ledger-go/internal/ledger"
	"contractor-ledger-go/internal/store"

	"go.uber.org/zap"
)

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		zap.L().Warn("Failed to encode response", zap.Error(err))
	}
}

// writeError maps the error taxonomy onto HTTP statuses. Insufficient funds
// is an expected business outcome, reported as unprocessable content with a
// typed code so clients can branch on it.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: err.Error(), Code: "not_found"})
	case errors.Is(err, store.ErrInsufficientFunds):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: err.Error(), Code: "insufficient_funds"})
	case errors.Is(err, ledger.ErrValidation):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error(), Code: "validation"})
	case errors.Is(err, store.ErrBusy):
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: err.Error(), Code: "busy"})
	case errors.Is(err, store.ErrDuplicateOperation):
		writeJSON(w, http.StatusConflict, errorBody{Error: err.Error(), Code: "duplicate"})
	default:
		zap.L().Error("Request failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
	}
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorBody{Error: msg, Code: "validation"})
}

// decodeBody parses a single JSON object into dst and validates it.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		badRequest(w, "invalid request body")
		return false
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		badRequest(w, "request body must contain a single JSON object")
		return false
	}
	if err := s.validate.Struct(dst); err != nil {
		badRequest(w, err.Error())
		return false
	}
	return true
}
