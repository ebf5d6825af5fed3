package api

import (
	"net/http"

	"contractor-ledger-go/internal/models"
	"contractor-ledger-go/internal/reconcile"

	"github.com/shopspring/decimal"
)

func (s *Server) handleReconcile(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Rate  string `json:"rate"`
		From  string `json:"from"` // YYYY-MM-DD, optional
		To    string `json:"to"`
		Actor string `json:"actor"`
	}
	if !s.decodeBody(w, r, &req) {
		return
	}

	params := reconcile.RunParams{Actor: req.Actor}
	if req.Rate != "" {
		rate, err := decimal.NewFromString(req.Rate)
		if err != nil || !rate.IsPositive() {
			badRequest(w, "rate must be a positive decimal number")
			return
		}
		params.Rate = rate
	}
	loc := s.ledger.Location()
	if req.From != "" {
		from, err := parseDate(req.From, loc)
		if err != nil {
			badRequest(w, "from must be a YYYY-MM-DD date")
			return
		}
		params.From = &from
	}
	if req.To != "" {
		to, err := parseDate(req.To, loc)
		if err != nil {
			badRequest(w, "to must be a YYYY-MM-DD date")
			return
		}
		params.To = &to
	}

	report, err := s.engine.Run(r.Context(), params)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toReportResponse(report))
}

func (s *Server) handleDailyChecks(w http.ResponseWriter, r *http.Request) {
	summary, err := s.ledger.DailyCheckSummary(r.Context(), r.URL.Query().Get("date"))
	if err != nil {
		writeError(w, err)
		return
	}

	type line struct {
		AccountId   string `json:"accountId"`
		AccountName string `json:"accountName"`
		Checks      int    `json:"checks"`
		AmountRub   string `json:"amountRub"`
	}
	lines := make([]line, len(summary.Lines))
	for i, l := range summary.Lines {
		lines[i] = line{
			AccountId:   l.AccountId,
			AccountName: l.AccountName,
			Checks:      l.Checks,
			AmountRub:   l.AmountRub.StringFixed(2),
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"date":        summary.Date,
		"lines":       lines,
		"totalChecks": summary.TotalChecks,
		"totalRub":    summary.TotalRub.StringFixed(2),
	})
}

type rateGroupResponse struct {
	Date       string   `json:"date"`
	Rate       string   `json:"rate"`
	Checks     int      `json:"checks"`
	AmountRub  string   `json:"amountRub"`
	GrossUsdt  string   `json:"grossUsdt"`
	Operations []string `json:"operations"`
}

type settlementResponse struct {
	AccountId       string              `json:"accountId"`
	AccountName     string              `json:"accountName"`
	Checks          int                 `json:"checks"`
	DebitedRub      string              `json:"debitedRub"`
	GrossUsdt       string              `json:"grossUsdt"`
	CommissionUsdt  string              `json:"commissionUsdt"`
	NetUsdt         string              `json:"netUsdt"`
	RateGroups      []rateGroupResponse `json:"rateGroups,omitempty"`
	Skipped         bool                `json:"skipped,omitempty"`
	SkipReason      string              `json:"skipReason,omitempty"`
	UnresolvedDates []string            `json:"unresolvedDates,omitempty"`
}

type reportResponse struct {
	From              string               `json:"from"`
	To                string               `json:"to"`
	Accounts          []settlementResponse `json:"accounts"`
	AccountsProcessed int                  `json:"accountsProcessed"`
	AccountsSkipped   int                  `json:"accountsSkipped"`
	TotalDebitedRub   string               `json:"totalDebitedRub"`
	TotalNetUsdt      string               `json:"totalNetUsdt"`
	TotalCommission   string               `json:"totalCommission"`
}

func toReportResponse(report *models.ReconciliationReport) reportResponse {
	resp := reportResponse{
		From:              report.From.Format(models.DateLayout),
		To:                report.To.AddDate(0, 0, -1).Format(models.DateLayout),
		AccountsProcessed: report.AccountsProcessed,
		AccountsSkipped:   report.AccountsSkipped,
		TotalDebitedRub:   report.TotalDebitedRub.StringFixed(2),
		TotalNetUsdt:      report.TotalNetUsdt.StringFixed(2),
		TotalCommission:   report.TotalCommission.StringFixed(2),
	}
	for _, settlement := range report.Accounts {
		sr := settlementResponse{
			AccountId:       settlement.AccountId,
			AccountName:     settlement.AccountName,
			Checks:          settlement.Checks,
			DebitedRub:      settlement.DebitedRub.StringFixed(2),
			GrossUsdt:       settlement.GrossUsdt.StringFixed(2),
			CommissionUsdt:  settlement.CommissionUsdt.StringFixed(2),
			NetUsdt:         settlement.NetUsdt.StringFixed(2),
			Skipped:         settlement.Skipped,
			SkipReason:      settlement.SkipReason,
			UnresolvedDates: settlement.UnresolvedDates,
		}
		for _, group := range settlement.RateGroups {
			sr.RateGroups = append(sr.RateGroups, rateGroupResponse{
				Date:       group.Date,
				Rate:       group.Rate.String(),
				Checks:     group.Checks,
				AmountRub:  group.AmountRub.StringFixed(2),
				GrossUsdt:  group.GrossUsdt.StringFixed(2),
				Operations: group.Operations,
			})
		}
		resp.Accounts = append(resp.Accounts, sr)
	}
	return resp
}
