package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// RateGroup is the slice of an account's settlement attributable to one
// calendar date's rate. Checks from different days are never blended.
type RateGroup struct {
	Date       string // YYYY-MM-DD
	Rate       decimal.Decimal
	Checks     int
	AmountRub  decimal.Decimal
	GrossUsdt  decimal.Decimal
	Operations []string // settled operation ids
}

// AccountSettlement is the per-account section of a reconciliation report.
type AccountSettlement struct {
	AccountId       string
	AccountName     string
	Checks          int
	DebitedRub      decimal.Decimal
	GrossUsdt       decimal.Decimal
	CommissionUsdt  decimal.Decimal
	NetUsdt         decimal.Decimal
	RateGroups      []RateGroup
	Skipped         bool     // insufficient funds, nothing applied
	SkipReason      string
	UnresolvedDates []string // dates with unrated checks but no rate
}

// ReconciliationReport is the structured outcome of one batch run.
type ReconciliationReport struct {
	From              time.Time
	To                time.Time
	Accounts          []AccountSettlement
	AccountsProcessed int
	AccountsSkipped   int
	TotalDebitedRub   decimal.Decimal
	TotalNetUsdt      decimal.Decimal
	TotalCommission   decimal.Decimal
}

// CheckSummaryLine is one account's slice of the daily check report.
type CheckSummaryLine struct {
	AccountId   string
	AccountName string
	Checks      int
	AmountRub   decimal.Decimal
}

// DailyCheckSummary aggregates one calendar day's check deposits.
type DailyCheckSummary struct {
	Date        string // YYYY-MM-DD
	Lines       []CheckSummaryLine
	TotalChecks int
	TotalRub    decimal.Decimal
}
