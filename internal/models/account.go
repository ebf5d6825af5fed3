package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account represents a contractor's running balance in both currencies
type Account struct {
	Id                string          `db:"id"`
	Name              string          `db:"name"`
	BalanceRub        decimal.Decimal `db:"balance_rub"`
	BalanceUsdt       decimal.Decimal `db:"balance_usdt"`
	CommissionPercent decimal.Decimal `db:"commission_percent"`
	Active            bool            `db:"active"`
	CreatedAt         time.Time       `db:"created_at"`
	UpdatedAt         time.Time       `db:"updated_at"`
}

// BalanceSummary is the balance view returned to callers, including the
// commission charged over the queried period.
type BalanceSummary struct {
	AccountId         string
	Name              string
	BalanceRub        decimal.Decimal
	BalanceUsdt       decimal.Decimal
	CommissionPercent decimal.Decimal
	CommissionCharged decimal.Decimal
}
