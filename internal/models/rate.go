package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the calendar-date key format used by the rate table.
const DateLayout = "2006-01-02"

// Rate is one operator-supplied exchange rate for one calendar date.
type Rate struct {
	ExchangeDate string          `db:"exchange_date"` // YYYY-MM-DD
	Rate         decimal.Decimal `db:"rate"`
	CreatedAt    time.Time       `db:"created_at"`
}
