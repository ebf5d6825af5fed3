package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Supported currencies
const (
	CurrencyRub  = "RUB"
	CurrencyUsdt = "USDT"
)

// Operation types
const (
	OpDepositRub      = "deposit_rub"
	OpDepositUsdt     = "deposit_usdt"
	OpDepositRubCheck = "deposit_rub_check"
	OpWithdrawRub     = "withdraw_rub"
	OpWithdrawUsdt    = "withdraw_usdt"
	OpExchange        = "exchange_rub_to_usdt"
	OpCommission      = "commission"
)

// Operation represents one immutable-by-default ledger entry. Structured
// sub-fields (payer, file reference, audit trail) are first-class columns;
// the human-readable summary is derived, never stored.
type Operation struct {
	OperationId  string          `db:"operation_id"`
	AccountId    string          `db:"account_id"`
	ActorUserId  int64           `db:"actor_user_id"`
	ActorLabel   string          `db:"actor_label"`
	Type         string          `db:"operation_type"`
	Amount       decimal.Decimal `db:"amount"`
	Currency     string          `db:"currency"`
	ExchangeRate decimal.Decimal `db:"exchange_rate"`
	Rated        bool            // true once ExchangeRate is assigned
	Payer        string          `db:"payer"`
	FileRef      string          `db:"file_ref"`
	Description  string          `db:"description"`
	AuditNote    string          `db:"audit_note"`
	CreatedAt    time.Time       `db:"created_at"`
}

// Summary renders the derived human-readable line for an operation.
func (o Operation) Summary() string {
	s := fmt.Sprintf("%s %s %s", o.Type, o.Amount.StringFixed(2), o.Currency)
	if o.Rated {
		s += fmt.Sprintf(" @ %s", o.ExchangeRate.String())
	}
	if o.Payer != "" {
		s += fmt.Sprintf(" (payer: %s)", o.Payer)
	}
	return s
}

// ExchangeResult is returned by a currency exchange: the gross USDT value,
// the commission taken on the USDT leg, and the net amount credited.
type ExchangeResult struct {
	OperationId           string
	CommissionOperationId string
	AmountRub             decimal.Decimal
	Rate                  decimal.Decimal
	AmountUsdt            decimal.Decimal
	CommissionUsdt        decimal.Decimal
	NetUsdt               decimal.Decimal
}

// DeleteResult reports the balances after an operation has been removed and
// its balance effect reversed.
type DeleteResult struct {
	OperationId string
	AccountId   string
	BalanceRub  decimal.Decimal
	BalanceUsdt decimal.Decimal
}
