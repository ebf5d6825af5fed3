package store

import (
	"context"
	"errors"
	"time"

	"contractor-ledger-go/internal/models"

	"github.com/shopspring/decimal"
)

// Sentinel errors shared across all backend implementations.
var (
	ErrNotFound           = errors.New("record not found")
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrDuplicateOperation = errors.New("duplicate operation id")
	ErrBusy               = errors.New("storage busy, retries exhausted")
)

// AppendOperationParams describes one ledger entry together with the balance
// delta it applies. The store writes both in a single transaction.
type AppendOperationParams struct {
	OperationId string
	AccountId   string
	ActorUserId int64
	ActorLabel  string
	Type        string
	Amount      decimal.Decimal // positive, in the operation's currency
	Currency    string
	Payer       string
	FileRef     string
	Description string
	DeltaRub    decimal.Decimal // signed balance effect
	DeltaUsdt   decimal.Decimal
	CreatedAt   time.Time // zero means now
}

// ExchangeParams describes a commission-bearing RUB->USDT exchange applied
// as one atomic unit: debit gross RUB, credit gross USDT, debit commission
// USDT, and append both the exchange row and its commission row.
type ExchangeParams struct {
	AccountId             string
	ActorUserId           int64
	ActorLabel            string
	OperationId           string
	CommissionOperationId string
	AmountRub             decimal.Decimal
	Rate                  decimal.Decimal
	GrossUsdt             decimal.Decimal // rounded to the currency's minimal unit
	CommissionUsdt        decimal.Decimal // rounded likewise; net = gross - commission
	Description           string
}

// AmendOperationParams carries the optional corrections for one operation.
// Nil fields are left unchanged.
type AmendOperationParams struct {
	OperationId string
	Amount      *decimal.Decimal
	Rate        *decimal.Decimal
	Description *string
	Payer       *string
	Timestamp   *time.Time
}

// ListOperationsParams filters an account's operation history.
type ListOperationsParams struct {
	AccountId     string
	Types         []string
	From          *time.Time
	To            *time.Time
	IncludeChecks bool
	Limit         int
}

// SettleChecksParams is one account's share of a reconciliation batch,
// applied as a single transaction: debit the summed RUB, credit the
// per-date-group gross USDT, debit the commission, append the commission
// row, and stamp every settled check with its own date's rate.
type SettleChecksParams struct {
	AccountId             string
	ActorLabel            string
	CommissionOperationId string
	DebitRub              decimal.Decimal
	GrossUsdt             decimal.Decimal
	CommissionUsdt        decimal.Decimal
	// Rated maps operation id -> resolved rate for that check's date.
	Rated map[string]decimal.Decimal
}

// LedgerStore defines the contract the SQLite backend (and any test double)
// must satisfy.
type LedgerStore interface {
	// --- Accounts ---
	CreateAccount(ctx context.Context, name string, commissionPercent decimal.Decimal) (*models.Account, error)
	GetAccount(ctx context.Context, accountId string) (*models.Account, error)
	GetAccountByName(ctx context.Context, name string) (*models.Account, error)
	ListAccounts(ctx context.Context) ([]models.Account, error)
	SetCommission(ctx context.Context, accountId string, percent decimal.Decimal) error
	DeactivateAccount(ctx context.Context, accountId string) error

	// --- Balance mutations (each paired with its log row, atomically) ---
	ProcessCredit(ctx context.Context, params AppendOperationParams) (*models.Operation, error)
	ProcessDebit(ctx context.Context, params AppendOperationParams) (*models.Operation, error)
	ProcessExchange(ctx context.Context, params ExchangeParams) error

	// --- Operation log ---
	GetOperation(ctx context.Context, operationId string) (*models.Operation, error)
	AmendOperation(ctx context.Context, params AmendOperationParams) error
	DeleteOperation(ctx context.Context, operationId string) (*models.DeleteResult, error)
	ListOperations(ctx context.Context, params ListOperationsParams) ([]models.Operation, error)
	ListOperationsByDateRange(ctx context.Context, from, to time.Time) ([]models.Operation, error)
	UnratedChecks(ctx context.Context, accountId string, from, to time.Time) ([]models.Operation, error)
	SettleChecks(ctx context.Context, params SettleChecksParams) error
	CommissionTotal(ctx context.Context, accountId string, from, to *time.Time) (decimal.Decimal, error)
	CheckSummary(ctx context.Context, from, to time.Time) ([]models.CheckSummaryLine, error)

	// --- Rate table ---
	UpsertRate(ctx context.Context, date string, rate decimal.Decimal) error
	GetRate(ctx context.Context, date string) (*models.Rate, error)
	LatestRate(ctx context.Context) (*models.Rate, error)
	ListRates(ctx context.Context, limit int) ([]models.Rate, error)
	RatesInRange(ctx context.Context, from, to string) (map[string]decimal.Decimal, error)
	DeleteRate(ctx context.Context, date string) error

	// --- Lifecycle ---
	Close()
}
