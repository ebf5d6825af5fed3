package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"contractor-ledger-go/internal/models"
	"contractor-ledger-go/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ErrValidation marks inputs rejected before any store call.
var ErrValidation = errors.New("validation failed")

var oneHundred = decimal.NewFromInt(100)

// Actor identifies who requested a mutation, for the audit trail.
type Actor struct {
	UserId int64
	Label  string
}

// Service composes the store's atomic primitives into the user-facing money
// operations and owns the exchange and commission arithmetic.
type Service struct {
	store             store.LedgerStore
	location          *time.Location
	defaultCommission decimal.Decimal
}

func NewService(st store.LedgerStore, location *time.Location, defaultCommission decimal.Decimal) *Service {
	if location == nil {
		location = time.UTC
	}
	return &Service{
		store:             st,
		location:          location,
		defaultCommission: defaultCommission,
	}
}

// Location returns the timezone used for calendar-date resolution.
func (s *Service) Location() *time.Location {
	return s.location
}

// newOperationId issues the short unique token used as an operation id.
func newOperationId() string {
	return uuid.New().String()[:8]
}

// withFreshId retries fn with a new id if the generated token collides.
func withFreshId(fn func(id string) error) (string, error) {
	var err error
	for i := 0; i < 3; i++ {
		id := newOperationId()
		err = fn(id)
		if !errors.Is(err, store.ErrDuplicateOperation) {
			return id, err
		}
	}
	return "", err
}

func (s *Service) CreateAccount(ctx context.Context, name string) (*models.Account, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: account name is required", ErrValidation)
	}
	return s.store.CreateAccount(ctx, name, s.defaultCommission)
}

func (s *Service) DeactivateAccount(ctx context.Context, accountId string) error {
	return s.store.DeactivateAccount(ctx, accountId)
}

func (s *Service) ListAccounts(ctx context.Context) ([]models.Account, error) {
	return s.store.ListAccounts(ctx)
}

func (s *Service) SetCommission(ctx context.Context, accountId string, percent decimal.Decimal) error {
	if percent.IsNegative() || percent.GreaterThan(oneHundred) {
		return fmt.Errorf("%w: commission percent must be between 0 and 100, got %s", ErrValidation, percent.String())
	}
	return s.store.SetCommission(ctx, accountId, percent)
}

// BalanceSummary returns the current balances together with the total
// commission charged to the account.
func (s *Service) BalanceSummary(ctx context.Context, accountId string) (*models.BalanceSummary, error) {
	account, err := s.store.GetAccount(ctx, accountId)
	if err != nil {
		return nil, err
	}
	commission, err := s.store.CommissionTotal(ctx, accountId, nil, nil)
	if err != nil {
		return nil, err
	}
	return &models.BalanceSummary{
		AccountId:         account.Id,
		Name:              account.Name,
		BalanceRub:        account.BalanceRub,
		BalanceUsdt:       account.BalanceUsdt,
		CommissionPercent: account.CommissionPercent,
		CommissionCharged: commission,
	}, nil
}

// DepositParams describes a cash or check deposit.
type DepositParams struct {
	AccountId   string
	Actor       Actor
	Amount      decimal.Decimal
	Currency    string
	Check       bool // check deposits await reconciliation
	Payer       string
	FileRef     string
	Description string
}

// Deposit credits an account and logs the operation. Check deposits are
// logged unrated; reconciliation assigns their exchange rate later.
func (s *Service) Deposit(ctx context.Context, params DepositParams) (string, error) {
	if err := validateAmount(params.Amount); err != nil {
		return "", err
	}
	opType, deltaRub, deltaUsdt, err := depositShape(params)
	if err != nil {
		return "", err
	}

	return withFreshId(func(id string) error {
		_, err := s.store.ProcessCredit(ctx, store.AppendOperationParams{
			OperationId: id,
			AccountId:   params.AccountId,
			ActorUserId: params.Actor.UserId,
			ActorLabel:  params.Actor.Label,
			Type:        opType,
			Amount:      params.Amount,
			Currency:    params.Currency,
			Payer:       params.Payer,
			FileRef:     params.FileRef,
			Description: params.Description,
			DeltaRub:    deltaRub,
			DeltaUsdt:   deltaUsdt,
		})
		return err
	})
}

// Withdraw debits an account and logs the operation. Insufficient funds is
// an expected business outcome: no log row is written and
// store.ErrInsufficientFunds is returned for the caller to branch on.
func (s *Service) Withdraw(ctx context.Context, accountId string, actor Actor, amount decimal.Decimal, currency, description string) (string, error) {
	if err := validateAmount(amount); err != nil {
		return "", err
	}
	var opType string
	var deltaRub, deltaUsdt decimal.Decimal
	switch currency {
	case models.CurrencyRub:
		opType = models.OpWithdrawRub
		deltaRub = amount.Neg()
	case models.CurrencyUsdt:
		opType = models.OpWithdrawUsdt
		deltaUsdt = amount.Neg()
	default:
		return "", fmt.Errorf("%w: unsupported currency %q", ErrValidation, currency)
	}

	return withFreshId(func(id string) error {
		_, err := s.store.ProcessDebit(ctx, store.AppendOperationParams{
			OperationId: id,
			AccountId:   accountId,
			ActorUserId: actor.UserId,
			ActorLabel:  actor.Label,
			Type:        opType,
			Amount:      amount,
			Currency:    currency,
			Description: description,
			DeltaRub:    deltaRub,
			DeltaUsdt:   deltaUsdt,
		})
		return err
	})
}

// Exchange converts RUB to USDT at the given rate, taking the account's
// commission on the USDT leg. Division runs at full decimal precision;
// rounding to the currency's minimal unit happens once, at the persistence
// boundary, with net = round(gross) - round(commission) so the two logged
// rows sum exactly to the credited amount.
func (s *Service) Exchange(ctx context.Context, accountId string, actor Actor, amountRub, rate decimal.Decimal) (*models.ExchangeResult, error) {
	if err := validateAmount(amountRub); err != nil {
		return nil, err
	}
	if !rate.IsPositive() {
		return nil, fmt.Errorf("%w: rate must be positive, got %s", ErrValidation, rate.String())
	}

	account, err := s.store.GetAccount(ctx, accountId)
	if err != nil {
		return nil, err
	}

	gross := amountRub.Div(rate)
	grossRounded := gross.Round(2)
	commissionRounded := gross.Mul(account.CommissionPercent).Div(oneHundred).Round(2)
	net := grossRounded.Sub(commissionRounded)

	// Zero-commission accounts get no commission row, so no id for it.
	var commissionOperationId string
	operationId, err := withFreshId(func(id string) error {
		commissionOperationId = ""
		if commissionRounded.IsPositive() {
			commissionOperationId = newOperationId()
		}
		return s.store.ProcessExchange(ctx, store.ExchangeParams{
			AccountId:             accountId,
			ActorUserId:           actor.UserId,
			ActorLabel:            actor.Label,
			OperationId:           id,
			CommissionOperationId: commissionOperationId,
			AmountRub:             amountRub,
			Rate:                  rate,
			GrossUsdt:             grossRounded,
			CommissionUsdt:        commissionRounded,
		})
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("Exchange completed",
		zap.String("account_id", accountId),
		zap.String("amount_rub", amountRub.StringFixed(2)),
		zap.String("rate", rate.String()),
		zap.String("net_usdt", net.StringFixed(2)))

	return &models.ExchangeResult{
		OperationId:           operationId,
		CommissionOperationId: commissionOperationId,
		AmountRub:             amountRub,
		Rate:                  rate,
		AmountUsdt:            grossRounded,
		CommissionUsdt:        commissionRounded,
		NetUsdt:               net,
	}, nil
}

func (s *Service) GetOperation(ctx context.Context, operationId string) (*models.Operation, error) {
	return s.store.GetOperation(ctx, operationId)
}

// AmendParams carries optional corrections. Nil fields stay unchanged.
type AmendParams struct {
	OperationId string
	Amount      *decimal.Decimal
	Rate        *decimal.Decimal
	Description *string
	Payer       *string
	Timestamp   *time.Time
}

func (s *Service) AmendOperation(ctx context.Context, params AmendParams) error {
	if params.Amount == nil && params.Rate == nil && params.Description == nil &&
		params.Payer == nil && params.Timestamp == nil {
		return fmt.Errorf("%w: nothing to amend", ErrValidation)
	}
	if params.Amount != nil && !params.Amount.IsPositive() {
		return fmt.Errorf("%w: amount must be positive", ErrValidation)
	}
	if params.Rate != nil && !params.Rate.IsPositive() {
		return fmt.Errorf("%w: rate must be positive", ErrValidation)
	}
	return s.store.AmendOperation(ctx, store.AmendOperationParams{
		OperationId: params.OperationId,
		Amount:      params.Amount,
		Rate:        params.Rate,
		Description: params.Description,
		Payer:       params.Payer,
		Timestamp:   params.Timestamp,
	})
}

func (s *Service) DeleteOperation(ctx context.Context, operationId string) (*models.DeleteResult, error) {
	return s.store.DeleteOperation(ctx, operationId)
}

func (s *Service) ListOperations(ctx context.Context, params store.ListOperationsParams) ([]models.Operation, error) {
	if params.Limit <= 0 || params.Limit > 500 {
		params.Limit = 100
	}
	return s.store.ListOperations(ctx, params)
}

// DailyCheckSummary aggregates one calendar day's check deposits per
// account, largest first. An empty date means today in the configured
// timezone.
func (s *Service) DailyCheckSummary(ctx context.Context, date string) (*models.DailyCheckSummary, error) {
	var day time.Time
	if date == "" {
		now := time.Now().In(s.location)
		day = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.location)
	} else {
		parsed, err := time.ParseInLocation(models.DateLayout, date, s.location)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid date %q", ErrValidation, date)
		}
		day = parsed
	}

	lines, err := s.store.CheckSummary(ctx, day, day.AddDate(0, 0, 1))
	if err != nil {
		return nil, err
	}

	summary := &models.DailyCheckSummary{
		Date:     day.Format(models.DateLayout),
		Lines:    lines,
		TotalRub: decimal.Zero,
	}
	for _, line := range lines {
		summary.TotalChecks += line.Checks
		summary.TotalRub = summary.TotalRub.Add(line.AmountRub)
	}
	return summary, nil
}

func validateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: amount must be positive, got %s", ErrValidation, amount.String())
	}
	return nil
}

func depositShape(params DepositParams) (string, decimal.Decimal, decimal.Decimal, error) {
	switch {
	case params.Check:
		if params.Currency != models.CurrencyRub {
			return "", decimal.Zero, decimal.Zero,
				fmt.Errorf("%w: check deposits are RUB only", ErrValidation)
		}
		return models.OpDepositRubCheck, params.Amount, decimal.Zero, nil
	case params.Currency == models.CurrencyRub:
		return models.OpDepositRub, params.Amount, decimal.Zero, nil
	case params.Currency == models.CurrencyUsdt:
		return models.OpDepositUsdt, decimal.Zero, params.Amount, nil
	default:
		return "", decimal.Zero, decimal.Zero,
			fmt.Errorf("%w: unsupported currency %q", ErrValidation, params.Currency)
	}
}
