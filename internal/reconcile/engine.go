package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"contractor-ledger-go/internal/models"
	"contractor-ledger-go/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var oneHundred = decimal.NewFromInt(100)

// Engine batch-settles backlogged check deposits that carry no exchange
// rate yet, per account, using the per-calendar-date rate table.
type Engine struct {
	store    store.LedgerStore
	location *time.Location
}

func NewEngine(st store.LedgerStore, location *time.Location) *Engine {
	if location == nil {
		location = time.UTC
	}
	return &Engine{store: st, location: location}
}

// RunParams configures one batch run. With From/To unset the settlement
// window is resolved automatically from today's weekday. A positive Rate is
// upserted for every date of the window before settlement; a zero Rate
// relies on previously stored rates only.
type RunParams struct {
	Rate  decimal.Decimal
	From  *time.Time
	To    *time.Time
	Actor string
}

// Run executes CollectUnrated -> ResolveRatePerDate -> GroupByAccountAndRate
// -> SettlePerAccount -> BuildReport. Each check resolves the rate of its
// own calendar date; checks spanning several days are never blended at one
// averaged rate. One account's insufficient funds skips that account and the
// batch continues.
func (e *Engine) Run(ctx context.Context, params RunParams) (*models.ReconciliationReport, error) {
	from, to, err := e.resolveWindow(params)
	if err != nil {
		return nil, err
	}

	zap.L().Info("Reconciliation started",
		zap.String("from", from.Format(models.DateLayout)),
		zap.String("to", to.AddDate(0, 0, -1).Format(models.DateLayout)),
		zap.String("rate", params.Rate.String()))

	if params.Rate.IsPositive() {
		for day := from; day.Before(to); day = day.AddDate(0, 0, 1) {
			if err := e.store.UpsertRate(ctx, day.Format(models.DateLayout), params.Rate); err != nil {
				return nil, fmt.Errorf("failed to store rate for %s: %w", day.Format(models.DateLayout), err)
			}
		}
	}

	rates, err := e.store.RatesInRange(ctx,
		from.Format(models.DateLayout), to.AddDate(0, 0, -1).Format(models.DateLayout))
	if err != nil {
		return nil, err
	}

	accounts, err := e.store.ListAccounts(ctx)
	if err != nil {
		return nil, err
	}

	report := &models.ReconciliationReport{
		From:            from,
		To:              to,
		TotalDebitedRub: decimal.Zero,
		TotalNetUsdt:    decimal.Zero,
		TotalCommission: decimal.Zero,
	}

	for _, account := range accounts {
		settlement, err := e.settleAccount(ctx, account, from, to, rates, params.Actor)
		if err != nil {
			return nil, fmt.Errorf("account %s: %w", account.Name, err)
		}
		if settlement == nil {
			continue // nothing unrated for this account
		}

		report.Accounts = append(report.Accounts, *settlement)
		if settlement.Skipped {
			report.AccountsSkipped++
			continue
		}
		if settlement.Checks > 0 && settlement.DebitedRub.IsPositive() {
			report.AccountsProcessed++
			report.TotalDebitedRub = report.TotalDebitedRub.Add(settlement.DebitedRub)
			report.TotalNetUsdt = report.TotalNetUsdt.Add(settlement.NetUsdt)
			report.TotalCommission = report.TotalCommission.Add(settlement.CommissionUsdt)
		}
	}

	zap.L().Info("Reconciliation finished",
		zap.Int("accounts_processed", report.AccountsProcessed),
		zap.Int("accounts_skipped", report.AccountsSkipped),
		zap.String("total_rub", report.TotalDebitedRub.StringFixed(2)),
		zap.String("total_usdt", report.TotalNetUsdt.StringFixed(2)))
	return report, nil
}

func (e *Engine) resolveWindow(params RunParams) (time.Time, time.Time, error) {
	if params.From == nil && params.To == nil {
		from, to := SettlementWindow(time.Now().In(e.location))
		return from, to, nil
	}
	if params.From == nil {
		return time.Time{}, time.Time{}, fmt.Errorf("period start is required when an explicit period is given")
	}
	from := midnight(params.From.In(e.location))
	to := from.AddDate(0, 0, 1)
	if params.To != nil {
		to = midnight(params.To.In(e.location)).AddDate(0, 0, 1)
	}
	if !to.After(from) {
		return time.Time{}, time.Time{}, fmt.Errorf("period end %s precedes start %s",
			to.Format(models.DateLayout), from.Format(models.DateLayout))
	}
	return from, to, nil
}

// settleAccount groups one account's unrated checks by their own calendar
// date, resolves each group's rate, and applies the whole settlement in one
// store transaction. Returns nil when the account has nothing unrated.
func (e *Engine) settleAccount(ctx context.Context, account models.Account, from, to time.Time, rates map[string]decimal.Decimal, actor string) (*models.AccountSettlement, error) {
	checks, err := e.store.UnratedChecks(ctx, account.Id, from, to)
	if err != nil {
		return nil, err
	}
	if len(checks) == 0 {
		return nil, nil
	}

	settlement := &models.AccountSettlement{
		AccountId:      account.Id,
		AccountName:    account.Name,
		DebitedRub:     decimal.Zero,
		GrossUsdt:      decimal.Zero,
		CommissionUsdt: decimal.Zero,
		NetUsdt:        decimal.Zero,
	}

	// Group by each check's own date, not the batch's headline date.
	byDate := make(map[string][]models.Operation)
	for _, check := range checks {
		date := check.CreatedAt.In(e.location).Format(models.DateLayout)
		byDate[date] = append(byDate[date], check)
	}
	dates := make([]string, 0, len(byDate))
	for date := range byDate {
		dates = append(dates, date)
	}
	sort.Strings(dates)

	rated := make(map[string]decimal.Decimal)
	for _, date := range dates {
		group := byDate[date]
		rate, ok := rates[date]
		if !ok {
			// Never default a missing rate silently: leave the checks
			// untouched for a future run and flag the date.
			settlement.UnresolvedDates = append(settlement.UnresolvedDates, date)
			continue
		}

		sumRub := decimal.Zero
		ids := make([]string, 0, len(group))
		for _, check := range group {
			sumRub = sumRub.Add(check.Amount)
			ids = append(ids, check.OperationId)
			rated[check.OperationId] = rate
		}
		grossUsdt := sumRub.Div(rate).Round(2)

		settlement.Checks += len(group)
		settlement.DebitedRub = settlement.DebitedRub.Add(sumRub)
		settlement.GrossUsdt = settlement.GrossUsdt.Add(grossUsdt)
		settlement.RateGroups = append(settlement.RateGroups, models.RateGroup{
			Date:       date,
			Rate:       rate,
			Checks:     len(group),
			AmountRub:  sumRub,
			GrossUsdt:  grossUsdt,
			Operations: ids,
		})
	}

	if len(rated) == 0 {
		// All dates unresolved: a data warning, not a settlement.
		zap.L().Warn("No rate resolvable for account",
			zap.String("account", account.Name),
			zap.Strings("dates", settlement.UnresolvedDates))
		return settlement, nil
	}

	settlement.CommissionUsdt = settlement.GrossUsdt.Mul(account.CommissionPercent).Div(oneHundred).Round(2)
	settlement.NetUsdt = settlement.GrossUsdt.Sub(settlement.CommissionUsdt)

	err = e.store.SettleChecks(ctx, store.SettleChecksParams{
		AccountId:             account.Id,
		ActorLabel:            actor,
		CommissionOperationId: uuid.New().String()[:8],
		DebitRub:              settlement.DebitedRub,
		GrossUsdt:             settlement.GrossUsdt,
		CommissionUsdt:        settlement.CommissionUsdt,
		Rated:                 rated,
	})
	if errors.Is(err, store.ErrInsufficientFunds) || errors.Is(err, store.ErrDuplicateOperation) {
		settlement.Skipped = true
		settlement.SkipReason = err.Error()
		zap.L().Warn("Account skipped during reconciliation",
			zap.String("account", account.Name),
			zap.Error(err))
		return settlement, nil
	}
	if err != nil {
		return nil, err
	}
	return settlement, nil
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
