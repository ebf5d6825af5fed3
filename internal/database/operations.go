package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"contractor-ledger-go/internal/models"
	"contractor-ledger-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ProcessCredit applies a non-negative balance delta and appends its log row
// in one transaction. Credits are unconditional increments; they only fail
// if the account does not exist.
func (s *Service) ProcessCredit(ctx context.Context, params store.AppendOperationParams) (*models.Operation, error) {
	if params.DeltaRub.IsNegative() || params.DeltaUsdt.IsNegative() {
		return nil, fmt.Errorf("credit delta cannot be negative")
	}
	return s.processOperation(ctx, params)
}

// ProcessDebit applies a non-positive balance delta and appends its log row
// in one transaction. Insufficient funds surface as store.ErrInsufficientFunds
// with no log row written.
func (s *Service) ProcessDebit(ctx context.Context, params store.AppendOperationParams) (*models.Operation, error) {
	if params.DeltaRub.IsPositive() || params.DeltaUsdt.IsPositive() {
		return nil, fmt.Errorf("debit delta cannot be positive")
	}
	return s.processOperation(ctx, params)
}

func (s *Service) processOperation(ctx context.Context, params store.AppendOperationParams) (*models.Operation, error) {
	createdAt := params.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	createdAt = createdAt.UTC()

	var operation *models.Operation
	err := s.withRetry(ctx, "process operation", func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer tx.Rollback()

		if err := applyDelta(ctx, tx, params.AccountId, toMinor(params.DeltaRub), toMinor(params.DeltaUsdt)); err != nil {
			return err
		}

		if err := insertOperation(ctx, tx, params, nil, createdAt); err != nil {
			return err
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit transaction: %w", err)
		}

		operation = &models.Operation{
			OperationId: params.OperationId,
			AccountId:   params.AccountId,
			ActorUserId: params.ActorUserId,
			ActorLabel:  params.ActorLabel,
			Type:        params.Type,
			Amount:      params.Amount.Round(2),
			Currency:    params.Currency,
			Payer:       params.Payer,
			FileRef:     params.FileRef,
			Description: params.Description,
			CreatedAt:   createdAt,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("Operation processed",
		zap.String("operation_id", params.OperationId),
		zap.String("account_id", params.AccountId),
		zap.String("type", params.Type),
		zap.String("amount", params.Amount.StringFixed(2)),
		zap.String("currency", params.Currency))
	return operation, nil
}

// ProcessExchange performs the whole exchange as one unit: debit gross RUB,
// credit gross USDT, debit the commission, and append both the exchange row
// and its separate commission row. The commission is always its own
// auditable entry, never folded into the exchange row.
func (s *Service) ProcessExchange(ctx context.Context, params store.ExchangeParams) error {
	now := time.Now().UTC()
	rateStr := params.Rate.String()

	err := s.withRetry(ctx, "process exchange", func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer tx.Rollback()

		// Sufficiency of the RUB leg is checked by the guarded delta.
		if err := applyDelta(ctx, tx, params.AccountId, -toMinor(params.AmountRub), toMinor(params.GrossUsdt)); err != nil {
			return err
		}
		// Commission comes off the freshly credited gross, so this cannot
		// underflow unless the commission exceeds 100%. Zero-commission
		// accounts get no commission row: the schema rejects zero amounts.
		if params.CommissionUsdt.IsPositive() {
			if err := applyDelta(ctx, tx, params.AccountId, 0, -toMinor(params.CommissionUsdt)); err != nil {
				return err
			}
		}

		if err := insertOperation(ctx, tx, store.AppendOperationParams{
			OperationId: params.OperationId,
			AccountId:   params.AccountId,
			ActorUserId: params.ActorUserId,
			ActorLabel:  params.ActorLabel,
			Type:        models.OpExchange,
			Amount:      params.AmountRub,
			Currency:    models.CurrencyRub,
			Description: params.Description,
		}, &rateStr, now); err != nil {
			return err
		}

		if params.CommissionUsdt.IsPositive() {
			if err := insertOperation(ctx, tx, store.AppendOperationParams{
				OperationId: params.CommissionOperationId,
				AccountId:   params.AccountId,
				ActorUserId: params.ActorUserId,
				ActorLabel:  params.ActorLabel,
				Type:        models.OpCommission,
				Amount:      params.CommissionUsdt,
				Currency:    models.CurrencyUsdt,
				Description: fmt.Sprintf("commission on exchange %s", params.OperationId),
			}, &rateStr, now); err != nil {
				return err
			}
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit transaction: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	zap.L().Info("Exchange processed",
		zap.String("operation_id", params.OperationId),
		zap.String("account_id", params.AccountId),
		zap.String("amount_rub", params.AmountRub.StringFixed(2)),
		zap.String("rate", rateStr),
		zap.String("gross_usdt", params.GrossUsdt.StringFixed(2)),
		zap.String("commission_usdt", params.CommissionUsdt.StringFixed(2)))
	return nil
}

func insertOperation(ctx context.Context, tx *sql.Tx, params store.AppendOperationParams, rate *string, createdAt time.Time) error {
	var rateValue any
	if rate != nil {
		rateValue = *rate
	}
	_, err := tx.ExecContext(ctx, queryInsertOperation,
		params.OperationId, params.AccountId, params.ActorUserId, params.ActorLabel,
		params.Type, toMinor(params.Amount), params.Currency, rateValue,
		params.Payer, params.FileRef, params.Description, "", createdAt)
	if err != nil {
		if isDuplicateKey(err) {
			return fmt.Errorf("operation %s: %w", params.OperationId, store.ErrDuplicateOperation)
		}
		return fmt.Errorf("failed to insert operation: %w", err)
	}
	return nil
}

func (s *Service) GetOperation(ctx context.Context, operationId string) (*models.Operation, error) {
	operation, err := scanOperation(s.db.QueryRowContext(ctx, queryGetOperation, operationId))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("operation %s: %w", operationId, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get operation: %w", err)
	}
	return operation, nil
}

// AmendOperation corrects an operation in place. An amount change re-derives
// the balance effect from the operation's type and applies the difference in
// the same transaction as the row update; the prior values are preserved in
// the audit note rather than overwritten silently.
func (s *Service) AmendOperation(ctx context.Context, params store.AmendOperationParams) error {
	err := s.withRetry(ctx, "amend operation", func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer tx.Rollback()

		op, err := scanOperation(tx.QueryRowContext(ctx, queryGetOperation, params.OperationId))
		if err == sql.ErrNoRows {
			return fmt.Errorf("operation %s: %w", params.OperationId, store.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("failed to load operation: %w", err)
		}

		amount := op.Amount
		payer := op.Payer
		description := op.Description
		auditNote := op.AuditNote
		createdAt := op.CreatedAt
		rated := op.Rated
		rate := op.ExchangeRate

		if params.Amount != nil && !params.Amount.Round(2).Equal(op.Amount) {
			if op.Type == models.OpExchange {
				return fmt.Errorf("amount of an exchange operation cannot be amended, delete and re-create it")
			}
			newAmount := params.Amount.Round(2)

			oldRub, oldUsdt, err := forwardDeltas(op.Type, op.Currency, op.Amount, rate, rated)
			if err != nil {
				return err
			}
			newRub, newUsdt, err := forwardDeltas(op.Type, op.Currency, newAmount, rate, rated)
			if err != nil {
				return err
			}
			if err := applyDelta(ctx, tx, op.AccountId, newRub-oldRub, newUsdt-oldUsdt); err != nil {
				return err
			}

			auditNote = appendAudit(auditNote, fmt.Sprintf("amount %s -> %s", op.Amount.StringFixed(2), newAmount.StringFixed(2)))
			amount = newAmount
		}

		if params.Rate != nil {
			if rated {
				auditNote = appendAudit(auditNote, fmt.Sprintf("rate %s -> %s", rate.String(), params.Rate.String()))
			}
			rate = *params.Rate
			rated = true
		}

		if params.Payer != nil {
			payer = *params.Payer
		}
		if params.Description != nil {
			description = *params.Description
		}
		if params.Timestamp != nil {
			newTs := params.Timestamp.UTC()
			auditNote = appendAudit(auditNote, fmt.Sprintf("date %s -> %s",
				createdAt.Format(models.DateLayout), newTs.Format(models.DateLayout)))
			createdAt = newTs
		}

		var rateValue any
		if rated {
			rateValue = rate.String()
		}
		result, err := tx.ExecContext(ctx, queryUpdateOperation,
			toMinor(amount), rateValue, payer, description, auditNote, createdAt, params.OperationId)
		if err != nil {
			return fmt.Errorf("failed to update operation: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to check rows affected: %w", err)
		}
		if affected == 0 {
			return fmt.Errorf("operation %s: %w", params.OperationId, store.ErrNotFound)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit transaction: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	zap.L().Info("Operation amended", zap.String("operation_id", params.OperationId))
	return nil
}

// DeleteOperation removes a log row after reversing its balance effect.
// Reversal and removal share one transaction, so a crash cannot leave the
// row gone but the correction unapplied. A reversal that would drive a
// balance negative fails with store.ErrInsufficientFunds and deletes nothing.
func (s *Service) DeleteOperation(ctx context.Context, operationId string) (*models.DeleteResult, error) {
	var result *models.DeleteResult
	err := s.withRetry(ctx, "delete operation", func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer tx.Rollback()

		op, err := scanOperation(tx.QueryRowContext(ctx, queryGetOperation, operationId))
		if err == sql.ErrNoRows {
			return fmt.Errorf("operation %s: %w", operationId, store.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("failed to load operation: %w", err)
		}

		deltaRub, deltaUsdt, err := forwardDeltas(op.Type, op.Currency, op.Amount, op.ExchangeRate, op.Rated)
		if err != nil {
			return err
		}
		if err := applyDelta(ctx, tx, op.AccountId, -deltaRub, -deltaUsdt); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, queryDeleteOperation, operationId); err != nil {
			return fmt.Errorf("failed to delete operation: %w", err)
		}

		var balanceRub, balanceUsdt int64
		if err := tx.QueryRowContext(ctx, queryGetBalances, op.AccountId).Scan(&balanceRub, &balanceUsdt); err != nil {
			return fmt.Errorf("failed to read balances: %w", err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit transaction: %w", err)
		}

		result = &models.DeleteResult{
			OperationId: operationId,
			AccountId:   op.AccountId,
			BalanceRub:  fromMinor(balanceRub),
			BalanceUsdt: fromMinor(balanceUsdt),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("Operation deleted with correction",
		zap.String("operation_id", operationId),
		zap.String("account_id", result.AccountId))
	return result, nil
}

func (s *Service) ListOperations(ctx context.Context, params store.ListOperationsParams) ([]models.Operation, error) {
	query := `
		SELECT operation_id, account_id, actor_user_id, actor_label, operation_type,
		       amount, currency, exchange_rate, payer, file_ref, description, audit_note, created_at
		FROM operations
		WHERE account_id = ?`
	args := []any{params.AccountId}

	if len(params.Types) > 0 {
		query += " AND operation_type IN (?" + strings.Repeat(", ?", len(params.Types)-1) + ")"
		for _, t := range params.Types {
			args = append(args, t)
		}
	} else if !params.IncludeChecks {
		// Check deposits are reconciliation working data; the default
		// history view hides them.
		query += " AND operation_type != ?"
		args = append(args, models.OpDepositRubCheck)
	}
	if params.From != nil {
		query += " AND created_at >= ?"
		args = append(args, params.From.UTC())
	}
	if params.To != nil {
		query += " AND created_at < ?"
		args = append(args, params.To.UTC())
	}
	query += " ORDER BY created_at DESC"
	if params.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, params.Limit)
	}

	return s.queryOperations(ctx, query, args...)
}

func (s *Service) ListOperationsByDateRange(ctx context.Context, from, to time.Time) ([]models.Operation, error) {
	return s.queryOperations(ctx, queryOperationsByDateRange, from.UTC(), to.UTC())
}

// UnratedChecks returns the check deposits in [from, to) that have no
// exchange rate assigned yet. An empty accountId spans all accounts.
func (s *Service) UnratedChecks(ctx context.Context, accountId string, from, to time.Time) ([]models.Operation, error) {
	if accountId == "" {
		return s.queryOperations(ctx, queryUnratedChecks, from.UTC(), to.UTC())
	}
	return s.queryOperations(ctx, queryUnratedChecksForAccount, accountId, from.UTC(), to.UTC())
}

// SettleChecks applies one account's reconciliation outcome atomically:
// debit the summed RUB, credit the gross USDT, debit the commission, append
// the commission row, and stamp every settled check with its own date's
// rate. Stamping guards on the rate still being NULL, so a check is never
// settled twice.
func (s *Service) SettleChecks(ctx context.Context, params store.SettleChecksParams) error {
	now := time.Now().UTC()

	return s.withRetry(ctx, "settle checks", func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer tx.Rollback()

		if err := applyDelta(ctx, tx, params.AccountId, -toMinor(params.DebitRub), toMinor(params.GrossUsdt)); err != nil {
			return err
		}
		if err := applyDelta(ctx, tx, params.AccountId, 0, -toMinor(params.CommissionUsdt)); err != nil {
			return err
		}

		if params.CommissionUsdt.IsPositive() {
			if err := insertOperation(ctx, tx, store.AppendOperationParams{
				OperationId: params.CommissionOperationId,
				AccountId:   params.AccountId,
				ActorLabel:  params.ActorLabel,
				Type:        models.OpCommission,
				Amount:      params.CommissionUsdt,
				Currency:    models.CurrencyUsdt,
				Description: "commission on check settlement",
			}, nil, now); err != nil {
				return err
			}
		}

		for operationId, rate := range params.Rated {
			result, err := tx.ExecContext(ctx, queryStampRate, rate.String(), operationId)
			if err != nil {
				return fmt.Errorf("failed to stamp rate on %s: %w", operationId, err)
			}
			affected, err := result.RowsAffected()
			if err != nil {
				return fmt.Errorf("failed to check rows affected: %w", err)
			}
			if affected == 0 {
				// Already rated or gone: settling it again would double
				// count, abort the whole account.
				return fmt.Errorf("check %s is no longer unrated: %w", operationId, store.ErrDuplicateOperation)
			}
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit transaction: %w", err)
		}
		return nil
	})
}

// CommissionTotal sums the USDT commission charged to an account, optionally
// limited to a period.
func (s *Service) CommissionTotal(ctx context.Context, accountId string, from, to *time.Time) (decimal.Decimal, error) {
	query := queryCommissionTotal
	args := []any{accountId}
	if from != nil {
		query += " AND created_at >= ?"
		args = append(args, from.UTC())
	}
	if to != nil {
		query += " AND created_at < ?"
		args = append(args, to.UTC())
	}

	var total int64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&total); err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum commissions: %w", err)
	}
	return fromMinor(total), nil
}

// CheckSummary aggregates check deposits per account over [from, to),
// largest sum first.
func (s *Service) CheckSummary(ctx context.Context, from, to time.Time) ([]models.CheckSummaryLine, error) {
	rows, err := s.db.QueryContext(ctx, queryCheckSummary, from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to query check summary: %w", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	var lines []models.CheckSummaryLine
	for rows.Next() {
		var line models.CheckSummaryLine
		var amount int64
		if err := rows.Scan(&line.AccountId, &line.AccountName, &line.Checks, &amount); err != nil {
			return nil, fmt.Errorf("failed to scan summary line: %w", err)
		}
		line.AmountRub = fromMinor(amount)
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating summary rows: %w", err)
	}
	return lines, nil
}

func (s *Service) queryOperations(ctx context.Context, query string, args ...any) ([]models.Operation, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query operations: %w", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	var operations []models.Operation
	for rows.Next() {
		op, err := scanOperation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan operation: %w", err)
		}
		operations = append(operations, *op)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating operation rows: %w", err)
	}
	return operations, nil
}

func scanOperation(row rowScanner) (*models.Operation, error) {
	var op models.Operation
	var amount int64
	var rate sql.NullString

	err := row.Scan(&op.OperationId, &op.AccountId, &op.ActorUserId, &op.ActorLabel,
		&op.Type, &amount, &op.Currency, &rate,
		&op.Payer, &op.FileRef, &op.Description, &op.AuditNote, &op.CreatedAt)
	if err != nil {
		return nil, err
	}

	op.Amount = fromMinor(amount)
	if rate.Valid {
		op.ExchangeRate, err = decimal.NewFromString(rate.String)
		if err != nil {
			return nil, fmt.Errorf("failed to parse exchange rate %q: %w", rate.String, err)
		}
		op.Rated = true
	}
	return &op, nil
}

// forwardDeltas maps an operation to the signed balance effect it had when
// it was applied, in minor units. The reversal used by delete is its exact
// negation.
func forwardDeltas(opType, currency string, amount, rate decimal.Decimal, rated bool) (int64, int64, error) {
	units := toMinor(amount)
	switch opType {
	case models.OpDepositRub, models.OpDepositRubCheck:
		return units, 0, nil
	case models.OpDepositUsdt:
		return 0, units, nil
	case models.OpWithdrawRub:
		return -units, 0, nil
	case models.OpWithdrawUsdt:
		return 0, -units, nil
	case models.OpExchange:
		if !rated || rate.IsZero() {
			return 0, 0, fmt.Errorf("exchange operation has no usable rate")
		}
		gross := amount.Div(rate).Round(2)
		return -units, toMinor(gross), nil
	case models.OpCommission:
		if currency == models.CurrencyRub {
			return -units, 0, nil
		}
		return 0, -units, nil
	default:
		return 0, 0, fmt.Errorf("unknown operation type %q", opType)
	}
}

func appendAudit(note, entry string) string {
	if note == "" {
		return entry
	}
	return note + "; " + entry
}
