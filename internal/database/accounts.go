package database

import (
	"context"
	"database/sql"
	"fmt"

	"contractor-ledger-go/internal/models"
	"contractor-ledger-go/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// querier covers *sql.DB and *sql.Tx so balance primitives run inside or
// outside an explicit transaction.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// CreateAccount registers a contractor by unique name. Re-registering an
// existing name reactivates it and keeps its balances.
func (s *Service) CreateAccount(ctx context.Context, name string, commissionPercent decimal.Decimal) (*models.Account, error) {
	if name == "" {
		return nil, fmt.Errorf("account name cannot be empty")
	}

	var account *models.Account
	err := s.withRetry(ctx, "create account", func() error {
		row := s.db.QueryRowContext(ctx, queryUpsertAccount, uuid.New().String(), name, commissionPercent.String())
		var scanErr error
		account, scanErr = scanAccount(row)
		return scanErr
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create account %q: %w", name, err)
	}

	zap.L().Info("Account registered",
		zap.String("account_id", account.Id),
		zap.String("name", account.Name))
	return account, nil
}

func (s *Service) GetAccount(ctx context.Context, accountId string) (*models.Account, error) {
	account, err := scanAccount(s.db.QueryRowContext(ctx, queryGetAccount, accountId))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("account %s: %w", accountId, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return account, nil
}

func (s *Service) GetAccountByName(ctx context.Context, name string) (*models.Account, error) {
	account, err := scanAccount(s.db.QueryRowContext(ctx, queryGetAccountByName, name))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("account %q: %w", name, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account by name: %w", err)
	}
	return account, nil
}

func (s *Service) ListAccounts(ctx context.Context) ([]models.Account, error) {
	rows, err := s.db.QueryContext(ctx, queryListAccounts)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	var accounts []models.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, *account)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating account rows: %w", err)
	}
	return accounts, nil
}

func (s *Service) SetCommission(ctx context.Context, accountId string, percent decimal.Decimal) error {
	return s.withRetry(ctx, "set commission", func() error {
		result, err := s.db.ExecContext(ctx, querySetCommission, percent.String(), accountId)
		if err != nil {
			return fmt.Errorf("failed to set commission: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to check rows affected: %w", err)
		}
		if affected == 0 {
			return fmt.Errorf("account %s: %w", accountId, store.ErrNotFound)
		}
		return nil
	})
}

// DeactivateAccount is the soft delete; balances and history are kept.
func (s *Service) DeactivateAccount(ctx context.Context, accountId string) error {
	return s.withRetry(ctx, "deactivate account", func() error {
		result, err := s.db.ExecContext(ctx, queryDeactivateAccount, accountId)
		if err != nil {
			return fmt.Errorf("failed to deactivate account: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to check rows affected: %w", err)
		}
		if affected == 0 {
			return fmt.Errorf("account %s: %w", accountId, store.ErrNotFound)
		}
		zap.L().Info("Account deactivated", zap.String("account_id", accountId))
		return nil
	})
}

// applyDelta is the single sanctioned balance mutation. The guard on both
// columns makes the sufficiency check and the decrement one statement, so
// there is no read-then-write window to race through. Zero rows affected on
// an existing account means the delta would drive a balance negative.
func applyDelta(ctx context.Context, q querier, accountId string, deltaRub, deltaUsdt int64) error {
	result, err := q.ExecContext(ctx, queryApplyDelta,
		deltaRub, deltaUsdt, accountId, deltaRub, deltaUsdt)
	if err != nil {
		return fmt.Errorf("failed to apply balance delta: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if affected > 0 {
		return nil
	}

	var one int
	err = q.QueryRowContext(ctx, queryAccountExists, accountId).Scan(&one)
	if err == sql.ErrNoRows {
		return fmt.Errorf("account %s: %w", accountId, store.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to check account existence: %w", err)
	}
	return fmt.Errorf("account %s: %w", accountId, store.ErrInsufficientFunds)
}

// rowScanner abstracts *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*models.Account, error) {
	var account models.Account
	var balanceRub, balanceUsdt int64
	var commissionStr string

	err := row.Scan(&account.Id, &account.Name, &balanceRub, &balanceUsdt,
		&commissionStr, &account.Active, &account.CreatedAt, &account.UpdatedAt)
	if err != nil {
		return nil, err
	}

	account.BalanceRub = fromMinor(balanceRub)
	account.BalanceUsdt = fromMinor(balanceUsdt)
	account.CommissionPercent, err = decimal.NewFromString(commissionStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse commission percent %q: %w", commissionStr, err)
	}
	return &account, nil
}
