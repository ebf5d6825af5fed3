package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"contractor-ledger-go/internal/models"
	"contractor-ledger-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// UpsertRate sets the exchange rate for one calendar date, overwriting any
// existing value.
func (s *Service) UpsertRate(ctx context.Context, date string, rate decimal.Decimal) error {
	if _, err := parseDate(date); err != nil {
		return err
	}
	if !rate.IsPositive() {
		return fmt.Errorf("rate must be positive, got %s", rate.String())
	}

	return s.withRetry(ctx, "upsert rate", func() error {
		if _, err := s.db.ExecContext(ctx, queryUpsertRate, date, rate.String()); err != nil {
			return fmt.Errorf("failed to upsert rate for %s: %w", date, err)
		}
		zap.L().Info("Rate set", zap.String("date", date), zap.String("rate", rate.String()))
		return nil
	})
}

func (s *Service) GetRate(ctx context.Context, date string) (*models.Rate, error) {
	rate, err := scanRate(s.db.QueryRowContext(ctx, queryGetRate, date))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("rate for %s: %w", date, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get rate: %w", err)
	}
	return rate, nil
}

func (s *Service) LatestRate(ctx context.Context) (*models.Rate, error) {
	rate, err := scanRate(s.db.QueryRowContext(ctx, queryLatestRate))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("latest rate: %w", store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest rate: %w", err)
	}
	return rate, nil
}

func (s *Service) ListRates(ctx context.Context, limit int) ([]models.Rate, error) {
	if limit <= 0 {
		limit = 30
	}
	rows, err := s.db.QueryContext(ctx, queryListRates, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list rates: %w", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	var rates []models.Rate
	for rows.Next() {
		rate, err := scanRate(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan rate: %w", err)
		}
		rates = append(rates, *rate)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rate rows: %w", err)
	}
	return rates, nil
}

// RatesInRange loads the date -> rate mapping for an inclusive date range.
func (s *Service) RatesInRange(ctx context.Context, from, to string) (map[string]decimal.Decimal, error) {
	rows, err := s.db.QueryContext(ctx, queryRatesInRange, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query rates in range: %w", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	rates := make(map[string]decimal.Decimal)
	for rows.Next() {
		var date, rateStr string
		if err := rows.Scan(&date, &rateStr); err != nil {
			return nil, fmt.Errorf("failed to scan rate: %w", err)
		}
		rate, err := decimal.NewFromString(rateStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse rate %q: %w", rateStr, err)
		}
		rates[date] = rate
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rate rows: %w", err)
	}
	return rates, nil
}

func (s *Service) DeleteRate(ctx context.Context, date string) error {
	return s.withRetry(ctx, "delete rate", func() error {
		result, err := s.db.ExecContext(ctx, queryDeleteRate, date)
		if err != nil {
			return fmt.Errorf("failed to delete rate: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to check rows affected: %w", err)
		}
		if affected == 0 {
			return fmt.Errorf("rate for %s: %w", date, store.ErrNotFound)
		}
		return nil
	})
}

func parseDate(date string) (time.Time, error) {
	t, err := time.Parse(models.DateLayout, date)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD: %w", date, err)
	}
	return t, nil
}

func scanRate(row rowScanner) (*models.Rate, error) {
	var rate models.Rate
	var rateStr string
	if err := row.Scan(&rate.ExchangeDate, &rateStr, &rate.CreatedAt); err != nil {
		return nil, err
	}
	var err error
	rate.Rate, err = decimal.NewFromString(rateStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse rate %q: %w", rateStr, err)
	}
	return &rate, nil
}
