package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"contractor-ledger-go/internal/store"

	"github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

const (
	defaultRetryAttempts = 3
	retryBackoff         = 50 * time.Millisecond
)

// isTransient reports whether an error is a lock-wait that is worth
// retrying, as opposed to a real failure.
func isTransient(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked")
}

// isDuplicateKey reports whether an insert collided with an existing
// primary key.
func isDuplicateKey(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// withRetry runs fn, retrying transient lock errors a bounded number of
// times with linear backoff. Exhaustion surfaces as store.ErrBusy.
func (s *Service) withRetry(ctx context.Context, op string, fn func() error) error {
	var err error
	for attempt := 1; attempt <= s.retryAttempts; attempt++ {
		err = fn()
		if err == nil || !isTransient(err) {
			return err
		}

		zap.L().Warn("Transient database lock, retrying",
			zap.String("operation", op),
			zap.Int("attempt", attempt),
			zap.Error(err))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * retryBackoff):
		}
	}
	return fmt.Errorf("%s after %d attempts: %w", op, s.retryAttempts, store.ErrBusy)
}
