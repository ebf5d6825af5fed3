package database

import (
	"context"
	"database/sql"
	"fmt"

	"contractor-ledger-go/internal/models"
	"contractor-ledger-go/internal/store"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Compile-time check: *Service must satisfy store.LedgerStore.
var _ store.LedgerStore = (*Service)(nil)

type Service struct {
	db            *sql.DB
	retryAttempts int
}

func NewService(ctx context.Context, cfg models.DatabaseConfig) (*Service, error) {
	// Validate configuration
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path cannot be empty")
	}
	if cfg.MaxOpenConns <= 0 {
		return nil, fmt.Errorf("max open connections must be positive, got %d", cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns < 0 {
		return nil, fmt.Errorf("max idle connections cannot be negative, got %d", cfg.MaxIdleConns)
	}
	if cfg.PingTimeout <= 0 {
		return nil, fmt.Errorf("ping timeout must be positive, got %v", cfg.PingTimeout)
	}

	zap.L().Info("Opening SQLite database", zap.String("file", cfg.Path))
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_foreign_keys=on&_busy_timeout=%d",
		cfg.Path, cfg.BusyTimeout.Milliseconds())
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to open database: %w", err)
	}

	// Set connection timeouts and limits
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	// Test connection with timeout
	pingCtx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, closeErr
		}
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	retryAttempts := cfg.RetryAttempts
	if retryAttempts <= 0 {
		retryAttempts = defaultRetryAttempts
	}

	service := &Service{db: db, retryAttempts: retryAttempts}
	if err := service.initSchema(); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, closeErr
		}
		return nil, fmt.Errorf("unable to initialize schema: %w", err)
	}

	zap.L().Info("Database service initialized successfully")
	return service, nil
}

// NewServiceFromDB wraps an existing connection. Used by tests that inject
// an in-memory database or a mocked driver.
func NewServiceFromDB(db *sql.DB) *Service {
	return &Service{db: db, retryAttempts: defaultRetryAttempts}
}

func (s *Service) Close() {
	if err := s.db.Close(); err != nil {
		zap.L().Warn("Failed to close database connection", zap.Error(err))
	}
}

// InitSchema creates all tables and indexes if they do not exist yet.
func (s *Service) InitSchema() error {
	return s.initSchema()
}

func (s *Service) initSchema() error {
	schema := `
	-- Accounts Table (Current State - Hot Data)
	CREATE TABLE IF NOT EXISTS accounts (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		balance_rub INTEGER NOT NULL DEFAULT 0 CHECK (balance_rub >= 0),
		balance_usdt INTEGER NOT NULL DEFAULT 0 CHECK (balance_usdt >= 0),
		commission_percent TEXT NOT NULL DEFAULT '0',
		active INTEGER NOT NULL DEFAULT 1,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_accounts_name ON accounts(name);
	CREATE INDEX IF NOT EXISTS idx_accounts_active ON accounts(active);

	-- Operations Table (Audit Trail - Cold Data)
	CREATE TABLE IF NOT EXISTS operations (
		operation_id TEXT PRIMARY KEY,
		account_id TEXT NOT NULL REFERENCES accounts(id),
		actor_user_id INTEGER NOT NULL DEFAULT 0,
		actor_label TEXT NOT NULL DEFAULT '',
		operation_type TEXT NOT NULL,
		amount INTEGER NOT NULL CHECK (amount > 0),
		currency TEXT NOT NULL,
		exchange_rate TEXT,
		payer TEXT NOT NULL DEFAULT '',
		file_ref TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		audit_note TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_operations_account_created ON operations(account_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_operations_type ON operations(operation_type);
	CREATE INDEX IF NOT EXISTS idx_operations_created_at ON operations(created_at);
	-- Unrated checks are the reconciliation working set
	CREATE INDEX IF NOT EXISTS idx_operations_unrated
		ON operations(operation_type, created_at) WHERE exchange_rate IS NULL;

	-- Rates Table (one operator-supplied rate per calendar date)
	CREATE TABLE IF NOT EXISTS rates (
		exchange_date TEXT PRIMARY KEY,
		rate TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Money is persisted as INTEGER minor units (kopecks, USDT cents) so that
// credits and debits are single-statement arithmetic in SQL. Conversion
// happens only here, at the persistence boundary.

func toMinor(d decimal.Decimal) int64 {
	return d.Shift(2).Round(0).IntPart()
}

func fromMinor(units int64) decimal.Decimal {
	return decimal.New(units, -2)
}
