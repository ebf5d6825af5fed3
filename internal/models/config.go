package models

import "time"

// Config represents the application configuration
type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Ledger   LedgerConfig
	Jobs     JobsConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PingTimeout     time.Duration
	BusyTimeout     time.Duration
	RetryAttempts   int
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// LedgerConfig holds business settings shared by the ledger and the
// reconciliation engine.
type LedgerConfig struct {
	Timezone          string // IANA name used for calendar-date resolution
	DefaultCommission string // percent applied to newly created accounts
}

// JobsConfig holds the scheduled-jobs block, loadable from the optional
// YAML config file.
type JobsConfig struct {
	DailyCheckReportAt string `yaml:"daily_check_report_at"` // "HH:MM:SS", empty disables
	AutoReconcile      bool   `yaml:"auto_reconcile"`
	AutoReconcileAt    string `yaml:"auto_reconcile_at"`
}
