package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"contractor-ledger-go/internal/models"

	"gopkg.in/yaml.v2"
)

func Load() (*models.Config, error) {
	connMaxLifetime, err := getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute)
	if err != nil {
		return nil, err
	}

	connMaxIdleTime, err := getEnvDuration("DB_CONN_MAX_IDLE_TIME", 30*time.Second)
	if err != nil {
		return nil, err
	}

	pingTimeout, err := getEnvDuration("DB_PING_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, err
	}

	busyTimeout, err := getEnvDuration("DB_BUSY_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, err
	}

	readTimeout, err := getEnvDuration("HTTP_READ_TIMEOUT", 15*time.Second)
	if err != nil {
		return nil, err
	}

	writeTimeout, err := getEnvDuration("HTTP_WRITE_TIMEOUT", 15*time.Second)
	if err != nil {
		return nil, err
	}

	idleTimeout, err := getEnvDuration("HTTP_IDLE_TIMEOUT", 60*time.Second)
	if err != nil {
		return nil, err
	}

	shutdownTimeout, err := getEnvDuration("HTTP_SHUTDOWN_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, err
	}

	cfg := &models.Config{
		Database: models.DatabaseConfig{
			Path:            getEnvString("DATABASE_PATH", "ledger.db"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: connMaxLifetime,
			ConnMaxIdleTime: connMaxIdleTime,
			PingTimeout:     pingTimeout,
			BusyTimeout:     busyTimeout,
			RetryAttempts:   getEnvInt("DB_RETRY_ATTEMPTS", 3),
		},
		Server: models.ServerConfig{
			Addr:            getEnvString("HTTP_ADDR", ":8080"),
			ReadTimeout:     readTimeout,
			WriteTimeout:    writeTimeout,
			IdleTimeout:     idleTimeout,
			ShutdownTimeout: shutdownTimeout,
		},
		Ledger: models.LedgerConfig{
			Timezone:          getEnvString("LEDGER_TIMEZONE", "Europe/Moscow"),
			DefaultCommission: getEnvString("DEFAULT_COMMISSION_PERCENT", "0"),
		},
	}

	jobs, err := loadJobsConfig(getEnvString("JOBS_CONFIG_FILE", "jobs.yaml"))
	if err != nil {
		return nil, err
	}
	cfg.Jobs = jobs

	return cfg, nil
}

// loadJobsConfig reads the optional scheduled-jobs YAML file. A missing
// file just disables all jobs.
func loadJobsConfig(path string) (models.JobsConfig, error) {
	var jobs models.JobsConfig

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return jobs, nil
	}
	if err != nil {
		return jobs, fmt.Errorf("unable to read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &jobs); err != nil {
		return jobs, fmt.Errorf("unable to parse %s: %w", path, err)
	}
	return jobs, nil
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	if value := os.Getenv(key); value != "" {
		duration, err := time.ParseDuration(value)
		if err != nil {
			return 0, fmt.Errorf("invalid duration for %s: %q (%w)", key, value, err)
		}
		return duration, nil
	}
	return defaultValue, nil
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
