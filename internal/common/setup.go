package common

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"contractor-ledger-go/internal/database"
	"contractor-ledger-go/internal/ledger"
	"contractor-ledger-go/internal/models"
	"contractor-ledger-go/internal/reconcile"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// init loads environment variables from .env file if it exists
func init() {
	// Environment variables can also be set via other means (shell export,
	// docker, etc.), so a missing .env is fine.
	if err := godotenv.Load(); err != nil {
		log.Printf("Note: No .env file found or unable to load it: %v\n", err)
	} else {
		log.Println("Loaded environment variables from .env file")
	}
}

type Services struct {
	DbService *database.Service
	Ledger    *ledger.Service
	Engine    *reconcile.Engine
	Location  *time.Location
}

func InitializeLogger() (*zap.Logger, func()) {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	zap.ReplaceGlobals(logger)

	cleanup := func() {
		if err := logger.Sync(); err != nil {
			if !isIgnorableSyncError(err) {
				log.Printf("Failed to sync logger: %v\n", err)
			}
		}
	}

	return logger, cleanup
}

func InitializeServices(ctx context.Context, cfg *models.Config) (*Services, error) {
	location, err := time.LoadLocation(cfg.Ledger.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", cfg.Ledger.Timezone, err)
	}

	defaultCommission, err := decimal.NewFromString(cfg.Ledger.DefaultCommission)
	if err != nil {
		return nil, fmt.Errorf("invalid default commission %q: %w", cfg.Ledger.DefaultCommission, err)
	}

	dbService, err := database.NewService(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	ledgerService := ledger.NewService(dbService, location, defaultCommission)
	engine := reconcile.NewEngine(dbService, location)

	zap.L().Info("Services initialized",
		zap.String("timezone", cfg.Ledger.Timezone),
		zap.String("default_commission", defaultCommission.String()))

	return &Services{
		DbService: dbService,
		Ledger:    ledgerService,
		Engine:    engine,
		Location:  location,
	}, nil
}

// InitializeDatabaseOnly initializes just the database service.
// Useful for read-only operations like querying balances.
func InitializeDatabaseOnly(ctx context.Context, cfg *models.Config) (*database.Service, error) {
	dbService, err := database.NewService(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	return dbService, nil
}

func (cs *Services) Close() {
	if cs.DbService != nil {
		cs.DbService.Close()
	}
}

func isIgnorableSyncError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "sync /dev/stderr: inappropriate ioctl for device") ||
		strings.Contains(msg, "sync /dev/stdout: inappropriate ioctl for device")
}
