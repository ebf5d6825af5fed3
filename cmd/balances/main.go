package main

import (
	"context"
	"flag"
	"fmt"

	"contractor-ledger-go/internal/common"
	"contractor-ledger-go/internal/config"
	"contractor-ledger-go/internal/models"

	"go.uber.org/zap"
)

func main() {
	ctx := context.Background()

	logger, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	nameFlag := flag.String("name", "", "Filter by specific account name (optional)")
	flag.Parse()

	logger.Info("Starting balance query")

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	logger.Info("Connecting to database", zap.String("path", cfg.Database.Path))
	dbService, err := common.InitializeDatabaseOnly(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer dbService.Close()

	var accounts []models.Account
	if *nameFlag != "" {
		account, err := dbService.GetAccountByName(ctx, *nameFlag)
		if err != nil {
			logger.Fatal("Failed to find account", zap.String("name", *nameFlag), zap.Error(err))
		}
		accounts = []models.Account{*account}
	} else {
		accounts, err = dbService.ListAccounts(ctx)
		if err != nil {
			logger.Fatal("Failed to list accounts", zap.Error(err))
		}
	}

	common.PrintHeader("ACCOUNT BALANCE REPORT", common.DefaultWidth)

	withFunds := 0
	for _, account := range accounts {
		fmt.Printf("\n┌─ %s (commission %s%%)\n", account.Name, account.CommissionPercent.String())
		fmt.Printf("│  ID: %s\n", account.Id)
		fmt.Printf("%s%-5s: %15s\n", common.BoxPrefix(false), models.CurrencyRub, account.BalanceRub.StringFixed(2))
		fmt.Printf("%s%-5s: %15s\n", common.BoxPrefix(true), models.CurrencyUsdt, account.BalanceUsdt.StringFixed(2))
		if account.BalanceRub.IsPositive() || account.BalanceUsdt.IsPositive() {
			withFunds++
		}
	}

	summary := fmt.Sprintf("SUMMARY: %d accounts (%d holding funds)", len(accounts), withFunds)
	common.PrintFooter(summary, common.DefaultWidth)

	logger.Info("Balance query completed",
		zap.Int("accounts", len(accounts)),
		zap.Int("with_funds", withFunds))
}
