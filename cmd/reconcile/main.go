package main

import (
	"context"
	"flag"
	"fmt"
	"strings"
	"time"

	"contractor-ledger-go/internal/common"
	"contractor-ledger-go/internal/config"
	"contractor-ledger-go/internal/models"
	"contractor-ledger-go/internal/reconcile"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func main() {
	ctx := context.Background()

	logger, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	rateFlag := flag.String("rate", "", "Exchange rate to store for the settlement window (optional, uses stored rates if omitted)")
	fromFlag := flag.String("from", "", "Period start, YYYY-MM-DD (optional, defaults to the automatic window)")
	toFlag := flag.String("to", "", "Period end, YYYY-MM-DD inclusive (optional)")
	actorFlag := flag.String("actor", "cli", "Actor label recorded on commission operations")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	params := reconcile.RunParams{Actor: *actorFlag}
	if *rateFlag != "" {
		rate, err := decimal.NewFromString(*rateFlag)
		if err != nil || !rate.IsPositive() {
			logger.Fatal("Rate must be a positive decimal number", zap.String("rate", *rateFlag))
		}
		params.Rate = rate
	}
	if *fromFlag != "" {
		from, err := time.ParseInLocation(models.DateLayout, *fromFlag, services.Location)
		if err != nil {
			logger.Fatal("Invalid -from date", zap.String("from", *fromFlag), zap.Error(err))
		}
		params.From = &from
	}
	if *toFlag != "" {
		to, err := time.ParseInLocation(models.DateLayout, *toFlag, services.Location)
		if err != nil {
			logger.Fatal("Invalid -to date", zap.String("to", *toFlag), zap.Error(err))
		}
		params.To = &to
	}

	report, err := services.Engine.Run(ctx, params)
	if err != nil {
		logger.Fatal("Reconciliation failed", zap.Error(err))
	}

	printReport(report)
}

func printReport(report *models.ReconciliationReport) {
	common.PrintHeader(fmt.Sprintf("RECONCILIATION REPORT  %s .. %s",
		report.From.Format(models.DateLayout),
		report.To.AddDate(0, 0, -1).Format(models.DateLayout)), common.DefaultWidth)

	if len(report.Accounts) == 0 {
		fmt.Println("Nothing to settle: no unrated checks in the period.")
	}

	for _, settlement := range report.Accounts {
		fmt.Printf("\n┌─ %s\n", settlement.AccountName)
		switch {
		case settlement.Skipped:
			fmt.Printf("│  SKIPPED: %s\n", settlement.SkipReason)
		case settlement.Checks == 0:
			fmt.Printf("│  no rate for: %s\n", strings.Join(settlement.UnresolvedDates, ", "))
		default:
			for i, group := range settlement.RateGroups {
				isLast := i == len(settlement.RateGroups)-1 && len(settlement.UnresolvedDates) == 0
				fmt.Printf("%s%s: %d checks, %s @ %s -> %s\n",
					common.BoxPrefix(isLast), group.Date, group.Checks,
					common.FormatMoney(group.AmountRub, models.CurrencyRub),
					group.Rate.String(),
					common.FormatMoney(group.GrossUsdt, models.CurrencyUsdt))
			}
			if len(settlement.UnresolvedDates) > 0 {
				fmt.Printf("%sno rate for: %s\n", common.BoxPrefix(true), strings.Join(settlement.UnresolvedDates, ", "))
			}
			common.PrintBoxSeparator(common.DefaultWidth - 2)
			fmt.Printf("│  debited %s, credited %s net (commission %s)\n",
				common.FormatMoney(settlement.DebitedRub, models.CurrencyRub),
				common.FormatMoney(settlement.NetUsdt, models.CurrencyUsdt),
				common.FormatMoney(settlement.CommissionUsdt, models.CurrencyUsdt))
		}
	}

	summary := fmt.Sprintf("TOTALS: %d accounts settled, %d skipped | %s debited | %s credited | %s commission",
		report.AccountsProcessed, report.AccountsSkipped,
		common.FormatMoney(report.TotalDebitedRub, models.CurrencyRub),
		common.FormatMoney(report.TotalNetUsdt, models.CurrencyUsdt),
		common.FormatMoney(report.TotalCommission, models.CurrencyUsdt))
	common.PrintFooter(summary, common.DefaultWidth)
}
