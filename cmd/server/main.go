package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"contractor-ledger-go/internal/api"
	"contractor-ledger-go/internal/common"
	"contractor-ledger-go/internal/config"
	"contractor-ledger-go/internal/models"
	"contractor-ledger-go/internal/reconcile"

	"github.com/jasonlvhit/gocron"
	"go.uber.org/zap"
)

func main() {
	ctx := context.Background()

	logger, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	logger.Info("Starting ledger server")

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      api.NewServer(services.Ledger, services.DbService, services.Engine).Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	stopJobs := startScheduledJobs(cfg.Jobs, services)
	defer stopJobs()

	go func() {
		logger.Info("HTTP server listening", zap.String("addr", cfg.Server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Forced shutdown", zap.Error(err))
	}
	logger.Info("Server stopped")
}

// startScheduledJobs wires the optional daily jobs: the check-intake summary
// and the automatic reconciliation pass (which reuses already stored rates).
func startScheduledJobs(jobs models.JobsConfig, services *common.Services) func() {
	scheduler := gocron.NewScheduler()
	scheduled := false

	if jobs.DailyCheckReportAt != "" {
		if err := scheduler.Every(1).Day().At(jobs.DailyCheckReportAt).Do(func() {
			runDailyCheckReport(services)
		}); err != nil {
			zap.L().Error("Failed to schedule daily check report", zap.Error(err))
		} else {
			scheduled = true
			zap.L().Info("Daily check report scheduled", zap.String("at", jobs.DailyCheckReportAt))
		}
	}

	if jobs.AutoReconcile && jobs.AutoReconcileAt != "" {
		if err := scheduler.Every(1).Day().At(jobs.AutoReconcileAt).Do(func() {
			runAutoReconcile(services)
		}); err != nil {
			zap.L().Error("Failed to schedule automatic reconciliation", zap.Error(err))
		} else {
			scheduled = true
			zap.L().Info("Automatic reconciliation scheduled", zap.String("at", jobs.AutoReconcileAt))
		}
	}

	if !scheduled {
		return func() {}
	}

	stop := scheduler.Start()
	return func() { close(stop) }
}

func runDailyCheckReport(services *common.Services) {
	summary, err := services.Ledger.DailyCheckSummary(context.Background(), "")
	if err != nil {
		zap.L().Error("Daily check report failed", zap.Error(err))
		return
	}
	zap.L().Info("Daily check report",
		zap.String("date", summary.Date),
		zap.Int("accounts", len(summary.Lines)),
		zap.Int("checks", summary.TotalChecks),
		zap.String("total_rub", summary.TotalRub.StringFixed(2)))
	for _, line := range summary.Lines {
		zap.L().Info("Daily check report line",
			zap.String("account", line.AccountName),
			zap.Int("checks", line.Checks),
			zap.String("amount_rub", line.AmountRub.StringFixed(2)))
	}
}

// runAutoReconcile settles the automatic window using rates already in the
// table; dates without a rate stay untouched and show up as warnings.
func runAutoReconcile(services *common.Services) {
	report, err := services.Engine.Run(context.Background(), reconcile.RunParams{Actor: "scheduler"})
	if err != nil {
		zap.L().Error("Automatic reconciliation failed", zap.Error(err))
		return
	}
	zap.L().Info("Automatic reconciliation finished",
		zap.Int("accounts_processed", report.AccountsProcessed),
		zap.Int("accounts_skipped", report.AccountsSkipped),
		zap.String("total_rub", report.TotalDebitedRub.StringFixed(2)),
		zap.String("total_usdt", report.TotalNetUsdt.StringFixed(2)))
}
