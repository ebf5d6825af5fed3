package database

import (
	"context"
	"errors"
	"testing"

	"contractor-ledger-go/internal/store"

	"github.com/shopspring/decimal"
)

func TestUpsertRate_OverwritesSameDate(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()
	ctx := context.Background()

	if err := service.UpsertRate(ctx, "2024-03-01", decimal.NewFromInt(90)); err != nil {
		t.Fatalf("UpsertRate failed: %v", err)
	}
	if err := service.UpsertRate(ctx, "2024-03-01", decimal.RequireFromString("91.5")); err != nil {
		t.Fatalf("Second UpsertRate failed: %v", err)
	}

	rate, err := service.GetRate(ctx, "2024-03-01")
	if err != nil {
		t.Fatalf("GetRate failed: %v", err)
	}
	if !rate.Rate.Equal(decimal.RequireFromString("91.5")) {
		t.Errorf("Expected 91.5, got %s", rate.Rate)
	}
}

func TestUpsertRate_Invalid(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()
	ctx := context.Background()

	if err := service.UpsertRate(ctx, "01.03.2024", decimal.NewFromInt(90)); err == nil {
		t.Error("Expected malformed date to be rejected")
	}
	if err := service.UpsertRate(ctx, "2024-03-01", decimal.Zero); err == nil {
		t.Error("Expected non-positive rate to be rejected")
	}
}

func TestGetRate_NotFound(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	if _, err := service.GetRate(context.Background(), "2024-03-01"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}
	if _, err := service.LatestRate(context.Background()); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound from LatestRate, got %v", err)
	}
}

func TestRatesInRange(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()
	ctx := context.Background()

	dates := map[string]int64{
		"2024-02-29": 89,
		"2024-03-01": 90,
		"2024-03-04": 92,
	}
	for date, rate := range dates {
		if err := service.UpsertRate(ctx, date, decimal.NewFromInt(rate)); err != nil {
			t.Fatalf("UpsertRate %s failed: %v", date, err)
		}
	}

	rates, err := service.RatesInRange(ctx, "2024-03-01", "2024-03-04")
	if err != nil {
		t.Fatalf("RatesInRange failed: %v", err)
	}
	if len(rates) != 2 {
		t.Fatalf("Expected 2 rates in range, got %d", len(rates))
	}
	if !rates["2024-03-01"].Equal(decimal.NewFromInt(90)) {
		t.Errorf("Expected 90 for 2024-03-01, got %s", rates["2024-03-01"])
	}
	if _, ok := rates["2024-02-29"]; ok {
		t.Error("Expected 2024-02-29 outside the range")
	}
}

func TestDeleteRate(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()
	ctx := context.Background()

	if err := service.UpsertRate(ctx, "2024-03-01", decimal.NewFromInt(90)); err != nil {
		t.Fatalf("UpsertRate failed: %v", err)
	}
	if err := service.DeleteRate(ctx, "2024-03-01"); err != nil {
		t.Fatalf("DeleteRate failed: %v", err)
	}
	if err := service.DeleteRate(ctx, "2024-03-01"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound on second delete, got %v", err)
	}
}
