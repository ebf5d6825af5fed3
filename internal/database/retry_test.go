package database

import (
	"context"
	"errors"
	"testing"

	"contractor-ledger-go/internal/models"
	"contractor-ledger-go/internal/store"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
)

func TestWithRetry_ExhaustsOnLock(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create sqlmock: %v", err)
	}
	defer db.Close()
	service := NewServiceFromDB(db)

	for i := 0; i < defaultRetryAttempts; i++ {
		mock.ExpectBegin().WillReturnError(errors.New("database is locked"))
	}

	_, err = service.ProcessCredit(context.Background(), store.AppendOperationParams{
		OperationId: "op1", AccountId: "acc1", Type: models.OpDepositRub,
		Amount: decimal.NewFromInt(10), Currency: models.CurrencyRub,
		DeltaRub: decimal.NewFromInt(10),
	})
	if !errors.Is(err, store.ErrBusy) {
		t.Fatalf("Expected ErrBusy after exhausted retries, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet expectations: %v", err)
	}
}

func TestWithRetry_DoesNotRetryRealFailures(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create sqlmock: %v", err)
	}
	defer db.Close()
	service := NewServiceFromDB(db)

	mock.ExpectBegin().WillReturnError(errors.New("disk I/O error"))

	_, err = service.ProcessCredit(context.Background(), store.AppendOperationParams{
		OperationId: "op1", AccountId: "acc1", Type: models.OpDepositRub,
		Amount: decimal.NewFromInt(10), Currency: models.CurrencyRub,
		DeltaRub: decimal.NewFromInt(10),
	})
	if err == nil || errors.Is(err, store.ErrBusy) {
		t.Fatalf("Expected a single non-retried failure, got %v", err)
	}

	// Exactly one begin attempt, no retries.
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet expectations: %v", err)
	}
}

func TestWithRetry_CoversRateDeletes(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create sqlmock: %v", err)
	}
	defer db.Close()
	service := NewServiceFromDB(db)

	for i := 0; i < defaultRetryAttempts; i++ {
		mock.ExpectExec("DELETE FROM rates").WillReturnError(errors.New("database is locked"))
	}

	if err := service.DeleteRate(context.Background(), "2024-03-01"); !errors.Is(err, store.ErrBusy) {
		t.Fatalf("Expected ErrBusy after exhausted retries, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet expectations: %v", err)
	}
}

func TestIsDuplicateKey(t *testing.T) {
	if !isDuplicateKey(errors.New("UNIQUE constraint failed: operations.operation_id")) {
		t.Error("Expected UNIQUE constraint message to match")
	}
	if isDuplicateKey(errors.New("no such table: operations")) {
		t.Error("Expected unrelated error not to match")
	}
}

func TestIsTransient(t *testing.T) {
	if !isTransient(errors.New("database is locked")) {
		t.Error("Expected lock message to match")
	}
	if isTransient(errors.New("constraint failed")) {
		t.Error("Expected constraint error not to match")
	}
}
