package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"contractor-ledger-go/internal/models"
	"contractor-ledger-go/internal/store"

	"github.com/shopspring/decimal"
)

func mustDeposit(t *testing.T, service *Service, accountId, opId string, amount int64) {
	t.Helper()
	_, err := service.ProcessCredit(context.Background(), store.AppendOperationParams{
		OperationId: opId, AccountId: accountId, Type: models.OpDepositRub,
		Amount: decimal.NewFromInt(amount), Currency: models.CurrencyRub,
		DeltaRub: decimal.NewFromInt(amount),
	})
	if err != nil {
		t.Fatalf("ProcessCredit failed: %v", err)
	}
}

func mustBalances(t *testing.T, service *Service, accountId string) (decimal.Decimal, decimal.Decimal) {
	t.Helper()
	account, err := service.GetAccount(context.Background(), accountId)
	if err != nil {
		t.Fatalf("GetAccount failed: %v", err)
	}
	return account.BalanceRub, account.BalanceUsdt
}

func TestProcessDebit_AfterCredit(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()
	ctx := context.Background()

	accountId := mustCreateAccount(t, service, "Acme", "0")
	mustDeposit(t, service, accountId, "dep1", 100)

	if _, err := service.ProcessDebit(ctx, store.AppendOperationParams{
		OperationId: "wd1", AccountId: accountId, Type: models.OpWithdrawRub,
		Amount: decimal.NewFromInt(40), Currency: models.CurrencyRub,
		DeltaRub: decimal.NewFromInt(-40),
	}); err != nil {
		t.Fatalf("ProcessDebit failed: %v", err)
	}

	rub, usdt := mustBalances(t, service, accountId)
	if !rub.Equal(decimal.NewFromInt(60)) {
		t.Errorf("Expected balance 60 RUB, got %s", rub)
	}
	if !usdt.IsZero() {
		t.Errorf("Expected zero USDT, got %s", usdt)
	}
}

func TestProcessOperation_DuplicateId(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()
	ctx := context.Background()

	accountId := mustCreateAccount(t, service, "Acme", "0")
	mustDeposit(t, service, accountId, "dep1", 100)

	_, err := service.ProcessCredit(ctx, store.AppendOperationParams{
		OperationId: "dep1", AccountId: accountId, Type: models.OpDepositRub,
		Amount: decimal.NewFromInt(50), Currency: models.CurrencyRub,
		DeltaRub: decimal.NewFromInt(50),
	})
	if !errors.Is(err, store.ErrDuplicateOperation) {
		t.Fatalf("Expected ErrDuplicateOperation, got %v", err)
	}

	// The rejected insert must roll back its balance delta too.
	rub, _ := mustBalances(t, service, accountId)
	if !rub.Equal(decimal.NewFromInt(100)) {
		t.Errorf("Expected balance 100 after rollback, got %s", rub)
	}
}

func TestProcessExchange(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()
	ctx := context.Background()

	accountId := mustCreateAccount(t, service, "Acme", "5")
	mustDeposit(t, service, accountId, "dep1", 5000)

	// 5000 RUB at 90: gross 55.56, 5% commission 2.78, net 52.78.
	err := service.ProcessExchange(ctx, store.ExchangeParams{
		OperationId:           "ex1",
		CommissionOperationId: "cm1",
		AccountId:             accountId,
		AmountRub:             decimal.NewFromInt(5000),
		Rate:                  decimal.NewFromInt(90),
		GrossUsdt:             decimal.RequireFromString("55.56"),
		CommissionUsdt:        decimal.RequireFromString("2.78"),
	})
	if err != nil {
		t.Fatalf("ProcessExchange failed: %v", err)
	}

	rub, usdt := mustBalances(t, service, accountId)
	if !rub.IsZero() {
		t.Errorf("Expected zero RUB, got %s", rub)
	}
	if !usdt.Equal(decimal.RequireFromString("52.78")) {
		t.Errorf("Expected 52.78 USDT, got %s", usdt)
	}

	exchange, err := service.GetOperation(ctx, "ex1")
	if err != nil {
		t.Fatalf("GetOperation failed: %v", err)
	}
	if !exchange.Rated || !exchange.ExchangeRate.Equal(decimal.NewFromInt(90)) {
		t.Errorf("Expected exchange rated at 90, got %v / %s", exchange.Rated, exchange.ExchangeRate)
	}

	commission, err := service.GetOperation(ctx, "cm1")
	if err != nil {
		t.Fatalf("GetOperation commission failed: %v", err)
	}
	if commission.Type != models.OpCommission || commission.Currency != models.CurrencyUsdt {
		t.Errorf("Unexpected commission row: %s %s", commission.Type, commission.Currency)
	}

	total, err := service.CommissionTotal(ctx, accountId, nil, nil)
	if err != nil {
		t.Fatalf("CommissionTotal failed: %v", err)
	}
	if !total.Equal(decimal.RequireFromString("2.78")) {
		t.Errorf("Expected commission total 2.78, got %s", total)
	}
}

func TestProcessExchange_ZeroCommission(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()
	ctx := context.Background()

	accountId := mustCreateAccount(t, service, "Acme", "0")
	mustDeposit(t, service, accountId, "dep1", 900)

	err := service.ProcessExchange(ctx, store.ExchangeParams{
		OperationId:    "ex1",
		AccountId:      accountId,
		AmountRub:      decimal.NewFromInt(900),
		Rate:           decimal.NewFromInt(90),
		GrossUsdt:      decimal.NewFromInt(10),
		CommissionUsdt: decimal.Zero,
	})
	if err != nil {
		t.Fatalf("ProcessExchange failed: %v", err)
	}

	rub, usdt := mustBalances(t, service, accountId)
	if !rub.IsZero() || !usdt.Equal(decimal.NewFromInt(10)) {
		t.Errorf("Expected 0 RUB / 10 USDT, got %s / %s", rub, usdt)
	}

	// No commission row gets written for a zero commission.
	ops, err := service.ListOperations(ctx, store.ListOperationsParams{AccountId: accountId, Types: []string{models.OpCommission}})
	if err != nil {
		t.Fatalf("ListOperations failed: %v", err)
	}
	if len(ops) != 0 {
		t.Fatalf("Expected no commission rows, got %d", len(ops))
	}
}

func TestProcessExchange_InsufficientRub(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()
	ctx := context.Background()

	accountId := mustCreateAccount(t, service, "Acme", "0")
	mustDeposit(t, service, accountId, "dep1", 100)

	err := service.ProcessExchange(ctx, store.ExchangeParams{
		OperationId:           "ex1",
		CommissionOperationId: "cm1",
		AccountId:             accountId,
		AmountRub:             decimal.NewFromInt(5000),
		Rate:                  decimal.NewFromInt(90),
		GrossUsdt:             decimal.RequireFromString("55.56"),
		CommissionUsdt:        decimal.Zero,
	})
	if !errors.Is(err, store.ErrInsufficientFunds) {
		t.Fatalf("Expected ErrInsufficientFunds, got %v", err)
	}

	rub, usdt := mustBalances(t, service, accountId)
	if !rub.Equal(decimal.NewFromInt(100)) || !usdt.IsZero() {
		t.Errorf("Expected untouched balances, got %s / %s", rub, usdt)
	}
}

func TestDeleteOperation_ReversesEachType(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()
	ctx := context.Background()

	accountId := mustCreateAccount(t, service, "Acme", "5")
	mustDeposit(t, service, accountId, "dep1", 5000)

	if err := service.ProcessExchange(ctx, store.ExchangeParams{
		OperationId:           "ex1",
		CommissionOperationId: "cm1",
		AccountId:             accountId,
		AmountRub:             decimal.NewFromInt(5000),
		Rate:                  decimal.NewFromInt(90),
		GrossUsdt:             decimal.RequireFromString("55.56"),
		CommissionUsdt:        decimal.RequireFromString("2.78"),
	}); err != nil {
		t.Fatalf("ProcessExchange failed: %v", err)
	}

	// Deleting the commission row refunds its USDT leg.
	if _, err := service.DeleteOperation(ctx, "cm1"); err != nil {
		t.Fatalf("Delete commission failed: %v", err)
	}
	_, usdt := mustBalances(t, service, accountId)
	if !usdt.Equal(decimal.RequireFromString("55.56")) {
		t.Errorf("Expected 55.56 USDT after commission reversal, got %s", usdt)
	}

	// Deleting the exchange row restores the RUB and removes the gross USDT.
	result, err := service.DeleteOperation(ctx, "ex1")
	if err != nil {
		t.Fatalf("Delete exchange failed: %v", err)
	}
	if !result.BalanceRub.Equal(decimal.NewFromInt(5000)) || !result.BalanceUsdt.IsZero() {
		t.Errorf("Expected 5000 RUB / 0 USDT, got %s / %s", result.BalanceRub, result.BalanceUsdt)
	}

	// And finally the deposit itself.
	if _, err := service.DeleteOperation(ctx, "dep1"); err != nil {
		t.Fatalf("Delete deposit failed: %v", err)
	}
	rub, usdt := mustBalances(t, service, accountId)
	if !rub.IsZero() || !usdt.IsZero() {
		t.Errorf("Expected zero balances, got %s / %s", rub, usdt)
	}
}

func TestDeleteOperation_InsufficientForReversal(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()
	ctx := context.Background()

	accountId := mustCreateAccount(t, service, "Acme", "0")
	mustDeposit(t, service, accountId, "dep1", 100)

	if _, err := service.ProcessDebit(ctx, store.AppendOperationParams{
		OperationId: "wd1", AccountId: accountId, Type: models.OpWithdrawRub,
		Amount: decimal.NewFromInt(100), Currency: models.CurrencyRub,
		DeltaRub: decimal.NewFromInt(-100),
	}); err != nil {
		t.Fatalf("ProcessDebit failed: %v", err)
	}

	// Reversing the deposit would debit 100 from a zero balance.
	_, err := service.DeleteOperation(ctx, "dep1")
	if !errors.Is(err, store.ErrInsufficientFunds) {
		t.Fatalf("Expected ErrInsufficientFunds, got %v", err)
	}

	if _, err := service.GetOperation(ctx, "dep1"); err != nil {
		t.Fatalf("Expected operation kept after failed delete, got %v", err)
	}
}

func TestAmendOperation_AmountRoundTrip(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()
	ctx := context.Background()

	accountId := mustCreateAccount(t, service, "Acme", "0")
	mustDeposit(t, service, accountId, "dep1", 100)

	newAmount := decimal.NewFromInt(150)
	if err := service.AmendOperation(ctx, store.AmendOperationParams{
		OperationId: "dep1", Amount: &newAmount,
	}); err != nil {
		t.Fatalf("Amend up failed: %v", err)
	}
	rub, _ := mustBalances(t, service, accountId)
	if !rub.Equal(decimal.NewFromInt(150)) {
		t.Errorf("Expected 150 after amend, got %s", rub)
	}

	oldAmount := decimal.NewFromInt(100)
	if err := service.AmendOperation(ctx, store.AmendOperationParams{
		OperationId: "dep1", Amount: &oldAmount,
	}); err != nil {
		t.Fatalf("Amend back failed: %v", err)
	}
	rub, _ = mustBalances(t, service, accountId)
	if !rub.Equal(decimal.NewFromInt(100)) {
		t.Errorf("Expected 100 restored, got %s", rub)
	}

	op, err := service.GetOperation(ctx, "dep1")
	if err != nil {
		t.Fatalf("GetOperation failed: %v", err)
	}
	if op.AuditNote == "" {
		t.Error("Expected audit note recording the amendments")
	}
}

func TestAmendOperation_ExchangeAmountRejected(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()
	ctx := context.Background()

	accountId := mustCreateAccount(t, service, "Acme", "0")
	mustDeposit(t, service, accountId, "dep1", 5000)

	if err := service.ProcessExchange(ctx, store.ExchangeParams{
		OperationId:           "ex1",
		CommissionOperationId: "cm1",
		AccountId:             accountId,
		AmountRub:             decimal.NewFromInt(1000),
		Rate:                  decimal.NewFromInt(90),
		GrossUsdt:             decimal.RequireFromString("11.11"),
		CommissionUsdt:        decimal.Zero,
	}); err != nil {
		t.Fatalf("ProcessExchange failed: %v", err)
	}

	amount := decimal.NewFromInt(2000)
	err := service.AmendOperation(ctx, store.AmendOperationParams{OperationId: "ex1", Amount: &amount})
	if err == nil {
		t.Fatal("Expected amend of exchange amount to be rejected")
	}
}

func TestListOperations_HidesChecksByDefault(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()
	ctx := context.Background()

	accountId := mustCreateAccount(t, service, "Acme", "0")
	mustDeposit(t, service, accountId, "dep1", 100)
	if _, err := service.ProcessCredit(ctx, store.AppendOperationParams{
		OperationId: "chk1", AccountId: accountId, Type: models.OpDepositRubCheck,
		Amount: decimal.NewFromInt(500), Currency: models.CurrencyRub,
		DeltaRub: decimal.NewFromInt(500),
	}); err != nil {
		t.Fatalf("Check deposit failed: %v", err)
	}

	ops, err := service.ListOperations(ctx, store.ListOperationsParams{AccountId: accountId})
	if err != nil {
		t.Fatalf("ListOperations failed: %v", err)
	}
	if len(ops) != 1 || ops[0].OperationId != "dep1" {
		t.Fatalf("Expected only dep1, got %d operations", len(ops))
	}

	ops, err = service.ListOperations(ctx, store.ListOperationsParams{AccountId: accountId, IncludeChecks: true})
	if err != nil {
		t.Fatalf("ListOperations with checks failed: %v", err)
	}
	if len(ops) != 2 {
		t.Fatalf("Expected 2 operations with checks, got %d", len(ops))
	}
}

func TestSettleChecks(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()
	ctx := context.Background()

	accountId := mustCreateAccount(t, service, "Acme", "5")
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	for i, opId := range []string{"chk1", "chk2"} {
		if _, err := service.ProcessCredit(ctx, store.AppendOperationParams{
			OperationId: opId, AccountId: accountId, Type: models.OpDepositRubCheck,
			Amount: decimal.NewFromInt(1500), Currency: models.CurrencyRub,
			DeltaRub: decimal.NewFromInt(1500), CreatedAt: base.Add(time.Duration(i) * time.Hour),
		}); err != nil {
			t.Fatalf("Check deposit failed: %v", err)
		}
	}

	rate := decimal.NewFromInt(90)
	// 3000 RUB at 90: gross 33.33, 5% commission 1.67, net 31.66.
	params := store.SettleChecksParams{
		AccountId:             accountId,
		CommissionOperationId: "cm1",
		ActorLabel:            "reconcile",
		DebitRub:              decimal.NewFromInt(3000),
		GrossUsdt:             decimal.RequireFromString("33.33"),
		CommissionUsdt:        decimal.RequireFromString("1.67"),
		Rated:                 map[string]decimal.Decimal{"chk1": rate, "chk2": rate},
	}
	if err := service.SettleChecks(ctx, params); err != nil {
		t.Fatalf("SettleChecks failed: %v", err)
	}

	rub, usdt := mustBalances(t, service, accountId)
	if !rub.IsZero() {
		t.Errorf("Expected zero RUB, got %s", rub)
	}
	if !usdt.Equal(decimal.RequireFromString("31.66")) {
		t.Errorf("Expected 31.66 USDT, got %s", usdt)
	}

	unrated, err := service.UnratedChecks(ctx, accountId, base.Add(-time.Hour), base.Add(24*time.Hour))
	if err != nil {
		t.Fatalf("UnratedChecks failed: %v", err)
	}
	if len(unrated) != 0 {
		t.Fatalf("Expected no unrated checks, got %d", len(unrated))
	}

	// Settling the same checks again must hit the stamp guard. Fund the
	// debit first so the balance guard cannot mask it.
	mustDeposit(t, service, accountId, "dep1", 3000)
	params.CommissionOperationId = "cm2"
	err = service.SettleChecks(ctx, params)
	if !errors.Is(err, store.ErrDuplicateOperation) {
		t.Fatalf("Expected ErrDuplicateOperation on re-settle, got %v", err)
	}

	// The aborted re-settle must roll back its debit too.
	rub, _ = mustBalances(t, service, accountId)
	if !rub.Equal(decimal.NewFromInt(3000)) {
		t.Errorf("Expected balance 3000 after rollback, got %s", rub)
	}
}

func TestCheckSummary(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()
	ctx := context.Background()

	first := mustCreateAccount(t, service, "Acme", "0")
	second := mustCreateAccount(t, service, "Globex", "0")
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	deposits := []struct {
		account string
		opId    string
		amount  int64
	}{
		{first, "chk1", 1000},
		{first, "chk2", 500},
		{second, "chk3", 2000},
	}
	for _, d := range deposits {
		if _, err := service.ProcessCredit(ctx, store.AppendOperationParams{
			OperationId: d.opId, AccountId: d.account, Type: models.OpDepositRubCheck,
			Amount: decimal.NewFromInt(d.amount), Currency: models.CurrencyRub,
			DeltaRub: decimal.NewFromInt(d.amount), CreatedAt: base,
		}); err != nil {
			t.Fatalf("Check deposit failed: %v", err)
		}
	}

	lines, err := service.CheckSummary(ctx, base.Add(-time.Hour), base.Add(time.Hour))
	if err != nil {
		t.Fatalf("CheckSummary failed: %v", err)
	}
	if len(lines) != 2 {
		t.Fatalf("Expected 2 summary lines, got %d", len(lines))
	}
	if lines[0].AccountName != "Globex" || !lines[0].AmountRub.Equal(decimal.NewFromInt(2000)) {
		t.Errorf("Expected Globex 2000 first, got %s %s", lines[0].AccountName, lines[0].AmountRub)
	}
	if lines[1].Checks != 2 || !lines[1].AmountRub.Equal(decimal.NewFromInt(1500)) {
		t.Errorf("Expected Acme 2 checks 1500, got %d %s", lines[1].Checks, lines[1].AmountRub)
	}
}
