package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"coinmeter/internal/budget"
	"coinmeter/internal/events"
	"coinmeter/internal/metrics"
	"coinmeter/internal/store"
	"coinmeter/internal/websocket"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
)

type fakeTxRunner struct {
	withTxFn func(ctx context.Context, fn func(*sqlx.Tx) error) error
}

func (f fakeTxRunner) WithTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	if f.withTxFn != nil {
		return f.withTxFn(ctx, fn)
	}
	return fn(nil)
}

type stubAccounts struct {
	createFn          func(ctx context.Context, tx store.Execer, userID string) error
	getByUserFn       func(ctx context.Context, userID string) (store.Account, error)
	getForUpdateFn    func(ctx context.Context, tx store.Getter, userID string) (store.Account, error)
	applySpendFn      func(ctx context.Context, tx store.Execer, userID string, coins int64, day time.Time) error
	creditFn          func(ctx context.Context, tx store.Execer, userID string, coins int64) error
	creditDepositFn   func(ctx context.Context, tx store.Execer, userID string, coins int64) error
	resetDailySpentFn func(ctx context.Context, tx store.Execer, userID string, day time.Time) error
	setBudgetFn       func(ctx context.Context, tx store.Execer, userID, period string, coins int64, startDate *time.Time, day time.Time) error
	deleteFn          func(ctx context.Context, tx store.Execer, userID string) error
}

func (s stubAccounts) Create(ctx context.Context, tx store.Execer, userID string) error {
	if s.createFn == nil {
		return nil
	}
	return s.createFn(ctx, tx, userID)
}

func (s stubAccounts) GetByUser(ctx context.Context, userID string) (store.Account, error) {
	if s.getByUserFn == nil {
		return store.Account{}, nil
	}
	return s.getByUserFn(ctx, userID)
}

func (s stubAccounts) GetForUpdate(ctx context.Context, tx store.Getter, userID string) (store.Account, error) {
	if s.getForUpdateFn == nil {
		return store.Account{}, nil
	}
	return s.getForUpdateFn(ctx, tx, userID)
}

func (s stubAccounts) ApplySpend(ctx context.Context, tx store.Execer, userID string, coins int64, day time.Time) error {
	if s.applySpendFn == nil {
		return nil
	}
	return s.applySpendFn(ctx, tx, userID, coins, day)
}

func (s stubAccounts) Credit(ctx context.Context, tx store.Execer, userID string, coins int64) error {
	if s.creditFn == nil {
		return nil
	}
	return s.creditFn(ctx, tx, userID, coins)
}

func (s stubAccounts) CreditDeposit(ctx context.Context, tx store.Execer, userID string, coins int64) error {
	if s.creditDepositFn == nil {
		return nil
	}
	return s.creditDepositFn(ctx, tx, userID, coins)
}

func (s stubAccounts) ResetDailySpent(ctx context.Context, tx store.Execer, userID string, day time.Time) error {
	if s.resetDailySpentFn == nil {
		return nil
	}
	return s.resetDailySpentFn(ctx, tx, userID, day)
}

func (s stubAccounts) SetBudget(ctx context.Context, tx store.Execer, userID, period string, coins int64, startDate *time.Time, day time.Time) error {
	if s.setBudgetFn == nil {
		return nil
	}
	return s.setBudgetFn(ctx, tx, userID, period, coins, startDate, day)
}

func (s stubAccounts) Delete(ctx context.Context, tx store.Execer, userID string) error {
	if s.deleteFn == nil {
		return nil
	}
	return s.deleteFn(ctx, tx, userID)
}

type stubTransactions struct {
	insertFn func(ctx context.Context, tx store.Execer, input store.TransactionInput) error
	listFn   func(ctx context.Context, filter store.TransactionFilter) ([]store.Transaction, error)
}

func (s stubTransactions) Insert(ctx context.Context, tx store.Execer, input store.TransactionInput) error {
	if s.insertFn == nil {
		return nil
	}
	return s.insertFn(ctx, tx, input)
}

func (s stubTransactions) List(ctx context.Context, filter store.TransactionFilter) ([]store.Transaction, error) {
	if s.listFn == nil {
		return nil, nil
	}
	return s.listFn(ctx, filter)
}

type stubPayments struct {
	getByIDFn       func(ctx context.Context, paymentID string) (store.Payment, error)
	markSucceededFn func(ctx context.Context, tx store.Execer, paymentID string) (int64, error)
	markCanceledFn  func(ctx context.Context, tx store.Execer, paymentID string) error
}

func (s stubPayments) GetByID(ctx context.Context, paymentID string) (store.Payment, error) {
	if s.getByIDFn == nil {
		return store.Payment{}, nil
	}
	return s.getByIDFn(ctx, paymentID)
}

func (s stubPayments) MarkSucceeded(ctx context.Context, tx store.Execer, paymentID string) (int64, error) {
	if s.markSucceededFn == nil {
		return 1, nil
	}
	return s.markSucceededFn(ctx, tx, paymentID)
}

func (s stubPayments) MarkCanceled(ctx context.Context, tx store.Execer, paymentID string) error {
	if s.markCanceledFn == nil {
		return nil
	}
	return s.markCanceledFn(ctx, tx, paymentID)
}

type stubUsage struct {
	insertFn func(ctx context.Context, tx store.Execer, id, userID, model string, tokensUsed, coinsSpent int64, costUnits string) error
	trimFn   func(ctx context.Context, tx store.Execer, userID string, keep int) error
}

func (s stubUsage) Insert(ctx context.Context, tx store.Execer, id, userID, model string, tokensUsed, coinsSpent int64, costUnits string) error {
	if s.insertFn == nil {
		return nil
	}
	return s.insertFn(ctx, tx, id, userID, model, tokensUsed, coinsSpent, costUnits)
}

func (s stubUsage) Trim(ctx context.Context, tx store.Execer, userID string, keep int) error {
	if s.trimFn == nil {
		return nil
	}
	return s.trimFn(ctx, tx, userID, keep)
}

type recordingHub struct {
	updates []websocket.BalanceUpdate
}

func (h *recordingHub) BroadcastBalance(userID string, update websocket.BalanceUpdate) {
	h.updates = append(h.updates, update)
}

type recordingPublisher struct {
	events []events.TransactionEvent
}

func (p *recordingPublisher) Publish(ctx context.Context, event events.TransactionEvent) error {
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

var testNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func today() time.Time {
	return time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
}

func newTestService(accounts AccountStore, transactions TransactionStore, payments PaymentStore, usage UsageStore, hub BalanceHub, publisher events.Publisher) *Service {
	svc := NewService(fakeTxRunner{}, nil, accounts, transactions, payments, usage, hub, publisher, 500)
	svc.now = func() time.Time { return testNow }
	return svc
}

func TestCommitSpendDebitsAndAppends(t *testing.T) {
	ctx := context.Background()
	var appliedCoins int64
	var inserted store.TransactionInput
	var usageInserted bool
	var trimmed bool
	hub := &recordingHub{}
	publisher := &recordingPublisher{}
	accounts := stubAccounts{
		getForUpdateFn: func(_ context.Context, _ store.Getter, userID string) (store.Account, error) {
			return store.Account{UserID: userID, Balance: 500, BudgetPeriod: "none", DailySpentDate: today()}, nil
		},
		applySpendFn: func(_ context.Context, _ store.Execer, _ string, coins int64, _ time.Time) error {
			appliedCoins = coins
			return nil
		},
	}
	transactions := stubTransactions{
		insertFn: func(_ context.Context, _ store.Execer, input store.TransactionInput) error {
			inserted = input
			return nil
		},
	}
	usage := stubUsage{
		insertFn: func(_ context.Context, _ store.Execer, _, userID, model string, tokensUsed, coinsSpent int64, costUnits string) error {
			usageInserted = true
			if coinsSpent != 180 || costUnits != "1.8" {
				t.Fatalf("unexpected usage row: coins=%d costUnits=%s", coinsSpent, costUnits)
			}
			return nil
		},
		trimFn: func(_ context.Context, _ store.Execer, _ string, keep int) error {
			trimmed = true
			if keep != 500 {
				t.Fatalf("expected keep 500, got %d", keep)
			}
			return nil
		},
	}
	svc := newTestService(accounts, transactions, stubPayments{}, usage, hub, publisher)

	result, err := svc.CommitSpend(ctx, SpendRequest{
		UserID:     "user-1",
		Coins:      180,
		Model:      "openai/gpt-4o",
		TokensUsed: 1500,
		CostUSD:    decimal.RequireFromString("0.0075"),
		USDRate:    decimal.RequireFromString("89.1"),
		Source:     "api",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.NewBalance != 320 || result.CoinsSpent != 180 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if appliedCoins != 180 {
		t.Fatalf("expected 180 coins debited, got %d", appliedCoins)
	}
	if inserted.Type != store.TxnSpend || inserted.Amount != -180 {
		t.Fatalf("unexpected transaction row: %+v", inserted)
	}
	if inserted.BalanceBefore != 500 || inserted.BalanceAfter != 320 {
		t.Fatalf("chain fields wrong: before=%d after=%d", inserted.BalanceBefore, inserted.BalanceAfter)
	}
	if *inserted.CostUSD != "0.0075" || *inserted.USDRate != "89.1" {
		t.Fatalf("cost capture wrong: %+v", inserted)
	}
	if !usageInserted || !trimmed {
		t.Fatalf("expected usage log insert and trim")
	}
	if len(hub.updates) != 1 || hub.updates[0].Balance != 320 {
		t.Fatalf("expected balance push of 320, got %+v", hub.updates)
	}
	if len(publisher.events) != 1 || publisher.events[0].Amount != -180 {
		t.Fatalf("expected published spend event, got %+v", publisher.events)
	}
}

func TestCommitSpendDeniedLeavesNoTrace(t *testing.T) {
	ctx := context.Background()
	accounts := stubAccounts{
		getForUpdateFn: func(_ context.Context, _ store.Getter, userID string) (store.Account, error) {
			return store.Account{UserID: userID, Balance: 50, BudgetPeriod: "none", DailySpentDate: today()}, nil
		},
		applySpendFn: func(_ context.Context, _ store.Execer, _ string, _ int64, _ time.Time) error {
			t.Fatalf("spend must not be applied on denial")
			return nil
		},
	}
	transactions := stubTransactions{
		insertFn: func(_ context.Context, _ store.Execer, _ store.TransactionInput) error {
			t.Fatalf("no transaction row on denial")
			return nil
		},
	}
	hub := &recordingHub{}
	svc := newTestService(accounts, transactions, stubPayments{}, stubUsage{}, hub, &recordingPublisher{})

	_, err := svc.CommitSpend(ctx, SpendRequest{UserID: "user-1", Coins: 180, Model: "m", USDRate: decimal.NewFromInt(100)})
	denial, ok := AsDenial(err)
	if !ok {
		t.Fatalf("expected denial, got %v", err)
	}
	if denial.Reason != budget.ReasonLowBalance || denial.Balance != 50 {
		t.Fatalf("unexpected denial: %+v", denial)
	}
	if len(hub.updates) != 0 {
		t.Fatalf("no balance push on denial")
	}
}

func TestCommitSpendRollsOverStaleDay(t *testing.T) {
	ctx := context.Background()
	var resetDay time.Time
	accounts := stubAccounts{
		getForUpdateFn: func(_ context.Context, _ store.Getter, userID string) (store.Account, error) {
			return store.Account{
				UserID:         userID,
				Balance:        500,
				BudgetPeriod:   "week",
				BudgetCoins:    700,
				DailySpent:     100,
				DailySpentDate: today().AddDate(0, 0, -1),
			}, nil
		},
		resetDailySpentFn: func(_ context.Context, _ store.Execer, _ string, day time.Time) error {
			resetDay = day
			return nil
		},
	}
	svc := newTestService(accounts, stubTransactions{}, stubPayments{}, stubUsage{}, &recordingHub{}, &recordingPublisher{})

	result, err := svc.CommitSpend(ctx, SpendRequest{UserID: "user-1", Coins: 80, Model: "m", USDRate: decimal.NewFromInt(100)})
	if err != nil {
		t.Fatalf("expected rollover to clear yesterday's counter: %v", err)
	}
	if !resetDay.Equal(today()) {
		t.Fatalf("expected reset stamped to today, got %v", resetDay)
	}
	if result.DailySpent != 80 {
		t.Fatalf("expected daily spent 80 after rollover, got %d", result.DailySpent)
	}
}

func TestCommitSpendRejectsNonPositiveCoins(t *testing.T) {
	svc := newTestService(stubAccounts{}, stubTransactions{}, stubPayments{}, stubUsage{}, &recordingHub{}, &recordingPublisher{})
	if _, err := svc.CommitSpend(context.Background(), SpendRequest{UserID: "user-1", Coins: 0}); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
}

func TestPrecheckMutatesNothing(t *testing.T) {
	ctx := context.Background()
	accounts := stubAccounts{
		getByUserFn: func(_ context.Context, userID string) (store.Account, error) {
			return store.Account{
				UserID:         userID,
				Balance:        500,
				BudgetPeriod:   "week",
				BudgetCoins:    700,
				DailySpent:     40,
				DailySpentDate: today().AddDate(0, 0, -1),
			}, nil
		},
		resetDailySpentFn: func(_ context.Context, _ store.Execer, _ string, _ time.Time) error {
			t.Fatalf("precheck must not write the rollover")
			return nil
		},
	}
	svc := newTestService(accounts, stubTransactions{}, stubPayments{}, stubUsage{}, &recordingHub{}, &recordingPublisher{})

	status, err := svc.Precheck(ctx, "user-1", 90)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Yesterday's counter is rolled over in memory for the evaluation.
	if !status.CanProceed || status.DailySpent != 0 {
		t.Fatalf("unexpected status: %+v", status)
	}
}

func TestSetBudgetRejectsInvalidPeriod(t *testing.T) {
	svc := newTestService(stubAccounts{}, stubTransactions{}, stubPayments{}, stubUsage{}, &recordingHub{}, &recordingPublisher{})
	if _, err := svc.SetBudget(context.Background(), "user-1", "fortnight", 100); !errors.Is(err, budget.ErrInvalidPeriod) {
		t.Fatalf("expected ErrInvalidPeriod, got %v", err)
	}
}

func TestSetBudgetRejectsNonPositiveCoins(t *testing.T) {
	svc := newTestService(stubAccounts{}, stubTransactions{}, stubPayments{}, stubUsage{}, &recordingHub{}, &recordingPublisher{})
	if _, err := svc.SetBudget(context.Background(), "user-1", "week", 0); !errors.Is(err, ErrBudgetNotPositive) {
		t.Fatalf("expected ErrBudgetNotPositive, got %v", err)
	}
}

func TestSetBudgetRejectsBudgetAboveBalance(t *testing.T) {
	accounts := stubAccounts{
		getForUpdateFn: func(_ context.Context, _ store.Getter, userID string) (store.Account, error) {
			return store.Account{UserID: userID, Balance: 500, DailySpentDate: today()}, nil
		},
	}
	svc := newTestService(accounts, stubTransactions{}, stubPayments{}, stubUsage{}, &recordingHub{}, &recordingPublisher{})
	if _, err := svc.SetBudget(context.Background(), "user-1", "week", 700); !errors.Is(err, ErrBudgetExceedsBalance) {
		t.Fatalf("expected ErrBudgetExceedsBalance, got %v", err)
	}
}

func TestSetBudgetNoneClearsSettings(t *testing.T) {
	var setPeriod string
	var setCoins int64
	var setStart *time.Time
	accounts := stubAccounts{
		getForUpdateFn: func(_ context.Context, _ store.Getter, userID string) (store.Account, error) {
			return store.Account{UserID: userID, Balance: 500, BudgetPeriod: "week", BudgetCoins: 300, DailySpentDate: today()}, nil
		},
		getByUserFn: func(_ context.Context, userID string) (store.Account, error) {
			return store.Account{UserID: userID, Balance: 500, BudgetPeriod: "none", DailySpentDate: today()}, nil
		},
		setBudgetFn: func(_ context.Context, _ store.Execer, _, period string, coins int64, startDate *time.Time, _ time.Time) error {
			setPeriod = period
			setCoins = coins
			setStart = startDate
			return nil
		},
	}
	svc := newTestService(accounts, stubTransactions{}, stubPayments{}, stubUsage{}, &recordingHub{}, &recordingPublisher{})

	status, err := svc.SetBudget(context.Background(), "user-1", "none", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if setPeriod != "none" || setCoins != 0 || setStart != nil {
		t.Fatalf("expected cleared settings, got period=%s coins=%d start=%v", setPeriod, setCoins, setStart)
	}
	if status.DailyLimit != 0 {
		t.Fatalf("expected no daily limit, got %d", status.DailyLimit)
	}
}

func TestConfirmDepositCreditsOnce(t *testing.T) {
	ctx := context.Background()
	var credited int64
	var inserted store.TransactionInput
	hub := &recordingHub{}
	payments := stubPayments{
		getByIDFn: func(_ context.Context, paymentID string) (store.Payment, error) {
			return store.Payment{ID: paymentID, UserID: "user-1", Amount: 4900, Coins: 4900, Status: store.PaymentPending}, nil
		},
	}
	accounts := stubAccounts{
		getForUpdateFn: func(_ context.Context, _ store.Getter, userID string) (store.Account, error) {
			return store.Account{UserID: userID, Balance: 320, DailySpentDate: today()}, nil
		},
		creditDepositFn: func(_ context.Context, _ store.Execer, _ string, coins int64) error {
			credited = coins
			return nil
		},
	}
	transactions := stubTransactions{
		insertFn: func(_ context.Context, _ store.Execer, input store.TransactionInput) error {
			inserted = input
			return nil
		},
	}
	svc := newTestService(accounts, transactions, payments, stubUsage{}, hub, &recordingPublisher{})

	depositsBefore := testutil.ToFloat64(metrics.DepositsTotal)
	result, err := svc.ConfirmDeposit(ctx, "pay-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Duplicate {
		t.Fatalf("first confirmation must not be a duplicate")
	}
	if got := testutil.ToFloat64(metrics.DepositsTotal) - depositsBefore; got != 1 {
		t.Fatalf("expected deposit counter to grow by 1, got %v", got)
	}
	if credited != 4900 || result.NewBalance != 5220 {
		t.Fatalf("unexpected credit: coins=%d balance=%d", credited, result.NewBalance)
	}
	if inserted.Type != store.TxnDeposit || inserted.Amount != 4900 {
		t.Fatalf("unexpected deposit row: %+v", inserted)
	}
	if inserted.BalanceBefore != 320 || inserted.BalanceAfter != 5220 {
		t.Fatalf("chain fields wrong: %+v", inserted)
	}
	if len(hub.updates) != 1 || hub.updates[0].Balance != 5220 {
		t.Fatalf("expected balance push, got %+v", hub.updates)
	}
}

func TestConfirmDepositReplayIsDuplicate(t *testing.T) {
	ctx := context.Background()
	payments := stubPayments{
		getByIDFn: func(_ context.Context, paymentID string) (store.Payment, error) {
			return store.Payment{ID: paymentID, UserID: "user-1", Coins: 4900, Status: store.PaymentSucceeded}, nil
		},
		markSucceededFn: func(_ context.Context, _ store.Execer, _ string) (int64, error) {
			return 0, nil
		},
	}
	accounts := stubAccounts{
		creditDepositFn: func(_ context.Context, _ store.Execer, _ string, _ int64) error {
			t.Fatalf("replay must not credit")
			return nil
		},
	}
	svc := newTestService(accounts, stubTransactions{}, payments, stubUsage{}, &recordingHub{}, &recordingPublisher{})

	result, err := svc.ConfirmDeposit(ctx, "pay-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Duplicate {
		t.Fatalf("expected duplicate flag")
	}
}

func TestConfirmDepositCanceledPayment(t *testing.T) {
	payments := stubPayments{
		getByIDFn: func(_ context.Context, paymentID string) (store.Payment, error) {
			return store.Payment{ID: paymentID, UserID: "user-1", Coins: 4900, Status: store.PaymentCanceled}, nil
		},
	}
	svc := newTestService(stubAccounts{}, stubTransactions{}, payments, stubUsage{}, &recordingHub{}, &recordingPublisher{})
	if _, err := svc.ConfirmDeposit(context.Background(), "pay-1"); !errors.Is(err, ErrPaymentNotPending) {
		t.Fatalf("expected ErrPaymentNotPending, got %v", err)
	}
}

func TestAdminAdjustRejectsOverdraw(t *testing.T) {
	accounts := stubAccounts{
		getForUpdateFn: func(_ context.Context, _ store.Getter, userID string) (store.Account, error) {
			return store.Account{UserID: userID, Balance: 100, DailySpentDate: today()}, nil
		},
		creditFn: func(_ context.Context, _ store.Execer, _ string, _ int64) error {
			t.Fatalf("overdraw must not be applied")
			return nil
		},
	}
	svc := newTestService(accounts, stubTransactions{}, stubPayments{}, stubUsage{}, &recordingHub{}, &recordingPublisher{})
	if _, err := svc.AdminAdjust(context.Background(), "user-1", -200, "correction"); !errors.Is(err, ErrWouldOverdraw) {
		t.Fatalf("expected ErrWouldOverdraw, got %v", err)
	}
}

func TestAdminAdjustCredits(t *testing.T) {
	var inserted store.TransactionInput
	accounts := stubAccounts{
		getForUpdateFn: func(_ context.Context, _ store.Getter, userID string) (store.Account, error) {
			return store.Account{UserID: userID, Balance: 100, DailySpentDate: today()}, nil
		},
	}
	transactions := stubTransactions{
		insertFn: func(_ context.Context, _ store.Execer, input store.TransactionInput) error {
			inserted = input
			return nil
		},
	}
	svc := newTestService(accounts, transactions, stubPayments{}, stubUsage{}, &recordingHub{}, &recordingPublisher{})

	balance, err := svc.AdminAdjust(context.Background(), "user-1", 250, "goodwill")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if balance != 350 {
		t.Fatalf("expected balance 350, got %d", balance)
	}
	if inserted.Type != store.TxnAdminAdjust || inserted.Description != "goodwill" {
		t.Fatalf("unexpected row: %+v", inserted)
	}
}

func TestRefundRejectsNonPositive(t *testing.T) {
	svc := newTestService(stubAccounts{}, stubTransactions{}, stubPayments{}, stubUsage{}, &recordingHub{}, &recordingPublisher{})
	if _, err := svc.Refund(context.Background(), "user-1", 0, "oops"); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
}

func TestCheckBudgetWritesThroughRollover(t *testing.T) {
	var resetCalled bool
	accounts := stubAccounts{
		getByUserFn: func(_ context.Context, userID string) (store.Account, error) {
			return store.Account{
				UserID:         userID,
				Balance:        500,
				BudgetPeriod:   "week",
				BudgetCoins:    700,
				DailySpent:     100,
				DailySpentDate: today().AddDate(0, 0, -1),
			}, nil
		},
		resetDailySpentFn: func(_ context.Context, _ store.Execer, _ string, day time.Time) error {
			resetCalled = true
			if !day.Equal(today()) {
				t.Fatalf("expected reset for today, got %v", day)
			}
			return nil
		},
	}
	svc := newTestService(accounts, stubTransactions{}, stubPayments{}, stubUsage{}, &recordingHub{}, &recordingPublisher{})

	status, err := svc.CheckBudget(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !resetCalled {
		t.Fatalf("expected rollover write-through")
	}
	if status.DailySpent != 0 || !status.CanProceed {
		t.Fatalf("unexpected status: %+v", status)
	}
}

func TestCheckBudgetSkipsResetWhenDateCurrent(t *testing.T) {
	accounts := stubAccounts{
		getByUserFn: func(_ context.Context, userID string) (store.Account, error) {
			return store.Account{
				UserID:         userID,
				Balance:        500,
				BudgetPeriod:   "week",
				BudgetCoins:    700,
				DailySpent:     60,
				DailySpentDate: today(),
			}, nil
		},
		resetDailySpentFn: func(_ context.Context, _ store.Execer, _ string, _ time.Time) error {
			t.Fatalf("reset must not run when the stored date is already today")
			return nil
		},
	}
	svc := newTestService(accounts, stubTransactions{}, stubPayments{}, stubUsage{}, &recordingHub{}, &recordingPublisher{})

	status, err := svc.CheckBudget(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status.DailySpent != 60 {
		t.Fatalf("expected today's counter preserved, got %d", status.DailySpent)
	}
}
