package handlers

import (
	"context"
	"database/sql"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"coinmeter/internal/auth"
	"coinmeter/internal/config"
	"coinmeter/internal/currency"
	"coinmeter/internal/ledger"
	"coinmeter/internal/pricing"
	"coinmeter/internal/reporting"
	"coinmeter/internal/store"
	"coinmeter/internal/usage"
	"coinmeter/internal/websocket"

	"github.com/shopspring/decimal"
)

type stubWriteDB struct {
	execFn func(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s stubWriteDB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	if s.execFn == nil {
		return nil, nil
	}
	return s.execFn(ctx, query, args...)
}

type stubLedger struct {
	checkBudgetFn    func(ctx context.Context, userID string) (ledger.BudgetStatus, error)
	setBudgetFn      func(ctx context.Context, userID string, rawPeriod string, coins int64) (ledger.BudgetStatus, error)
	confirmDepositFn func(ctx context.Context, paymentID string) (ledger.DepositResult, error)
	cancelPaymentFn  func(ctx context.Context, paymentID string) error
	adminAdjustFn    func(ctx context.Context, userID string, amount int64, reason string) (int64, error)
	refundFn         func(ctx context.Context, userID string, amount int64, reason string) (int64, error)
	queryFn          func(ctx context.Context, filter store.TransactionFilter) ([]store.Transaction, error)
	purgeUserFn      func(ctx context.Context, userID string) error
}

func (s stubLedger) CheckBudget(ctx context.Context, userID string) (ledger.BudgetStatus, error) {
	if s.checkBudgetFn == nil {
		return ledger.BudgetStatus{}, nil
	}
	return s.checkBudgetFn(ctx, userID)
}

func (s stubLedger) SetBudget(ctx context.Context, userID string, rawPeriod string, coins int64) (ledger.BudgetStatus, error) {
	if s.setBudgetFn == nil {
		return ledger.BudgetStatus{}, nil
	}
	return s.setBudgetFn(ctx, userID, rawPeriod, coins)
}

func (s stubLedger) ConfirmDeposit(ctx context.Context, paymentID string) (ledger.DepositResult, error) {
	if s.confirmDepositFn == nil {
		return ledger.DepositResult{}, nil
	}
	return s.confirmDepositFn(ctx, paymentID)
}

func (s stubLedger) CancelPayment(ctx context.Context, paymentID string) error {
	if s.cancelPaymentFn == nil {
		return nil
	}
	return s.cancelPaymentFn(ctx, paymentID)
}

func (s stubLedger) AdminAdjust(ctx context.Context, userID string, amount int64, reason string) (int64, error) {
	if s.adminAdjustFn == nil {
		return 0, nil
	}
	return s.adminAdjustFn(ctx, userID, amount, reason)
}

func (s stubLedger) Refund(ctx context.Context, userID string, amount int64, reason string) (int64, error) {
	if s.refundFn == nil {
		return 0, nil
	}
	return s.refundFn(ctx, userID, amount, reason)
}

func (s stubLedger) Query(ctx context.Context, filter store.TransactionFilter) ([]store.Transaction, error) {
	if s.queryFn == nil {
		return nil, nil
	}
	return s.queryFn(ctx, filter)
}

func (s stubLedger) PurgeUser(ctx context.Context, userID string) error {
	if s.purgeUserFn == nil {
		return nil
	}
	return s.purgeUserFn(ctx, userID)
}

type stubCoordinator struct {
	generateFn func(ctx context.Context, req usage.Request) (usage.Result, error)
	estimateFn func(rawModel, text string) int64
}

func (s stubCoordinator) Generate(ctx context.Context, req usage.Request) (usage.Result, error) {
	if s.generateFn == nil {
		return usage.Result{}, nil
	}
	return s.generateFn(ctx, req)
}

func (s stubCoordinator) EstimateCost(rawModel, text string) int64 {
	if s.estimateFn == nil {
		return 0
	}
	return s.estimateFn(rawModel, text)
}

func (s stubCoordinator) NormalizeModel(raw string) pricing.ModelID {
	return pricing.Resolve(raw)
}

type stubAccountStore struct {
	createFn    func(ctx context.Context, tx store.Execer, userID string) error
	getByUserFn func(ctx context.Context, userID string) (store.Account, error)
}

func (s stubAccountStore) Create(ctx context.Context, tx store.Execer, userID string) error {
	if s.createFn == nil {
		return nil
	}
	return s.createFn(ctx, tx, userID)
}

func (s stubAccountStore) GetByUser(ctx context.Context, userID string) (store.Account, error) {
	if s.getByUserFn == nil {
		return store.Account{}, nil
	}
	return s.getByUserFn(ctx, userID)
}

type stubPaymentStore struct {
	createFn     func(ctx context.Context, tx store.Execer, id, userID string, amount, coins int64) error
	listByUserFn func(ctx context.Context, userID string, limit int) ([]store.Payment, error)
}

func (s stubPaymentStore) Create(ctx context.Context, tx store.Execer, id, userID string, amount, coins int64) error {
	if s.createFn == nil {
		return nil
	}
	return s.createFn(ctx, tx, id, userID, amount, coins)
}

func (s stubPaymentStore) ListByUser(ctx context.Context, userID string, limit int) ([]store.Payment, error) {
	if s.listByUserFn == nil {
		return nil, nil
	}
	return s.listByUserFn(ctx, userID, limit)
}

type stubUsageStore struct {
	listByUserFn func(ctx context.Context, userID string, limit int) ([]store.UsageEntry, error)
}

func (s stubUsageStore) ListByUser(ctx context.Context, userID string, limit int) ([]store.UsageEntry, error) {
	if s.listByUserFn == nil {
		return nil, nil
	}
	return s.listByUserFn(ctx, userID, limit)
}

type stubRates struct {
	snapshotFn func() currency.Snapshot
	setRateFn  func(rate decimal.Decimal)
	clearFn    func()
}

func (s stubRates) SnapshotNow() currency.Snapshot {
	if s.snapshotFn == nil {
		return currency.Snapshot{}
	}
	return s.snapshotFn()
}

func (s stubRates) SetRate(rate decimal.Decimal) {
	if s.setRateFn != nil {
		s.setRateFn(rate)
	}
}

func (s stubRates) ClearOverride() {
	if s.clearFn != nil {
		s.clearFn()
	}
}

type stubReporter struct {
	buildFn func(ctx context.Context, since time.Time) (reporting.Report, error)
}

func (s stubReporter) Build(ctx context.Context, since time.Time) (reporting.Report, error) {
	if s.buildFn == nil {
		return reporting.Report{}, nil
	}
	return s.buildFn(ctx, since)
}

type handlerDeps struct {
	writeDB     stubWriteDB
	cfg         config.Config
	accounts    stubAccountStore
	payments    stubPaymentStore
	usageLogs   stubUsageStore
	service     stubLedger
	coordinator stubCoordinator
	rates       stubRates
	reporter    stubReporter
}

func newTestHandler(deps handlerDeps) *Handler {
	if deps.cfg.JWTSecret == "" {
		deps.cfg.JWTSecret = "secret"
	}
	if deps.cfg.MinDepositUnits == 0 {
		deps.cfg.MinDepositUnits = 49
	}
	if deps.cfg.MaxDepositUnits == 0 {
		deps.cfg.MaxDepositUnits = 100000
	}
	return New(deps.writeDB, deps.cfg, deps.accounts, deps.payments, deps.usageLogs, deps.service, deps.coordinator, deps.rates, pricing.NewCatalog(), deps.reporter, websocket.NewHub())
}

func authedRequest(t *testing.T, method, target string, body io.Reader) *http.Request {
	t.Helper()
	req := httptest.NewRequest(method, target, body)
	token, err := auth.GenerateToken("secret", "user-1", time.Minute)
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}
