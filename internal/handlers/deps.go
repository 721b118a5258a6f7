package handlers

import (
	"context"
	"time"

	"coinmeter/internal/currency"
	"coinmeter/internal/ledger"
	"coinmeter/internal/pricing"
	"coinmeter/internal/reporting"
	"coinmeter/internal/store"
	"coinmeter/internal/usage"

	"github.com/shopspring/decimal"
)

type LedgerService interface {
	CheckBudget(ctx context.Context, userID string) (ledger.BudgetStatus, error)
	SetBudget(ctx context.Context, userID string, rawPeriod string, coins int64) (ledger.BudgetStatus, error)
	ConfirmDeposit(ctx context.Context, paymentID string) (ledger.DepositResult, error)
	CancelPayment(ctx context.Context, paymentID string) error
	AdminAdjust(ctx context.Context, userID string, amount int64, reason string) (int64, error)
	Refund(ctx context.Context, userID string, amount int64, reason string) (int64, error)
	Query(ctx context.Context, filter store.TransactionFilter) ([]store.Transaction, error)
	PurgeUser(ctx context.Context, userID string) error
}

type UsageCoordinator interface {
	Generate(ctx context.Context, req usage.Request) (usage.Result, error)
	EstimateCost(rawModel, text string) int64
	NormalizeModel(raw string) pricing.ModelID
}

type AccountStore interface {
	Create(ctx context.Context, tx store.Execer, userID string) error
	GetByUser(ctx context.Context, userID string) (store.Account, error)
}

type PaymentStore interface {
	Create(ctx context.Context, tx store.Execer, id, userID string, amount, coins int64) error
	ListByUser(ctx context.Context, userID string, limit int) ([]store.Payment, error)
}

type UsageStore interface {
	ListByUser(ctx context.Context, userID string, limit int) ([]store.UsageEntry, error)
}

type RateProvider interface {
	SnapshotNow() currency.Snapshot
	SetRate(rate decimal.Decimal)
	ClearOverride()
}

type PriceCatalog interface {
	Snapshot() map[pricing.ModelID]pricing.Price
	Known(model pricing.ModelID) bool
	LastUpdate() time.Time
}

type MarginReporter interface {
	Build(ctx context.Context, since time.Time) (reporting.Report, error)
}
