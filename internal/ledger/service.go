// Package ledger owns every balance mutation. Each mutation and its
// transaction row commit together inside one database transaction; the
// account row is locked for the duration of the (brief) commit step.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"coinmeter/internal/budget"
	"coinmeter/internal/db"
	"coinmeter/internal/events"
	"coinmeter/internal/metrics"
	"coinmeter/internal/store"
	"coinmeter/internal/websocket"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

var (
	ErrInvalidAmount         = errors.New("invalid amount")
	ErrBudgetNotPositive     = errors.New("budget must be > 0 for an active period")
	ErrBudgetExceedsBalance  = errors.New("budget cannot exceed balance")
	ErrWouldOverdraw         = errors.New("adjustment would drive balance negative")
	ErrPaymentAlreadyApplied = errors.New("payment already applied")
	ErrPaymentNotPending     = errors.New("payment is not pending")
)

// DenialError reports a spend refused by balance or budget checks. A lost
// atomic-debit race surfaces the same way, with ReasonLowBalance, and is
// safe for the caller to retry.
type DenialError struct {
	Reason   budget.Reason
	Balance  int64
	Decision budget.Decision
}

func (e *DenialError) Error() string {
	return fmt.Sprintf("spend denied: %s", e.Reason)
}

func AsDenial(err error) (*DenialError, bool) {
	var denial *DenialError
	if errors.As(err, &denial) {
		return denial, true
	}
	return nil, false
}

type AccountStore interface {
	Create(ctx context.Context, tx store.Execer, userID string) error
	GetByUser(ctx context.Context, userID string) (store.Account, error)
	GetForUpdate(ctx context.Context, tx store.Getter, userID string) (store.Account, error)
	ApplySpend(ctx context.Context, tx store.Execer, userID string, coins int64, day time.Time) error
	Credit(ctx context.Context, tx store.Execer, userID string, coins int64) error
	CreditDeposit(ctx context.Context, tx store.Execer, userID string, coins int64) error
	ResetDailySpent(ctx context.Context, tx store.Execer, userID string, day time.Time) error
	SetBudget(ctx context.Context, tx store.Execer, userID, period string, coins int64, startDate *time.Time, day time.Time) error
	Delete(ctx context.Context, tx store.Execer, userID string) error
}

type TransactionStore interface {
	Insert(ctx context.Context, tx store.Execer, input store.TransactionInput) error
	List(ctx context.Context, filter store.TransactionFilter) ([]store.Transaction, error)
}

type PaymentStore interface {
	GetByID(ctx context.Context, paymentID string) (store.Payment, error)
	MarkSucceeded(ctx context.Context, tx store.Execer, paymentID string) (int64, error)
	MarkCanceled(ctx context.Context, tx store.Execer, paymentID string) error
}

type UsageStore interface {
	Insert(ctx context.Context, tx store.Execer, id, userID, model string, tokensUsed, coinsSpent int64, costUnits string) error
	Trim(ctx context.Context, tx store.Execer, userID string, keep int) error
}

type BalanceHub interface {
	BroadcastBalance(userID string, update websocket.BalanceUpdate)
}

type Service struct {
	txRunner     db.TxRunner
	writeDB      store.Execer
	accounts     AccountStore
	transactions TransactionStore
	payments     PaymentStore
	usage        UsageStore
	hub          BalanceHub
	publisher    events.Publisher
	usageKeep    int
	now          func() time.Time
}

func NewService(txRunner db.TxRunner, writeDB store.Execer, accounts AccountStore, transactions TransactionStore, payments PaymentStore, usage UsageStore, hub BalanceHub, publisher events.Publisher, usageKeep int) *Service {
	return &Service{
		txRunner:     txRunner,
		writeDB:      writeDB,
		accounts:     accounts,
		transactions: transactions,
		payments:     payments,
		usage:        usage,
		hub:          hub,
		publisher:    publisher,
		usageKeep:    usageKeep,
		now:          time.Now,
	}
}

type BudgetStatus struct {
	Period         budget.Period
	BudgetCoins    int64
	PeriodDays     int
	Balance        int64
	CanProceed     bool
	Reason         budget.Reason
	DailyLimit     int64
	DailySpent     int64
	DailyRemaining int64
}

func statusFrom(state budget.State, balance int64, decision budget.Decision) BudgetStatus {
	return BudgetStatus{
		Period:         state.Period,
		BudgetCoins:    state.BudgetCoins,
		PeriodDays:     state.Period.Days(),
		Balance:        balance,
		CanProceed:     decision.CanProceed,
		Reason:         decision.Reason,
		DailyLimit:     decision.DailyLimit,
		DailySpent:     decision.DailySpent,
		DailyRemaining: decision.DailyRemaining,
	}
}

func accountState(acc store.Account) budget.State {
	period, err := budget.ParsePeriod(acc.BudgetPeriod)
	if err != nil {
		period = budget.PeriodNone
	}
	return budget.State{
		Period:         period,
		BudgetCoins:    acc.BudgetCoins,
		DailySpent:     acc.DailySpent,
		DailySpentDate: acc.DailySpentDate,
	}
}

// CheckBudget evaluates whether the account can spend right now, performing
// the write-through daily rollover when the stored date is stale.
func (s *Service) CheckBudget(ctx context.Context, userID string) (BudgetStatus, error) {
	acc, err := s.accounts.GetByUser(ctx, userID)
	if err != nil {
		return BudgetStatus{}, err
	}
	state, changed := budget.Rollover(s.now(), accountState(acc))
	if changed {
		if err := s.accounts.ResetDailySpent(ctx, s.writeDB, userID, state.DailySpentDate); err != nil {
			return BudgetStatus{}, err
		}
	}
	decision := budget.Evaluate(state, acc.Balance, 0)
	return statusFrom(state, acc.Balance, decision), nil
}

// Precheck runs the budget evaluation against an estimated cost without
// mutating anything. Advisory only: no coins are reserved.
func (s *Service) Precheck(ctx context.Context, userID string, estimatedCoins int64) (BudgetStatus, error) {
	acc, err := s.accounts.GetByUser(ctx, userID)
	if err != nil {
		return BudgetStatus{}, err
	}
	state, _ := budget.Rollover(s.now(), accountState(acc))
	decision := budget.Evaluate(state, acc.Balance, estimatedCoins)
	return statusFrom(state, acc.Balance, decision), nil
}

// SetBudget validates and stores new budget settings, resetting today's
// counter and stamping the period start.
func (s *Service) SetBudget(ctx context.Context, userID string, rawPeriod string, coins int64) (BudgetStatus, error) {
	period, err := budget.ParsePeriod(rawPeriod)
	if err != nil {
		return BudgetStatus{}, err
	}
	if period != budget.PeriodNone && coins <= 0 {
		return BudgetStatus{}, ErrBudgetNotPositive
	}
	now := s.now()
	err = s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		acc, err := s.accounts.GetForUpdate(ctx, tx, userID)
		if err != nil {
			return err
		}
		if period != budget.PeriodNone && coins > acc.Balance {
			return ErrBudgetExceedsBalance
		}
		var startDate *time.Time
		budgetCoins := int64(0)
		if period != budget.PeriodNone {
			startDate = &now
			budgetCoins = coins
		}
		return s.accounts.SetBudget(ctx, tx, userID, string(period), budgetCoins, startDate, now)
	})
	if err != nil {
		return BudgetStatus{}, err
	}
	return s.CheckBudget(ctx, userID)
}

type SpendRequest struct {
	UserID      string
	Coins       int64
	Model       string
	TokensUsed  int64
	CostUSD     decimal.Decimal
	USDRate     decimal.Decimal
	Source      string
	Description string
}

type SpendResult struct {
	TransactionID  string
	CoinsSpent     int64
	NewBalance     int64
	DailySpent     int64
	DailyLimit     int64
	DailyRemaining int64
}

// CommitSpend is the postcheck-and-debit step: it re-validates balance and
// budget against the actual cost under a row lock and, if allowed, applies
// the debit and appends the spend row plus the usage-log entry, all in one
// database transaction. The cost and rate are recorded as they were at
// spend time and are never rewritten.
func (s *Service) CommitSpend(ctx context.Context, req SpendRequest) (SpendResult, error) {
	if req.Coins <= 0 {
		return SpendResult{}, ErrInvalidAmount
	}
	now := s.now()
	var result SpendResult
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		acc, err := s.accounts.GetForUpdate(ctx, tx, req.UserID)
		if err != nil {
			return err
		}
		state, changed := budget.Rollover(now, accountState(acc))
		if changed {
			if err := s.accounts.ResetDailySpent(ctx, tx, req.UserID, state.DailySpentDate); err != nil {
				return err
			}
		}
		decision := budget.Evaluate(state, acc.Balance, req.Coins)
		if !decision.CanProceed {
			return &DenialError{Reason: decision.Reason, Balance: acc.Balance, Decision: decision}
		}
		if err := s.accounts.ApplySpend(ctx, tx, req.UserID, req.Coins, state.DailySpentDate); err != nil {
			return err
		}
		costUSD := req.CostUSD.String()
		usdRate := req.USDRate.String()
		transactionID := uuid.NewString()
		if err := s.transactions.Insert(ctx, tx, store.TransactionInput{
			ID:            transactionID,
			UserID:        req.UserID,
			Type:          store.TxnSpend,
			Amount:        -req.Coins,
			BalanceBefore: acc.Balance,
			BalanceAfter:  acc.Balance - req.Coins,
			Description:   req.Description,
			Model:         &req.Model,
			TokensUsed:    &req.TokensUsed,
			CostUSD:       &costUSD,
			USDRate:       &usdRate,
			Source:        &req.Source,
		}); err != nil {
			return err
		}
		costUnits := decimal.NewFromInt(req.Coins).Div(decimal.NewFromInt(100))
		if err := s.usage.Insert(ctx, tx, uuid.NewString(), req.UserID, req.Model, req.TokensUsed, req.Coins, costUnits.String()); err != nil {
			return err
		}
		if s.usageKeep > 0 {
			if err := s.usage.Trim(ctx, tx, req.UserID, s.usageKeep); err != nil {
				return err
			}
		}
		newSpent := state.DailySpent + req.Coins
		result = SpendResult{
			TransactionID:  transactionID,
			CoinsSpent:     req.Coins,
			NewBalance:     acc.Balance - req.Coins,
			DailySpent:     newSpent,
			DailyLimit:     decision.DailyLimit,
			DailyRemaining: remainingAfter(decision.DailyLimit, newSpent, acc.Balance-req.Coins),
		}
		return nil
	})
	if err != nil {
		return SpendResult{}, err
	}
	s.notify(req.UserID, result.NewBalance)
	s.publish(ctx, events.TransactionEvent{
		TransactionID: result.TransactionID,
		UserID:        req.UserID,
		Type:          store.TxnSpend,
		Amount:        -req.Coins,
		BalanceAfter:  result.NewBalance,
		Model:         req.Model,
		TokensUsed:    req.TokensUsed,
		CostUSD:       req.CostUSD.String(),
		USDRate:       req.USDRate.String(),
		OccurredAt:    now,
	})
	return result, nil
}

type DepositResult struct {
	PaymentID  string
	Coins      int64
	NewBalance int64
	Duplicate  bool
}

// ConfirmDeposit credits a pending payment exactly once. Replaying the same
// confirmation reports Duplicate and leaves the balance untouched: the
// payment row can only move from pending to succeeded once.
func (s *Service) ConfirmDeposit(ctx context.Context, paymentID string) (DepositResult, error) {
	payment, err := s.payments.GetByID(ctx, paymentID)
	if err != nil {
		return DepositResult{}, err
	}
	if payment.Status == store.PaymentCanceled {
		return DepositResult{}, ErrPaymentNotPending
	}
	var result DepositResult
	err = s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		applied, err := s.payments.MarkSucceeded(ctx, tx, paymentID)
		if err != nil {
			return err
		}
		if applied == 0 {
			return ErrPaymentAlreadyApplied
		}
		acc, err := s.accounts.GetForUpdate(ctx, tx, payment.UserID)
		if err != nil {
			return err
		}
		if err := s.accounts.CreditDeposit(ctx, tx, payment.UserID, payment.Coins); err != nil {
			return err
		}
		if err := s.transactions.Insert(ctx, tx, store.TransactionInput{
			ID:            uuid.NewString(),
			UserID:        payment.UserID,
			Type:          store.TxnDeposit,
			Amount:        payment.Coins,
			BalanceBefore: acc.Balance,
			BalanceAfter:  acc.Balance + payment.Coins,
			Description:   fmt.Sprintf("Deposit %s", paymentID),
		}); err != nil {
			return err
		}
		result = DepositResult{
			PaymentID:  paymentID,
			Coins:      payment.Coins,
			NewBalance: acc.Balance + payment.Coins,
		}
		return nil
	})
	if errors.Is(err, ErrPaymentAlreadyApplied) {
		return DepositResult{PaymentID: paymentID, Coins: payment.Coins, Duplicate: true}, nil
	}
	if err != nil {
		return DepositResult{}, err
	}
	metrics.DepositsTotal.Inc()
	s.notify(payment.UserID, result.NewBalance)
	s.publish(ctx, events.TransactionEvent{
		TransactionID: result.PaymentID,
		UserID:        payment.UserID,
		Type:          store.TxnDeposit,
		Amount:        payment.Coins,
		BalanceAfter:  result.NewBalance,
		OccurredAt:    s.now(),
	})
	return result, nil
}

func (s *Service) CancelPayment(ctx context.Context, paymentID string) error {
	return s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		return s.payments.MarkCanceled(ctx, tx, paymentID)
	})
}

// AdminAdjust credits or debits an account with an audit row. A debit that
// would drive the balance negative is rejected.
func (s *Service) AdminAdjust(ctx context.Context, userID string, amount int64, reason string) (int64, error) {
	if amount == 0 {
		return 0, ErrInvalidAmount
	}
	var newBalance int64
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		acc, err := s.accounts.GetForUpdate(ctx, tx, userID)
		if err != nil {
			return err
		}
		if acc.Balance+amount < 0 {
			return ErrWouldOverdraw
		}
		if err := s.accounts.Credit(ctx, tx, userID, amount); err != nil {
			return err
		}
		newBalance = acc.Balance + amount
		return s.transactions.Insert(ctx, tx, store.TransactionInput{
			ID:            uuid.NewString(),
			UserID:        userID,
			Type:          store.TxnAdminAdjust,
			Amount:        amount,
			BalanceBefore: acc.Balance,
			BalanceAfter:  newBalance,
			Description:   reason,
		})
	})
	if err != nil {
		return 0, err
	}
	s.notify(userID, newBalance)
	return newBalance, nil
}

// Refund credits an account with a refund row.
func (s *Service) Refund(ctx context.Context, userID string, amount int64, reason string) (int64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	var newBalance int64
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		acc, err := s.accounts.GetForUpdate(ctx, tx, userID)
		if err != nil {
			return err
		}
		if err := s.accounts.Credit(ctx, tx, userID, amount); err != nil {
			return err
		}
		newBalance = acc.Balance + amount
		return s.transactions.Insert(ctx, tx, store.TransactionInput{
			ID:            uuid.NewString(),
			UserID:        userID,
			Type:          store.TxnRefund,
			Amount:        amount,
			BalanceBefore: acc.Balance,
			BalanceAfter:  newBalance,
			Description:   reason,
		})
	})
	if err != nil {
		return 0, err
	}
	s.notify(userID, newBalance)
	return newBalance, nil
}

// Query lists ledger rows by account, date range, and model.
func (s *Service) Query(ctx context.Context, filter store.TransactionFilter) ([]store.Transaction, error) {
	return s.transactions.List(ctx, filter)
}

// PurgeUser removes an account entirely; the schema cascades the purge to
// the ledger, payments, and usage logs.
func (s *Service) PurgeUser(ctx context.Context, userID string) error {
	return s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		return s.accounts.Delete(ctx, tx, userID)
	})
}

func (s *Service) notify(userID string, balance int64) {
	if s.hub == nil {
		return
	}
	s.hub.BroadcastBalance(userID, websocket.BalanceUpdate{
		UserID:  userID,
		Balance: balance,
	})
}

func (s *Service) publish(ctx context.Context, event events.TransactionEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		log.WithError(err).WithField("transaction_id", event.TransactionID).Warn("event publish failed")
	}
}

func remainingAfter(limit, spent, balance int64) int64 {
	if limit <= 0 {
		return balance
	}
	if spent >= limit {
		return 0
	}
	return limit - spent
}
