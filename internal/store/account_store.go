package store

import (
	"context"
	"time"
)

type AccountStore struct {
	db DB
}

type Account struct {
	UserID          string     `db:"user_id"`
	Balance         int64      `db:"balance"`
	BudgetPeriod    string     `db:"budget_period"`
	BudgetCoins     int64      `db:"budget_coins"`
	BudgetStartDate *time.Time `db:"budget_start_date"`
	DailySpent      int64      `db:"daily_spent"`
	DailySpentDate  time.Time  `db:"daily_spent_date"`
	TotalDeposited  int64      `db:"total_deposited"`
	CreatedAt       time.Time  `db:"created_at"`
}

func NewAccountStore(db DB) *AccountStore {
	return &AccountStore{db: db}
}

func (s *AccountStore) Create(ctx context.Context, tx Execer, userID string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO accounts (user_id, balance, budget_period, budget_coins, daily_spent, daily_spent_date)
		VALUES ($1, 0, 'none', 0, 0, CURRENT_DATE)
		ON CONFLICT (user_id) DO NOTHING
	`, userID)
	return err
}

func (s *AccountStore) GetByUser(ctx context.Context, userID string) (Account, error) {
	var row Account
	err := s.db.GetContext(ctx, &row, `
		SELECT user_id, balance, budget_period, budget_coins, budget_start_date,
		       daily_spent, daily_spent_date, total_deposited, created_at
		FROM accounts
		WHERE user_id = $1
	`, userID)
	if err != nil {
		return Account{}, err
	}
	return row, nil
}

func (s *AccountStore) GetForUpdate(ctx context.Context, tx Getter, userID string) (Account, error) {
	var row Account
	err := tx.GetContext(ctx, &row, `
		SELECT user_id, balance, budget_period, budget_coins, budget_start_date,
		       daily_spent, daily_spent_date, total_deposited, created_at
		FROM accounts
		WHERE user_id = $1
		FOR UPDATE
	`, userID)
	if err != nil {
		return Account{}, err
	}
	return row, nil
}

// ApplySpend debits the balance and advances the daily counters in one statement.
func (s *AccountStore) ApplySpend(ctx context.Context, tx Execer, userID string, coins int64, day time.Time) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE accounts
		SET balance = balance - $1,
		    daily_spent = daily_spent + $1,
		    daily_spent_date = $2,
		    updated_at = NOW()
		WHERE user_id = $3
	`, coins, day, userID)
	return err
}

func (s *AccountStore) Credit(ctx context.Context, tx Execer, userID string, coins int64) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE accounts
		SET balance = balance + $1, updated_at = NOW()
		WHERE user_id = $2
	`, coins, userID)
	return err
}

func (s *AccountStore) CreditDeposit(ctx context.Context, tx Execer, userID string, coins int64) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE accounts
		SET balance = balance + $1,
		    total_deposited = total_deposited + $1,
		    updated_at = NOW()
		WHERE user_id = $2
	`, coins, userID)
	return err
}

// ResetDailySpent performs the write-through part of the daily rollover.
// The date guard makes it safe outside a row lock: a concurrent spend that
// already advanced the stored date to today keeps its counter.
func (s *AccountStore) ResetDailySpent(ctx context.Context, tx Execer, userID string, day time.Time) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE accounts
		SET daily_spent = 0, daily_spent_date = $1, updated_at = NOW()
		WHERE user_id = $2 AND daily_spent_date <> $1
	`, day, userID)
	return err
}

func (s *AccountStore) SetBudget(ctx context.Context, tx Execer, userID, period string, coins int64, startDate *time.Time, day time.Time) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE accounts
		SET budget_period = $1,
		    budget_coins = $2,
		    budget_start_date = $3,
		    daily_spent = 0,
		    daily_spent_date = $4,
		    updated_at = NOW()
		WHERE user_id = $5
	`, period, coins, startDate, day, userID)
	return err
}

func (s *AccountStore) Delete(ctx context.Context, tx Execer, userID string) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM accounts WHERE user_id = $1`, userID)
	return err
}
