package store

import (
	"context"
	"strconv"
	"time"
)

type TransactionStore struct {
	db DB
}

const (
	TxnSpend       = "spend"
	TxnDeposit     = "deposit"
	TxnRefund      = "refund"
	TxnAdminAdjust = "admin_adjust"
)

type Transaction struct {
	ID            string    `db:"id"`
	UserID        string    `db:"user_id"`
	Type          string    `db:"type"`
	Amount        int64     `db:"amount"`
	BalanceBefore int64     `db:"balance_before"`
	BalanceAfter  int64     `db:"balance_after"`
	Description   string    `db:"description"`
	Model         *string   `db:"model"`
	TokensUsed    *int64    `db:"tokens_used"`
	CostUSD       *string   `db:"cost_usd"`
	USDRate       *string   `db:"usd_rate"`
	Source        *string   `db:"source"`
	CreatedAt     time.Time `db:"created_at"`
}

type TransactionInput struct {
	ID            string
	UserID        string
	Type          string
	Amount        int64
	BalanceBefore int64
	BalanceAfter  int64
	Description   string
	Model         *string
	TokensUsed    *int64
	CostUSD       *string
	USDRate       *string
	Source        *string
}

type TransactionFilter struct {
	UserID string
	Type   string
	Model  string
	From   *time.Time
	To     *time.Time
	Limit  int
	Offset int
}

type ModelSpendTotals struct {
	Model        string `db:"model"`
	Requests     int64  `db:"requests"`
	TokensUsed   int64  `db:"tokens_used"`
	CoinsCharged int64  `db:"coins_charged"`
	CostUnits    string `db:"cost_units"`
	CostUSD      string `db:"cost_usd"`
}

func NewTransactionStore(db DB) *TransactionStore {
	return &TransactionStore{db: db}
}

func (s *TransactionStore) Insert(ctx context.Context, tx Execer, input TransactionInput) error {
	query := `
		INSERT INTO transactions (id, user_id, type, amount, balance_before, balance_after,
		                          description, model, tokens_used, cost_usd, usd_rate, source)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := tx.ExecContext(ctx, query,
		input.ID, input.UserID, input.Type, input.Amount, input.BalanceBefore, input.BalanceAfter,
		input.Description, input.Model, input.TokensUsed, input.CostUSD, input.USDRate, input.Source,
	)
	return err
}

func (s *TransactionStore) List(ctx context.Context, filter TransactionFilter) ([]Transaction, error) {
	query := `
		SELECT id, user_id, type, amount, balance_before, balance_after,
		       description, model, tokens_used, cost_usd, usd_rate, source, created_at
		FROM transactions
		WHERE 1=1
	`
	var args []any
	param := 1
	next := func(value any) string {
		args = append(args, value)
		placeholder := "$" + strconv.Itoa(param)
		param++
		return placeholder
	}
	if filter.UserID != "" {
		query += " AND user_id = " + next(filter.UserID)
	}
	if filter.Type != "" {
		query += " AND type = " + next(filter.Type)
	}
	if filter.Model != "" {
		query += " AND model = " + next(filter.Model)
	}
	if filter.From != nil {
		query += " AND created_at >= " + next(*filter.From)
	}
	if filter.To != nil {
		query += " AND created_at < " + next(*filter.To)
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	query += " ORDER BY created_at DESC LIMIT " + next(limit) + " OFFSET " + next(filter.Offset)

	var rows []Transaction
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	return rows, nil
}

// SpendTotalsByModel aggregates committed spends per model since a cutoff.
// Cost figures use the rate captured at spend time, not the current rate.
func (s *TransactionStore) SpendTotalsByModel(ctx context.Context, since time.Time) ([]ModelSpendTotals, error) {
	var rows []ModelSpendTotals
	err := s.db.SelectContext(ctx, &rows, `
		SELECT model,
		       COUNT(*) AS requests,
		       COALESCE(SUM(tokens_used), 0) AS tokens_used,
		       COALESCE(SUM(-amount), 0) AS coins_charged,
		       COALESCE(SUM(cost_usd * usd_rate), 0)::text AS cost_units,
		       COALESCE(SUM(cost_usd), 0)::text AS cost_usd
		FROM transactions
		WHERE type = 'spend' AND model IS NOT NULL AND cost_usd IS NOT NULL
		  AND created_at >= $1
		GROUP BY model
		ORDER BY coins_charged DESC
	`, since)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
