package store

import (
	"context"
	"time"
)

type PaymentStore struct {
	db DB
}

const (
	PaymentPending   = "pending"
	PaymentSucceeded = "succeeded"
	PaymentCanceled  = "canceled"
)

type Payment struct {
	ID        string     `db:"id"`
	UserID    string     `db:"user_id"`
	Amount    int64      `db:"amount"`
	Coins     int64      `db:"coins"`
	Status    string     `db:"status"`
	CreatedAt time.Time  `db:"created_at"`
	PaidAt    *time.Time `db:"paid_at"`
}

func NewPaymentStore(db DB) *PaymentStore {
	return &PaymentStore{db: db}
}

func (s *PaymentStore) Create(ctx context.Context, tx Execer, id, userID string, amount, coins int64) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO payments (id, user_id, amount, coins, status)
		VALUES ($1, $2, $3, $4, 'pending')
	`, id, userID, amount, coins)
	return err
}

func (s *PaymentStore) GetByID(ctx context.Context, paymentID string) (Payment, error) {
	var row Payment
	err := s.db.GetContext(ctx, &row, `
		SELECT id, user_id, amount, coins, status, created_at, paid_at
		FROM payments
		WHERE id = $1
	`, paymentID)
	if err != nil {
		return Payment{}, err
	}
	return row, nil
}

// MarkSucceeded moves a payment from pending to succeeded. The transition can
// only happen once; a replayed confirmation reports zero affected rows.
func (s *PaymentStore) MarkSucceeded(ctx context.Context, tx Execer, paymentID string) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE payments
		SET status = 'succeeded', paid_at = NOW()
		WHERE id = $1 AND status = 'pending'
	`, paymentID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *PaymentStore) MarkCanceled(ctx context.Context, tx Execer, paymentID string) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE payments
		SET status = 'canceled'
		WHERE id = $1 AND status = 'pending'
	`, paymentID)
	return err
}

func (s *PaymentStore) ListByUser(ctx context.Context, userID string, limit int) ([]Payment, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []Payment
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, user_id, amount, coins, status, created_at, paid_at
		FROM payments
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
