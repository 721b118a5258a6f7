package store

import (
	"context"
	"time"
)

// UsageStore keeps the coarse per-request usage log shown in self-service
// statistics. It duplicates no billing detail; the ledger stays authoritative.
type UsageStore struct {
	db DB
}

type UsageEntry struct {
	ID         string    `db:"id"`
	UserID     string    `db:"user_id"`
	Model      string    `db:"model"`
	TokensUsed int64     `db:"tokens_used"`
	CoinsSpent int64     `db:"coins_spent"`
	CostUnits  string    `db:"cost_units"`
	CreatedAt  time.Time `db:"created_at"`
}

func NewUsageStore(db DB) *UsageStore {
	return &UsageStore{db: db}
}

func (s *UsageStore) Insert(ctx context.Context, tx Execer, id, userID, model string, tokensUsed, coinsSpent int64, costUnits string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO usage_logs (id, user_id, model, tokens_used, coins_spent, cost_units)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, id, userID, model, tokensUsed, coinsSpent, costUnits)
	return err
}

// Trim keeps the newest `keep` rows for a user and drops the rest.
func (s *UsageStore) Trim(ctx context.Context, tx Execer, userID string, keep int) error {
	_, err := tx.ExecContext(ctx, `
		DELETE FROM usage_logs
		WHERE user_id = $1
		  AND id NOT IN (
			SELECT id FROM usage_logs
			WHERE user_id = $1
			ORDER BY created_at DESC
			LIMIT $2
		)
	`, userID, keep)
	return err
}

func (s *UsageStore) ListByUser(ctx context.Context, userID string, limit int) ([]UsageEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []UsageEntry
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, user_id, model, tokens_used, coins_spent, cost_units, created_at
		FROM usage_logs
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
