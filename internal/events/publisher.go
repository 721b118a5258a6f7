// Package events publishes committed ledger activity for downstream
// consumers (reporting pipelines, reconciliation). Publishing is
// best-effort: the ledger commit never depends on it.
package events

import (
	"context"
	"time"
)

type TransactionEvent struct {
	TransactionID string    `json:"transaction_id"`
	UserID        string    `json:"user_id"`
	Type          string    `json:"type"`
	Amount        int64     `json:"amount"`
	BalanceAfter  int64     `json:"balance_after"`
	Model         string    `json:"model,omitempty"`
	TokensUsed    int64     `json:"tokens_used,omitempty"`
	CostUSD       string    `json:"cost_usd,omitempty"`
	USDRate       string    `json:"usd_rate,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

type Publisher interface {
	Publish(ctx context.Context, event TransactionEvent) error
	Close() error
}

// NoopPublisher is used when no broker is configured.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, TransactionEvent) error { return nil }
func (NoopPublisher) Close() error                                    { return nil }
