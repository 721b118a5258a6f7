package store

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"
)

func TestTransactionStoreInsert(t *testing.T) {
	ctx := context.Background()
	model := "openai/gpt-4o"
	tokens := int64(1500)
	costUSD := "0.0075"
	rate := "89.10"
	execer := stubExecer{
		execFn: func(_ context.Context, query string, args ...any) (sql.Result, error) {
			if !strings.Contains(query, "INSERT INTO transactions") {
				t.Fatalf("unexpected query: %s", query)
			}
			if len(args) != 12 {
				t.Fatalf("expected 12 args, got %d", len(args))
			}
			if args[0] != "txn-1" || args[1] != "user-1" || args[2] != TxnSpend || args[3] != int64(-180) {
				t.Fatalf("unexpected args: %#v", args)
			}
			if args[4] != int64(500) || args[5] != int64(320) {
				t.Fatalf("unexpected balance args: %#v", args)
			}
			return stubResult{rows: 1}, nil
		},
	}
	store := NewTransactionStore(stubDB{})
	err := store.Insert(ctx, execer, TransactionInput{
		ID:            "txn-1",
		UserID:        "user-1",
		Type:          TxnSpend,
		Amount:        -180,
		BalanceBefore: 500,
		BalanceAfter:  320,
		Description:   "AI message",
		Model:         &model,
		TokensUsed:    &tokens,
		CostUSD:       &costUSD,
		USDRate:       &rate,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestTransactionStoreListAppliesFilters(t *testing.T) {
	ctx := context.Background()
	from := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	store := NewTransactionStore(stubDB{
		selectFn: func(_ context.Context, dest any, query string, args ...any) error {
			if !strings.Contains(query, "AND user_id = $1") ||
				!strings.Contains(query, "AND type = $2") ||
				!strings.Contains(query, "AND model = $3") ||
				!strings.Contains(query, "AND created_at >= $4") {
				t.Fatalf("unexpected query: %s", query)
			}
			if !strings.Contains(query, "LIMIT $5 OFFSET $6") {
				t.Fatalf("expected paging placeholders: %s", query)
			}
			if len(args) != 6 || args[0] != "user-1" || args[1] != TxnSpend || args[2] != "openai/gpt-4o" {
				t.Fatalf("unexpected args: %#v", args)
			}
			if args[4] != 10 || args[5] != 20 {
				t.Fatalf("unexpected paging args: %#v", args)
			}
			*dest.(*[]Transaction) = []Transaction{{ID: "txn-1"}}
			return nil
		},
	})
	rows, err := store.List(ctx, TransactionFilter{
		UserID: "user-1",
		Type:   TxnSpend,
		Model:  "openai/gpt-4o",
		From:   &from,
		Limit:  10,
		Offset: 20,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 1 || rows[0].ID != "txn-1" {
		t.Fatalf("unexpected rows: %#v", rows)
	}
}

func TestTransactionStoreListDefaultLimit(t *testing.T) {
	ctx := context.Background()
	store := NewTransactionStore(stubDB{
		selectFn: func(_ context.Context, dest any, query string, args ...any) error {
			if len(args) != 3 {
				t.Fatalf("expected 3 args, got %#v", args)
			}
			if args[1] != 50 {
				t.Fatalf("expected default limit 50, got %#v", args[1])
			}
			return nil
		},
	})
	if _, err := store.List(ctx, TransactionFilter{UserID: "user-1"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestTransactionStoreSpendTotalsByModel(t *testing.T) {
	ctx := context.Background()
	since := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	store := NewTransactionStore(stubDB{
		selectFn: func(_ context.Context, dest any, query string, args ...any) error {
			if !strings.Contains(query, "type = 'spend'") || !strings.Contains(query, "GROUP BY model") {
				t.Fatalf("unexpected query: %s", query)
			}
			if !strings.Contains(query, "SUM(cost_usd * usd_rate)") {
				t.Fatalf("expected cost at captured rate: %s", query)
			}
			if len(args) != 1 || args[0] != since {
				t.Fatalf("unexpected args: %#v", args)
			}
			*dest.(*[]ModelSpendTotals) = []ModelSpendTotals{{Model: "openai/gpt-4o", CoinsCharged: 10000}}
			return nil
		},
	})
	rows, err := store.SpendTotalsByModel(ctx, since)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 1 || rows[0].CoinsCharged != 10000 {
		t.Fatalf("unexpected rows: %#v", rows)
	}
}
