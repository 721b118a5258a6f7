// Package reporting computes per-model profitability from the committed
// spend ledger. Revenue is what users paid in coin terms converted back to
// currency units; cost is the upstream USD spend at the rate captured when
// each transaction was committed.
package reporting

import (
	"context"
	"fmt"
	"time"

	"coinmeter/internal/store"

	"github.com/shopspring/decimal"
)

// Margin alert thresholds, in percent. Models drifting outside this band
// usually mean a stale catalog price.
const (
	lowMarginPct  = 500
	highMarginPct = 2000
)

type TransactionTotals interface {
	SpendTotalsByModel(ctx context.Context, since time.Time) ([]store.ModelSpendTotals, error)
}

type Reporter struct {
	transactions TransactionTotals
	coinsPerUnit decimal.Decimal
}

func NewReporter(transactions TransactionTotals, coinsPerUnit int64) *Reporter {
	return &Reporter{
		transactions: transactions,
		coinsPerUnit: decimal.NewFromInt(coinsPerUnit),
	}
}

type ModelMargin struct {
	Model        string `json:"model"`
	Requests     int64  `json:"requests"`
	TokensUsed   int64  `json:"tokens_used"`
	CoinsCharged int64  `json:"coins_charged"`
	Revenue      string `json:"revenue"`
	Cost         string `json:"cost"`
	Profit       string `json:"profit"`
	MarginPct    string `json:"margin_pct"`
	Alert        string `json:"alert,omitempty"`
}

type Report struct {
	Since          time.Time     `json:"since"`
	Models         []ModelMargin `json:"models"`
	TotalRevenue   string        `json:"total_revenue"`
	TotalCost      string        `json:"total_cost"`
	TotalProfit    string        `json:"total_profit"`
	TotalMarginPct string        `json:"total_margin_pct"`
}

// Build aggregates committed spends since the cutoff into a margin report.
func (r *Reporter) Build(ctx context.Context, since time.Time) (Report, error) {
	totals, err := r.transactions.SpendTotalsByModel(ctx, since)
	if err != nil {
		return Report{}, fmt.Errorf("aggregating spends: %w", err)
	}

	report := Report{Since: since, Models: make([]ModelMargin, 0, len(totals))}
	totalRevenue := decimal.Zero
	totalCost := decimal.Zero
	for _, row := range totals {
		revenue := decimal.NewFromInt(row.CoinsCharged).Div(r.coinsPerUnit)
		cost, err := decimal.NewFromString(row.CostUnits)
		if err != nil {
			return Report{}, fmt.Errorf("parsing cost for model %s: %w", row.Model, err)
		}
		profit := revenue.Sub(cost)
		margin := marginPct(profit, cost)
		alert := ""
		if cost.IsPositive() {
			alert = alertFor(margin)
		}

		m := ModelMargin{
			Model:        row.Model,
			Requests:     row.Requests,
			TokensUsed:   row.TokensUsed,
			CoinsCharged: row.CoinsCharged,
			Revenue:      revenue.StringFixed(2),
			Cost:         cost.StringFixed(2),
			Profit:       profit.StringFixed(2),
			MarginPct:    margin.StringFixed(1),
			Alert:        alert,
		}
		report.Models = append(report.Models, m)
		totalRevenue = totalRevenue.Add(revenue)
		totalCost = totalCost.Add(cost)
	}

	totalProfit := totalRevenue.Sub(totalCost)
	report.TotalRevenue = totalRevenue.StringFixed(2)
	report.TotalCost = totalCost.StringFixed(2)
	report.TotalProfit = totalProfit.StringFixed(2)
	report.TotalMarginPct = marginPct(totalProfit, totalCost).StringFixed(1)
	return report, nil
}

func marginPct(profit, cost decimal.Decimal) decimal.Decimal {
	if cost.IsZero() {
		return decimal.Zero
	}
	return profit.Div(cost).Mul(decimal.NewFromInt(100))
}

func alertFor(margin decimal.Decimal) string {
	switch {
	case margin.LessThan(decimal.NewFromInt(lowMarginPct)):
		return "low_margin"
	case margin.GreaterThan(decimal.NewFromInt(highMarginPct)):
		return "high_margin"
	default:
		return ""
	}
}
