// Package usage orchestrates a single metered generation request:
// precheck with a heuristic estimate, the upstream call, postcheck with the
// actual cost, and the atomic commit. No lock is held across the upstream
// call; only the commit step serializes per account.
package usage

import (
	"context"

	"coinmeter/internal/budget"
	"coinmeter/internal/currency"
	"coinmeter/internal/ledger"
	"coinmeter/internal/metrics"
	"coinmeter/internal/pricing"

	log "github.com/sirupsen/logrus"
)

// reservedOutputTokens pads the estimate for the response the upstream has
// not produced yet.
const reservedOutputTokens = 500

type SpendCommitter interface {
	Precheck(ctx context.Context, userID string, estimatedCoins int64) (ledger.BudgetStatus, error)
	CommitSpend(ctx context.Context, req ledger.SpendRequest) (ledger.SpendResult, error)
}

type Coordinator struct {
	engine       *pricing.Engine
	rates        *currency.Provider
	ledger       SpendCommitter
	provider     Provider
	defaultModel pricing.ModelID
}

func NewCoordinator(engine *pricing.Engine, rates *currency.Provider, committer SpendCommitter, provider Provider, defaultModel string) *Coordinator {
	return &Coordinator{
		engine:       engine,
		rates:        rates,
		ledger:       committer,
		provider:     provider,
		defaultModel: pricing.ModelID(defaultModel),
	}
}

// NormalizeModel applies the default for unspecified or "auto" requests and
// expands short aliases.
func (c *Coordinator) NormalizeModel(raw string) pricing.ModelID {
	if raw == "" || raw == "auto" {
		return c.defaultModel
	}
	return pricing.Resolve(raw)
}

// EstimateCost produces the heuristic coin estimate for a prompt: its
// character-derived token count plus a reserved output allowance, at the
// current cached rate.
func (c *Coordinator) EstimateCost(rawModel, text string) int64 {
	model := c.NormalizeModel(rawModel)
	inputTokens := pricing.EstimateTokens(text) + reservedOutputTokens
	coins, _ := c.engine.Cost(model, inputTokens, reservedOutputTokens, c.rates.Rate(), pricing.KindText)
	return coins
}

type Request struct {
	UserID string
	Model  string
	Kind   pricing.Kind
	Prompt string
	Source string
}

type Result struct {
	Content        string
	Model          pricing.ModelID
	InputTokens    int64
	OutputTokens   int64
	CoinsSpent     int64
	NewBalance     int64
	DailySpent     int64
	DailyLimit     int64
	DailyRemaining int64
	TransactionID  string
}

// Generate runs the full flow. Precheck denials return before any upstream
// call and mutate nothing. A postcheck denial after a successful upstream
// call discards the result; the upstream cost already incurred is logged as
// an accepted loss, not billed later.
func (c *Coordinator) Generate(ctx context.Context, req Request) (Result, error) {
	model := c.NormalizeModel(req.Model)
	kind := req.Kind
	if kind == "" {
		kind = pricing.KindText
	}

	estimate := c.EstimateCost(req.Model, req.Prompt)
	status, err := c.ledger.Precheck(ctx, req.UserID, estimate)
	if err != nil {
		return Result{}, err
	}
	if !status.CanProceed {
		metrics.SpendsDenied.WithLabelValues("precheck", string(status.Reason)).Inc()
		return Result{}, &ledger.DenialError{
			Reason:  status.Reason,
			Balance: status.Balance,
			Decision: budget.Decision{
				CanProceed:     false,
				Reason:         status.Reason,
				DailyLimit:     status.DailyLimit,
				DailySpent:     status.DailySpent,
				DailyRemaining: status.DailyRemaining,
			},
		}
	}

	upstream, err := c.provider.Generate(ctx, ProviderRequest{Model: model, Kind: kind, Prompt: req.Prompt})
	if err != nil {
		metrics.UpstreamErrors.Inc()
		return Result{}, &UpstreamError{Err: err}
	}

	rate := c.rates.Rate()
	costUSD := c.engine.CostUSD(model, upstream.InputTokens, upstream.OutputTokens)
	if upstream.CostUSD != nil {
		costUSD = *upstream.CostUSD
	}
	coins := c.engine.ToCoins(costUSD, rate, kind)
	tokensUsed := upstream.InputTokens + upstream.OutputTokens

	commit, err := c.ledger.CommitSpend(ctx, ledger.SpendRequest{
		UserID:      req.UserID,
		Coins:       coins,
		Model:       string(model),
		TokensUsed:  tokensUsed,
		CostUSD:     costUSD,
		USDRate:     rate,
		Source:      req.Source,
		Description: description(kind),
	})
	if err != nil {
		if denial, ok := ledger.AsDenial(err); ok {
			metrics.SpendsDenied.WithLabelValues("postcheck", string(denial.Reason)).Inc()
			// Upstream cost was incurred without a matching bill; keep the
			// full detail for manual reconciliation.
			log.WithFields(log.Fields{
				"user_id":  req.UserID,
				"model":    model,
				"reason":   denial.Reason,
				"coins":    coins,
				"cost_usd": costUSD.String(),
				"usd_rate": rate.String(),
				"tokens":   tokensUsed,
			}).Warn("postcheck denied after upstream call, result discarded")
		}
		return Result{}, err
	}

	metrics.SpendsTotal.WithLabelValues(string(kind)).Inc()
	metrics.CoinsSpent.Add(float64(coins))
	return Result{
		Content:        upstream.Content,
		Model:          model,
		InputTokens:    upstream.InputTokens,
		OutputTokens:   upstream.OutputTokens,
		CoinsSpent:     commit.CoinsSpent,
		NewBalance:     commit.NewBalance,
		DailySpent:     commit.DailySpent,
		DailyLimit:     commit.DailyLimit,
		DailyRemaining: commit.DailyRemaining,
		TransactionID:  commit.TransactionID,
	}, nil
}

func description(kind pricing.Kind) string {
	switch kind {
	case pricing.KindImage:
		return "Image generation"
	case pricing.KindVideo:
		return "Video generation"
	default:
		return "AI message"
	}
}
