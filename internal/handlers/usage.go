package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"coinmeter/internal/budget"
	"coinmeter/internal/ledger"
	"coinmeter/internal/middleware"
	"coinmeter/internal/pricing"
	"coinmeter/internal/usage"
)

type sendUsageRequest struct {
	Model  string `json:"model"`
	Kind   string `json:"kind"`
	Prompt string `json:"prompt"`
	Source string `json:"source"`
}

func (h *Handler) SendUsage(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req sendUsageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if req.Prompt == "" {
		respondError(w, http.StatusBadRequest, "prompt is required")
		return
	}
	kind, err := parseKind(req.Kind)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid kind")
		return
	}
	result, err := h.coordinator.Generate(r.Context(), usage.Request{
		UserID: userID,
		Model:  req.Model,
		Kind:   kind,
		Prompt: req.Prompt,
		Source: req.Source,
	})
	if err != nil {
		respondSpendError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"content":         result.Content,
		"model":           result.Model,
		"input_tokens":    result.InputTokens,
		"output_tokens":   result.OutputTokens,
		"coins_spent":     result.CoinsSpent,
		"balance":         result.NewBalance,
		"daily_spent":     result.DailySpent,
		"daily_limit":     result.DailyLimit,
		"daily_remaining": result.DailyRemaining,
		"transaction_id":  result.TransactionID,
	})
}

type estimateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

func (h *Handler) EstimateUsage(w http.ResponseWriter, r *http.Request) {
	if _, ok := middleware.UserIDFromContext(r.Context()); !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req estimateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	model := h.coordinator.NormalizeModel(req.Model)
	respondJSON(w, http.StatusOK, map[string]any{
		"model":           model,
		"estimated_coins": h.coordinator.EstimateCost(req.Model, req.Prompt),
		// Unlisted models are quoted at the default fallback price.
		"known_model": h.catalog.Known(model),
	})
}

func (h *Handler) UsageHistory(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := h.usageLogs.ListByUser(r.Context(), userID, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load usage history")
		return
	}
	respondJSON(w, http.StatusOK, entries)
}

func parseKind(raw string) (pricing.Kind, error) {
	switch raw {
	case "", "text":
		return pricing.KindText, nil
	case "image":
		return pricing.KindImage, nil
	case "video":
		return pricing.KindVideo, nil
	default:
		return "", errors.New("invalid kind")
	}
}

// respondSpendError maps coordinator failures to statuses: denials are 402
// for balance problems and 429 for daily limits, upstream failures are 502.
func respondSpendError(w http.ResponseWriter, err error) {
	if denial, ok := ledger.AsDenial(err); ok {
		status := http.StatusPaymentRequired
		switch denial.Reason {
		case budget.ReasonDailyLimitReached, budget.ReasonDailyLimitInsufficient:
			status = http.StatusTooManyRequests
		}
		respondJSON(w, status, map[string]any{
			"error":           string(denial.Reason),
			"balance":         denial.Balance,
			"daily_limit":     denial.Decision.DailyLimit,
			"daily_spent":     denial.Decision.DailySpent,
			"daily_remaining": denial.Decision.DailyRemaining,
		})
		return
	}
	var upstream *usage.UpstreamError
	if errors.As(err, &upstream) {
		respondError(w, http.StatusBadGateway, "upstream_failed")
		return
	}
	respondError(w, http.StatusInternalServerError, "usage_failed")
}
