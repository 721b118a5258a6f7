package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"coinmeter/internal/budget"
	"coinmeter/internal/ledger"
	"coinmeter/internal/middleware"
)

func (h *Handler) GetBudget(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	status, err := h.service.CheckBudget(r.Context(), userID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load budget")
		return
	}
	respondJSON(w, http.StatusOK, budgetResponse(status))
}

type setBudgetRequest struct {
	Period string `json:"period"`
	Coins  int64  `json:"coins"`
}

func (h *Handler) SetBudget(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req setBudgetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	status, err := h.service.SetBudget(r.Context(), userID, req.Period, req.Coins)
	if err != nil {
		switch {
		case errors.Is(err, budget.ErrInvalidPeriod):
			respondError(w, http.StatusBadRequest, "invalid_period")
		case errors.Is(err, ledger.ErrBudgetNotPositive):
			respondError(w, http.StatusBadRequest, "budget_must_be_positive")
		case errors.Is(err, ledger.ErrBudgetExceedsBalance):
			respondError(w, http.StatusBadRequest, "budget_exceeds_balance")
		default:
			respondError(w, http.StatusInternalServerError, "unable to update budget")
		}
		return
	}
	respondJSON(w, http.StatusOK, budgetResponse(status))
}

func (h *Handler) DeleteBudget(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	status, err := h.service.SetBudget(r.Context(), userID, string(budget.PeriodNone), 0)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to update budget")
		return
	}
	respondJSON(w, http.StatusOK, budgetResponse(status))
}

// EstimateBudget reports how many typical exchanges per day a budget buys.
// A typical exchange is priced with the reserved token window on both sides.
func (h *Handler) EstimateBudget(w http.ResponseWriter, r *http.Request) {
	if _, ok := middleware.UserIDFromContext(r.Context()); !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	query := r.URL.Query()
	period, err := budget.ParsePeriod(query.Get("period"))
	if err != nil || period == budget.PeriodNone {
		respondError(w, http.StatusBadRequest, "invalid_period")
		return
	}
	coins, err := strconv.ParseInt(query.Get("coins"), 10, 64)
	if err != nil || coins <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_coins")
		return
	}
	dailyLimit := budget.State{Period: period, BudgetCoins: coins}.DailyLimit()
	perMessage := h.coordinator.EstimateCost(query.Get("model"), "")
	var messagesPerDay int64
	if perMessage > 0 {
		messagesPerDay = dailyLimit / perMessage
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"period":            period,
		"budget_coins":      coins,
		"period_days":       period.Days(),
		"daily_limit":       dailyLimit,
		"coins_per_message": perMessage,
		"messages_per_day":  messagesPerDay,
	})
}

func budgetResponse(status ledger.BudgetStatus) map[string]any {
	return map[string]any{
		"period":          status.Period,
		"budget_coins":    status.BudgetCoins,
		"period_days":     status.PeriodDays,
		"balance":         status.Balance,
		"can_proceed":     status.CanProceed,
		"reason":          status.Reason,
		"daily_limit":     status.DailyLimit,
		"daily_spent":     status.DailySpent,
		"daily_remaining": status.DailyRemaining,
	}
}
