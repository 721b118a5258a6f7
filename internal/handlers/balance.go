package handlers

import (
	"net/http"
	"strings"

	"coinmeter/internal/auth"
	"coinmeter/internal/middleware"
	"coinmeter/internal/money"
	"coinmeter/internal/websocket"
)

func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	// First balance read provisions the account.
	if err := h.accounts.Create(r.Context(), h.writeDB, userID); err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load account")
		return
	}
	status, err := h.service.CheckBudget(r.Context(), userID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load account")
		return
	}
	acc, err := h.accounts.GetByUser(r.Context(), userID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load account")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"balance":         status.Balance,
		"balance_units":   money.FormatCoins(status.Balance),
		"total_deposited": acc.TotalDeposited,
		"can_proceed":     status.CanProceed,
		"reason":          status.Reason,
		"daily_limit":     status.DailyLimit,
		"daily_spent":     status.DailySpent,
		"daily_remaining": status.DailyRemaining,
	})
}

func (h *Handler) WSBalances(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		authHeader := r.Header.Get("Authorization")
		if strings.HasPrefix(authHeader, "Bearer ") {
			token = strings.TrimPrefix(authHeader, "Bearer ")
		}
	}
	if token == "" {
		respondError(w, http.StatusUnauthorized, "missing token")
		return
	}
	claims, err := auth.ParseToken(h.cfg.JWTSecret, token)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "invalid token")
		return
	}
	websocket.ServeWS(w, r, h.hub, claims.UserID)
}
