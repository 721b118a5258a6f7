package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"coinmeter/internal/ledger"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

type adjustRequest struct {
	UserID string `json:"user_id"`
	Amount int64  `json:"amount"`
	Reason string `json:"reason"`
}

func (h *Handler) AdminAdjust(w http.ResponseWriter, r *http.Request) {
	var req adjustRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if req.UserID == "" {
		respondError(w, http.StatusBadRequest, "user_id is required")
		return
	}
	newBalance, err := h.service.AdminAdjust(r.Context(), req.UserID, req.Amount, req.Reason)
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrInvalidAmount):
			respondError(w, http.StatusBadRequest, "invalid_amount")
		case errors.Is(err, ledger.ErrWouldOverdraw):
			respondError(w, http.StatusBadRequest, "would_overdraw")
		case errors.Is(err, sql.ErrNoRows):
			respondError(w, http.StatusNotFound, "account not found")
		default:
			respondError(w, http.StatusInternalServerError, "adjustment_failed")
		}
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"user_id": req.UserID, "balance": newBalance})
}

func (h *Handler) AdminRefund(w http.ResponseWriter, r *http.Request) {
	var req adjustRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if req.UserID == "" {
		respondError(w, http.StatusBadRequest, "user_id is required")
		return
	}
	newBalance, err := h.service.Refund(r.Context(), req.UserID, req.Amount, req.Reason)
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrInvalidAmount):
			respondError(w, http.StatusBadRequest, "invalid_amount")
		case errors.Is(err, sql.ErrNoRows):
			respondError(w, http.StatusNotFound, "account not found")
		default:
			respondError(w, http.StatusInternalServerError, "refund_failed")
		}
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"user_id": req.UserID, "balance": newBalance})
}

type setRateRequest struct {
	Rate string `json:"rate"`
}

func (h *Handler) AdminSetRate(w http.ResponseWriter, r *http.Request) {
	var req setRateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	rate, err := decimal.NewFromString(req.Rate)
	if err != nil || !rate.IsPositive() {
		respondError(w, http.StatusBadRequest, "invalid_rate")
		return
	}
	h.rates.SetRate(rate)
	respondJSON(w, http.StatusOK, map[string]string{"sell_rate": rate.String()})
}

func (h *Handler) AdminClearRate(w http.ResponseWriter, r *http.Request) {
	h.rates.ClearOverride()
	snapshot := h.rates.SnapshotNow()
	respondJSON(w, http.StatusOK, map[string]any{
		"sell_rate":  snapshot.SellRate.String(),
		"overridden": snapshot.Overridden,
	})
}

func (h *Handler) AdminMargin(w http.ResponseWriter, r *http.Request) {
	since := time.Now().AddDate(0, -1, 0)
	if raw := r.URL.Query().Get("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid since date")
			return
		}
		since = parsed
	}
	report, err := h.reporter.Build(r.Context(), since)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to build report")
		return
	}
	respondJSON(w, http.StatusOK, report)
}

func (h *Handler) AdminPurgeUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	if userID == "" {
		respondError(w, http.StatusBadRequest, "user id is required")
		return
	}
	if err := h.service.PurgeUser(r.Context(), userID); err != nil {
		respondError(w, http.StatusInternalServerError, "unable to purge user")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"user_id": userID, "status": "purged"})
}
