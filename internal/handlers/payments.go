package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"coinmeter/internal/ledger"
	"coinmeter/internal/middleware"
	"coinmeter/internal/money"

	"github.com/google/uuid"
)

type createPaymentRequest struct {
	Amount string `json:"amount"`
}

// CreatePayment opens a pending payment. Coins are credited only when the
// provider webhook confirms it.
func (h *Handler) CreatePayment(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req createPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	coins, err := money.ParseCoins(req.Amount)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_amount")
		return
	}
	if coins < h.cfg.MinDepositUnits*100 || coins > h.cfg.MaxDepositUnits*100 {
		respondError(w, http.StatusBadRequest, "amount_out_of_range")
		return
	}
	if err := h.accounts.Create(r.Context(), h.writeDB, userID); err != nil {
		respondError(w, http.StatusInternalServerError, "unable to create payment")
		return
	}
	paymentID := uuid.NewString()
	if err := h.payments.Create(r.Context(), h.writeDB, paymentID, userID, coins, coins); err != nil {
		respondError(w, http.StatusInternalServerError, "unable to create payment")
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{
		"payment_id": paymentID,
		"coins":      coins,
		"amount":     money.FormatCoins(coins),
		"status":     "pending",
	})
}

type webhookRequest struct {
	PaymentID string `json:"payment_id"`
	Status    string `json:"status"`
}

// PaymentWebhook applies a provider callback. Confirmations are idempotent:
// replaying a succeeded payment reports duplicate instead of double
// crediting.
func (h *Handler) PaymentWebhook(w http.ResponseWriter, r *http.Request) {
	var req webhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if req.PaymentID == "" {
		respondError(w, http.StatusBadRequest, "payment_id is required")
		return
	}
	switch req.Status {
	case "succeeded":
		result, err := h.service.ConfirmDeposit(r.Context(), req.PaymentID)
		if err != nil {
			switch {
			case errors.Is(err, sql.ErrNoRows):
				respondError(w, http.StatusNotFound, "payment not found")
			case errors.Is(err, ledger.ErrPaymentNotPending):
				respondError(w, http.StatusConflict, "payment_not_pending")
			default:
				respondError(w, http.StatusInternalServerError, "unable to confirm payment")
			}
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{
			"payment_id": result.PaymentID,
			"coins":      result.Coins,
			"duplicate":  result.Duplicate,
		})
	case "canceled":
		if err := h.service.CancelPayment(r.Context(), req.PaymentID); err != nil {
			respondError(w, http.StatusInternalServerError, "unable to cancel payment")
			return
		}
		respondJSON(w, http.StatusOK, map[string]string{"payment_id": req.PaymentID, "status": "canceled"})
	default:
		respondError(w, http.StatusBadRequest, "invalid status")
	}
}

func (h *Handler) ListPayments(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	payments, err := h.payments.ListByUser(r.Context(), userID, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load payments")
		return
	}
	respondJSON(w, http.StatusOK, payments)
}
