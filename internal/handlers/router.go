package handlers

import (
	"net/http"

	"coinmeter/internal/config"
	"coinmeter/internal/metrics"
	"coinmeter/internal/middleware"
	"coinmeter/internal/store"
	"coinmeter/internal/websocket"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

type Handler struct {
	writeDB     store.Execer
	cfg         config.Config
	accounts    AccountStore
	payments    PaymentStore
	usageLogs   UsageStore
	service     LedgerService
	coordinator UsageCoordinator
	rates       RateProvider
	catalog     PriceCatalog
	reporter    MarginReporter
	hub         *websocket.Hub
}

func New(writeDB store.Execer, cfg config.Config, accounts AccountStore, payments PaymentStore, usageLogs UsageStore, service LedgerService, coordinator UsageCoordinator, rates RateProvider, catalog PriceCatalog, reporter MarginReporter, hub *websocket.Hub) *Handler {
	return &Handler{
		writeDB:     writeDB,
		cfg:         cfg,
		accounts:    accounts,
		payments:    payments,
		usageLogs:   usageLogs,
		service:     service,
		coordinator: coordinator,
		rates:       rates,
		catalog:     catalog,
		reporter:    reporter,
		hub:         hub,
	}
}

func (h *Handler) Routes() http.Handler {
	router := chi.NewRouter()
	router.Use(chimiddleware.Logger)
	router.Use(middleware.HTTPMetrics)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{h.cfg.AllowedOrigins},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	router.Route("/api", func(r chi.Router) {
		r.Use(middleware.Auth(h.cfg.JWTSecret))
		r.Get("/balance", h.GetBalance)
		r.Get("/budget", h.GetBudget)
		r.Post("/budget", h.SetBudget)
		r.Delete("/budget", h.DeleteBudget)
		r.Get("/budget/estimate", h.EstimateBudget)
		r.Post("/usage/send", h.SendUsage)
		r.Post("/usage/estimate", h.EstimateUsage)
		r.Get("/usage/history", h.UsageHistory)
		r.Get("/transactions", h.ListTransactions)
		r.Post("/payments", h.CreatePayment)
		r.Get("/payments", h.ListPayments)
		r.Get("/prices", h.ListPrices)
		r.Get("/rate", h.RateInfo)
	})

	// Payment provider callback, authenticated by its own signature scheme
	// upstream of this service.
	router.Post("/payments/webhook", h.PaymentWebhook)
	router.Get("/ws/balances", h.WSBalances)

	router.Route("/admin", func(r chi.Router) {
		r.Use(middleware.RequireAdmin(h.cfg.AdminPasswordHash))
		r.Post("/adjust", h.AdminAdjust)
		r.Post("/refund", h.AdminRefund)
		r.Post("/rate", h.AdminSetRate)
		r.Delete("/rate", h.AdminClearRate)
		r.Get("/margin", h.AdminMargin)
		r.Delete("/users/{id}", h.AdminPurgeUser)
	})

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	router.Handle("/metrics", metrics.Handler())
	return router
}
