package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"coinmeter/internal/config"
	"coinmeter/internal/currency"
	"coinmeter/internal/db"
	"coinmeter/internal/events"
	"coinmeter/internal/handlers"
	"coinmeter/internal/jobs"
	"coinmeter/internal/ledger"
	"coinmeter/internal/metrics"
	"coinmeter/internal/pricing"
	"coinmeter/internal/reporting"
	"coinmeter/internal/store"
	"coinmeter/internal/usage"
	"coinmeter/internal/websocket"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("failed to load config")
	}
	setupLogger(cfg)
	metrics.Init()

	database, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		log.WithError(err).Fatal("failed to connect database")
	}
	defer database.Close()

	accounts := store.NewAccountStore(database)
	transactions := store.NewTransactionStore(database)
	payments := store.NewPaymentStore(database)
	usageLogs := store.NewUsageStore(database)
	txRunner := db.NewTxRunner(database)

	rates := currency.NewProvider(currency.NewCBRSource(cfg.CurrencySourceURL), cfg.CurrencyFallbackRate, cfg.CurrencySpread)
	catalog := pricing.NewCatalog()
	catalogSource := pricing.NewOpenRouterSource(cfg.CatalogSourceURL)
	engine := pricing.NewEngine(catalog, pricing.EngineConfig{
		MarginMultiplier:     cfg.MarginMultiplier,
		CommissionMultiplier: cfg.CommissionMultiplier,
		CoinsPerUnit:         cfg.CoinsPerUnit,
		MinTextCoins:         cfg.MinTextCoins,
		MinImageCoins:        cfg.MinImageCoins,
		MinVideoCoins:        cfg.MinVideoCoins,
	})

	var publisher events.Publisher = events.NoopPublisher{}
	if cfg.KafkaBrokers != "" {
		kafkaPublisher := events.NewKafkaPublisher(strings.Split(cfg.KafkaBrokers, ","), cfg.KafkaTopic)
		defer kafkaPublisher.Close()
		publisher = kafkaPublisher
		log.WithField("topic", cfg.KafkaTopic).Info("kafka event publishing enabled")
	}

	hub := websocket.NewHub()
	service := ledger.NewService(txRunner, database, accounts, transactions, payments, usageLogs, hub, publisher, cfg.UsageLogKeep)
	provider := usage.NewOpenRouterProvider(cfg.UpstreamAPIURL, cfg.UpstreamAPIKey)
	coordinator := usage.NewCoordinator(engine, rates, service, provider, cfg.DefaultModel)
	reporter := reporting.NewReporter(transactions, cfg.CoinsPerUnit)

	scheduler := jobs.NewScheduler(rates, catalog, catalogSource)
	if err := scheduler.Start(cfg.RateRefreshSpec, cfg.CatalogRefreshSpec); err != nil {
		log.WithError(err).Fatal("failed to start background jobs")
	}
	defer scheduler.Stop()

	handler := handlers.New(database, cfg, accounts, payments, usageLogs, service, coordinator, rates, catalog, reporter, hub)
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler.Routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 150 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.WithField("addr", server.Addr).Info("coinmeter API listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("server error")
		}
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	<-shutdown

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.WithError(err).Fatal("shutdown error")
	}
}

func setupLogger(cfg config.Config) {
	level, err := log.ParseLevel(cfg.AppLogLevel)
	if err != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)
	if cfg.AppEnv == "production" {
		log.SetFormatter(&log.JSONFormatter{})
	}
}
