// Package jobs runs the periodic background refreshes: the currency rate
// and the model price catalog.
package jobs

import (
	"context"
	"time"

	"coinmeter/internal/currency"
	"coinmeter/internal/pricing"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
)

const jobTimeout = time.Minute

type Scheduler struct {
	cron    *cron.Cron
	rates   *currency.Provider
	catalog *pricing.Catalog
	source  *pricing.OpenRouterSource
}

func NewScheduler(rates *currency.Provider, catalog *pricing.Catalog, source *pricing.OpenRouterSource) *Scheduler {
	return &Scheduler{
		cron:    cron.New(),
		rates:   rates,
		catalog: catalog,
		source:  source,
	}
}

// Start registers the refresh jobs and runs each once immediately so the
// service does not serve fallback data until the first tick.
func (s *Scheduler) Start(rateSpec, catalogSpec string) error {
	if _, err := s.cron.AddFunc(rateSpec, s.refreshRate); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc(catalogSpec, s.refreshCatalog); err != nil {
		return err
	}
	go s.refreshRate()
	go s.refreshCatalog()
	s.cron.Start()
	return nil
}

// Stop halts scheduling and waits for any running job to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Scheduler) refreshRate() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()
	if err := s.rates.Refresh(ctx); err != nil {
		log.WithError(err).Warn("currency rate refresh failed, keeping cached rate")
	}
}

func (s *Scheduler) refreshCatalog() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()
	if err := pricing.RefreshCatalog(ctx, s.catalog, s.source); err != nil {
		log.WithError(err).Warn("model price refresh failed, keeping cached prices")
	}
}
