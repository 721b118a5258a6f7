// Package currency serves the USD-to-unit sell rate used for coin
// conversion. The rate is either refreshed from an external reference with a
// spread applied, or pinned by an administrative override.
package currency

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// RateSource supplies the external reference rate.
type RateSource interface {
	Fetch(ctx context.Context) (decimal.Decimal, error)
}

type Snapshot struct {
	SellRate      decimal.Decimal
	ReferenceRate decimal.Decimal
	LastUpdate    time.Time
	Overridden    bool
}

// Provider always serves a cached rate. Refresh failures keep the last known
// good value; an override pins the sell rate until the next SetRate call.
type Provider struct {
	mu         sync.RWMutex
	sellRate   decimal.Decimal
	reference  decimal.Decimal
	spread     decimal.Decimal
	lastUpdate time.Time
	overridden bool
	source     RateSource
}

func NewProvider(source RateSource, fallbackRate, spread float64) *Provider {
	fallback := decimal.NewFromFloat(fallbackRate)
	return &Provider{
		sellRate:  fallback,
		reference: fallback,
		spread:    decimal.NewFromFloat(spread),
		source:    source,
	}
}

// Rate returns the current sell rate. It never fails and never blocks on a
// refresh.
func (p *Provider) Rate() decimal.Decimal {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.sellRate
}

func (p *Provider) SnapshotNow() Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return Snapshot{
		SellRate:      p.sellRate,
		ReferenceRate: p.reference,
		LastUpdate:    p.lastUpdate,
		Overridden:    p.overridden,
	}
}

// SetRate pins the sell rate manually. It takes effect immediately and stays
// authoritative until the next SetRate call; periodic refreshes still update
// the reference rate for reporting.
func (p *Provider) SetRate(rate decimal.Decimal) {
	p.mu.Lock()
	p.sellRate = rate
	p.overridden = true
	p.lastUpdate = time.Now()
	p.mu.Unlock()
}

// ClearOverride returns the provider to reference-driven rates on the next
// refresh.
func (p *Provider) ClearOverride() {
	p.mu.Lock()
	p.overridden = false
	p.mu.Unlock()
}

// Refresh fetches the reference rate and derives the sell rate with the
// spread applied. On failure the cached value stays in place.
func (p *Provider) Refresh(ctx context.Context) error {
	if p.source == nil {
		return nil
	}
	reference, err := p.source.Fetch(ctx)
	if err != nil {
		log.WithError(err).Warn("rate refresh failed, serving cached rate")
		return err
	}
	sell := reference.Mul(p.spread).Round(2)
	p.mu.Lock()
	p.reference = reference
	if !p.overridden {
		p.sellRate = sell
	}
	p.lastUpdate = time.Now()
	p.mu.Unlock()
	log.WithFields(log.Fields{
		"reference": reference.String(),
		"sell":      sell.String(),
	}).Info("usd rate refreshed")
	return nil
}
