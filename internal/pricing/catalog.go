// Package pricing maps model identifiers to per-million-token USD prices and
// converts USD cost into coins with margin and commission applied.
package pricing

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// ModelID is an upstream model identifier, e.g. "openai/gpt-4o".
type ModelID string

type Price struct {
	InputUSD  decimal.Decimal // per 1M input tokens
	OutputUSD decimal.Decimal // per 1M output tokens
}

func usd(value string) decimal.Decimal {
	return decimal.RequireFromString(value)
}

// DefaultPrice is charged for models missing from both the fallback table and
// the refreshed overlay.
var DefaultPrice = Price{InputUSD: usd("5.00"), OutputUSD: usd("20.00")}

// fallbackPrices is the static table used until (or instead of) a catalog
// refresh. Values are USD per 1M tokens.
var fallbackPrices = map[ModelID]Price{
	"google/gemini-2.0-flash-001":  {usd("0.10"), usd("0.40")},
	"google/gemini-2.5-flash":      {usd("0.30"), usd("2.50")},
	"openai/gpt-4o-mini":           {usd("0.15"), usd("0.60")},
	"deepseek/deepseek-chat":       {usd("0.30"), usd("1.20")},
	"deepseek/deepseek-r1":         {usd("0.30"), usd("1.20")},
	"anthropic/claude-3.5-haiku":   {usd("0.80"), usd("4.00")},
	"openai/o3-mini":               {usd("1.10"), usd("4.40")},
	"mistralai/mistral-large-2411": {usd("2.00"), usd("6.00")},
	"openai/gpt-4o":                {usd("2.50"), usd("10.00")},
	"google/gemini-2.5-pro":        {usd("1.25"), usd("10.00")},
	"anthropic/claude-sonnet-4":    {usd("3.00"), usd("15.00")},
	"anthropic/claude-3.5-sonnet":  {usd("3.00"), usd("15.00")},
	"anthropic/claude-3.7-sonnet":  {usd("3.00"), usd("15.00")},
	"x-ai/grok-3":                  {usd("3.00"), usd("15.00")},
	"openai/gpt-4-turbo":           {usd("10.00"), usd("30.00")},
	"anthropic/claude-opus-4":      {usd("15.00"), usd("75.00")},
	"openai/o1":                    {usd("15.00"), usd("60.00")},
	"openai/o1-pro":                {usd("150.00"), usd("600.00")},
}

// aliases maps short client-facing names to full model identifiers.
var aliases = map[string]ModelID{
	"gpt-4o":        "openai/gpt-4o",
	"gpt-4o-mini":   "openai/gpt-4o-mini",
	"gpt-4-turbo":   "openai/gpt-4-turbo",
	"claude-sonnet": "anthropic/claude-sonnet-4",
	"claude-haiku":  "anthropic/claude-3.5-haiku",
	"claude-opus":   "anthropic/claude-opus-4",
	"gemini-flash":  "google/gemini-2.0-flash-001",
	"gemini-pro":    "google/gemini-2.5-pro",
	"deepseek":      "deepseek/deepseek-chat",
}

// Resolve expands a short alias to the full model identifier. Unknown values
// pass through unchanged.
func Resolve(model string) ModelID {
	if full, ok := aliases[model]; ok {
		return full
	}
	return ModelID(model)
}

// Catalog serves the current price table: the static fallback with an
// authoritative overlay merged on top. Reads never block a refresh.
type Catalog struct {
	mu         sync.RWMutex
	overlay    map[ModelID]Price
	lastUpdate time.Time
}

func NewCatalog() *Catalog {
	return &Catalog{overlay: map[ModelID]Price{}}
}

// Lookup returns the price for a model, reporting whether it was a known
// entry or the default fallback.
func (c *Catalog) Lookup(model ModelID) (Price, bool) {
	c.mu.RLock()
	price, ok := c.overlay[model]
	c.mu.RUnlock()
	if ok {
		return price, true
	}
	if price, ok := fallbackPrices[model]; ok {
		return price, true
	}
	return DefaultPrice, false
}

// Known reports whether a model is part of the served set.
func (c *Catalog) Known(model ModelID) bool {
	_, ok := fallbackPrices[model]
	return ok
}

// Merge replaces the overlay with a freshly fetched price list. Empty input
// is ignored so a failed refresh never degrades the served table.
func (c *Catalog) Merge(prices map[ModelID]Price, now time.Time) {
	if len(prices) == 0 {
		return
	}
	c.mu.Lock()
	c.overlay = prices
	c.lastUpdate = now
	c.mu.Unlock()
}

func (c *Catalog) LastUpdate() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastUpdate
}

// Snapshot returns the merged table (fallback plus overlay) for listings.
func (c *Catalog) Snapshot() map[ModelID]Price {
	c.mu.RLock()
	defer c.mu.RUnlock()
	merged := make(map[ModelID]Price, len(fallbackPrices))
	for id, price := range fallbackPrices {
		merged[id] = price
	}
	for id, price := range c.overlay {
		if _, ok := fallbackPrices[id]; ok {
			merged[id] = price
		}
	}
	return merged
}
