package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// OpenRouterSource fetches the authoritative model price list. Only models
// already present in the fallback table are taken; everything else upstream
// is irrelevant to this catalog.
type OpenRouterSource struct {
	url    string
	client *http.Client
}

func NewOpenRouterSource(url string) *OpenRouterSource {
	return &OpenRouterSource{
		url:    url,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

type openRouterModel struct {
	ID      string `json:"id"`
	Pricing struct {
		Prompt     string `json:"prompt"`
		Completion string `json:"completion"`
	} `json:"pricing"`
}

type openRouterResponse struct {
	Data []openRouterModel `json:"data"`
}

// Fetch returns USD-per-1M-token prices for the served model set.
func (s *OpenRouterSource) Fetch(ctx context.Context) (map[ModelID]Price, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("price catalog returned %d", resp.StatusCode)
	}
	var payload openRouterResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}

	prices := make(map[ModelID]Price)
	for _, model := range payload.Data {
		id := ModelID(model.ID)
		if _, ok := fallbackPrices[id]; !ok {
			continue
		}
		// Upstream quotes USD per token; the catalog holds USD per 1M.
		prompt, err := decimal.NewFromString(model.Pricing.Prompt)
		if err != nil {
			continue
		}
		completion, err := decimal.NewFromString(model.Pricing.Completion)
		if err != nil {
			continue
		}
		input := prompt.Mul(oneMillion)
		output := completion.Mul(oneMillion)
		if input.IsPositive() || output.IsPositive() {
			prices[id] = Price{InputUSD: input, OutputUSD: output}
		}
	}
	return prices, nil
}

// RefreshCatalog pulls the latest prices into the catalog. A failed fetch
// leaves the served table untouched.
func RefreshCatalog(ctx context.Context, catalog *Catalog, source *OpenRouterSource) error {
	prices, err := source.Fetch(ctx)
	if err != nil {
		return err
	}
	catalog.Merge(prices, time.Now())
	log.WithField("models", len(prices)).Info("price catalog refreshed")
	return nil
}
