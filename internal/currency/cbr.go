package currency

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
)

// CBRSource reads the central-bank daily JSON feed.
type CBRSource struct {
	url    string
	client *http.Client
}

func NewCBRSource(url string) *CBRSource {
	return &CBRSource{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

type cbrResponse struct {
	Valute map[string]struct {
		Value json.Number `json:"Value"`
	} `json:"Valute"`
}

func (s *CBRSource) Fetch(ctx context.Context) (decimal.Decimal, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return decimal.Zero, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return decimal.Zero, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, fmt.Errorf("rate source returned %d", resp.StatusCode)
	}
	var payload cbrResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return decimal.Zero, err
	}
	usd, ok := payload.Valute["USD"]
	if !ok {
		return decimal.Zero, fmt.Errorf("rate source has no USD entry")
	}
	rate, err := decimal.NewFromString(usd.Value.String())
	if err != nil {
		return decimal.Zero, err
	}
	if !rate.IsPositive() {
		return decimal.Zero, fmt.Errorf("rate source returned non-positive rate %s", rate)
	}
	return rate, nil
}
