package usage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"coinmeter/internal/pricing"

	"github.com/shopspring/decimal"
)

// OpenRouterProvider calls the OpenRouter chat completions API. Token counts
// come from the response usage block; when the API reports its own cost that
// figure is passed through as authoritative.
type OpenRouterProvider struct {
	url    string
	apiKey string
	client *http.Client
}

func NewOpenRouterProvider(url, apiKey string) *OpenRouterProvider {
	return &OpenRouterProvider{
		url:    url,
		apiKey: apiKey,
		client: &http.Client{Timeout: 120 * time.Second},
	}
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Usage    usageOptions  `json:"usage"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type usageOptions struct {
	Include bool `json:"include"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int64        `json:"prompt_tokens"`
		CompletionTokens int64        `json:"completion_tokens"`
		Cost             *json.Number `json:"cost"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (p *OpenRouterProvider) Generate(ctx context.Context, req ProviderRequest) (ProviderResult, error) {
	payload, err := json.Marshal(chatRequest{
		Model:    string(req.Model),
		Messages: []chatMessage{{Role: "user", Content: req.Prompt}},
		Usage:    usageOptions{Include: true},
	})
	if err != nil {
		return ProviderResult{}, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(payload))
	if err != nil {
		return ProviderResult{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return ProviderResult{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return ProviderResult{}, fmt.Errorf("upstream status %d", resp.StatusCode)
	}
	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return ProviderResult{}, fmt.Errorf("parsing upstream response: %w", err)
	}
	if parsed.Error != nil {
		return ProviderResult{}, fmt.Errorf("upstream error: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return ProviderResult{}, fmt.Errorf("upstream returned no choices")
	}

	result := ProviderResult{
		Content:      parsed.Choices[0].Message.Content,
		InputTokens:  parsed.Usage.PromptTokens,
		OutputTokens: parsed.Usage.CompletionTokens,
	}
	if result.InputTokens == 0 {
		result.InputTokens = pricing.EstimateTokens(req.Prompt)
	}
	if parsed.Usage.Cost != nil {
		if cost, err := decimal.NewFromString(parsed.Usage.Cost.String()); err == nil && cost.IsPositive() {
			result.CostUSD = &cost
		}
	}
	return result, nil
}
