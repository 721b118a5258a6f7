package usage

import (
	"context"
	"fmt"

	"coinmeter/internal/pricing"

	"github.com/shopspring/decimal"
)

// Provider is the upstream generation service. Its wire protocol is out of
// scope here; the coordinator only needs the produced content and the
// resource usage behind it.
type Provider interface {
	Generate(ctx context.Context, req ProviderRequest) (ProviderResult, error)
}

type ProviderRequest struct {
	Model  pricing.ModelID
	Kind   pricing.Kind
	Prompt string
}

type ProviderResult struct {
	Content      string
	InputTokens  int64
	OutputTokens int64
	// CostUSD is the provider's own reported cost. When present it is
	// authoritative and overrides the catalog-based computation.
	CostUSD *decimal.Decimal
}

// UpstreamError wraps a failed provider call. It is surfaced as-is; the
// coordinator never retries the upstream on its own.
type UpstreamError struct {
	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream provider: %v", e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}
