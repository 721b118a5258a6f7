package pricing

import (
	"github.com/shopspring/decimal"
)

// Kind selects the minimum coin floor for a generation.
type Kind string

const (
	KindText  Kind = "text"
	KindImage Kind = "image"
	KindVideo Kind = "video"
)

type Engine struct {
	catalog      *Catalog
	margin       decimal.Decimal
	commission   decimal.Decimal
	coinsPerUnit decimal.Decimal
	floors       map[Kind]int64
}

type EngineConfig struct {
	MarginMultiplier     float64
	CommissionMultiplier float64
	CoinsPerUnit         int64
	MinTextCoins         int64
	MinImageCoins        int64
	MinVideoCoins        int64
}

func NewEngine(catalog *Catalog, cfg EngineConfig) *Engine {
	return &Engine{
		catalog:      catalog,
		margin:       decimal.NewFromFloat(cfg.MarginMultiplier),
		commission:   decimal.NewFromFloat(cfg.CommissionMultiplier),
		coinsPerUnit: decimal.NewFromInt(cfg.CoinsPerUnit),
		floors: map[Kind]int64{
			KindText:  cfg.MinTextCoins,
			KindImage: cfg.MinImageCoins,
			KindVideo: cfg.MinVideoCoins,
		},
	}
}

var oneMillion = decimal.NewFromInt(1_000_000)

// CostUSD computes the upstream USD cost of a request from token counts,
// using the model's catalog entry or the default price for unknown models.
func (e *Engine) CostUSD(model ModelID, inputTokens, outputTokens int64) decimal.Decimal {
	price, _ := e.catalog.Lookup(model)
	input := decimal.NewFromInt(inputTokens).Div(oneMillion).Mul(price.InputUSD)
	output := decimal.NewFromInt(outputTokens).Div(oneMillion).Mul(price.OutputUSD)
	return input.Add(output)
}

// Multiplier converts USD to coins for a given sell rate:
// rate x margin x commission x coins-per-unit.
func (e *Engine) Multiplier(rate decimal.Decimal) decimal.Decimal {
	return rate.Mul(e.margin).Mul(e.commission).Mul(e.coinsPerUnit)
}

// ToCoins converts a USD cost to coins, rounded up and floored at the
// per-kind minimum. Monotonically non-decreasing in both cost and rate.
func (e *Engine) ToCoins(costUSD, rate decimal.Decimal, kind Kind) int64 {
	coins := costUSD.Mul(e.Multiplier(rate)).Ceil().IntPart()
	if floor := e.floor(kind); coins < floor {
		return floor
	}
	return coins
}

// Cost is the combined computation: token counts to coins at a rate.
func (e *Engine) Cost(model ModelID, inputTokens, outputTokens int64, rate decimal.Decimal, kind Kind) (int64, decimal.Decimal) {
	costUSD := e.CostUSD(model, inputTokens, outputTokens)
	return e.ToCoins(costUSD, rate, kind), costUSD
}

func (e *Engine) floor(kind Kind) int64 {
	if floor, ok := e.floors[kind]; ok && floor > 0 {
		return floor
	}
	return 1
}

// EstimateTokens approximates the token count of a text, assuming roughly
// three characters per token.
func EstimateTokens(text string) int64 {
	tokens := int64(len(text)) / 3
	if tokens < 1 {
		return 1
	}
	return tokens
}
