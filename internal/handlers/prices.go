package handlers

import (
	"net/http"
	"sort"
)

func (h *Handler) ListPrices(w http.ResponseWriter, r *http.Request) {
	snapshot := h.catalog.Snapshot()
	models := make([]map[string]any, 0, len(snapshot))
	for model, price := range snapshot {
		coins := h.coordinator.EstimateCost(string(model), "")
		models = append(models, map[string]any{
			"model":           string(model),
			"input_usd":       price.InputUSD.String(),
			"output_usd":      price.OutputUSD.String(),
			"estimated_coins": coins,
			"category":        priceCategory(coins),
		})
	}
	sort.Slice(models, func(i, j int) bool {
		return models[i]["model"].(string) < models[j]["model"].(string)
	})
	respondJSON(w, http.StatusOK, map[string]any{
		"models":       models,
		"last_update":  h.catalog.LastUpdate(),
		"price_per_1m": true,
	})
}

// Rough buckets for the price list, keyed on the coin cost of a typical
// exchange rather than raw USD rates.
func priceCategory(coins int64) string {
	switch {
	case coins <= 50:
		return "cheap"
	case coins <= 500:
		return "standard"
	default:
		return "premium"
	}
}

func (h *Handler) RateInfo(w http.ResponseWriter, r *http.Request) {
	snapshot := h.rates.SnapshotNow()
	respondJSON(w, http.StatusOK, map[string]any{
		"sell_rate":      snapshot.SellRate.String(),
		"reference_rate": snapshot.ReferenceRate.String(),
		"last_update":    snapshot.LastUpdate,
		"overridden":     snapshot.Overridden,
	})
}
