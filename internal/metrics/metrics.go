// Package metrics derives token counts and cost estimates for a single
// completion call. Everything here is pure: no I/O, no shared state.
package metrics

import (
	"fmt"
	"time"
)

// charsPerToken is the rough ratio used when the gateway omits usage data.
const charsPerToken = 4

// PriceLookup resolves a model's price per 1K tokens. Satisfied by
// *registry.Registry.
type PriceLookup interface {
	Price(modelID string) (float64, bool)
}

// EstimateTokens approximates a token count from a character count:
// ceil(promptLength / 4).
func EstimateTokens(promptLength int) int {
	if promptLength <= 0 {
		return 0
	}
	return (promptLength + charsPerToken - 1) / charsPerToken
}

// Compute returns the token count and estimated USD cost of one call.
//
// gatewayTokens is the total reported by the gateway, or nil when usage was
// absent. A nil or negative count falls back to EstimateTokens. A model
// missing from prices costs 0. Cost is never rounded here.
func Compute(prices PriceLookup, modelID string, gatewayTokens *int, promptLength int) (tokens int, cost float64) {
	if gatewayTokens != nil && *gatewayTokens >= 0 {
		tokens = *gatewayTokens
	} else {
		tokens = EstimateTokens(promptLength)
	}
	return tokens, Cost(prices, modelID, tokens)
}

// Cost is tokens × pricePer1k / 1000, or 0 for an unknown model.
func Cost(prices PriceLookup, modelID string, tokens int) float64 {
	if prices == nil {
		return 0
	}
	price, ok := prices.Price(modelID)
	if !ok {
		return 0
	}
	return float64(tokens) * price / 1000
}

// FormatCost renders a cost for display. This is the only place rounding
// happens.
func FormatCost(cost float64) string {
	return fmt.Sprintf("$%.6f", cost)
}

// FormatLatency renders a millisecond latency, switching to seconds past 1s.
func FormatLatency(ms int64) string {
	if ms < 1000 {
		return fmt.Sprintf("%dms", ms)
	}
	return fmt.Sprintf("%.2fs", (time.Duration(ms) * time.Millisecond).Seconds())
}
