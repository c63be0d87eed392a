package adapters

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPricingTable_EstimateCost(t *testing.T) {
	cost := openaiPricing.EstimateCost("gpt-4o-mini", 1_000_000, 1_000_000)
	assert.InDelta(t, 0.15+0.60, cost, 1e-9)
}

func TestPricingTable_UnknownModelIsZero(t *testing.T) {
	cost := anthropicPricing.EstimateCost("claude-unknown-model", 1_000_000, 1_000_000)
	assert.Zero(t, cost)
}

func TestPricingTable_PartialTokenCounts(t *testing.T) {
	cost := geminiPricing.EstimateCost("gemini-1.5-flash", 500_000, 0)
	assert.InDelta(t, 0.0375, cost, 1e-9)
}
