package httpapi

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sawpanic/llmconsensus/internal/aggregator"
	"github.com/sawpanic/llmconsensus/internal/provider"
)

func validBody() ConsensusRequestBody {
	return ConsensusRequestBody{
		MarketData:   map[string]float64{"rsi": 65.5},
		Pair:         "BTC/USD",
		Timeframe:    "1h",
		CurrentPrice: 50000,
	}
}

func TestConsensusRequestBody_ValidBodyHasNoFailures(t *testing.T) {
	assert.Empty(t, validBody().Validate())
}

func TestConsensusRequestBody_RejectsInvalidTimeframe(t *testing.T) {
	body := validBody()
	body.Timeframe = "2h"

	failures := body.Validate()
	assert.Contains(t, failures, "timeframe")
}

func TestConsensusRequestBody_CollectsAllFailures(t *testing.T) {
	body := ConsensusRequestBody{
		MarketData:      map[string]float64{},
		Pair:            "",
		Timeframe:       "2h",
		CurrentPrice:    -1,
		ProviderWeights: map[string]float64{"openai": 3},
	}

	failures := body.Validate()
	assert.Contains(t, failures, "market_data")
	assert.Contains(t, failures, "pair")
	assert.Contains(t, failures, "timeframe")
	assert.Contains(t, failures, "current_price")
	assert.Contains(t, failures, "provider_weights")
}

func TestConsensusRequestBody_WeightAtBoundsIsValid(t *testing.T) {
	body := validBody()
	body.ProviderWeights = map[string]float64{"openai": 0, "gemini": 2}
	assert.Empty(t, body.Validate())
}

func TestNewConsensusResponseBody_TruncatesProviderReasoningOnly(t *testing.T) {
	longReasoning := make([]byte, maxReasoningLen+50)
	for i := range longReasoning {
		longReasoning[i] = 'a'
	}

	result := aggregator.Result{
		Decision:  provider.Buy,
		Reasoning: string(longReasoning),
		RiskLevel: provider.RiskMedium,
		ProviderResponses: []provider.Response{
			{ProviderName: "anthropic", Decision: provider.Buy, Reasoning: string(longReasoning)},
		},
	}

	body := NewConsensusResponseBody(result)
	assert.Len(t, body.Reasoning, maxReasoningLen+50)
	assert.Len(t, body.ProviderResponses[0].Reasoning, maxReasoningLen)
}
