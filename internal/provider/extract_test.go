package provider

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const payload = `{"decision": "BUY", "confidence": 0.82, "reasoning": "Strong uptrend with high volume.", "risk_level": "medium", "suggested_stop_loss": 48500.0, "suggested_take_profit": 52000.0}`

func TestExtractSignal_SameDecisionAcrossWrappingStyles(t *testing.T) {
	wrapped := map[string]string{
		"bare":              payload,
		"fenced_json":       "```json\n" + payload + "\n```",
		"fenced_bare":       "```\n" + payload + "\n```",
		"leading_prose":     "Here is my analysis:\n\n" + payload + "\n\nLet me know if you need more detail.",
		"trailing_sentence": payload + "\n\nThis reflects current market conditions.",
	}

	for name, text := range wrapped {
		t.Run(name, func(t *testing.T) {
			resp, err := ExtractSignal("anthropic", text)
			require.NoError(t, err)
			assert.Equal(t, Buy, resp.Decision)
			assert.InDelta(t, 0.82, resp.Confidence, 1e-9)
			assert.Equal(t, RiskMedium, resp.RiskLevel)
			require.NotNil(t, resp.SuggestedStopLoss)
			assert.InDelta(t, 48500.0, *resp.SuggestedStopLoss, 1e-9)
		})
	}
}

func TestExtractSignal_CaseInsensitiveKeys(t *testing.T) {
	text := `{"Decision": "SELL", "Confidence": 0.6, "Reasoning": "Breakdown below support.", "Risk_Level": "high"}`
	resp, err := ExtractSignal("openai", text)
	require.NoError(t, err)
	assert.Equal(t, Sell, resp.Decision)
	assert.Equal(t, RiskHigh, resp.RiskLevel)
}

func TestExtractSignal_BracesInsideStringsDoNotBreakScan(t *testing.T) {
	text := `Some preamble text, then: {"decision": "HOLD", "confidence": 0.4, "reasoning": "Mixed signals {see note}.", "risk_level": "low"}`
	resp, err := ExtractSignal("gemini", text)
	require.NoError(t, err)
	assert.Equal(t, Hold, resp.Decision)
	assert.Equal(t, "Mixed signals {see note}.", resp.Reasoning)
}

func TestExtractSignal_MissingRiskLevelDefaultsToMedium(t *testing.T) {
	text := `{"decision": "BUY", "confidence": 0.55, "reasoning": "Momentum building."}`
	resp, err := ExtractSignal("grok", text)
	require.NoError(t, err)
	assert.Equal(t, RiskMedium, resp.RiskLevel)
	assert.Nil(t, resp.SuggestedStopLoss)
}

func TestExtractSignal_NoJSONObjectFails(t *testing.T) {
	_, err := ExtractSignal("anthropic", "I cannot provide a signal right now.")
	require.Error(t, err)
	var pErr *Error
	require.ErrorAs(t, err, &pErr)
	assert.Equal(t, ErrParse, pErr.Kind)
}

func TestExtractSignal_InvalidDecisionFails(t *testing.T) {
	text := `{"decision": "MAYBE", "confidence": 0.5, "reasoning": "Unclear."}`
	_, err := ExtractSignal("anthropic", text)
	require.Error(t, err)
	var pErr *Error
	require.ErrorAs(t, err, &pErr)
	assert.Equal(t, ErrParse, pErr.Kind)
}

func TestExtractSignal_ConfidenceOutOfRangeFails(t *testing.T) {
	text := `{"decision": "BUY", "confidence": 1.5, "reasoning": "Too confident."}`
	_, err := ExtractSignal("anthropic", text)
	require.Error(t, err)
}

func TestExtractSignal_NegativeStopLossIsDropped(t *testing.T) {
	text := `{"decision": "BUY", "confidence": 0.5, "reasoning": "ok", "suggested_stop_loss": -10}`
	resp, err := ExtractSignal("anthropic", text)
	require.NoError(t, err)
	assert.Nil(t, resp.SuggestedStopLoss)
}
