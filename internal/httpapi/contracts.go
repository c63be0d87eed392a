package httpapi

import (
	"time"

	"github.com/sawpanic/llmconsensus/internal/aggregator"
	"github.com/sawpanic/llmconsensus/internal/provider"
)

var acceptedTimeframes = map[string]bool{
	"1m": true, "5m": true, "15m": true, "30m": true,
	"1h": true, "4h": true, "1d": true,
}

// ConsensusRequestBody is the POST /v1/strategies/llm-consensus request
// envelope.
type ConsensusRequestBody struct {
	MarketData      map[string]float64 `json:"market_data"`
	Pair            string             `json:"pair"`
	Timeframe       string             `json:"timeframe"`
	CurrentPrice    float64            `json:"current_price"`
	ProviderWeights map[string]float64 `json:"provider_weights,omitempty"`
}

// Validate checks the request body against the field rules in §4.6,
// returning a field→messages map of every failure found (not just the
// first), so the 400 response can list them all at once.
func (b ConsensusRequestBody) Validate() map[string][]string {
	errs := map[string][]string{}

	if len(b.MarketData) == 0 {
		errs["market_data"] = append(errs["market_data"], "must be a non-empty object")
	}
	if b.Pair == "" {
		errs["pair"] = append(errs["pair"], "must not be empty")
	}
	if !acceptedTimeframes[b.Timeframe] {
		errs["timeframe"] = append(errs["timeframe"], "must be one of 1m, 5m, 15m, 30m, 1h, 4h, 1d")
	}
	if b.CurrentPrice <= 0 {
		errs["current_price"] = append(errs["current_price"], "must be a positive finite number")
	}
	for name, w := range b.ProviderWeights {
		if w < 0 || w > 2 {
			errs["provider_weights"] = append(errs["provider_weights"], name+" weight must be in [0,2]")
		}
	}

	return errs
}

// ProviderResponseBody is the transport-truncated shape of one
// provider.Response embedded in a ConsensusResponseBody.
type ProviderResponseBody struct {
	Provider            string   `json:"provider"`
	Decision            string   `json:"decision"`
	Confidence          float64  `json:"confidence"`
	Reasoning           string   `json:"reasoning"`
	RiskLevel           string   `json:"risk_level"`
	SuggestedStopLoss   *float64 `json:"suggested_stop_loss,omitempty"`
	SuggestedTakeProfit *float64 `json:"suggested_take_profit,omitempty"`
	LatencyMs           int64    `json:"latency_ms"`
	TokensIn            int      `json:"tokens_in"`
	TokensOut           int      `json:"tokens_out"`
	CostUSD             float64  `json:"cost_usd"`
}

// ConsensusResponseBody is the 200 response body.
type ConsensusResponseBody struct {
	Decision            string                 `json:"decision"`
	Confidence          float64                `json:"confidence"`
	Reasoning           string                 `json:"reasoning"`
	RiskLevel           string                 `json:"risk_level"`
	SuggestedStopLoss   *float64               `json:"suggested_stop_loss,omitempty"`
	SuggestedTakeProfit *float64               `json:"suggested_take_profit,omitempty"`
	ConsensusMetadata   aggregator.Metadata    `json:"consensus_metadata"`
	ProviderResponses   []ProviderResponseBody `json:"provider_responses"`
}

// maxReasoningLen is the default truncation length for transported
// per-provider reasoning text.
const maxReasoningLen = 500

// NewConsensusResponseBody converts an aggregator.Result into its wire
// shape, truncating each provider's reasoning to maxReasoningLen.
func NewConsensusResponseBody(r aggregator.Result) ConsensusResponseBody {
	providers := make([]ProviderResponseBody, 0, len(r.ProviderResponses))
	for _, pr := range r.ProviderResponses {
		providers = append(providers, ProviderResponseBody{
			Provider:            pr.ProviderName,
			Decision:            string(pr.Decision),
			Confidence:          pr.Confidence,
			Reasoning:           truncate(pr.Reasoning, maxReasoningLen),
			RiskLevel:           string(pr.RiskLevel),
			SuggestedStopLoss:   pr.SuggestedStopLoss,
			SuggestedTakeProfit: pr.SuggestedTakeProfit,
			LatencyMs:           pr.LatencyMs,
			TokensIn:            pr.TokensIn,
			TokensOut:           pr.TokensOut,
			CostUSD:             pr.CostUSD,
		})
	}

	return ConsensusResponseBody{
		Decision:            string(r.Decision),
		Confidence:          r.Confidence,
		Reasoning:           r.Reasoning,
		RiskLevel:           string(r.RiskLevel),
		SuggestedStopLoss:   r.SuggestedStopLoss,
		SuggestedTakeProfit: r.SuggestedTakeProfit,
		ConsensusMetadata:   r.Metadata,
		ProviderResponses:   providers,
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// ErrorBody is the shared shape for every non-2xx response.
type ErrorBody struct {
	Error             string              `json:"error"`
	Detail            string              `json:"detail,omitempty"`
	Details           map[string][]string `json:"details,omitempty"`
	PerProviderErrors map[string]string   `json:"per_provider_errors,omitempty"`
}

// HealthResponseBody is the GET health-probe response.
type HealthResponseBody struct {
	Status              string                     `json:"status"`
	AvailableProviders  int                        `json:"available_providers"`
	RequiredProviders   int                        `json:"required_providers"`
	ProviderHealth      map[string]ProviderHealthBody `json:"provider_health"`
}

// ProviderHealthBody is one adapter's entry in the health probe's
// provider_health map.
type ProviderHealthBody struct {
	State         provider.State `json:"state"`
	RequestsTotal int64          `json:"requests_total"`
	ErrorRate     float64        `json:"error_rate"`
	P99LatencyMs  float64        `json:"p99_latency_ms"`
	LastRequestAt time.Time      `json:"last_request_at,omitempty"`
}
