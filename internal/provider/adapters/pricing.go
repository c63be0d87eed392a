package adapters

// pricePerMillion holds $/1M-token rates for one model.
type pricePerMillion struct {
	In  float64
	Out float64
}

// pricingTable maps model identifier to its rate. Unknown models fall back
// to the zero value (cost reported as 0), which is surfaced rather than
// guessed.
type pricingTable map[string]pricePerMillion

// EstimateCost is the pure cost function shared by every adapter: tokens
// times the model's per-million rate, divided down to actual token counts.
func (t pricingTable) EstimateCost(model string, tokensIn, tokensOut int) float64 {
	rate, ok := t[model]
	if !ok {
		return 0
	}
	return float64(tokensIn)/1_000_000*rate.In + float64(tokensOut)/1_000_000*rate.Out
}

var openaiPricing = pricingTable{
	"gpt-4o":      {In: 2.50, Out: 10.00},
	"gpt-4o-mini": {In: 0.15, Out: 0.60},
	"gpt-4-turbo": {In: 10.00, Out: 30.00},
}

var grokPricing = pricingTable{
	"grok-2":      {In: 2.00, Out: 10.00},
	"grok-2-mini": {In: 0.20, Out: 0.50},
}

var anthropicPricing = pricingTable{
	"claude-3-5-sonnet-20241022": {In: 3.00, Out: 15.00},
	"claude-3-5-haiku-20241022":  {In: 0.80, Out: 4.00},
	"claude-3-opus-20240229":     {In: 15.00, Out: 75.00},
}

var geminiPricing = pricingTable{
	"gemini-1.5-pro":   {In: 1.25, Out: 5.00},
	"gemini-1.5-flash": {In: 0.075, Out: 0.30},
}
