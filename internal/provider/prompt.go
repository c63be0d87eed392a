package provider

import (
	"fmt"
	"sort"
	"strings"
)

const systemInstruction = `You are a trading signal analyst. Given the market indicators below, respond with ONLY a JSON object, no surrounding prose, no code fences, matching exactly this shape:

{
  "decision": "BUY" | "SELL" | "HOLD",
  "confidence": <number between 0.0 and 1.0>,
  "reasoning": "<one paragraph explaining the call>",
  "risk_level": "low" | "medium" | "high",
  "suggested_stop_loss": <number, optional>,
  "suggested_take_profit": <number, optional>
}`

// BuildPrompt renders the shared system instruction and user message for a
// GenerateRequest. Every adapter sends the identical schema; only the
// transport around it differs.
func BuildPrompt(req GenerateRequest) (system, user string) {
	var b strings.Builder
	fmt.Fprintf(&b, "Pair: %s\n", req.Pair)
	fmt.Fprintf(&b, "Timeframe: %s\n", req.Timeframe)
	fmt.Fprintf(&b, "Current price: %v\n", req.CurrentPrice)
	b.WriteString("Indicators:\n")

	keys := make([]string, 0, len(req.MarketData))
	for k := range req.MarketData {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "%s: %v\n", k, req.MarketData[k])
	}

	return systemInstruction, b.String()
}
