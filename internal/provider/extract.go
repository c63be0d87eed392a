package provider

import (
	"encoding/json"
	"math"
	"strings"
)

// rawSignal is the shape extracted JSON is decoded into before normalization.
// Keys are matched case-insensitively by lower-casing the decoded map first.
type rawSignal struct {
	Decision            string      `json:"decision"`
	Confidence          json.Number `json:"confidence"`
	Reasoning           string      `json:"reasoning"`
	RiskLevel           string      `json:"risk_level"`
	SuggestedStopLoss   json.Number `json:"suggested_stop_loss"`
	SuggestedTakeProfit json.Number `json:"suggested_take_profit"`
}

// ExtractSignal runs the tolerant extraction strategy over a vendor's raw
// text reply and returns a normalized Response (decision/confidence/
// reasoning/risk populated; caller fills in provider name, latency, tokens,
// cost). It never panics; every failure becomes a *Error with kind PARSE.
func ExtractSignal(providerName, text string) (Response, error) {
	candidate, ok := locateJSON(text)
	if !ok {
		return Response{}, NewError(providerName, ErrParse, "no JSON object found in response", nil)
	}

	raw, err := decodeCaseInsensitive(candidate)
	if err != nil {
		return Response{}, NewError(providerName, ErrParse, "response is not valid JSON", err)
	}

	return normalizeSignal(providerName, raw, text)
}

// locateJSON applies the three-step search: whole-content parse, fenced
// code block, then a brace-depth-balanced scan. It returns the JSON
// substring to attempt to decode, not the decoded value, so each step can
// share the same decoder.
func locateJSON(text string) (string, bool) {
	trimmed := strings.TrimSpace(text)

	if isPlausibleJSONObject(trimmed) {
		return trimmed, true
	}

	if fenced, ok := stripFence(trimmed); ok {
		if isPlausibleJSONObject(strings.TrimSpace(fenced)) {
			return strings.TrimSpace(fenced), true
		}
	}

	if obj, ok := scanBalancedObject(text); ok {
		return obj, true
	}

	return "", false
}

func isPlausibleJSONObject(s string) bool {
	return strings.HasPrefix(s, "{") && strings.HasSuffix(s, "}")
}

// stripFence strips a leading/trailing ``` fence, with or without a
// language tag on the opening line (```json or bare ```).
func stripFence(s string) (string, bool) {
	if !strings.HasPrefix(s, "```") {
		return "", false
	}
	rest := s[3:]
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
		firstLine := rest[:nl]
		if !strings.ContainsAny(firstLine, "{}\"") {
			rest = rest[nl+1:]
		}
	}
	end := strings.LastIndex(rest, "```")
	if end < 0 {
		return "", false
	}
	return rest[:end], true
}

// scanBalancedObject finds the first top-level balanced { ... } span,
// tracking brace depth while respecting string literals and escapes so
// that braces inside quoted strings don't perturb the count.
func scanBalancedObject(text string) (string, bool) {
	start := -1
	depth := 0
	inString := false
	escaped := false

	for i := 0; i < len(text); i++ {
		c := text[i]

		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth > 0 {
				depth--
				if depth == 0 && start >= 0 {
					return text[start : i+1], true
				}
			}
		}
	}

	return "", false
}

// decodeCaseInsensitive decodes a JSON object into a generic map, lower-cases
// its keys, re-encodes, and decodes into rawSignal so that vendor
// inconsistencies like "Decision" or "CONFIDENCE" still bind correctly.
func decodeCaseInsensitive(candidate string) (rawSignal, error) {
	var generic map[string]interface{}
	if err := json.Unmarshal([]byte(candidate), &generic); err != nil {
		return rawSignal{}, err
	}

	lowered := make(map[string]interface{}, len(generic))
	for k, v := range generic {
		lowered[strings.ToLower(k)] = v
	}

	reencoded, err := json.Marshal(lowered)
	if err != nil {
		return rawSignal{}, err
	}

	var raw rawSignal
	if err := json.Unmarshal(reencoded, &raw); err != nil {
		return rawSignal{}, err
	}
	return raw, nil
}

// normalizeSignal validates and coerces a decoded rawSignal into a Response.
func normalizeSignal(providerName string, raw rawSignal, rawText string) (Response, error) {
	decision, ok := ParseDecision(raw.Decision)
	if !ok {
		return Response{}, NewError(providerName, ErrParse, "decision missing or not one of BUY/SELL/HOLD", nil)
	}

	if strings.TrimSpace(raw.Reasoning) == "" {
		return Response{}, NewError(providerName, ErrParse, "reasoning missing or empty", nil)
	}

	confidence, err := raw.Confidence.Float64()
	if err != nil {
		return Response{}, NewError(providerName, ErrParse, "confidence missing or not numeric", err)
	}
	if confidence < 0 || confidence > 1 {
		return Response{}, NewError(providerName, ErrParse, "confidence out of range [0,1]", nil)
	}

	resp := Response{
		ProviderName: providerName,
		Decision:     decision,
		Confidence:   confidence,
		Reasoning:    raw.Reasoning,
		RiskLevel:    ParseRiskLevel(raw.RiskLevel),
		RawText:      rawText,
	}

	if v, err := raw.SuggestedStopLoss.Float64(); err == nil && isFinitePositive(v) {
		resp.SuggestedStopLoss = &v
	}
	if v, err := raw.SuggestedTakeProfit.Float64(); err == nil && isFinitePositive(v) {
		resp.SuggestedTakeProfit = &v
	}

	return resp, nil
}

func isFinitePositive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}
