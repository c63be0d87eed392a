// Package aggregator reconciles per-provider trading signals into a
// single consensus decision via weighted voting. Aggregate is a pure
// function: given the same responses and weights it always returns the
// same decision, confidence, and breakdowns (only the metadata timestamp
// depends on the clock).
package aggregator

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/sawpanic/llmconsensus/internal/provider"
)

// FailureKind is the closed set of ways Aggregate can fail.
type FailureKind string

const (
	FailInsufficient FailureKind = "INSUFFICIENT"
	FailEmptyVotes   FailureKind = "EMPTY_VOTES"
)

// Error is returned by Aggregate on failure.
type Error struct {
	Kind    FailureKind
	Message string
}

func (e *Error) Error() string { return fmt.Sprintf("aggregate[%s]: %s", e.Kind, e.Message) }

// Metadata carries the aggregate-level bookkeeping attached to a Result.
type Metadata struct {
	TotalProviders         int                           `json:"total_providers"`
	ParticipatingProviders int                           `json:"participating_providers"`
	AgreementScore         float64                       `json:"agreement_score"`
	VoteBreakdown          map[provider.Decision]int     `json:"vote_breakdown"`
	WeightedVotes          map[provider.Decision]float64 `json:"weighted_votes"`
	WeightedConfidence     float64                       `json:"weighted_confidence"`
	TotalLatencyMs         int64                         `json:"total_latency_ms"`
	TotalCostUSD           float64                       `json:"total_cost_usd"`
	TotalTokens            int                           `json:"total_tokens"`
	Timestamp              time.Time                     `json:"timestamp"`
}

// Result is the consensus output of Aggregate.
type Result struct {
	Decision            provider.Decision    `json:"decision"`
	Confidence          float64              `json:"confidence"`
	Reasoning           string               `json:"reasoning"`
	RiskLevel           provider.RiskLevel   `json:"risk_level"`
	SuggestedStopLoss   *float64             `json:"suggested_stop_loss,omitempty"`
	SuggestedTakeProfit *float64             `json:"suggested_take_profit,omitempty"`
	Metadata            Metadata             `json:"consensus_metadata"`
	ProviderResponses   []provider.Response  `json:"provider_responses"`
}

var decisions = []provider.Decision{provider.Buy, provider.Sell, provider.Hold}

// tieBreakOrder is the conservative preference used only as the final
// tie-break step: HOLD, then BUY, then SELL.
var tieBreakOrder = map[provider.Decision]int{
	provider.Hold: 0,
	provider.Buy:  1,
	provider.Sell: 2,
}

// Aggregate implements the algorithm in §4.4: filter by min_confidence,
// resolve weights, compute weighted votes, pick a winner with a
// deterministic tie-break, and synthesize the consensus fields.
//
// totalLatencyMs/totalCostUSD/totalTokens are summed across ALL responses
// passed in (including ones later dropped by the confidence filter), per
// the spec's "including losers" metadata rule — callers should pass every
// response that was collected for this request, not just the survivors.
func Aggregate(all []provider.Response, weights map[string]float64, minProviders int, minConfidence float64) (Result, error) {
	totalLatency, totalCost, totalTokens := sumTotals(all)

	survivors := make([]provider.Response, 0, len(all))
	for _, r := range all {
		if r.Confidence >= minConfidence {
			survivors = append(survivors, r)
		}
	}
	if len(survivors) < minProviders {
		return Result{}, &Error{Kind: FailInsufficient, Message: fmt.Sprintf("%d of %d required providers survived confidence filtering", len(survivors), minProviders)}
	}

	effectiveWeights := make([]float64, len(survivors))
	for i, r := range survivors {
		w, ok := weights[r.ProviderName]
		switch {
		case !ok:
			effectiveWeights[i] = 1.0
		case w < 0:
			effectiveWeights[i] = 0
		default:
			effectiveWeights[i] = w
		}
	}

	weightedVotes := make(map[provider.Decision]float64, 3)
	voteBreakdown := make(map[provider.Decision]int, 3)
	for _, d := range decisions {
		weightedVotes[d] = 0
		voteBreakdown[d] = 0
	}
	for i, r := range survivors {
		weightedVotes[r.Decision] += effectiveWeights[i] * r.Confidence
		voteBreakdown[r.Decision]++
	}

	var votesSum float64
	for _, v := range weightedVotes {
		votesSum += v
	}
	if votesSum == 0 {
		return Result{}, &Error{Kind: FailEmptyVotes, Message: "all weighted votes are zero"}
	}

	winner := selectWinner(weightedVotes, voteBreakdown, survivors)

	confidence := clamp01(weightedVotes[winner] / votesSum)
	agreement := clamp01(float64(voteBreakdown[winner]) / float64(len(survivors)))

	var winningVoters []provider.Response
	for _, r := range survivors {
		if r.Decision == winner {
			winningVoters = append(winningVoters, r)
		}
	}

	riskLevel := aggregateRisk(winningVoters, survivors)
	stopLoss := medianOf(winningVoters, func(r provider.Response) *float64 { return r.SuggestedStopLoss })
	takeProfit := medianOf(winningVoters, func(r provider.Response) *float64 { return r.SuggestedTakeProfit })
	reasoning := synthesizeReasoning(winner, voteBreakdown[winner], len(survivors), winningVoters)

	return Result{
		Decision:            winner,
		Confidence:          confidence,
		Reasoning:           reasoning,
		RiskLevel:           riskLevel,
		SuggestedStopLoss:   stopLoss,
		SuggestedTakeProfit: takeProfit,
		Metadata: Metadata{
			TotalProviders:         len(all),
			ParticipatingProviders: len(survivors),
			AgreementScore:         agreement,
			VoteBreakdown:          voteBreakdown,
			WeightedVotes:          weightedVotes,
			WeightedConfidence:     confidence,
			TotalLatencyMs:         totalLatency,
			TotalCostUSD:           totalCost,
			TotalTokens:            totalTokens,
			Timestamp:              time.Now().UTC(),
		},
		ProviderResponses: survivors,
	}, nil
}

func sumTotals(all []provider.Response) (latencyMs int64, costUSD float64, tokens int) {
	for _, r := range all {
		latencyMs += r.LatencyMs
		costUSD += r.CostUSD
		tokens += r.TokensIn + r.TokensOut
	}
	return
}

// selectWinner picks the arg-max of weightedVotes, applying the documented
// tie-break when two or more decisions are within 1e-9 of the maximum:
// higher raw vote count, then higher mean confidence among that
// decision's voters, then the conservative HOLD > BUY > SELL order.
func selectWinner(weightedVotes map[provider.Decision]float64, voteBreakdown map[provider.Decision]int, survivors []provider.Response) provider.Decision {
	const epsilon = 1e-9

	maxVote := -1.0
	for _, v := range weightedVotes {
		if v > maxVote {
			maxVote = v
		}
	}

	var tied []provider.Decision
	for _, d := range decisions {
		if math.Abs(weightedVotes[d]-maxVote) <= epsilon {
			tied = append(tied, d)
		}
	}
	if len(tied) == 1 {
		return tied[0]
	}

	meanConfidence := make(map[provider.Decision]float64, len(tied))
	for _, d := range tied {
		var sum float64
		var n int
		for _, r := range survivors {
			if r.Decision == d {
				sum += r.Confidence
				n++
			}
		}
		if n > 0 {
			meanConfidence[d] = sum / float64(n)
		}
	}

	sort.Slice(tied, func(i, j int) bool {
		a, b := tied[i], tied[j]
		if voteBreakdown[a] != voteBreakdown[b] {
			return voteBreakdown[a] > voteBreakdown[b]
		}
		if meanConfidence[a] != meanConfidence[b] {
			return meanConfidence[a] > meanConfidence[b]
		}
		return tieBreakOrder[a] < tieBreakOrder[b]
	})

	return tied[0]
}

// aggregateRisk takes the conservative maximum risk among winning voters,
// falling back to the maximum across all participants if no winner
// reported a risk level (which cannot happen today since RiskLevel always
// defaults to medium, but the fallback keeps the rule honest).
func aggregateRisk(winners, all []provider.Response) provider.RiskLevel {
	for _, r := range winners {
		if r.RiskLevel != "" {
			return maxRiskAcross(winners)
		}
	}
	return maxRiskAcross(all)
}

func maxRiskAcross(rs []provider.Response) provider.RiskLevel {
	risk := provider.RiskLow
	for _, r := range rs {
		risk = provider.MaxRisk(risk, r.RiskLevel)
	}
	return risk
}

// medianOf computes the median of the non-nil values selected from rs by
// pick, returning nil if none are present.
func medianOf(rs []provider.Response, pick func(provider.Response) *float64) *float64 {
	var values []float64
	for _, r := range rs {
		if v := pick(r); v != nil {
			values = append(values, *v)
		}
	}
	if len(values) == 0 {
		return nil
	}
	sort.Float64s(values)
	n := len(values)
	var median float64
	if n%2 == 1 {
		median = values[n/2]
	} else {
		median = (values[n/2-1] + values[n/2]) / 2
	}
	return &median
}

// synthesizeReasoning builds the deterministic one-paragraph summary:
// "Consensus ({winner_count}/{total} providers agree): " followed by the
// reasoning of the highest-confidence winning voter.
func synthesizeReasoning(winner provider.Decision, winnerCount, total int, winners []provider.Response) string {
	prefix := fmt.Sprintf("Consensus (%d/%d providers agree): ", winnerCount, total)
	if len(winners) == 0 {
		return prefix + fmt.Sprintf("no %s voters present.", winner)
	}

	best := winners[0]
	for _, r := range winners[1:] {
		if r.Confidence > best.Confidence {
			best = r
		}
	}
	return prefix + best.Reasoning
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
