// Package orchestrator fans a consensus request out to every available
// provider under a single shared deadline, collects partial results, and
// invokes the aggregator.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/sawpanic/llmconsensus/internal/aggregator"
	"github.com/sawpanic/llmconsensus/internal/provider"
	"github.com/sawpanic/llmconsensus/internal/registry"
)

// OutcomeKind is the closed set of ways GenerateConsensus can fail.
type OutcomeKind string

const (
	FailNoProviders           OutcomeKind = "NO_PROVIDERS"
	FailInsufficientSuccesses OutcomeKind = "INSUFFICIENT_SUCCESSES"
	FailAggregatorFailed      OutcomeKind = "AGGREGATOR_FAILED"
)

// Error is returned by GenerateConsensus on failure.
type Error struct {
	Kind              OutcomeKind
	Message           string
	PerProviderErrors map[string]error
	Cause             error
}

func (e *Error) Error() string {
	return fmt.Sprintf("orchestrator[%s]: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Request bundles the inputs to GenerateConsensus.
type Request struct {
	MarketData       provider.MarketData
	Pair             string
	Timeframe        string
	CurrentPrice     float64
	ProviderWeights  map[string]float64 // optional per-request weight overrides
	TotalDeadline    time.Time
}

// ProviderCallTimer is returned by ProviderMetricsSink.StartRequestTimer and
// stopped once the call it timed completes.
type ProviderCallTimer interface {
	Stop(outcome string)
}

// ProviderMetricsSink records per-provider call metrics as the fan-out loop
// in GenerateConsensus completes each call. Implementations must be safe
// for concurrent use, since one sink is shared across every goroutine in
// the fan-out. httpapi.MetricsRegistry implements this against real
// Prometheus collectors; it is optional, so a nil sink is a no-op.
type ProviderMetricsSink interface {
	StartRequestTimer(providerName string) ProviderCallTimer
}

// Orchestrator wires the registry and aggregator together behind the
// single public GenerateConsensus operation.
type Orchestrator struct {
	registry        *registry.Registry
	minProviders    int
	minConfidence   float64
	metrics         *Metrics
	providerMetrics ProviderMetricsSink
	log             zerolog.Logger
}

// New builds an Orchestrator over reg, requiring at least minProviders
// successful responses and minConfidence per-response confidence to
// count toward consensus.
func New(reg *registry.Registry, minProviders int, minConfidence float64, log zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		registry:      reg,
		minProviders:  minProviders,
		minConfidence: minConfidence,
		metrics:       NewMetrics(),
		log:           log,
	}
}

// Metrics returns the orchestrator's rolling request metrics.
func (o *Orchestrator) Metrics() *Metrics { return o.metrics }

// SetProviderMetrics wires a Prometheus-backed (or test) sink that records
// each individual provider call's duration and outcome. Optional: without
// it, GenerateConsensus still works, it just doesn't publish per-provider
// metrics.
func (o *Orchestrator) SetProviderMetrics(sink ProviderMetricsSink) {
	o.providerMetrics = sink
}

type taskResult struct {
	name     string
	response provider.Response
	err      error
}

// GenerateConsensus fans a request out to every available provider under
// req.TotalDeadline, collects results as they complete, and aggregates
// the successes. A single hung provider cannot delay the others or the
// caller past the deadline.
func (o *Orchestrator) GenerateConsensus(ctx context.Context, req Request) (aggregator.Result, error) {
	start := time.Now()

	providers := o.registry.AvailableProviders()
	if len(providers) < o.minProviders {
		o.metrics.RecordRequest(false, time.Since(start))
		return aggregator.Result{}, &Error{
			Kind:    FailNoProviders,
			Message: fmt.Sprintf("%d available providers, need %d", len(providers), o.minProviders),
		}
	}

	weights := make(map[string]float64, len(providers))
	for _, p := range providers {
		if w, ok := req.ProviderWeights[p.Name()]; ok && w >= 0 {
			weights[p.Name()] = w
		} else {
			weights[p.Name()] = p.Weight()
		}
	}

	ctx, cancel := context.WithDeadline(ctx, req.TotalDeadline)
	defer cancel()

	genReq := provider.GenerateRequest{
		MarketData:   req.MarketData,
		Pair:         req.Pair,
		Timeframe:    req.Timeframe,
		CurrentPrice: req.CurrentPrice,
	}

	results := make(chan taskResult, len(providers))
	for _, p := range providers {
		go func(p provider.Provider) {
			var timer ProviderCallTimer
			if o.providerMetrics != nil {
				timer = o.providerMetrics.StartRequestTimer(p.Name())
			}
			resp, err := p.GenerateSignal(ctx, genReq)
			if timer != nil {
				outcome := "success"
				if err != nil {
					outcome = "error"
				}
				timer.Stop(outcome)
			}
			results <- taskResult{name: p.Name(), response: resp, err: err}
		}(p)
	}

	var successful []provider.Response
	failed := make(map[string]error, len(providers))
	for i := 0; i < len(providers); i++ {
		r := <-results
		if r.err != nil {
			failed[r.name] = r.err
			o.log.Warn().Str("provider", r.name).Err(r.err).Msg("provider call failed")
			continue
		}
		successful = append(successful, r.response)
	}

	if len(successful) < o.minProviders {
		o.metrics.RecordRequest(false, time.Since(start))
		return aggregator.Result{}, &Error{
			Kind:              FailInsufficientSuccesses,
			Message:           fmt.Sprintf("%d of %d required providers succeeded", len(successful), o.minProviders),
			PerProviderErrors: failed,
		}
	}

	result, err := aggregator.Aggregate(successful, weights, o.minProviders, o.minConfidence)
	if err != nil {
		o.metrics.RecordRequest(false, time.Since(start))
		return aggregator.Result{}, &Error{Kind: FailAggregatorFailed, Message: err.Error(), Cause: err, PerProviderErrors: failed}
	}

	o.metrics.RecordRequest(true, time.Since(start))
	return result, nil
}
