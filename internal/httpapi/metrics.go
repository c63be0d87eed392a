package httpapi

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sawpanic/llmconsensus/internal/orchestrator"
	"github.com/sawpanic/llmconsensus/internal/provider"
)

// MetricsRegistry holds the process's Prometheus collectors, adapted from
// the teacher's pipeline-step registry down to the counters and histograms
// this service actually emits: per-provider request outcomes, consensus
// decisions, and circuit-breaker state.
type MetricsRegistry struct {
	ProviderRequests *prometheus.CounterVec
	ProviderDuration *prometheus.HistogramVec
	ConsensusTotal   *prometheus.CounterVec
	ConsensusLatency prometheus.Histogram
	CircuitState     *prometheus.GaugeVec
}

// NewMetricsRegistry builds and registers every collector. Call once at
// startup; registering twice against the default registry panics.
func NewMetricsRegistry() *MetricsRegistry {
	registry := &MetricsRegistry{
		ProviderRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "llmconsensus_provider_requests_total",
				Help: "Provider adapter calls by provider and outcome",
			},
			[]string{"provider", "outcome"},
		),
		ProviderDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "llmconsensus_provider_request_duration_seconds",
				Help:    "Provider adapter call latency",
				Buckets: []float64{.25, .5, 1, 2, 4, 8, 16, 32},
			},
			[]string{"provider"},
		),
		ConsensusTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "llmconsensus_consensus_decisions_total",
				Help: "Consensus requests by winning decision, or by failure kind",
			},
			[]string{"result"},
		),
		ConsensusLatency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "llmconsensus_consensus_duration_seconds",
				Help:    "End-to-end GenerateConsensus latency",
				Buckets: []float64{.5, 1, 2, 4, 8, 16, 32, 64},
			},
		),
		CircuitState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "llmconsensus_provider_circuit_state",
				Help: "Current provider.State as an ordinal: 0=ACTIVE 1=DEGRADED 2=CIRCUIT_OPEN 3=UNAVAILABLE",
			},
			[]string{"provider"},
		),
	}

	prometheus.MustRegister(
		registry.ProviderRequests,
		registry.ProviderDuration,
		registry.ConsensusTotal,
		registry.ConsensusLatency,
		registry.CircuitState,
	)

	return registry
}

// RequestTimer times one provider call and records the outcome on Stop.
type RequestTimer struct {
	registry *MetricsRegistry
	provider string
	start    time.Time
}

// StartRequestTimer begins timing a call to the named provider. It
// satisfies orchestrator.ProviderMetricsSink so the orchestrator's
// fan-out loop can wire it in without httpapi's concrete type leaking
// back into orchestrator.
func (m *MetricsRegistry) StartRequestTimer(providerName string) orchestrator.ProviderCallTimer {
	return &RequestTimer{registry: m, provider: providerName, start: time.Now()}
}

// Stop records the call's duration and outcome label ("success" or "error").
func (t *RequestTimer) Stop(outcome string) {
	duration := time.Since(t.start)
	t.registry.ProviderDuration.WithLabelValues(t.provider).Observe(duration.Seconds())
	t.registry.ProviderRequests.WithLabelValues(t.provider, outcome).Inc()
}

// RecordConsensus records one completed GenerateConsensus call, labeled by
// its winning decision (e.g. "BUY") or a failure kind (e.g. "NO_PROVIDERS").
func (m *MetricsRegistry) RecordConsensus(result string, duration time.Duration) {
	m.ConsensusTotal.WithLabelValues(result).Inc()
	m.ConsensusLatency.Observe(duration.Seconds())
}

var circuitStateOrdinal = map[provider.State]float64{
	provider.StateActive:      0,
	provider.StateDegraded:    1,
	provider.StateCircuitOpen: 2,
	provider.StateUnavailable: 3,
}

// SetCircuitState publishes a provider's current breaker state as a gauge.
func (m *MetricsRegistry) SetCircuitState(providerName string, state provider.State) {
	m.CircuitState.WithLabelValues(providerName).Set(circuitStateOrdinal[state])
}

// Handler exposes the registered collectors for a GET /metrics route.
func (m *MetricsRegistry) Handler() http.Handler {
	return promhttp.Handler()
}
