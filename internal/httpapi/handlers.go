package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/sawpanic/llmconsensus/internal/aggregator"
	"github.com/sawpanic/llmconsensus/internal/orchestrator"
	"github.com/sawpanic/llmconsensus/internal/provider"
	"github.com/sawpanic/llmconsensus/internal/registry"
)

// consensusDeadline is the fixed server-side policy for how long one
// consensus request may take end to end; not client-controllable.
const consensusDeadline = 30 * time.Second

// healthCheckDeadline bounds one GET probe's fan-out to every adapter.
const healthCheckDeadline = 5 * time.Second

// Handlers bundles the dependencies behind the consensus resource's two
// HTTP operations.
type Handlers struct {
	orchestrator *orchestrator.Orchestrator
	registry     *registry.Registry
	metrics      *MetricsRegistry
	minProviders int
	log          zerolog.Logger
}

// NewHandlers wires an Handlers over the given orchestrator, registry, and
// metrics registry.
func NewHandlers(o *orchestrator.Orchestrator, reg *registry.Registry, metrics *MetricsRegistry, minProviders int, log zerolog.Logger) *Handlers {
	return &Handlers{orchestrator: o, registry: reg, metrics: metrics, minProviders: minProviders, log: log}
}

// PostConsensus implements POST /v1/strategies/llm-consensus.
func (h *Handlers) PostConsensus(w http.ResponseWriter, r *http.Request) {
	var body ConsensusRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorBody{Error: "INVALID_JSON", Detail: err.Error()})
		return
	}

	if failures := body.Validate(); len(failures) > 0 {
		writeJSON(w, http.StatusBadRequest, ErrorBody{Error: "VALIDATION_ERROR", Details: failures})
		return
	}

	req := orchestrator.Request{
		MarketData:      provider.MarketData(body.MarketData),
		Pair:            body.Pair,
		Timeframe:       body.Timeframe,
		CurrentPrice:    body.CurrentPrice,
		ProviderWeights: body.ProviderWeights,
		TotalDeadline:   time.Now().Add(consensusDeadline),
	}

	start := time.Now()
	result, err := h.orchestrator.GenerateConsensus(r.Context(), req)
	if err != nil {
		h.writeOrchestratorError(w, err, time.Since(start))
		return
	}

	if h.metrics != nil {
		h.metrics.RecordConsensus(string(result.Decision), time.Since(start))
	}
	writeJSON(w, http.StatusOK, NewConsensusResponseBody(result))
}

func (h *Handlers) writeOrchestratorError(w http.ResponseWriter, err error, elapsed time.Duration) {
	var orchErr *orchestrator.Error
	if errors.As(err, &orchErr) {
		if h.metrics != nil {
			h.metrics.RecordConsensus(string(orchErr.Kind), elapsed)
		}
		body := ErrorBody{Error: string(orchErr.Kind), Detail: orchErr.Message}
		if len(orchErr.PerProviderErrors) > 0 {
			body.PerProviderErrors = make(map[string]string, len(orchErr.PerProviderErrors))
			for name, e := range orchErr.PerProviderErrors {
				body.PerProviderErrors[name] = e.Error()
			}
		}

		var aggErr *aggregator.Error
		if orchErr.Kind == orchestrator.FailAggregatorFailed && errors.As(orchErr.Cause, &aggErr) {
			writeJSON(w, http.StatusServiceUnavailable, body)
			return
		}

		switch orchErr.Kind {
		case orchestrator.FailNoProviders, orchestrator.FailInsufficientSuccesses:
			writeJSON(w, http.StatusServiceUnavailable, body)
		default:
			writeJSON(w, http.StatusInternalServerError, body)
		}
		return
	}

	if h.metrics != nil {
		h.metrics.RecordConsensus("INTERNAL_ERROR", elapsed)
	}
	h.log.Error().Err(err).Msg("unexpected orchestrator failure")
	writeJSON(w, http.StatusInternalServerError, ErrorBody{Error: "INTERNAL_ERROR", Detail: "opaque"})
}

// GetHealth implements GET /v1/strategies/llm-consensus.
func (h *Handlers) GetHealth(w http.ResponseWriter, r *http.Request) {
	h.registry.HealthCheckAll(r.Context(), healthCheckDeadline)

	adapters := h.registry.All()
	providerHealth := make(map[string]ProviderHealthBody, len(adapters))
	available := 0
	for _, a := range adapters {
		snap := a.Status().Snapshot()
		providerHealth[a.Name()] = ProviderHealthBody{
			State:         snap.State,
			RequestsTotal: snap.RequestsTotal,
			ErrorRate:     snap.ErrorRate,
			P99LatencyMs:  snap.Latency.P99,
			LastRequestAt: snap.LastRequestAt,
		}
		if h.metrics != nil {
			h.metrics.SetCircuitState(a.Name(), snap.State)
		}
		switch snap.State {
		case provider.StateActive, provider.StateDegraded:
			available++
		}
	}

	status := "healthy"
	if available < h.minProviders {
		status = "degraded"
	}

	writeJSON(w, http.StatusOK, HealthResponseBody{
		Status:             status,
		AvailableProviders: available,
		RequiredProviders:  h.minProviders,
		ProviderHealth:     providerHealth,
	})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
