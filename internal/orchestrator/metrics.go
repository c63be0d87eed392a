package orchestrator

import (
	"sync"
	"time"
)

// Metrics tracks orchestrator-wide request counters and a rolling latency
// sample, adapted from the teacher's per-provider MetricsCollector down to
// a single process-wide counter set — the per-provider detail already
// lives in each adapter's provider.Status.
type Metrics struct {
	mu sync.RWMutex

	totalRequests      int64
	successfulRequests int64
	failedRequests     int64

	latencyHistory []float64 // rolling window of request latencies, ms
}

const latencyHistoryCap = 60

// NewMetrics returns an empty Metrics.
func NewMetrics() *Metrics {
	return &Metrics{latencyHistory: make([]float64, 0, latencyHistoryCap)}
}

// RecordRequest records one completed GenerateConsensus call.
func (m *Metrics) RecordRequest(success bool, latency time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.totalRequests++
	if success {
		m.successfulRequests++
	} else {
		m.failedRequests++
	}

	ms := float64(latency.Milliseconds())
	m.latencyHistory = append(m.latencyHistory, ms)
	if len(m.latencyHistory) > latencyHistoryCap {
		m.latencyHistory = m.latencyHistory[1:]
	}
}

// Snapshot is a point-in-time view of orchestrator metrics.
type Snapshot struct {
	TotalRequests      int64   `json:"total_requests"`
	SuccessfulRequests int64   `json:"successful_requests"`
	FailedRequests     int64   `json:"failed_requests"`
	ErrorRate          float64 `json:"error_rate"`
	AvgLatencyMs       float64 `json:"avg_latency_ms"`
}

// Snapshot captures the current counters under a single read lock.
func (m *Metrics) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var errRate, avgLatency float64
	if m.totalRequests > 0 {
		errRate = float64(m.failedRequests) / float64(m.totalRequests)
	}
	if n := len(m.latencyHistory); n > 0 {
		var sum float64
		for _, v := range m.latencyHistory {
			sum += v
		}
		avgLatency = sum / float64(n)
	}

	return Snapshot{
		TotalRequests:      m.totalRequests,
		SuccessfulRequests: m.successfulRequests,
		FailedRequests:     m.failedRequests,
		ErrorRate:          errRate,
		AvgLatencyMs:       avgLatency,
	}
}
