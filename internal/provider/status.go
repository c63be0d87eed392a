package provider

import (
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"github.com/sawpanic/llmconsensus/internal/telemetry/latency"
)

// State is the health state of an adapter as observed by the registry and
// exposed through the health endpoint.
type State string

const (
	StateActive      State = "ACTIVE"
	StateDegraded    State = "DEGRADED"
	StateUnavailable State = "UNAVAILABLE"
	StateCircuitOpen State = "CIRCUIT_OPEN"
)

const (
	// errorRateWindow is the minimum sample count before error rate is
	// considered meaningful enough to trip DEGRADED.
	errorRateWindow = 10
	// errorRateThreshold trips DEGRADED once exceeded over errorRateWindow.
	errorRateThreshold = 0.5
	// consecutiveFailureTrip opens the breaker.
	consecutiveFailureTrip = 5
	// circuitCooldown is how long the breaker stays open before gobreaker
	// lets a single probe request through (half-open).
	circuitCooldown = 60 * time.Second
)

// Status tracks the rolling health of one adapter and gates calls through a
// gobreaker circuit breaker. It adds a DEGRADED state on top of gobreaker's
// three-state model: gobreaker only distinguishes closed/half-open/open,
// but the registry also needs to tell "healthy" apart from "erroring a lot
// but still usable", which is the DEGRADED rate-based check below.
type Status struct {
	breaker *gobreaker.CircuitBreaker

	mu             sync.RWMutex
	forcedOff      bool
	requestsTotal  int64
	errorsTotal    int64
	recentOutcomes []bool // ring buffer of recent call results for the error-rate check
	outcomeHead    int
	outcomeFull    bool
	lastRequestAt  time.Time
	latencies      *latency.Histogram
}

// NewStatus returns a Status for the named adapter, starting ACTIVE.
func NewStatus(name string) *Status {
	s := &Status{
		recentOutcomes: make([]bool, errorRateWindow*4),
		latencies:      latency.NewHistogram(200),
	}
	s.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1, // single probe request while half-open
		Timeout:     circuitCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= consecutiveFailureTrip
		},
	})
	return s
}

// Execute runs fn through the circuit breaker, recording latency and
// updating the error-rate window used for the DEGRADED check. It returns
// a classified *Error when the breaker itself refuses the call.
func (s *Status) Execute(providerName string, fn func() (Response, error)) (Response, error) {
	if s.isForcedOff() {
		return Response{}, NewError(providerName, ErrGeneric, "provider administratively disabled", nil)
	}

	start := time.Now()
	result, err := s.breaker.Execute(func() (interface{}, error) {
		return fn()
	})
	elapsed := time.Since(start)

	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return Response{}, NewError(providerName, ErrGeneric, "circuit open, call refused", err)
		}
		s.recordOutcome(elapsed, false)
		return Response{}, err
	}

	s.recordOutcome(elapsed, true)
	resp, _ := result.(Response)
	return resp, nil
}

func (s *Status) recordOutcome(d time.Duration, success bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.requestsTotal++
	if !success {
		s.errorsTotal++
	}
	s.lastRequestAt = time.Now()
	s.latencies.Record(d)

	s.recentOutcomes[s.outcomeHead] = success
	s.outcomeHead = (s.outcomeHead + 1) % len(s.recentOutcomes)
	if !s.outcomeFull && s.outcomeHead == 0 {
		s.outcomeFull = true
	}
}

// recentErrorRate computes the error rate over the retained outcome window.
func (s *Status) recentErrorRate() (rate float64, n int) {
	if s.outcomeFull {
		n = len(s.recentOutcomes)
	} else {
		n = s.outcomeHead
	}
	if n == 0 {
		return 0, 0
	}
	var errs int
	for i := 0; i < n; i++ {
		if !s.recentOutcomes[i] {
			errs++
		}
	}
	return float64(errs) / float64(n), n
}

func (s *Status) isForcedOff() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.forcedOff
}

// SetUnavailable forces UNAVAILABLE, used when an adapter is administratively
// disabled rather than failing calls.
func (s *Status) SetUnavailable() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.forcedOff = true
}

// SetActive clears a forced UNAVAILABLE state.
func (s *Status) SetActive() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.forcedOff = false
}

// State derives the reported state from gobreaker's state plus the
// error-rate window. UNAVAILABLE takes precedence (administrative),
// then CIRCUIT_OPEN (breaker tripped), then DEGRADED (elevated error
// rate or half-open probing), else ACTIVE.
func (s *Status) State() State {
	if s.isForcedOff() {
		return StateUnavailable
	}

	switch s.breaker.State() {
	case gobreaker.StateOpen:
		return StateCircuitOpen
	case gobreaker.StateHalfOpen:
		return StateDegraded
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if rate, n := s.recentErrorRateLocked(); n >= errorRateWindow && rate > errorRateThreshold {
		return StateDegraded
	}
	return StateActive
}

// recentErrorRateLocked is recentErrorRate for callers already holding the
// read lock (avoids re-entrant RLock in State()).
func (s *Status) recentErrorRateLocked() (rate float64, n int) {
	return s.recentErrorRate()
}

// Snapshot is a point-in-time, read-only view of a Status.
type Snapshot struct {
	State         State            `json:"state"`
	RequestsTotal int64            `json:"requests_total"`
	ErrorsTotal   int64            `json:"errors_total"`
	ErrorRate     float64          `json:"error_rate"`
	LastRequestAt time.Time        `json:"last_request_at,omitempty"`
	Latency       latency.Snapshot `json:"latency"`
}

// Snapshot captures the current state. The counters are read together
// under one read lock; State and the latency percentiles are read
// separately afterwards.
func (s *Status) Snapshot() Snapshot {
	s.mu.RLock()
	requestsTotal := s.requestsTotal
	errorsTotal := s.errorsTotal
	lastRequestAt := s.lastRequestAt
	s.mu.RUnlock()

	var errRate float64
	if requestsTotal > 0 {
		errRate = float64(errorsTotal) / float64(requestsTotal)
	}

	return Snapshot{
		State:         s.State(),
		RequestsTotal: requestsTotal,
		ErrorsTotal:   errorsTotal,
		ErrorRate:     errRate,
		LastRequestAt: lastRequestAt,
		Latency:       s.latencies.Snapshot(),
	}
}
