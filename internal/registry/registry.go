// Package registry is the process-wide store of provider adapters: a
// name-indexed map guarded by a sync.RWMutex (readers are not preferred
// over a waiting writer; a pending Lock blocks new readers), generalized from
// the capability-indexed registry pattern in the teacher's provider
// package down to the uniform capability set every LLM adapter shares.
package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/sawpanic/llmconsensus/internal/provider"
)

// Registry owns live provider.Provider instances for the process
// lifetime. Many concurrent readers (AvailableProviders/Get) are allowed;
// writers (Register/SetEnabled) are serialized.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
	log     zerolog.Logger
}

type entry struct {
	adapter provider.Provider
	enabled bool
}

// New builds an empty registry.
func New(log zerolog.Logger) *Registry {
	return &Registry{
		entries: make(map[string]*entry),
		log:     log,
	}
}

// Register adds an adapter under its own Name(), enabled by default.
// It fails if that name is already registered.
func (r *Registry) Register(p provider.Provider) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[p.Name()]; exists {
		return fmt.Errorf("registry: provider %q already registered", p.Name())
	}
	r.entries[p.Name()] = &entry{adapter: p, enabled: true}
	r.log.Info().Str("provider", p.Name()).Float64("weight", p.Weight()).Msg("provider registered")
	return nil
}

// Get returns the adapter registered under name, if any.
func (r *Registry) Get(name string) (provider.Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[name]
	if !ok {
		return nil, false
	}
	return e.adapter, true
}

// SetEnabled toggles whether an adapter is eligible for
// AvailableProviders. Calling it twice with the same value is a no-op,
// same as calling it on an unknown name.
func (r *Registry) SetEnabled(name string, enabled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[name]
	if !ok {
		return
	}
	e.enabled = enabled
	if enabled {
		e.adapter.Status().SetActive()
	} else {
		e.adapter.Status().SetUnavailable()
	}
}

// AvailableProviders returns adapters that are enabled and whose state is
// ACTIVE or DEGRADED. CIRCUIT_OPEN and UNAVAILABLE adapters are excluded.
// Order is stable (sorted by name) within a process lifetime, though the
// contract only requires stability, not any particular order.
func (r *Registry) AvailableProviders() []provider.Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]provider.Provider, 0, len(names))
	for _, name := range names {
		e := r.entries[name]
		if !e.enabled {
			continue
		}
		switch e.adapter.Status().State() {
		case provider.StateActive, provider.StateDegraded:
			out = append(out, e.adapter)
		}
	}
	return out
}

// All returns every registered adapter regardless of enabled/health state,
// for the health endpoint's full provider_health map.
func (r *Registry) All() []provider.Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]provider.Provider, 0, len(names))
	for _, name := range names {
		out = append(out, r.entries[name].adapter)
	}
	return out
}

// HealthCheckAll probes every registered adapter concurrently within
// deadline and returns a name→healthy map. Each probe's outcome updates
// that adapter's Status via its own HealthCheck call path.
func (r *Registry) HealthCheckAll(ctx context.Context, deadline time.Duration) map[string]bool {
	adapters := r.All()

	ctx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	results := make(map[string]bool, len(adapters))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, a := range adapters {
		wg.Add(1)
		go func(a provider.Provider) {
			defer wg.Done()
			err := a.HealthCheck(ctx)
			mu.Lock()
			results[a.Name()] = err == nil
			mu.Unlock()
			if err != nil {
				r.log.Warn().Str("provider", a.Name()).Err(err).Msg("health check failed")
			}
		}(a)
	}
	wg.Wait()

	return results
}
