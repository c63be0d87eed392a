package registry

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/llmconsensus/internal/provider"
)

type fakeProvider struct {
	name       string
	weight     float64
	status     *provider.Status
	healthErr  error
	healthCall int
}

func newFakeProvider(name string, weight float64) *fakeProvider {
	return &fakeProvider{name: name, weight: weight, status: provider.NewStatus(name)}
}

func (f *fakeProvider) Name() string   { return f.name }
func (f *fakeProvider) Weight() float64 { return f.weight }
func (f *fakeProvider) GenerateSignal(ctx context.Context, req provider.GenerateRequest) (provider.Response, error) {
	return provider.Response{}, nil
}
func (f *fakeProvider) HealthCheck(ctx context.Context) error {
	f.healthCall++
	_, err := f.status.Execute(f.name, func() (provider.Response, error) {
		return provider.Response{}, f.healthErr
	})
	return err
}
func (f *fakeProvider) EstimateCost(tokensIn, tokensOut int) float64 { return 0 }
func (f *fakeProvider) Status() *provider.Status                    { return f.status }

func newTestRegistry() *Registry {
	return New(zerolog.Nop())
}

func TestRegistry_RegisterAndGet(t *testing.T) {
	r := newTestRegistry()
	p := newFakeProvider("anthropic", 1.0)

	require.NoError(t, r.Register(p))

	got, ok := r.Get("anthropic")
	assert.True(t, ok)
	assert.Same(t, p, got)
}

func TestRegistry_RegisterDuplicateFails(t *testing.T) {
	r := newTestRegistry()
	require.NoError(t, r.Register(newFakeProvider("openai", 1.0)))

	err := r.Register(newFakeProvider("openai", 1.0))
	assert.Error(t, err)
}

func TestRegistry_AvailableProvidersExcludesDisabled(t *testing.T) {
	r := newTestRegistry()
	require.NoError(t, r.Register(newFakeProvider("anthropic", 1.0)))
	require.NoError(t, r.Register(newFakeProvider("openai", 1.0)))

	r.SetEnabled("openai", false)

	available := r.AvailableProviders()
	require.Len(t, available, 1)
	assert.Equal(t, "anthropic", available[0].Name())
}

func TestRegistry_SetEnabledIsIdempotent(t *testing.T) {
	r := newTestRegistry()
	require.NoError(t, r.Register(newFakeProvider("anthropic", 1.0)))

	r.SetEnabled("anthropic", false)
	r.SetEnabled("anthropic", false)
	assert.Empty(t, r.AvailableProviders())

	r.SetEnabled("anthropic", true)
	r.SetEnabled("anthropic", true)
	assert.Len(t, r.AvailableProviders(), 1)
}

func TestRegistry_SetEnabledUnknownNameIsNoop(t *testing.T) {
	r := newTestRegistry()
	assert.NotPanics(t, func() { r.SetEnabled("nonexistent", false) })
}

func TestRegistry_HealthCheckAllUpdatesEachAdapter(t *testing.T) {
	r := newTestRegistry()
	healthy := newFakeProvider("anthropic", 1.0)
	failing := newFakeProvider("openai", 1.0)
	failing.healthErr = assert.AnError

	require.NoError(t, r.Register(healthy))
	require.NoError(t, r.Register(failing))

	results := r.HealthCheckAll(context.Background(), time.Second)
	assert.True(t, results["anthropic"])
	assert.False(t, results["openai"])
	assert.Equal(t, 1, healthy.healthCall)
	assert.Equal(t, 1, failing.healthCall)
}

func TestRegistry_AllIncludesDisabledAdapters(t *testing.T) {
	r := newTestRegistry()
	require.NoError(t, r.Register(newFakeProvider("anthropic", 1.0)))
	r.SetEnabled("anthropic", false)

	assert.Len(t, r.All(), 1)
	assert.Empty(t, r.AvailableProviders())
}
