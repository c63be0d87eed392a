package adapters

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/llmconsensus/internal/provider"
)

func testGeminiConfig(baseURL string) provider.Config {
	return provider.Config{
		Name:           "gemini",
		Model:          "gemini-1.5-flash",
		APIKey:         "sk-test",
		BaseURL:        baseURL,
		MaxTokens:      256,
		Temperature:    0.7,
		RequestTimeout: 5,
		MaxRetries:     0,
		Weight:         1.0,
		Enabled:        true,
	}
}

func TestGemini_GenerateSignal_ParsesCandidateIntoSignal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, ":generateContent")
		assert.Equal(t, "sk-test", r.URL.Query().Get("key"))
		w.Write([]byte(`{
			"candidates": [{"content": {"parts": [{"text": "{\"decision\":\"HOLD\",\"confidence\":0.5,\"reasoning\":\"mixed signals\"}"}]}}],
			"usageMetadata": {"promptTokenCount": 60, "candidatesTokenCount": 10}
		}`))
	}))
	defer server.Close()

	adapter := NewGemini(testGeminiConfig(server.URL))
	resp, err := adapter.GenerateSignal(context.Background(), provider.GenerateRequest{Pair: "SOL/USD", Timeframe: "15m"})
	require.NoError(t, err)
	assert.Equal(t, provider.Hold, resp.Decision)
	assert.Equal(t, provider.RiskMedium, resp.RiskLevel)
	assert.Equal(t, 60, resp.TokensIn)
	assert.Equal(t, 10, resp.TokensOut)
}

func TestGemini_GenerateSignal_NoCandidatesIsValidationError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"candidates": [], "usageMetadata": {}}`))
	}))
	defer server.Close()

	adapter := NewGemini(testGeminiConfig(server.URL))
	_, err := adapter.GenerateSignal(context.Background(), provider.GenerateRequest{})
	require.Error(t, err)
	var perr *provider.Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, provider.ErrValidation, perr.Kind)
}

func TestGemini_HealthCheck_MalformedBodyIsValidationError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	}))
	defer server.Close()

	adapter := NewGemini(testGeminiConfig(server.URL))
	err := adapter.HealthCheck(context.Background())
	require.Error(t, err)
	var perr *provider.Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, provider.ErrValidation, perr.Kind)
}

func TestGemini_DefaultsBaseURLAndModelWhenUnset(t *testing.T) {
	adapter := NewGemini(provider.Config{
		Name: "gemini", APIKey: "sk-test", MaxTokens: 256, Temperature: 0.7,
		RequestTimeout: 5, Weight: 1.0, Enabled: true,
	})
	assert.Equal(t, "gemini", adapter.Name())
	a := adapter.(*geminiAdapter)
	assert.Equal(t, "https://generativelanguage.googleapis.com/v1beta", a.cfg.BaseURL)
	assert.Equal(t, "gemini-1.5-flash", a.cfg.Model)
}
