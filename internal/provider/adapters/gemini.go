package adapters

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/sawpanic/llmconsensus/internal/provider"
)

// geminiAdapter speaks Google's GenerateContent API: a query-string API
// key and a request/response envelope distinct from both the OpenAI and
// Anthropic families.
type geminiAdapter struct {
	cfg       provider.Config
	transport *Transport
	status    *provider.Status
}

// NewGemini builds the Gemini adapter.
func NewGemini(cfg provider.Config) provider.Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-1.5-flash"
	}
	return &geminiAdapter{
		cfg:       cfg,
		transport: NewTransport(cfg.Name, cfg.MaxRetries, 5),
		status:    provider.NewStatus(cfg.Name),
	}
}

func (a *geminiAdapter) Name() string            { return a.cfg.Name }
func (a *geminiAdapter) Weight() float64         { return a.cfg.Weight }
func (a *geminiAdapter) Status() *provider.Status { return a.status }
func (a *geminiAdapter) EstimateCost(in, out int) float64 {
	return geminiPricing.EstimateCost(a.cfg.Model, in, out)
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
	Role  string       `json:"role,omitempty"`
}

type geminiRequest struct {
	SystemInstruction *geminiContent   `json:"systemInstruction,omitempty"`
	Contents          []geminiContent  `json:"contents"`
	GenerationConfig  geminiGenConfig  `json:"generationConfig"`
}

type geminiGenConfig struct {
	MaxOutputTokens int     `json:"maxOutputTokens"`
	Temperature     float64 `json:"temperature"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
	} `json:"usageMetadata"`
}

func (a *geminiAdapter) call(ctx context.Context, system, user string, maxTokens int) (geminiResponse, error) {
	body := geminiRequest{
		SystemInstruction: &geminiContent{Parts: []geminiPart{{Text: system}}},
		Contents:          []geminiContent{{Role: "user", Parts: []geminiPart{{Text: user}}}},
		GenerationConfig: geminiGenConfig{
			MaxOutputTokens: maxTokens,
			Temperature:     a.cfg.Temperature,
		},
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return geminiResponse{}, provider.NewError(a.cfg.Name, provider.ErrGeneric, "failed to encode request", err)
	}

	endpoint := a.cfg.BaseURL + "/models/" + a.cfg.Model + ":generateContent?key=" + url.QueryEscape(a.cfg.APIKey)

	raw, err := a.transport.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
	if err != nil {
		return geminiResponse{}, err
	}

	var parsed geminiResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return geminiResponse{}, provider.NewError(a.cfg.Name, provider.ErrValidation, "malformed response envelope", err)
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return geminiResponse{}, provider.NewError(a.cfg.Name, provider.ErrValidation, "response contained no candidates", nil)
	}
	return parsed, nil
}

func (a *geminiAdapter) GenerateSignal(ctx context.Context, req provider.GenerateRequest) (provider.Response, error) {
	system, user := provider.BuildPrompt(req)

	start := time.Now()
	resp, err := a.status.Execute(a.cfg.Name, func() (provider.Response, error) {
		parsed, callErr := a.call(ctx, system, user, a.cfg.MaxTokens)
		if callErr != nil {
			return provider.Response{}, callErr
		}

		text := parsed.Candidates[0].Content.Parts[0].Text
		signal, extractErr := provider.ExtractSignal(a.cfg.Name, text)
		if extractErr != nil {
			return provider.Response{}, extractErr
		}

		signal.TokensIn = parsed.UsageMetadata.PromptTokenCount
		signal.TokensOut = parsed.UsageMetadata.CandidatesTokenCount
		signal.CostUSD = a.EstimateCost(signal.TokensIn, signal.TokensOut)
		return signal, nil
	})
	resp.LatencyMs = time.Since(start).Milliseconds()
	return resp, err
}

func (a *geminiAdapter) HealthCheck(ctx context.Context) error {
	_, err := a.status.Execute(a.cfg.Name, func() (provider.Response, error) {
		_, callErr := a.call(ctx, "Reply with only the word OK.", "ping", 1)
		return provider.Response{}, callErr
	})
	return err
}
