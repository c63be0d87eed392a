package adapters

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/sawpanic/llmconsensus/internal/provider"
)

// anthropicAdapter speaks the Anthropic Messages API: x-api-key header
// auth and a distinct request/response envelope from the OpenAI family.
type anthropicAdapter struct {
	cfg       provider.Config
	transport *Transport
	status    *provider.Status
}

// NewAnthropic builds the Anthropic adapter.
func NewAnthropic(cfg provider.Config) provider.Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.anthropic.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "claude-3-5-sonnet-20241022"
	}
	return &anthropicAdapter{
		cfg:       cfg,
		transport: NewTransport(cfg.Name, cfg.MaxRetries, 5),
		status:    provider.NewStatus(cfg.Name),
	}
}

func (a *anthropicAdapter) Name() string                { return a.cfg.Name }
func (a *anthropicAdapter) Weight() float64              { return a.cfg.Weight }
func (a *anthropicAdapter) Status() *provider.Status     { return a.status }
func (a *anthropicAdapter) EstimateCost(in, out int) float64 {
	return anthropicPricing.EstimateCost(a.cfg.Model, in, out)
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float64            `json:"temperature"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

func (a *anthropicAdapter) call(ctx context.Context, system, user string, maxTokens int) (anthropicResponse, error) {
	body := anthropicRequest{
		Model:       a.cfg.Model,
		System:      system,
		Messages:    []anthropicMessage{{Role: "user", Content: user}},
		MaxTokens:   maxTokens,
		Temperature: a.cfg.Temperature,
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return anthropicResponse{}, provider.NewError(a.cfg.Name, provider.ErrGeneric, "failed to encode request", err)
	}

	raw, err := a.transport.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.BaseURL+"/messages", bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("x-api-key", a.cfg.APIKey)
		req.Header.Set("anthropic-version", "2023-06-01")
		return req, nil
	})
	if err != nil {
		return anthropicResponse{}, err
	}

	var parsed anthropicResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return anthropicResponse{}, provider.NewError(a.cfg.Name, provider.ErrValidation, "malformed response envelope", err)
	}
	if len(parsed.Content) == 0 {
		return anthropicResponse{}, provider.NewError(a.cfg.Name, provider.ErrValidation, "response contained no content blocks", nil)
	}
	return parsed, nil
}

func (a *anthropicAdapter) GenerateSignal(ctx context.Context, req provider.GenerateRequest) (provider.Response, error) {
	system, user := provider.BuildPrompt(req)

	start := time.Now()
	resp, err := a.status.Execute(a.cfg.Name, func() (provider.Response, error) {
		parsed, callErr := a.call(ctx, system, user, a.cfg.MaxTokens)
		if callErr != nil {
			return provider.Response{}, callErr
		}

		signal, extractErr := provider.ExtractSignal(a.cfg.Name, parsed.Content[0].Text)
		if extractErr != nil {
			return provider.Response{}, extractErr
		}

		signal.TokensIn = parsed.Usage.InputTokens
		signal.TokensOut = parsed.Usage.OutputTokens
		signal.CostUSD = a.EstimateCost(signal.TokensIn, signal.TokensOut)
		return signal, nil
	})
	resp.LatencyMs = time.Since(start).Milliseconds()
	return resp, err
}

func (a *anthropicAdapter) HealthCheck(ctx context.Context) error {
	_, err := a.status.Execute(a.cfg.Name, func() (provider.Response, error) {
		_, callErr := a.call(ctx, "Reply with only the word OK.", "ping", 1)
		return provider.Response{}, callErr
	})
	return err
}
