package adapters

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/sawpanic/llmconsensus/internal/provider"
)

// openAICompatAdapter implements provider.Provider against any vendor
// speaking the OpenAI Chat Completions wire format with bearer auth.
// OpenAI itself and Grok (xAI) are both parameterizations of this type;
// they differ only in base URL, default model, and pricing table.
type openAICompatAdapter struct {
	cfg       provider.Config
	transport *Transport
	status    *provider.Status
	pricing   pricingTable
}

func newOpenAICompatAdapter(cfg provider.Config, pricing pricingTable) *openAICompatAdapter {
	return &openAICompatAdapter{
		cfg:       cfg,
		transport: NewTransport(cfg.Name, cfg.MaxRetries, 5),
		status:    provider.NewStatus(cfg.Name),
		pricing:   pricing,
	}
}

// NewOpenAI builds the OpenAI adapter.
func NewOpenAI(cfg provider.Config) provider.Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	return newOpenAICompatAdapter(cfg, openaiPricing)
}

// NewGrok builds the Grok adapter — the OpenAI-compatible parameterization
// with xAI's base URL and pricing.
func NewGrok(cfg provider.Config) provider.Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.x.ai/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "grok-2"
	}
	return newOpenAICompatAdapter(cfg, grokPricing)
}

func (a *openAICompatAdapter) Name() string     { return a.cfg.Name }
func (a *openAICompatAdapter) Weight() float64  { return a.cfg.Weight }
func (a *openAICompatAdapter) Status() *provider.Status { return a.status }

func (a *openAICompatAdapter) EstimateCost(tokensIn, tokensOut int) float64 {
	return a.pricing.EstimateCost(a.cfg.Model, tokensIn, tokensOut)
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

func (a *openAICompatAdapter) buildRequest(system, user string, maxTokens int) chatCompletionRequest {
	return chatCompletionRequest{
		Model: a.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		MaxTokens:   maxTokens,
		Temperature: a.cfg.Temperature,
	}
}

func (a *openAICompatAdapter) call(ctx context.Context, body chatCompletionRequest) (chatCompletionResponse, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return chatCompletionResponse{}, provider.NewError(a.cfg.Name, provider.ErrGeneric, "failed to encode request", err)
	}

	raw, err := a.transport.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.BaseURL+"/chat/completions", bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+a.cfg.APIKey)
		return req, nil
	})
	if err != nil {
		return chatCompletionResponse{}, err
	}

	var parsed chatCompletionResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return chatCompletionResponse{}, provider.NewError(a.cfg.Name, provider.ErrValidation, "malformed response envelope", err)
	}
	if len(parsed.Choices) == 0 {
		return chatCompletionResponse{}, provider.NewError(a.cfg.Name, provider.ErrValidation, "response contained no choices", nil)
	}
	return parsed, nil
}

func (a *openAICompatAdapter) GenerateSignal(ctx context.Context, req provider.GenerateRequest) (provider.Response, error) {
	system, user := provider.BuildPrompt(req)
	reqBody := a.buildRequest(system, user, a.cfg.MaxTokens)

	start := time.Now()
	resp, err := a.status.Execute(a.cfg.Name, func() (provider.Response, error) {
		parsed, callErr := a.call(ctx, reqBody)
		if callErr != nil {
			return provider.Response{}, callErr
		}

		content := parsed.Choices[0].Message.Content
		signal, extractErr := provider.ExtractSignal(a.cfg.Name, content)
		if extractErr != nil {
			return provider.Response{}, extractErr
		}

		signal.TokensIn = parsed.Usage.PromptTokens
		signal.TokensOut = parsed.Usage.CompletionTokens
		signal.CostUSD = a.EstimateCost(signal.TokensIn, signal.TokensOut)
		return signal, nil
	})
	resp.LatencyMs = time.Since(start).Milliseconds()
	return resp, err
}

func (a *openAICompatAdapter) HealthCheck(ctx context.Context) error {
	reqBody := a.buildRequest("Reply with only the word OK.", "ping", 1)
	_, err := a.status.Execute(a.cfg.Name, func() (provider.Response, error) {
		_, callErr := a.call(ctx, reqBody)
		return provider.Response{}, callErr
	})
	return err
}
