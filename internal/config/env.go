// Package config loads process-wide configuration from the environment,
// read once at startup. There is no config file: every adapter and
// orchestrator setting is a {PREFIX}_{FIELD} environment variable.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sawpanic/llmconsensus/internal/provider"
)

// supportedProviders is the closed set of provider name prefixes the loader
// recognizes.
var supportedProviders = []string{"ANTHROPIC", "OPENAI", "GEMINI", "GROK"}

// defaultModels gives each provider's adapter its fallback model when
// {P}_MODEL is unset.
var defaultModels = map[string]string{
	"ANTHROPIC": "claude-3-5-sonnet-20241022",
	"OPENAI":    "gpt-4o-mini",
	"GEMINI":    "gemini-1.5-flash",
	"GROK":      "grok-2",
}

// ProviderConfig is one {P}_* group of environment variables, already
// parsed and defaulted, but not yet validated against provider.NewConfig.
type ProviderConfig struct {
	Name    string // lower-cased, e.g. "anthropic"
	Present bool   // false when {P}_API_KEY was absent — provider not registered
	Config  provider.Config
}

// OrchestratorConfig holds process-wide, non-provider-specific settings.
type OrchestratorConfig struct {
	MinProviders  int
	MinConfidence float64
	HTTPPort      int
}

// Config is everything the loader produces from the environment.
type Config struct {
	Providers    []ProviderConfig
	Orchestrator OrchestratorConfig
}

// Load reads every {P}_* variable for each supported provider plus the
// orchestrator-level settings, returning defaulted, parsed values. Absence
// of {P}_API_KEY is not an error — it just marks that provider unregistered,
// per §6; all other parse failures are.
func Load() (Config, error) {
	var cfg Config

	for _, p := range supportedProviders {
		pc, err := loadProvider(p)
		if err != nil {
			return Config{}, err
		}
		cfg.Providers = append(cfg.Providers, pc)
	}

	minProviders, err := envInt("ORCHESTRATOR_MIN_PROVIDERS", 2)
	if err != nil {
		return Config{}, err
	}
	minConfidence, err := envFloat("ORCHESTRATOR_MIN_CONFIDENCE", 0.0)
	if err != nil {
		return Config{}, err
	}
	httpPort, err := envInt("HTTP_PORT", 8080)
	if err != nil {
		return Config{}, err
	}

	cfg.Orchestrator = OrchestratorConfig{
		MinProviders:  minProviders,
		MinConfidence: minConfidence,
		HTTPPort:      httpPort,
	}
	return cfg, nil
}

func loadProvider(prefix string) (ProviderConfig, error) {
	name := strings.ToLower(prefix)

	apiKey := os.Getenv(prefix + "_API_KEY")
	if apiKey == "" {
		return ProviderConfig{Name: name, Present: false}, nil
	}

	enabled, err := envBool(prefix+"_ENABLED", true)
	if err != nil {
		return ProviderConfig{}, err
	}
	weight, err := envFloat(prefix+"_WEIGHT", 1.0)
	if err != nil {
		return ProviderConfig{}, err
	}
	maxTokens, err := envInt(prefix+"_MAX_TOKENS", 1024)
	if err != nil {
		return ProviderConfig{}, err
	}
	temperature, err := envFloat(prefix+"_TEMPERATURE", 0.7)
	if err != nil {
		return ProviderConfig{}, err
	}
	timeoutSecs, err := envInt(prefix+"_TIMEOUT", 30)
	if err != nil {
		return ProviderConfig{}, err
	}
	maxRetries, err := envInt(prefix+"_MAX_RETRIES", 3)
	if err != nil {
		return ProviderConfig{}, err
	}

	model := os.Getenv(prefix + "_MODEL")
	if model == "" {
		model = defaultModels[prefix]
	}
	baseURL := os.Getenv(prefix + "_BASE_URL") // empty means adapter default

	return ProviderConfig{
		Name:    name,
		Present: true,
		Config: provider.Config{
			Name:           name,
			Model:          model,
			APIKey:         apiKey,
			BaseURL:        baseURL,
			MaxTokens:      maxTokens,
			Temperature:    temperature,
			RequestTimeout: time.Duration(timeoutSecs) * time.Second,
			MaxRetries:     maxRetries,
			Weight:         weight,
			Enabled:        enabled,
		},
	}, nil
}

func envInt(key string, def int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return v, nil
}

func envFloat(key string, def float64) (float64, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return v, nil
}

func envBool(key string, def bool) (bool, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("config: %s: %w", key, err)
	}
	return v, nil
}
