package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/sawpanic/llmconsensus/internal/config"
	"github.com/sawpanic/llmconsensus/internal/httpapi"
	"github.com/sawpanic/llmconsensus/internal/orchestrator"
	"github.com/sawpanic/llmconsensus/internal/provider"
	"github.com/sawpanic/llmconsensus/internal/provider/adapters"
	"github.com/sawpanic/llmconsensus/internal/registry"
)

const version = "v1.0.0"

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	rootCmd := &cobra.Command{
		Use:     "llmconsensus",
		Short:   "Multi-LLM trading signal consensus engine",
		Version: version,
	}

	rootCmd.AddCommand(serveCmd())

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP consensus server",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	reg := registry.New(log.Logger)
	for _, pc := range cfg.Providers {
		if !pc.Present {
			log.Info().Str("provider", pc.Name).Msg("no API key configured, skipping")
			continue
		}
		adapterCfg, err := provider.NewConfig(pc.Config)
		if err != nil {
			return err
		}

		var p provider.Provider
		switch pc.Name {
		case "anthropic":
			p = adapters.NewAnthropic(adapterCfg)
		case "openai":
			p = adapters.NewOpenAI(adapterCfg)
		case "gemini":
			p = adapters.NewGemini(adapterCfg)
		case "grok":
			p = adapters.NewGrok(adapterCfg)
		default:
			continue
		}

		if err := reg.Register(p); err != nil {
			return err
		}
		reg.SetEnabled(pc.Name, adapterCfg.Enabled)
	}

	reg.DisplayStartupBanner()

	orch := orchestrator.New(reg, cfg.Orchestrator.MinProviders, cfg.Orchestrator.MinConfidence, log.Logger)
	metrics := httpapi.NewMetricsRegistry()
	orch.SetProviderMetrics(metrics)
	handlers := httpapi.NewHandlers(orch, reg, metrics, cfg.Orchestrator.MinProviders, log.Logger)

	serverCfg := httpapi.DefaultServerConfig()
	serverCfg.Port = cfg.Orchestrator.HTTPPort

	server, err := httpapi.NewServer(serverCfg, handlers, metrics, log.Logger)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case <-sigCh:
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(ctx)
	}
}
