package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/PabloGalante/tutorchat/internal/adapters/llm"
	memstore "github.com/PabloGalante/tutorchat/internal/adapters/storage/memory"
	"github.com/PabloGalante/tutorchat/internal/app/tutoring"
	"github.com/PabloGalante/tutorchat/internal/config"
	"github.com/PabloGalante/tutorchat/internal/observability"
)

var cfgFile string

func main() {
	root := &cobra.Command{
		Use:           "tutor-api",
		Short:         "Tutoring chat service backed by a remote LLM",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", os.Getenv("TUTOR_CONFIG_FILE"), "optional YAML config file")

	serve := newServeCmd()
	root.AddCommand(serve, newChatCmd())
	root.RunE = serve.RunE

	if err := root.Execute(); err != nil {
		observability.Logger().Error("tutor-api failed", "error", err)
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// buildService wires config, provider, store and the tutoring service.
// A non-nil logLevel overrides the configured log level before anything is logged.
func buildService(ctx context.Context, logLevel func(configured string) string) (*config.Config, *tutoring.Service, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	lvl := cfg.LogLevel
	if logLevel != nil {
		lvl = logLevel(lvl)
	}
	observability.SetLevel(lvl)

	log := observability.Logger()

	provider, err := llm.NewProvider(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("initializing %s provider: %w", cfg.Provider, err)
	}
	log.Info("[LLM] provider ready", "provider", provider.Name(), "model", cfg.ModelName)

	systemPrompt := config.LoadSystemPrompt(cfg.SystemPromptPath)

	// Storage is always in memory: sessions do not survive a restart.
	store := memstore.NewConversationStore()

	svc := tutoring.NewService(provider, store, systemPrompt, tutoring.Options{
		Model:           cfg.ModelName,
		Temperature:     cfg.Temperature,
		MaxTokens:       cfg.MaxTokens,
		ProviderTimeout: cfg.ProviderTimeout,
	})
	return cfg, svc, nil
}
