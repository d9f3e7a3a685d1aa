package llm

import (
	"context"
	"fmt"

	"github.com/PabloGalante/tutorchat/internal/config"
	"github.com/PabloGalante/tutorchat/internal/domain"
)

// NewProvider builds the completion provider selected in cfg.
func NewProvider(ctx context.Context, cfg *config.Config) (domain.CompletionProvider, error) {
	switch cfg.Provider {
	case config.ProviderOpenAI:
		return NewOpenAIProvider(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL), nil
	case config.ProviderAnthropic:
		return NewAnthropicProvider(cfg.AnthropicAPIKey), nil
	case config.ProviderVertex:
		v, err := NewVertexClient(ctx, cfg.GCPProjectID, cfg.GCPLocation)
		if err != nil {
			return nil, err
		}
		return v, nil
	case config.ProviderMock:
		return NewMockLLM(), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
}
