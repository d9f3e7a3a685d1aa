package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/PabloGalante/tutorchat/internal/domain"
)

// AnthropicProvider answers with Claude through the Messages API.
type AnthropicProvider struct {
	client anthropic.Client
}

func NewAnthropicProvider(apiKey string) *AnthropicProvider {
	return &AnthropicProvider{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
	}
}

func (p *AnthropicProvider) Name() string {
	return "anthropic"
}

// Complete implements domain.CompletionProvider. The Messages API returns a
// single message, so the response has at most one choice.
func (p *AnthropicProvider) Complete(ctx context.Context, req domain.CompletionRequest) (*domain.CompletionResponse, error) {
	res, err := p.client.Messages.New(ctx, toAnthropicParams(req))
	if err != nil {
		return nil, fmt.Errorf("anthropic messages: %w", err)
	}

	if len(res.Content) == 0 {
		return &domain.CompletionResponse{}, nil
	}

	var b strings.Builder
	for _, block := range res.Content {
		if text, ok := block.AsAny().(anthropic.TextBlock); ok {
			b.WriteString(text.Text)
		}
	}
	content := b.String()
	return &domain.CompletionResponse{Choices: []domain.Choice{{Content: &content}}}, nil
}

func toAnthropicParams(req domain.CompletionRequest) anthropic.MessageNewParams {
	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(req.Model),
		MaxTokens:   int64(req.MaxTokens),
		Temperature: anthropic.Float(float64(req.Temperature)),
	}

	for _, m := range req.Messages {
		switch m.Role {
		case domain.RoleSystem:
			params.System = append(params.System, anthropic.TextBlockParam{Text: m.Content})
		case domain.RoleAssistant:
			params.Messages = append(params.Messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		default:
			params.Messages = append(params.Messages, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}
	return params
}
