package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/PabloGalante/tutorchat/internal/domain"
)

// ChatCompletionClient is the part of the go-openai client we use.
type ChatCompletionClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAIProvider talks to any OpenAI-compatible chat completions API
// (DeepSeek by default through OPENAI_BASE_URL).
type OpenAIProvider struct {
	client ChatCompletionClient
}

// NewOpenAIProvider builds a provider for apiKey. An empty baseURL keeps the
// official OpenAI endpoint; otherwise "/v1" is appended unless present.
func NewOpenAIProvider(apiKey, baseURL string) *OpenAIProvider {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = normalizeBaseURL(baseURL)
	}
	return &OpenAIProvider{client: openai.NewClientWithConfig(cfg)}
}

// NewOpenAIProviderWithClient is used by tests to inject a fake client.
func NewOpenAIProviderWithClient(client ChatCompletionClient) *OpenAIProvider {
	return &OpenAIProvider{client: client}
}

func (p *OpenAIProvider) Name() string {
	return "openai"
}

// Complete implements domain.CompletionProvider.
func (p *OpenAIProvider) Complete(ctx context.Context, req domain.CompletionRequest) (*domain.CompletionResponse, error) {
	res, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    toOpenAIMessages(req.Messages),
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("openai chat completion: %w", err)
	}

	out := &domain.CompletionResponse{Choices: make([]domain.Choice, 0, len(res.Choices))}
	for _, c := range res.Choices {
		content := c.Message.Content
		out.Choices = append(out.Choices, domain.Choice{Content: &content})
	}
	return out, nil
}

func toOpenAIMessages(msgs []domain.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(msgs))
	for _, m := range msgs {
		var role string
		switch m.Role {
		case domain.RoleSystem:
			role = openai.ChatMessageRoleSystem
		case domain.RoleAssistant:
			role = openai.ChatMessageRoleAssistant
		default:
			role = openai.ChatMessageRoleUser
		}
		out = append(out, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}
	return out
}

func normalizeBaseURL(baseURL string) string {
	u := strings.TrimRight(baseURL, "/")
	if strings.HasSuffix(u, "/v1") {
		return u
	}
	return u + "/v1"
}
