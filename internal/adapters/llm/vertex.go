package llm

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/PabloGalante/tutorchat/internal/domain"
)

type VertexClient struct {
	client *genai.Client
}

// NewVertexClient creates a CompletionProvider based on Vertex AI (Gemini).
func NewVertexClient(ctx context.Context, projectID, location string) (*VertexClient, error) {
	if projectID == "" || location == "" {
		return nil, fmt.Errorf("vertex project and location must be set")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		Project:  projectID,
		Location: location,
		Backend:  genai.BackendVertexAI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating Vertex AI client: %w", err)
	}

	return &VertexClient{client: client}, nil
}

func (v *VertexClient) Name() string {
	return "vertex"
}

// Complete implements domain.CompletionProvider using Vertex AI.
// Each candidate becomes one choice.
func (v *VertexClient) Complete(ctx context.Context, req domain.CompletionRequest) (*domain.CompletionResponse, error) {
	system, contents := toGenaiContents(req.Messages)

	temp := req.Temperature
	cfg := &genai.GenerateContentConfig{
		Temperature:     &temp,
		MaxOutputTokens: int32(req.MaxTokens),
	}
	if system != "" {
		// Vertex examples send the instruction with the user role.
		cfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}

	res, err := v.client.Models.GenerateContent(ctx, req.Model, contents, cfg)
	if err != nil {
		return nil, fmt.Errorf("vertex generate content: %w", err)
	}

	out := &domain.CompletionResponse{}
	for _, cand := range res.Candidates {
		out.Choices = append(out.Choices, domain.Choice{Content: candidateText(cand)})
	}
	return out, nil
}

// toGenaiContents splits system turns into one instruction and maps the rest
// to user/model contents.
func toGenaiContents(msgs []domain.Message) (string, []*genai.Content) {
	var (
		system   []string
		contents []*genai.Content
	)
	for _, m := range msgs {
		switch m.Role {
		case domain.RoleSystem:
			system = append(system, m.Content)
		case domain.RoleAssistant:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}
	return strings.Join(system, "\n\n"), contents
}

func candidateText(cand *genai.Candidate) *string {
	if cand == nil || cand.Content == nil {
		return nil
	}
	var b strings.Builder
	for _, part := range cand.Content.Parts {
		if part != nil {
			b.WriteString(part.Text)
		}
	}
	text := b.String()
	return &text
}
