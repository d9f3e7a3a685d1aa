package llm

import (
	"context"
	"fmt"

	"github.com/PabloGalante/tutorchat/internal/domain"
)

// MockLLM answers without any network call. Useful for local mode and tests.
type MockLLM struct{}

func NewMockLLM() *MockLLM {
	return &MockLLM{}
}

func (m *MockLLM) Name() string {
	return "mock"
}

func (m *MockLLM) Complete(ctx context.Context, req domain.CompletionRequest) (*domain.CompletionResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var question string
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == domain.RoleUser {
			question = req.Messages[i].Content
			break
		}
	}

	reply := fmt.Sprintf("Let's work through %q together. What have you tried so far?", question)
	return &domain.CompletionResponse{Choices: []domain.Choice{{Content: &reply}}}, nil
}
