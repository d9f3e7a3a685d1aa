package domain

import "context"

// CompletionProvider is the remote model that answers a conversation.
type CompletionProvider interface {
	Name() string
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}

// CompletionRequest is what gets sent to the provider for one query.
type CompletionRequest struct {
	Model       string
	Messages    []Message
	Temperature float32
	MaxTokens   int
}

// CompletionResponse carries the provider choices in the order returned.
type CompletionResponse struct {
	Choices []Choice
}

// Choice is one completion alternative. Content is nil when the provider sent none.
type Choice struct {
	Content *string
}

// ConversationStore keeps per-student, per-session history.
type ConversationStore interface {
	// CreateSession inserts the session, replacing any previous one under the same key.
	CreateSession(studentID StudentID, sessionID SessionID, systemPrompt string)
	GetSession(studentID StudentID, sessionID SessionID) (*Session, bool)
	AppendMessage(studentID StudentID, sessionID SessionID, role Role, content string) error
	Conversation(studentID StudentID, sessionID SessionID) ([]Message, bool)
	ListSessions(studentID StudentID) []SessionSummary
}
