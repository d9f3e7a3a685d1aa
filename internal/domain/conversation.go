package domain

// Message is a single turn of a conversation.
type Message struct {
	Role      Role
	Content   string
	CreatedAt Timestamp
}

// Session is one conversation thread of a student with the tutor.
// SystemPrompt is fixed at creation; Messages only ever grows and holds
// user and assistant turns, never the system message.
type Session struct {
	ID           SessionID
	StudentID    StudentID
	SystemPrompt string
	Messages     []Message
	CreatedAt    Timestamp
}

// SystemMessage synthesizes the system turn from the session prompt.
func (s *Session) SystemMessage() Message {
	return Message{Role: RoleSystem, Content: s.SystemPrompt, CreatedAt: s.CreatedAt}
}

// Conversation returns [system] ++ messages as a fresh slice.
func (s *Session) Conversation() []Message {
	out := make([]Message, 0, 1+len(s.Messages))
	out = append(out, s.SystemMessage())
	out = append(out, s.Messages...)
	return out
}

// SessionSummary is a listing entry for a student's sessions.
type SessionSummary struct {
	ID           SessionID
	CreatedAt    Timestamp
	MessageCount int
}
