package memory

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/PabloGalante/tutorchat/internal/domain"
)

type sessionData struct {
	systemPrompt string
	messages     []domain.Message
	createdAt    time.Time
}

// ConversationStore is an in-memory implementation of domain.ConversationStore.
// It is NOT persistent; sessions live as long as the process.
type ConversationStore struct {
	mu       sync.RWMutex
	sessions map[domain.StudentID]map[domain.SessionID]*sessionData
	now      func() time.Time
}

func NewConversationStore() *ConversationStore {
	return &ConversationStore{
		sessions: make(map[domain.StudentID]map[domain.SessionID]*sessionData),
		now:      time.Now,
	}
}

// CreateSession stores a fresh session. An existing session under the same
// (student, session) pair is discarded: last writer wins.
func (s *ConversationStore) CreateSession(studentID domain.StudentID, sessionID domain.SessionID, systemPrompt string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bySession, ok := s.sessions[studentID]
	if !ok {
		bySession = make(map[domain.SessionID]*sessionData)
		s.sessions[studentID] = bySession
	}

	bySession[sessionID] = &sessionData{
		systemPrompt: systemPrompt,
		createdAt:    s.now(),
	}
}

// GetSession returns a snapshot of the session. Mutating it does not
// affect the store.
func (s *ConversationStore) GetSession(studentID domain.StudentID, sessionID domain.SessionID) (*domain.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.lookup(studentID, sessionID)
	if !ok {
		return nil, false
	}

	sess := data.view(studentID, sessionID)
	sess.Messages = append([]domain.Message(nil), data.messages...)
	return &sess, true
}

// AppendMessage adds a user or assistant turn to the end of the log.
func (s *ConversationStore) AppendMessage(
	studentID domain.StudentID,
	sessionID domain.SessionID,
	role domain.Role,
	content string,
) error {
	if role != domain.RoleUser && role != domain.RoleAssistant {
		return fmt.Errorf("%w: role %q cannot be appended", domain.ErrInvalidArgument, role)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, ok := s.lookup(studentID, sessionID)
	if !ok {
		return fmt.Errorf("%w: student=%q session=%q", domain.ErrSessionNotFound, studentID, sessionID)
	}

	data.messages = append(data.messages, domain.Message{
		Role:      role,
		Content:   content,
		CreatedAt: s.now(),
	})
	return nil
}

// Conversation returns [system] ++ messages, or false if the session is unknown.
func (s *ConversationStore) Conversation(studentID domain.StudentID, sessionID domain.SessionID) ([]domain.Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.lookup(studentID, sessionID)
	if !ok {
		return nil, false
	}

	sess := data.view(studentID, sessionID)
	return sess.Conversation(), true
}

// ListSessions returns the student's sessions, oldest first.
func (s *ConversationStore) ListSessions(studentID domain.StudentID) []domain.SessionSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bySession := s.sessions[studentID]
	out := make([]domain.SessionSummary, 0, len(bySession))
	for id, data := range bySession {
		out = append(out, domain.SessionSummary{
			ID:           id,
			CreatedAt:    data.createdAt,
			MessageCount: len(data.messages),
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// view shares data.messages; callers copy before handing it out.
func (d *sessionData) view(studentID domain.StudentID, sessionID domain.SessionID) domain.Session {
	return domain.Session{
		ID:           sessionID,
		StudentID:    studentID,
		SystemPrompt: d.systemPrompt,
		Messages:     d.messages,
		CreatedAt:    d.createdAt,
	}
}

// lookup must be called with s.mu held.
func (s *ConversationStore) lookup(studentID domain.StudentID, sessionID domain.SessionID) (*sessionData, bool) {
	bySession, ok := s.sessions[studentID]
	if !ok {
		return nil, false
	}
	data, ok := bySession[sessionID]
	return data, ok
}
