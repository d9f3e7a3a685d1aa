package tutoring

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/PabloGalante/tutorchat/internal/domain"
	"github.com/PabloGalante/tutorchat/internal/observability"
)

const (
	DefaultModel           = "deepseek-ai/DeepSeek-V3"
	DefaultTemperature     = float32(0.6)
	DefaultMaxTokens       = 500
	DefaultProviderTimeout = 60 * time.Second
)

// Options are the decoding parameters sent with every completion request.
type Options struct {
	Model       string
	Temperature float32
	MaxTokens   int
	// ProviderTimeout bounds a single provider call. Zero disables the bound.
	ProviderTimeout time.Duration
}

// DefaultOptions mirrors the deployment defaults.
func DefaultOptions() Options {
	return Options{
		Model:           DefaultModel,
		Temperature:     DefaultTemperature,
		MaxTokens:       DefaultMaxTokens,
		ProviderTimeout: DefaultProviderTimeout,
	}
}

// Service runs the tutoring protocol: it creates sessions and answers
// queries by sending the session conversation to the completion provider.
type Service struct {
	provider     domain.CompletionProvider
	store        domain.ConversationStore
	systemPrompt string
	opts         Options
	locks        *sessionLocks
	newID        func() string
}

func NewService(
	provider domain.CompletionProvider,
	store domain.ConversationStore,
	systemPrompt string,
	opts Options,
) *Service {
	if opts.Model == "" {
		opts.Model = DefaultModel
	}
	return &Service{
		provider:     provider,
		store:        store,
		systemPrompt: systemPrompt,
		opts:         opts,
		locks:        newSessionLocks(),
		newID:        uuid.NewString,
	}
}

// CreateSession opens a new session for the student and returns its id.
func (s *Service) CreateSession(ctx context.Context, studentID string) (domain.SessionID, error) {
	student, err := requireField("student_id", studentID)
	if err != nil {
		return "", err
	}

	sessionID := domain.SessionID(s.newID())
	s.store.CreateSession(domain.StudentID(student), sessionID, s.systemPrompt)
	observability.RecordSessionCreated()

	observability.LoggerFromContext(ctx).Info("tutoring session created",
		"student_id", student,
		"session_id", sessionID,
	)

	return sessionID, nil
}

// ProcessQuery appends the query to the session, asks the provider for the
// next assistant turn and records it. Queries on the same session run one
// at a time; other sessions are not blocked.
//
// When the provider fails the user turn stays in the history without a reply.
func (s *Service) ProcessQuery(ctx context.Context, studentID, sessionID, query string) (reply string, err error) {
	ctx, span := observability.StartSpan(ctx, "tutoring.process_query")
	defer func() {
		if err != nil {
			observability.FailSpan(span, err)
		}
		observability.RecordQuery(outcome(err))
		span.End()
	}()

	student, err := requireField("student_id", studentID)
	if err != nil {
		return "", err
	}
	session, err := requireField("session_id", sessionID)
	if err != nil {
		return "", err
	}
	if _, err := requireField("query", query); err != nil {
		return "", err
	}

	span.SetAttributes(
		attribute.String("student_id", student),
		attribute.String("session_id", session),
	)

	log := observability.LoggerFromContext(ctx).With(
		"student_id", student,
		"session_id", session,
	)

	sid, sess := domain.StudentID(student), domain.SessionID(session)

	if _, ok := s.store.GetSession(sid, sess); !ok {
		log.Info("query for unknown session")
		return "", notFound(sid, sess)
	}

	release, err := s.locks.acquire(ctx, sessionKey{student: sid, session: sess})
	if err != nil {
		log.Info("gave up waiting for session", "error", err)
		return "", fmt.Errorf("waiting for session: %w", err)
	}
	defer release()

	if err := s.store.AppendMessage(sid, sess, domain.RoleUser, query); err != nil {
		log.Error("failed to append user message", "error", err)
		return "", err
	}

	conversation, ok := s.store.Conversation(sid, sess)
	if !ok {
		return "", notFound(sid, sess)
	}
	observability.RecordConversationLength(len(conversation))

	req := domain.CompletionRequest{
		Model:       s.opts.Model,
		Messages:    conversation,
		Temperature: s.opts.Temperature,
		MaxTokens:   s.opts.MaxTokens,
	}

	resp, err := s.complete(ctx, req)
	if err != nil {
		log.Error("provider call failed", "error", err, "provider", s.provider.Name())
		return "", err
	}

	reply = firstChoiceText(resp)

	if err := s.store.AppendMessage(sid, sess, domain.RoleAssistant, reply); err != nil {
		log.Error("failed to append assistant message", "error", err)
		return "", err
	}

	log.Info("query answered", "messages", len(conversation)+1, "reply_len", len(reply))
	return reply, nil
}

// Conversation returns the session conversation as sent to the provider.
func (s *Service) Conversation(ctx context.Context, studentID, sessionID string) ([]domain.Message, error) {
	student, err := requireField("student_id", studentID)
	if err != nil {
		return nil, err
	}
	session, err := requireField("session_id", sessionID)
	if err != nil {
		return nil, err
	}

	sid, sess := domain.StudentID(student), domain.SessionID(session)
	conv, ok := s.store.Conversation(sid, sess)
	if !ok {
		return nil, notFound(sid, sess)
	}

	observability.LoggerFromContext(ctx).Debug("fetched conversation",
		"student_id", student,
		"session_id", session,
		"message_count", len(conv),
	)
	return conv, nil
}

// ListSessions returns the student's sessions, oldest first.
func (s *Service) ListSessions(ctx context.Context, studentID string) ([]domain.SessionSummary, error) {
	student, err := requireField("student_id", studentID)
	if err != nil {
		return nil, err
	}
	return s.store.ListSessions(domain.StudentID(student)), nil
}

func (s *Service) complete(ctx context.Context, req domain.CompletionRequest) (*domain.CompletionResponse, error) {
	callCtx := ctx
	if s.opts.ProviderTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, s.opts.ProviderTimeout)
		defer cancel()
	}

	callCtx, span := observability.StartSpan(callCtx, "tutoring.provider_call",
		attribute.String("provider", s.provider.Name()),
		attribute.String("model", req.Model),
		attribute.Int("messages", len(req.Messages)),
	)
	defer span.End()

	type result struct {
		resp *domain.CompletionResponse
		err  error
	}

	start := time.Now()
	done := make(chan result, 1)
	go func() {
		resp, err := s.provider.Complete(callCtx, req)
		done <- result{resp: resp, err: err}
	}()

	// a provider that ignores ctx must not hold the session past the deadline
	var (
		resp *domain.CompletionResponse
		err  error
	)
	select {
	case r := <-done:
		resp, err = r.resp, r.err
	case <-callCtx.Done():
		err = callCtx.Err()
	}

	status := "ok"
	if err != nil {
		status = "error"
		if errors.Is(err, context.DeadlineExceeded) {
			status = "timeout"
		}
		err = &domain.ProviderError{Provider: s.provider.Name(), Err: err}
		observability.FailSpan(span, err)
	}
	observability.RecordProviderCall(s.provider.Name(), status, time.Since(start))

	return resp, err
}

// firstChoiceText takes the first choice content, trimmed. Missing choices
// or content yield "".
func firstChoiceText(resp *domain.CompletionResponse) string {
	if resp == nil || len(resp.Choices) == 0 || resp.Choices[0].Content == nil {
		return ""
	}
	return strings.TrimSpace(*resp.Choices[0].Content)
}

func requireField(name, value string) (string, error) {
	v := strings.TrimSpace(value)
	if v == "" {
		return "", fmt.Errorf("%w: %s cannot be empty", domain.ErrInvalidArgument, name)
	}
	return v, nil
}

func notFound(student domain.StudentID, session domain.SessionID) error {
	return fmt.Errorf("%w: student=%q session=%q", domain.ErrSessionNotFound, student, session)
}

func outcome(err error) string {
	switch {
	case err == nil:
		return observability.OutcomeOK
	case errors.Is(err, domain.ErrInvalidArgument):
		return observability.OutcomeInvalidArgument
	case errors.Is(err, domain.ErrSessionNotFound):
		return observability.OutcomeNotFound
	case errors.Is(err, domain.ErrProviderFailure):
		return observability.OutcomeProviderError
	default:
		return observability.OutcomeCanceled
	}
}
