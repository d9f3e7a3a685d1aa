package tutoring_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/PabloGalante/tutorchat/internal/adapters/storage/memory"
	"github.com/PabloGalante/tutorchat/internal/app/tutoring"
	"github.com/PabloGalante/tutorchat/internal/domain"
)

const testPrompt = "You are a patient math tutor."

// fakeProvider records every request and answers through fn.
type fakeProvider struct {
	mu    sync.Mutex
	calls []domain.CompletionRequest
	fn    func(ctx context.Context, req domain.CompletionRequest) (*domain.CompletionResponse, error)
}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) Complete(ctx context.Context, req domain.CompletionRequest) (*domain.CompletionResponse, error) {
	p.mu.Lock()
	msgs := make([]domain.Message, len(req.Messages))
	copy(msgs, req.Messages)
	req.Messages = msgs
	p.calls = append(p.calls, req)
	fn := p.fn
	p.mu.Unlock()

	if fn == nil {
		return textResponse("ok"), nil
	}
	return fn(ctx, req)
}

func (p *fakeProvider) Calls() []domain.CompletionRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.CompletionRequest, len(p.calls))
	copy(out, p.calls)
	return out
}

func textResponse(texts ...string) *domain.CompletionResponse {
	resp := &domain.CompletionResponse{}
	for _, t := range texts {
		t := t
		resp.Choices = append(resp.Choices, domain.Choice{Content: &t})
	}
	return resp
}

func lastContent(req domain.CompletionRequest) string {
	return req.Messages[len(req.Messages)-1].Content
}

func newService(t *testing.T, p *fakeProvider) (*tutoring.Service, *memory.ConversationStore) {
	t.Helper()
	store := memory.NewConversationStore()
	return tutoring.NewService(p, store, testPrompt, tutoring.DefaultOptions()), store
}

func roles(msgs []domain.Message) []string {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, string(m.Role)+":"+m.Content)
	}
	return out
}

func TestCreateSession_StartsWithSystemPromptOnly(t *testing.T) {
	ctx := context.Background()
	svc, store := newService(t, &fakeProvider{})

	id, err := svc.CreateSession(ctx, "s1")
	require.NoError(t, err)
	_, err = uuid.Parse(string(id))
	require.NoError(t, err, "session id should be a uuid")

	conv, ok := store.Conversation("s1", id)
	require.True(t, ok)
	assert.Equal(t, []string{"system:" + testPrompt}, roles(conv))

	other, err := svc.CreateSession(ctx, "s1")
	require.NoError(t, err)
	assert.NotEqual(t, id, other)
}

func TestProcessQuery_AnswersAndRecordsTurns(t *testing.T) {
	ctx := context.Background()
	p := &fakeProvider{fn: func(_ context.Context, _ domain.CompletionRequest) (*domain.CompletionResponse, error) {
		return textResponse("4"), nil
	}}
	svc, _ := newService(t, p)

	id, err := svc.CreateSession(ctx, "s1")
	require.NoError(t, err)

	reply, err := svc.ProcessQuery(ctx, "s1", string(id), "2+2?")
	require.NoError(t, err)
	assert.Equal(t, "4", reply)

	conv, err := svc.Conversation(ctx, "s1", string(id))
	require.NoError(t, err)
	assert.Equal(t, []string{"system:" + testPrompt, "user:2+2?", "assistant:4"}, roles(conv))

	calls := p.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, []string{"system:" + testPrompt, "user:2+2?"}, roles(calls[0].Messages))
}

func TestProcessQuery_RequestUsesConfiguredParameters(t *testing.T) {
	ctx := context.Background()
	p := &fakeProvider{}
	store := memory.NewConversationStore()
	svc := tutoring.NewService(p, store, testPrompt, tutoring.Options{
		Model:       "tutor-model",
		Temperature: 0.2,
		MaxTokens:   42,
	})

	id, err := svc.CreateSession(ctx, "s1")
	require.NoError(t, err)
	_, err = svc.ProcessQuery(ctx, "s1", string(id), "hello")
	require.NoError(t, err)

	calls := p.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "tutor-model", calls[0].Model)
	assert.Equal(t, float32(0.2), calls[0].Temperature)
	assert.Equal(t, 42, calls[0].MaxTokens)
}

func TestProcessQuery_HistoryGrowsInCallOrder(t *testing.T) {
	ctx := context.Background()
	p := &fakeProvider{fn: func(_ context.Context, req domain.CompletionRequest) (*domain.CompletionResponse, error) {
		return textResponse("re: " + lastContent(req)), nil
	}}
	svc, _ := newService(t, p)

	id, err := svc.CreateSession(ctx, "s1")
	require.NoError(t, err)

	for _, q := range []string{"q1", "q2", "q3"} {
		_, err := svc.ProcessQuery(ctx, "s1", string(id), q)
		require.NoError(t, err)
	}

	conv, err := svc.Conversation(ctx, "s1", string(id))
	require.NoError(t, err)
	assert.Equal(t, []string{
		"system:" + testPrompt,
		"user:q1", "assistant:re: q1",
		"user:q2", "assistant:re: q2",
		"user:q3", "assistant:re: q3",
	}, roles(conv))

	calls := p.Calls()
	require.Len(t, calls, 3)
	assert.Len(t, calls[0].Messages, 2)
	assert.Len(t, calls[1].Messages, 4)
	assert.Len(t, calls[2].Messages, 6)
}

func TestProcessQuery_UnknownSession(t *testing.T) {
	ctx := context.Background()
	p := &fakeProvider{}
	svc, store := newService(t, p)

	id, err := svc.CreateSession(ctx, "s1")
	require.NoError(t, err)

	_, err = svc.ProcessQuery(ctx, "s1", "never-created", "hello")
	require.ErrorIs(t, err, domain.ErrSessionNotFound)
	assert.Contains(t, err.Error(), "never-created")

	// the student exists but owns a different session id
	_, err = svc.ProcessQuery(ctx, "s2", string(id), "hello")
	require.ErrorIs(t, err, domain.ErrSessionNotFound)

	assert.Empty(t, p.Calls())
	conv, _ := store.Conversation("s1", id)
	assert.Len(t, conv, 1)
	_, ok := store.Conversation("s1", "never-created")
	assert.False(t, ok)
}

func TestValidation_RejectsBlankInputsWithoutCallingProvider(t *testing.T) {
	ctx := context.Background()
	p := &fakeProvider{}
	svc, _ := newService(t, p)

	id, err := svc.CreateSession(ctx, "s1")
	require.NoError(t, err)

	_, err = svc.CreateSession(ctx, "")
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	_, err = svc.CreateSession(ctx, "   ")
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	tests := []struct {
		name    string
		student string
		session string
		query   string
	}{
		{"empty student", "", string(id), "hi"},
		{"blank student", " \t", string(id), "hi"},
		{"empty session", "s1", "", "hi"},
		{"empty query", "s1", string(id), ""},
		{"blank query", "s1", string(id), "  \n "},
		{"unknown session and empty query", "s1", "nope", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.ProcessQuery(ctx, tt.student, tt.session, tt.query)
			assert.ErrorIs(t, err, domain.ErrInvalidArgument)
		})
	}

	assert.Empty(t, p.Calls())
	conv, err := svc.Conversation(ctx, "s1", string(id))
	require.NoError(t, err)
	assert.Len(t, conv, 1)
}

func TestProcessQuery_ProviderFailureKeepsUserTurn(t *testing.T) {
	ctx := context.Background()
	upstream := errors.New("upstream 503")
	p := &fakeProvider{fn: func(_ context.Context, _ domain.CompletionRequest) (*domain.CompletionResponse, error) {
		return nil, upstream
	}}
	svc, _ := newService(t, p)

	id, err := svc.CreateSession(ctx, "s1")
	require.NoError(t, err)

	_, err = svc.ProcessQuery(ctx, "s1", string(id), "explain fractions")
	require.ErrorIs(t, err, domain.ErrProviderFailure)
	require.ErrorIs(t, err, upstream)

	var perr *domain.ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "fake", perr.Provider)
	assert.False(t, perr.Timeout())

	conv, err := svc.Conversation(ctx, "s1", string(id))
	require.NoError(t, err)
	assert.Equal(t, []string{"system:" + testPrompt, "user:explain fractions"}, roles(conv))
}

func TestProcessQuery_LenientChoiceExtraction(t *testing.T) {
	tests := []struct {
		name string
		resp *domain.CompletionResponse
		want string
	}{
		{"no choices", &domain.CompletionResponse{}, ""},
		{"nil content", &domain.CompletionResponse{Choices: []domain.Choice{{}}}, ""},
		{"nil response", nil, ""},
		{"trimmed", textResponse("  \n 4 \t"), "4"},
		{"first choice wins", textResponse("first", "second"), "first"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			p := &fakeProvider{fn: func(_ context.Context, _ domain.CompletionRequest) (*domain.CompletionResponse, error) {
				return tt.resp, nil
			}}
			svc, _ := newService(t, p)

			id, err := svc.CreateSession(ctx, "s1")
			require.NoError(t, err)

			reply, err := svc.ProcessQuery(ctx, "s1", string(id), "q")
			require.NoError(t, err)
			assert.Equal(t, tt.want, reply)

			conv, err := svc.Conversation(ctx, "s1", string(id))
			require.NoError(t, err)
			require.Len(t, conv, 3)
			assert.Equal(t, domain.RoleAssistant, conv[2].Role)
			assert.Equal(t, tt.want, conv[2].Content)
		})
	}
}

func TestProcessQuery_ProviderTimeout(t *testing.T) {
	ctx := context.Background()
	block := make(chan struct{})
	t.Cleanup(func() { close(block) })

	tests := []struct {
		name string
		fn   func(ctx context.Context, req domain.CompletionRequest) (*domain.CompletionResponse, error)
	}{
		{"honours ctx", func(ctx context.Context, _ domain.CompletionRequest) (*domain.CompletionResponse, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		}},
		{"ignores ctx", func(_ context.Context, _ domain.CompletionRequest) (*domain.CompletionResponse, error) {
			<-block
			return textResponse("too late"), nil
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &fakeProvider{fn: tt.fn}
			store := memory.NewConversationStore()
			opts := tutoring.DefaultOptions()
			opts.ProviderTimeout = 20 * time.Millisecond
			svc := tutoring.NewService(p, store, testPrompt, opts)

			id, err := svc.CreateSession(ctx, "s1")
			require.NoError(t, err)

			_, err = svc.ProcessQuery(ctx, "s1", string(id), "slow question")
			require.ErrorIs(t, err, domain.ErrProviderFailure)

			var perr *domain.ProviderError
			require.ErrorAs(t, err, &perr)
			assert.True(t, perr.Timeout())

			conv, _ := store.Conversation("s1", id)
			assert.Equal(t, []string{"system:" + testPrompt, "user:slow question"}, roles(conv))
		})
	}
}

func TestProcessQuery_SessionsOfOneStudentAreIndependent(t *testing.T) {
	ctx := context.Background()
	p := &fakeProvider{fn: func(_ context.Context, req domain.CompletionRequest) (*domain.CompletionResponse, error) {
		return textResponse("re: " + lastContent(req)), nil
	}}
	svc, _ := newService(t, p)

	a, err := svc.CreateSession(ctx, "s1")
	require.NoError(t, err)
	b, err := svc.CreateSession(ctx, "s1")
	require.NoError(t, err)

	_, err = svc.ProcessQuery(ctx, "s1", string(a), "only for a")
	require.NoError(t, err)

	convB, err := svc.Conversation(ctx, "s1", string(b))
	require.NoError(t, err)
	assert.Equal(t, []string{"system:" + testPrompt}, roles(convB))

	_, err = svc.ProcessQuery(ctx, "s1", string(b), "only for b")
	require.NoError(t, err)

	convA, err := svc.Conversation(ctx, "s1", string(a))
	require.NoError(t, err)
	assert.Equal(t, []string{"system:" + testPrompt, "user:only for a", "assistant:re: only for a"}, roles(convA))

	sessions, err := svc.ListSessions(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, sessions, 2)
}

func TestProcessQuery_SameSessionIsSerialized(t *testing.T) {
	ctx := context.Background()
	entered := make(chan struct{})
	release := make(chan struct{})
	fastCalled := make(chan struct{})
	p := &fakeProvider{fn: func(_ context.Context, req domain.CompletionRequest) (*domain.CompletionResponse, error) {
		switch lastContent(req) {
		case "slow":
			close(entered)
			<-release
		case "fast":
			close(fastCalled)
		}
		return textResponse("re: " + lastContent(req)), nil
	}}
	svc, _ := newService(t, p)

	id, err := svc.CreateSession(ctx, "s1")
	require.NoError(t, err)

	var g errgroup.Group
	g.Go(func() error {
		_, err := svc.ProcessQuery(ctx, "s1", string(id), "slow")
		return err
	})
	<-entered

	g.Go(func() error {
		_, err := svc.ProcessQuery(ctx, "s1", string(id), "fast")
		return err
	})

	// while "slow" is in flight, "fast" must reach neither the store nor the provider
	require.Never(t, func() bool {
		select {
		case <-fastCalled:
			return true
		default:
		}
		conv, err := svc.Conversation(ctx, "s1", string(id))
		return err != nil || len(conv) != 2
	}, 50*time.Millisecond, 5*time.Millisecond)

	conv, err := svc.Conversation(ctx, "s1", string(id))
	require.NoError(t, err)
	assert.Equal(t, []string{"system:" + testPrompt, "user:slow"}, roles(conv))

	close(release)
	require.NoError(t, g.Wait())

	conv, err = svc.Conversation(ctx, "s1", string(id))
	require.NoError(t, err)
	assert.Equal(t, []string{
		"system:" + testPrompt,
		"user:slow", "assistant:re: slow",
		"user:fast", "assistant:re: fast",
	}, roles(conv))

	calls := p.Calls()
	require.Len(t, calls, 2)
	assert.Len(t, calls[1].Messages, 4)
}

func TestProcessQuery_DifferentSessionsDoNotBlockEachOther(t *testing.T) {
	ctx := context.Background()
	entered := make(chan struct{})
	release := make(chan struct{})
	p := &fakeProvider{fn: func(_ context.Context, req domain.CompletionRequest) (*domain.CompletionResponse, error) {
		if lastContent(req) == "slow" {
			close(entered)
			<-release
		}
		return textResponse("done"), nil
	}}
	svc, _ := newService(t, p)

	a, err := svc.CreateSession(ctx, "s1")
	require.NoError(t, err)
	b, err := svc.CreateSession(ctx, "s2")
	require.NoError(t, err)

	var g errgroup.Group
	g.Go(func() error {
		_, err := svc.ProcessQuery(ctx, "s1", string(a), "slow")
		return err
	})
	<-entered

	// a is still in flight; b must complete on its own
	reply, err := svc.ProcessQuery(ctx, "s2", string(b), "quick")
	require.NoError(t, err)
	assert.Equal(t, "done", reply)

	close(release)
	require.NoError(t, g.Wait())
}

func TestProcessQuery_WaiterGivesUpWhenContextEnds(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	p := &fakeProvider{fn: func(_ context.Context, req domain.CompletionRequest) (*domain.CompletionResponse, error) {
		if lastContent(req) == "slow" {
			close(entered)
			<-release
		}
		return textResponse("done"), nil
	}}
	svc, _ := newService(t, p)

	id, err := svc.CreateSession(context.Background(), "s1")
	require.NoError(t, err)

	var g errgroup.Group
	g.Go(func() error {
		_, err := svc.ProcessQuery(context.Background(), "s1", string(id), "slow")
		return err
	})
	<-entered

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = svc.ProcessQuery(ctx, "s1", string(id), "impatient")
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.NotErrorIs(t, err, domain.ErrProviderFailure)

	close(release)
	require.NoError(t, g.Wait())

	conv, err := svc.Conversation(context.Background(), "s1", string(id))
	require.NoError(t, err)
	assert.Equal(t, []string{"system:" + testPrompt, "user:slow", "assistant:done"}, roles(conv))
}

func TestConversation_Errors(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t, &fakeProvider{})

	_, err := svc.Conversation(ctx, "", "x")
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	_, err = svc.Conversation(ctx, "s1", " ")
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	_, err = svc.Conversation(ctx, "s1", "x")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	_, err = svc.ListSessions(ctx, "")
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	sessions, err := svc.ListSessions(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, sessions)
}
