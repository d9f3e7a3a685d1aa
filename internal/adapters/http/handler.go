package httpadapter

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"time"

	"github.com/PabloGalante/tutorchat/internal/domain"
	"github.com/PabloGalante/tutorchat/internal/observability"
)

//go:embed templates/tutor.html
var templatesFS embed.FS

var tutorPage = template.Must(template.ParseFS(templatesFS, "templates/tutor.html"))

// Tutor is what the HTTP layer needs from the tutoring service.
type Tutor interface {
	CreateSession(ctx context.Context, studentID string) (domain.SessionID, error)
	ProcessQuery(ctx context.Context, studentID, sessionID, query string) (string, error)
	Conversation(ctx context.Context, studentID, sessionID string) ([]domain.Message, error)
	ListSessions(ctx context.Context, studentID string) ([]domain.SessionSummary, error)
}

type Server struct {
	svc Tutor
}

func NewServer(svc Tutor) http.Handler {
	s := &Server{svc: svc}
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.Handle("GET /metrics", observability.MetricsHandler())

	mux.HandleFunc("POST /api/create_session", s.handleCreateSession)
	mux.HandleFunc("POST /api/send_query", s.handleSendQuery)
	mux.HandleFunc("GET /api/students/{student_id}/sessions", s.handleListSessions)
	mux.HandleFunc("GET /api/students/{student_id}/sessions/{session_id}", s.handleGetConversation)

	return chainMiddlewares(mux, withMetrics, withLogging, withRequestID, withCORS)
}

// ─────────────────────────────────────────────
// DTOs (request/response)
// ─────────────────────────────────────────────

type createSessionRequest struct {
	StudentID string `json:"student_id"`
}

type createSessionResponse struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

type sendQueryRequest struct {
	StudentID string `json:"student_id"`
	SessionID string `json:"session_id"`
	Query     string `json:"query"`
}

type sendQueryResponse struct {
	Message string `json:"message"`
}

type messageResponse struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type conversationResponse struct {
	SessionID string            `json:"session_id"`
	Messages  []messageResponse `json:"messages"`
}

type sessionSummaryResponse struct {
	SessionID    string    `json:"session_id"`
	CreatedAt    time.Time `json:"created_at"`
	MessageCount int       `json:"message_count"`
}

type listSessionsResponse struct {
	Sessions []sessionSummaryResponse `json:"sessions"`
}

type errorBody struct {
	Message string `json:"message"`
	Code    int    `json:"code"`
}

type errorResponse struct {
	Status string    `json:"status"`
	Error  errorBody `json:"error"`
}

// ─────────────────────────────────────────────
// Concrete handlers
// ─────────────────────────────────────────────

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tutorPage.Execute(w, nil); err != nil {
		observability.LoggerFromContext(r.Context()).Error("rendering tutor page", "error", err)
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	id, err := s.svc.CreateSession(r.Context(), req.StudentID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, createSessionResponse{
		SessionID: string(id),
		Message:   "Tutoring session created successfully",
	})
}

func (s *Server) handleSendQuery(w http.ResponseWriter, r *http.Request) {
	var req sendQueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	reply, err := s.svc.ProcessQuery(r.Context(), req.StudentID, req.SessionID, req.Query)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, sendQueryResponse{Message: reply})
}

func (s *Server) handleGetConversation(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("session_id")
	msgs, err := s.svc.Conversation(r.Context(), r.PathValue("student_id"), sessionID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	resp := conversationResponse{
		SessionID: sessionID,
		Messages:  make([]messageResponse, 0, len(msgs)),
	}
	for _, m := range msgs {
		resp.Messages = append(resp.Messages, messageResponse{Role: string(m.Role), Content: m.Content})
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.svc.ListSessions(r.Context(), r.PathValue("student_id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	resp := listSessionsResponse{Sessions: make([]sessionSummaryResponse, 0, len(sessions))}
	for _, sess := range sessions {
		resp.Sessions = append(resp.Sessions, sessionSummaryResponse{
			SessionID:    string(sess.ID),
			CreatedAt:    sess.CreatedAt,
			MessageCount: sess.MessageCount,
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

// ─────────────────────────────────────────────
// HTTP Helpers
// ─────────────────────────────────────────────

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	var perr *domain.ProviderError
	switch {
	case errors.Is(err, domain.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.As(err, &perr) && perr.Timeout():
		return http.StatusGatewayTimeout
	case errors.Is(err, domain.ErrProviderFailure):
		return http.StatusBadGateway
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		// the caller gave up before the session became free
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := err.Error()
	log := observability.LoggerFromContext(r.Context())
	switch {
	case status == http.StatusServiceUnavailable:
		log.Info("request abandoned", "error", err, "status", status)
	case status >= http.StatusInternalServerError:
		log.Error("request failed", "error", err, "status", status)
		if status == http.StatusInternalServerError {
			msg = "internal server error"
		}
	}
	writeError(w, status, msg)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{
		Status: "error",
		Error:  errorBody{Message: msg, Code: status},
	})
}
