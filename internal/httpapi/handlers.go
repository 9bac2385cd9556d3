package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ent0n29/empathai/internal/auth"
	"github.com/ent0n29/empathai/internal/chat"
	"github.com/ent0n29/empathai/internal/cryptox"
	"github.com/ent0n29/empathai/internal/memory"
	"github.com/ent0n29/empathai/internal/users"
)

type credentialsRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name,omitempty"`
	Password string `json:"password"`
}

type userView struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	Name          string    `json:"name"`
	MemoryEnabled bool      `json:"memory_enabled"`
	CreatedAt     time.Time `json:"created_at"`
}

type authResponse struct {
	Token string   `json:"token"`
	User  userView `json:"user"`
}

func viewOf(u users.User) userView {
	return userView{
		ID:            u.ID,
		Email:         u.Email,
		Name:          u.Name,
		MemoryEnabled: u.MemoryEnabled,
		CreatedAt:     u.CreatedAt,
	}
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	account, err := s.users.Register(r.Context(), req.Email, req.Name, req.Password)
	switch {
	case errors.Is(err, users.ErrEmailTaken):
		respondError(w, http.StatusConflict, "email_taken", "an account with this email already exists")
		return
	case err != nil:
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	token, err := auth.GenerateToken(account.ID, []byte(s.cfg.JWTSecret), s.cfg.JWTTTL)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "token_error", "could not issue token")
		return
	}
	respondJSON(w, http.StatusCreated, authResponse{Token: token, User: viewOf(account)})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	account, err := s.users.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "invalid_credentials", "email or password is incorrect")
		return
	}

	token, err := auth.GenerateToken(account.ID, []byte(s.cfg.JWTSecret), s.cfg.JWTTTL)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "token_error", "could not issue token")
		return
	}
	respondJSON(w, http.StatusOK, authResponse{Token: token, User: viewOf(account)})
}

func (s *Server) handleSetMemory(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Enabled bool `json:"enabled"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	userID := userIDFrom(r)
	if err := s.chat.SetMemoryEnabled(r.Context(), userID, req.Enabled); err != nil {
		s.respondServiceError(w, err)
		return
	}

	account, err := s.users.User(r.Context(), userID)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, viewOf(account))
}

func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	session, err := s.chat.StartSession(r.Context(), userIDFrom(r))
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, session)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.chat.Sessions(r.Context(), userIDFrom(r))
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	if sessions == nil {
		sessions = []memory.SessionRecord{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"sessions": sessions})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	userID := userIDFrom(r)
	sessionID := chi.URLParam(r, "id")

	session, err := s.chat.Session(r.Context(), userID, sessionID)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	messages, err := s.chat.SessionHistory(r.Context(), userID, sessionID)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	if messages == nil {
		messages = []memory.MessageRecord{}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"session":  session,
		"messages": messages,
	})
}

func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	session, err := s.chat.EndSession(r.Context(), userIDFrom(r), chi.URLParam(r, "id"))
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, session)
}

type chatMessageRequest struct {
	SessionID string `json:"session_id"`
	Text      string `json:"text"`
}

func (s *Server) handleChatMessage(w http.ResponseWriter, r *http.Request) {
	var req chatMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		respondError(w, http.StatusBadRequest, "empty_message", "text is required")
		return
	}

	result, err := s.chat.Send(r.Context(), userIDFrom(r), req.SessionID, req.Text)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// respondServiceError maps domain errors onto HTTP statuses.
func (s *Server) respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, memory.ErrNotFound) || errors.Is(err, users.ErrNotFound):
		respondError(w, http.StatusNotFound, "not_found", "resource not found")
	case errors.Is(err, chat.ErrSessionEnded):
		respondError(w, http.StatusConflict, "session_ended", "this session has ended")
	case errors.Is(err, cryptox.ErrNotConfigured):
		respondError(w, http.StatusServiceUnavailable, "encryption_unavailable",
			"encryption at rest is on but no master key is configured")
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		respondError(w, statusClientClosedRequest, "cancelled", "request cancelled")
	default:
		s.log.Error(context.Background(), "request failed", "error", err)
		respondError(w, http.StatusBadGateway, "upstream_error", "could not complete the chat turn")
	}
}

// Nginx's non-standard 499 for a client that went away mid-request.
const statusClientClosedRequest = 499
