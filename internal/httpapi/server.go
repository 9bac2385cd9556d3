// Package httpapi exposes the chat service over HTTP and websocket.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/ent0n29/empathai/internal/chat"
	"github.com/ent0n29/empathai/internal/config"
	"github.com/ent0n29/empathai/internal/logging"
	"github.com/ent0n29/empathai/internal/moods"
	"github.com/ent0n29/empathai/internal/observability"
	"github.com/ent0n29/empathai/internal/users"
)

type Server struct {
	cfg      config.Config
	users    *users.Service
	chat     *chat.Service
	moods    moods.Store
	log      logging.Logger
	upgrader websocket.Upgrader

	// encryptionReady reflects whether a master key is loaded; surfaced on
	// health endpoints so a misconfigured deploy is visible immediately.
	encryptionReady bool
}

func New(cfg config.Config, userSvc *users.Service, chatSvc *chat.Service, moodStore moods.Store, encryptionReady bool, log logging.Logger) *Server {
	if log == nil {
		log = logging.Nop()
	}
	return &Server{
		cfg:             cfg,
		users:           userSvc,
		chat:            chatSvc,
		moods:           moodStore,
		log:             log,
		encryptionReady: encryptionReady,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Default: only allow browser websocket connections from the
				// same origin, so other websites cannot drive a user's chat
				// if the service is ever exposed beyond localhost.
				if cfg.AllowAnyOrigin {
					return true
				}
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					// Non-browser clients often omit Origin. Allow them.
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				if u.Scheme != "http" && u.Scheme != "https" {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Post("/v1/auth/register", s.handleRegister)
	r.Post("/v1/auth/login", s.handleLogin)

	r.Group(func(r chi.Router) {
		r.Use(s.withAuth)

		r.Put("/v1/me/memory", s.handleSetMemory)

		r.Post("/v1/sessions", s.handleStartSession)
		r.Get("/v1/sessions", s.handleListSessions)
		r.Get("/v1/sessions/{id}", s.handleGetSession)
		r.Post("/v1/sessions/{id}/end", s.handleEndSession)

		r.Post("/v1/chat/message", s.handleChatMessage)
		r.Get("/v1/chat/ws", s.handleChatWS)

		r.Get("/v1/moods", s.handleListMoods)
		r.Get("/v1/moods/{date}", s.handleGetMood)
		r.Post("/v1/moods", s.handleUpsertMood)
		r.Delete("/v1/moods/{date}", s.handleDeleteMood)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":             "ok",
		"encryption_enabled": s.encryptionReady,
	})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":             "ready",
		"encryption_enabled": s.encryptionReady,
	})
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(out); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "eof") {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}
