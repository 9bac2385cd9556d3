package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/ent0n29/empathai/internal/auth"
)

type contextKey string

const userIDKey contextKey = "user_id"

// withAuth requires a valid bearer token and stashes the account ID on the
// request context. Websocket clients may pass the token as a query parameter
// since browsers cannot set headers on websocket upgrades.
func (s *Server) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			token = strings.TrimSpace(r.URL.Query().Get("token"))
		}
		if token == "" {
			respondError(w, http.StatusUnauthorized, "missing_token", "authorization required")
			return
		}

		userID, err := auth.UserIDFromToken(token, []byte(s.cfg.JWTSecret))
		if err != nil {
			respondError(w, http.StatusUnauthorized, "invalid_token", "token is invalid or expired")
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userIDKey, userID)))
	})
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func userIDFrom(r *http.Request) string {
	id, _ := r.Context().Value(userIDKey).(string)
	return id
}
