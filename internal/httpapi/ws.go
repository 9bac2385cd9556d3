package httpapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ent0n29/empathai/internal/chat"
	"github.com/ent0n29/empathai/internal/memory"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsReadTimeout  = 120 * time.Second
	wsReadLimit    = 1 << 20
)

type wsClientMessage struct {
	SessionID string `json:"session_id"`
	Text      string `json:"text"`
}

type wsReplyEvent struct {
	Type string `json:"type"`
	chat.TurnResult
}

type wsErrorEvent struct {
	Type   string `json:"type"`
	Code   string `json:"code"`
	Detail string `json:"detail"`
}

// handleChatWS runs chat turns over a persistent websocket: one JSON message
// in, one reply or error event out, in order.
func (s *Server) handleChatWS(w http.ResponseWriter, r *http.Request) {
	userID := userIDFrom(r)

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	conn.SetReadLimit(wsReadLimit)
	_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
		return nil
	})

	for {
		var msg wsClientMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))

		if msg.Text == "" {
			s.writeWS(conn, wsErrorEvent{Type: "error", Code: "empty_message", Detail: "text is required"})
			continue
		}

		result, err := s.chat.Send(r.Context(), userID, msg.SessionID, msg.Text)
		if err != nil {
			s.writeWS(conn, wsErrorEvent{Type: "error", Code: wsErrorCode(err), Detail: err.Error()})
			continue
		}
		if !s.writeWS(conn, wsReplyEvent{Type: "reply", TurnResult: result}) {
			return
		}
	}
}

func (s *Server) writeWS(conn *websocket.Conn, v any) bool {
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return conn.WriteJSON(v) == nil
}

func wsErrorCode(err error) string {
	switch {
	case errors.Is(err, memory.ErrNotFound):
		return "not_found"
	case errors.Is(err, chat.ErrSessionEnded):
		return "session_ended"
	default:
		return "upstream_error"
	}
}
