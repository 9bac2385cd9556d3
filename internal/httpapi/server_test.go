package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ent0n29/empathai/internal/chat"
	"github.com/ent0n29/empathai/internal/completion"
	"github.com/ent0n29/empathai/internal/config"
	"github.com/ent0n29/empathai/internal/cryptox"
	"github.com/ent0n29/empathai/internal/keyring"
	"github.com/ent0n29/empathai/internal/logging"
	"github.com/ent0n29/empathai/internal/memory"
	"github.com/ent0n29/empathai/internal/moods"
	"github.com/ent0n29/empathai/internal/summarizer"
	"github.com/ent0n29/empathai/internal/users"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	cfg := config.Config{
		JWTSecret:           "test-secret",
		JWTTTL:              time.Hour,
		ContextHistoryLimit: 10,
		SummaryRefreshEvery: 100,
	}

	userStore := users.NewInMemoryStore()
	userSvc := users.NewService(userStore)
	ring := keyring.New(cryptox.NewService(nil), userStore)
	store := memory.NewInMemoryStore()
	adapter := completion.NewMockAdapter()

	sum := summarizer.New(store, ring, adapter, summarizer.Config{})
	sched := summarizer.NewScheduler(sum, cfg.SummaryRefreshEvery, logging.Nop(), nil)
	builder := chat.NewContextBuilder(store, ring, cfg.ContextHistoryLimit, "")
	chatSvc := chat.NewService(store, userSvc, ring, adapter, builder, sched, nil, logging.Nop(), chat.Config{})

	srv := New(cfg, userSvc, chatSvc, moods.NewInMemoryStore(), ring.Enabled(), logging.Nop())
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts
}

func doJSON(t *testing.T, method, url, token string, body any) (*http.Response, map[string]json.RawMessage) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()

	fields := map[string]json.RawMessage{}
	_ = json.NewDecoder(resp.Body).Decode(&fields)
	return resp, fields
}

func registerUser(t *testing.T, base, email string) string {
	t.Helper()
	resp, fields := doJSON(t, http.MethodPost, base+"/v1/auth/register", "", map[string]string{
		"email": email, "name": "Ada", "password": "sekret1",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register status = %d", resp.StatusCode)
	}
	var token string
	if err := json.Unmarshal(fields["token"], &token); err != nil || token == "" {
		t.Fatalf("register returned no token: %v", err)
	}
	return token
}

func startSession(t *testing.T, base, token string) string {
	t.Helper()
	resp, fields := doJSON(t, http.MethodPost, base+"/v1/sessions", token, nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("start session status = %d", resp.StatusCode)
	}
	var id string
	if err := json.Unmarshal(fields["session_id"], &id); err != nil || id == "" {
		t.Fatalf("start session returned no id: %v %s", err, fields["session_id"])
	}
	return id
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t)
	resp, fields := doJSON(t, http.MethodGet, ts.URL+"/healthz", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz status = %d", resp.StatusCode)
	}
	var status string
	if err := json.Unmarshal(fields["status"], &status); err != nil || status != "ok" {
		t.Fatalf("healthz status field = %s", fields["status"])
	}
}

func TestRegisterAndLogin(t *testing.T) {
	ts := newTestServer(t)
	registerUser(t, ts.URL, "ada@example.com")

	resp, _ := doJSON(t, http.MethodPost, ts.URL+"/v1/auth/register", "", map[string]string{
		"email": "ada@example.com", "password": "sekret1",
	})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("duplicate register status = %d, want 409", resp.StatusCode)
	}

	resp, fields := doJSON(t, http.MethodPost, ts.URL+"/v1/auth/login", "", map[string]string{
		"email": "ada@example.com", "password": "sekret1",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status = %d", resp.StatusCode)
	}
	if string(fields["token"]) == "" {
		t.Fatalf("login returned no token")
	}

	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/v1/auth/login", "", map[string]string{
		"email": "ada@example.com", "password": "wrong",
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("bad login status = %d, want 401", resp.StatusCode)
	}
}

func TestAuthRequired(t *testing.T) {
	ts := newTestServer(t)
	for _, tc := range []struct{ method, path string }{
		{http.MethodPost, "/v1/sessions"},
		{http.MethodGet, "/v1/sessions"},
		{http.MethodPost, "/v1/chat/message"},
		{http.MethodPut, "/v1/me/memory"},
		{http.MethodGet, "/v1/moods"},
		{http.MethodPost, "/v1/moods"},
	} {
		resp, _ := doJSON(t, tc.method, ts.URL+tc.path, "", nil)
		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("%s %s status = %d, want 401", tc.method, tc.path, resp.StatusCode)
		}
	}

	resp, _ := doJSON(t, http.MethodPost, ts.URL+"/v1/sessions", "garbage-token", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("bad token status = %d, want 401", resp.StatusCode)
	}
}

func TestChatTurnFlow(t *testing.T) {
	ts := newTestServer(t)
	token := registerUser(t, ts.URL, "ada@example.com")
	sessionID := startSession(t, ts.URL, token)

	resp, fields := doJSON(t, http.MethodPost, ts.URL+"/v1/chat/message", token, map[string]string{
		"session_id": sessionID, "text": "hello there",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("chat message status = %d: %v", resp.StatusCode, fields)
	}
	var reply memory.MessageRecord
	if err := json.Unmarshal(fields["reply"], &reply); err != nil {
		t.Fatalf("decode reply: %v", err)
	}
	if reply.Role != memory.RoleAssistant || reply.Content == "" {
		t.Fatalf("reply = %+v", reply)
	}

	resp, fields = doJSON(t, http.MethodGet, fmt.Sprintf("%s/v1/sessions/%s", ts.URL, sessionID), token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get session status = %d", resp.StatusCode)
	}
	var messages []memory.MessageRecord
	if err := json.Unmarshal(fields["messages"], &messages); err != nil {
		t.Fatalf("decode messages: %v", err)
	}
	if len(messages) != 2 {
		t.Fatalf("session has %d messages, want 2", len(messages))
	}
}

func TestChatMessageValidation(t *testing.T) {
	ts := newTestServer(t)
	token := registerUser(t, ts.URL, "ada@example.com")
	sessionID := startSession(t, ts.URL, token)

	resp, _ := doJSON(t, http.MethodPost, ts.URL+"/v1/chat/message", token, map[string]string{
		"session_id": sessionID, "text": "  ",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("blank text status = %d, want 400", resp.StatusCode)
	}

	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/v1/chat/message", token, map[string]string{
		"session_id": "missing", "text": "hello",
	})
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown session status = %d, want 404", resp.StatusCode)
	}
}

func TestEndedSessionConflict(t *testing.T) {
	ts := newTestServer(t)
	token := registerUser(t, ts.URL, "ada@example.com")
	sessionID := startSession(t, ts.URL, token)

	resp, _ := doJSON(t, http.MethodPost, fmt.Sprintf("%s/v1/sessions/%s/end", ts.URL, sessionID), token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("end session status = %d", resp.StatusCode)
	}

	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/v1/chat/message", token, map[string]string{
		"session_id": sessionID, "text": "anyone?",
	})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("ended session status = %d, want 409", resp.StatusCode)
	}
}

func TestSessionOwnershipScoping(t *testing.T) {
	ts := newTestServer(t)
	ownerToken := registerUser(t, ts.URL, "owner@example.com")
	intruderToken := registerUser(t, ts.URL, "intruder@example.com")
	sessionID := startSession(t, ts.URL, ownerToken)

	resp, _ := doJSON(t, http.MethodGet, fmt.Sprintf("%s/v1/sessions/%s", ts.URL, sessionID), intruderToken, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("foreign session status = %d, want 404", resp.StatusCode)
	}

	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/v1/chat/message", intruderToken, map[string]string{
		"session_id": sessionID, "text": "let me in",
	})
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("foreign chat status = %d, want 404", resp.StatusCode)
	}
}

func TestMoodJournalFlow(t *testing.T) {
	ts := newTestServer(t)
	token := registerUser(t, ts.URL, "ada@example.com")

	resp, _ := doJSON(t, http.MethodPost, ts.URL+"/v1/moods", token, map[string]any{
		"date": "2026-08-30", "mood": "low", "note": "long day", "sentiment": -0.4,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("upsert mood status = %d", resp.StatusCode)
	}

	// Same date again replaces the entry instead of adding a second one.
	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/v1/moods", token, map[string]any{
		"date": "2026-08-30", "mood": "good", "note": "evening walk helped", "sentiment": 0.5,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("replace mood status = %d", resp.StatusCode)
	}

	resp, fields := doJSON(t, http.MethodGet, ts.URL+"/v1/moods", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list moods status = %d", resp.StatusCode)
	}
	var entries []moods.Entry
	if err := json.Unmarshal(fields["moods"], &entries); err != nil {
		t.Fatalf("decode moods: %v", err)
	}
	if len(entries) != 1 || entries[0].Mood != "good" {
		t.Fatalf("moods = %+v, want one replaced entry", entries)
	}

	resp, fields = doJSON(t, http.MethodGet, ts.URL+"/v1/moods/2026-08-30", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get mood status = %d", resp.StatusCode)
	}
	var entry moods.Entry
	if err := json.Unmarshal(fields["mood"], &entry); err != nil {
		t.Fatalf("decode mood: %v", err)
	}
	if entry.Note != "evening walk helped" {
		t.Fatalf("mood entry = %+v", entry)
	}

	resp, _ = doJSON(t, http.MethodDelete, ts.URL+"/v1/moods/2026-08-30", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete mood status = %d", resp.StatusCode)
	}
	resp, _ = doJSON(t, http.MethodGet, ts.URL+"/v1/moods/2026-08-30", token, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("deleted mood status = %d, want 404", resp.StatusCode)
	}
}

func TestMoodValidationAndScoping(t *testing.T) {
	ts := newTestServer(t)
	token := registerUser(t, ts.URL, "ada@example.com")

	for name, body := range map[string]map[string]any{
		"bad date":      {"date": "30/08/2026", "mood": "good"},
		"unknown mood":  {"date": "2026-08-30", "mood": "ecstatic"},
		"sentiment oob": {"date": "2026-08-30", "mood": "good", "sentiment": 2.0},
	} {
		resp, _ := doJSON(t, http.MethodPost, ts.URL+"/v1/moods", token, body)
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("%s status = %d, want 400", name, resp.StatusCode)
		}
	}

	resp, _ := doJSON(t, http.MethodPost, ts.URL+"/v1/moods", token, map[string]any{
		"date": "2026-08-30", "mood": "good",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("upsert mood status = %d", resp.StatusCode)
	}

	// Another user's journal does not see the entry.
	otherToken := registerUser(t, ts.URL, "noa@example.com")
	resp, _ = doJSON(t, http.MethodGet, ts.URL+"/v1/moods/2026-08-30", otherToken, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("foreign mood status = %d, want 404", resp.StatusCode)
	}
}

func TestSetMemoryPreference(t *testing.T) {
	ts := newTestServer(t)
	token := registerUser(t, ts.URL, "ada@example.com")

	resp, fields := doJSON(t, http.MethodPut, ts.URL+"/v1/me/memory", token, map[string]bool{"enabled": false})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("set memory status = %d", resp.StatusCode)
	}
	var enabled bool
	if err := json.Unmarshal(fields["memory_enabled"], &enabled); err != nil || enabled {
		t.Fatalf("memory_enabled = %s, want false", fields["memory_enabled"])
	}
}
