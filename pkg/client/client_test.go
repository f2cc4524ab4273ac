package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
)

func newServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return server
}

func newClient(t *testing.T, baseURL string, opts ...Option) *Client {
	t.Helper()
	opts = append(opts, WithSessionFile(filepath.Join(t.TempDir(), "session")))
	c, err := New(baseURL, opts...)
	if err != nil {
		t.Fatalf("New error = %v", err)
	}
	return c
}

func TestSessionIDPersistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session")

	first, err := New("http://localhost:0", WithSessionFile(path))
	if err != nil {
		t.Fatalf("New error = %v", err)
	}
	if first.SessionID() == "" {
		t.Fatal("SessionID is empty, want generated")
	}

	second, err := New("http://localhost:0", WithSessionFile(path))
	if err != nil {
		t.Fatalf("New error = %v", err)
	}
	if second.SessionID() != first.SessionID() {
		t.Errorf("SessionID = %s on reload, want %s", second.SessionID(), first.SessionID())
	}
}

func TestResetSession(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session")

	c, err := New("http://localhost:0", WithSessionFile(path))
	if err != nil {
		t.Fatalf("New error = %v", err)
	}
	old := c.SessionID()

	if err := c.ResetSession(); err != nil {
		t.Fatalf("ResetSession error = %v", err)
	}
	if c.SessionID() == old {
		t.Error("SessionID unchanged after reset")
	}

	reloaded, err := New("http://localhost:0", WithSessionFile(path))
	if err != nil {
		t.Fatalf("New error = %v", err)
	}
	if reloaded.SessionID() != c.SessionID() {
		t.Errorf("SessionID = %s on reload, want the reset id %s", reloaded.SessionID(), c.SessionID())
	}
}

func TestChat(t *testing.T) {
	var gotReq chatRequest
	var gotAuth string

	server := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" || r.Method != http.MethodPost {
			t.Errorf("request = %s %s, want POST /api/chat", r.Method, r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(ChatResponse{
			SessionID:  gotReq.SessionID,
			TurnNumber: 1,
			Response:   "hello back",
		})
	})

	c := newClient(t, server.URL, WithToken("tok"))
	resp, err := c.Chat(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Chat error = %v", err)
	}

	if gotReq.SessionID != c.SessionID() {
		t.Errorf("sent session_id = %s, want %s", gotReq.SessionID, c.SessionID())
	}
	if gotReq.Message != "hello" {
		t.Errorf("sent message = %q, want %q", gotReq.Message, "hello")
	}
	if gotAuth != "Bearer tok" {
		t.Errorf("Authorization = %q, want %q", gotAuth, "Bearer tok")
	}
	if resp.Response != "hello back" || resp.TurnNumber != 1 {
		t.Errorf("response = %+v, want turn 1 with %q", resp, "hello back")
	}
}

func TestHistory(t *testing.T) {
	server := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("limit"); got != "5" {
			t.Errorf("limit = %q, want 5", got)
		}
		json.NewEncoder(w).Encode(historyResponse{
			History: []Turn{{TurnNumber: 1}, {TurnNumber: 2}},
			Count:   2,
		})
	})

	c := newClient(t, server.URL)
	history, err := c.History(context.Background(), 5)
	if err != nil {
		t.Fatalf("History error = %v", err)
	}
	if len(history) != 2 {
		t.Errorf("len(history) = %d, want 2", len(history))
	}
}

func TestHistory_NullBecomesEmpty(t *testing.T) {
	server := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"session_id":"s1","history":null,"count":0}`))
	})

	c := newClient(t, server.URL)
	history, err := c.History(context.Background(), 0)
	if err != nil {
		t.Fatalf("History error = %v", err)
	}
	if history == nil {
		t.Fatal("history = nil, want empty slice")
	}
	if len(history) != 0 {
		t.Errorf("len(history) = %d, want 0", len(history))
	}
}

func TestAPIError(t *testing.T) {
	server := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/problem+json")
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"type":"conflict","title":"Conflict","status":409,"detail":"turn 3 already exists"}`))
	})

	c := newClient(t, server.URL)
	_, err := c.Chat(context.Background(), "hello")
	if err == nil {
		t.Fatal("Chat error = nil, want APIError")
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %T, want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusConflict {
		t.Errorf("StatusCode = %d, want 409", apiErr.StatusCode)
	}
	if apiErr.Detail != "turn 3 already exists" {
		t.Errorf("Detail = %q, want the problem detail", apiErr.Detail)
	}
}

func TestAPIError_RawBodyFallback(t *testing.T) {
	server := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "plain text failure", http.StatusInternalServerError)
	})

	c := newClient(t, server.URL)
	_, err := c.Chat(context.Background(), "hello")

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %T, want *APIError", err)
	}
	if apiErr.Detail != "plain text failure" {
		t.Errorf("Detail = %q, want the raw body", apiErr.Detail)
	}
}

func TestHealth_UnreachableServer(t *testing.T) {
	server := newServer(t, func(w http.ResponseWriter, r *http.Request) {})
	url := server.URL
	server.Close()

	c := newClient(t, url)
	health := c.Health(context.Background())
	if health.Status != "unhealthy" {
		t.Errorf("Status = %q, want unhealthy", health.Status)
	}
	if health.DatabaseConnected {
		t.Error("DatabaseConnected = true for unreachable server, want false")
	}
}

func TestHealth(t *testing.T) {
	server := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(HealthResponse{Status: "healthy", DatabaseConnected: true})
	})

	c := newClient(t, server.URL)
	health := c.Health(context.Background())
	if health.Status != "healthy" || !health.DatabaseConnected {
		t.Errorf("health = %+v, want healthy and connected", health)
	}
}

func TestSessions(t *testing.T) {
	server := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("user_id"); got != "alice" {
			t.Errorf("user_id = %q, want alice", got)
		}
		json.NewEncoder(w).Encode(sessionsResponse{
			Sessions: []Session{{SessionID: "s1", TotalTurns: 2}},
			Count:    1,
		})
	})

	c := newClient(t, server.URL)
	sessions, err := c.Sessions(context.Background(), "alice")
	if err != nil {
		t.Fatalf("Sessions error = %v", err)
	}
	if len(sessions) != 1 || sessions[0].SessionID != "s1" {
		t.Errorf("sessions = %+v, want one s1 entry", sessions)
	}
}

func TestOpaqueIDsEscaped(t *testing.T) {
	const sessionID = "tenant/42?v=1"

	var gotPath, gotUserID string
	server := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		gotUserID = r.URL.Query().Get("user_id")
		w.Write([]byte(`{}`))
	})

	c := newClient(t, server.URL, WithSessionID(sessionID))

	t.Run("session id in path", func(t *testing.T) {
		if _, err := c.History(context.Background(), 0); err != nil {
			t.Fatalf("History error = %v", err)
		}
		want := "/api/sessions/tenant%2F42%3Fv=1/history"
		if gotPath != want {
			t.Errorf("path = %q, want %q", gotPath, want)
		}
	})

	t.Run("user id in query", func(t *testing.T) {
		if _, err := c.Sessions(context.Background(), "a&b=c"); err != nil {
			t.Fatalf("Sessions error = %v", err)
		}
		if gotUserID != "a&b=c" {
			t.Errorf("user_id = %q, want %q (round-tripped intact)", gotUserID, "a&b=c")
		}
	})
}

func TestSessionContext(t *testing.T) {
	server := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/sessions/s1" {
			t.Errorf("path = %s, want /api/sessions/s1", r.URL.Path)
		}
		avg := 6.0
		json.NewEncoder(w).Encode(SessionContext{
			Session: Session{SessionID: "s1", TotalTurns: 2, HadSafetyFlag: true},
			Stats:   SessionStats{AvgAnxiety: &avg},
			History: []Turn{{TurnNumber: 1}, {TurnNumber: 2}},
		})
	})

	c := newClient(t, server.URL)
	result, err := c.SessionContext(context.Background(), "s1")
	if err != nil {
		t.Fatalf("SessionContext error = %v", err)
	}
	if result.Session.TotalTurns != 2 || !result.Session.HadSafetyFlag {
		t.Errorf("session = %+v, want 2 turns with safety flag", result.Session)
	}
	if result.Stats.AvgAnxiety == nil || *result.Stats.AvgAnxiety != 6.0 {
		t.Errorf("AvgAnxiety = %v, want 6.0", result.Stats.AvgAnxiety)
	}
}
