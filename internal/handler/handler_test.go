package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"mindmoney/internal/agents"
	"mindmoney/internal/auth"
	"mindmoney/internal/domain"
	"mindmoney/internal/domain/models"
	"mindmoney/internal/domain/services"
	"mindmoney/internal/middleware"
	"mindmoney/internal/repository/memory"
	"mindmoney/internal/service/conversation"
	"mindmoney/internal/service/orchestrator"
)

// stubVerifier accepts any token of the form "user:<id>"
type stubVerifier struct{}

func (stubVerifier) VerifyToken(token string) (*models.IdentityClaims, error) {
	var userID string
	if _, err := fmt.Sscanf(token, "user:%s", &userID); err != nil {
		return nil, fmt.Errorf("bad token")
	}
	claims := &models.IdentityClaims{}
	claims.Subject = userID
	return claims, nil
}

func (stubVerifier) Close() error { return nil }

// failingEngine always reports the upstream as unavailable
type failingEngine struct{}

func (failingEngine) Respond(ctx context.Context, req *services.EngineRequest) (*services.EngineResult, error) {
	return nil, fmt.Errorf("engine request failed: %w", domain.ErrUpstreamUnavailable)
}

func newTestServer(t *testing.T, engine services.Engine) *httptest.Server {
	t.Helper()

	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	roster, err := agents.NewRegistry()
	if err != nil {
		t.Fatalf("NewRegistry error = %v", err)
	}

	store := memory.NewStore(logger)
	conversations := conversation.NewService(store, memory.NewTransactionManager(), roster, logger)

	if engine == nil {
		engine = orchestrator.NewScriptedEngine(roster)
	}

	chatHandler := NewChatHandler(conversations, engine, logger)
	sessionHandler := NewSessionHandler(conversations, logger)
	healthHandler := NewHealthHandler(store, roster, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", healthHandler.APIInfo)
	mux.HandleFunc("GET /health", healthHandler.HealthCheck)
	mux.HandleFunc("POST /api/chat", chatHandler.Chat)
	mux.HandleFunc("GET /api/sessions", sessionHandler.ListSessions)
	mux.HandleFunc("GET /api/sessions/{id}", sessionHandler.GetSession)
	mux.HandleFunc("GET /api/sessions/{id}/history", sessionHandler.GetHistory)
	mux.HandleFunc("GET /api/sessions/{id}/logs", sessionHandler.GetLogs)

	var root http.Handler = mux
	root = middleware.Auth(stubVerifier{})(root)
	root = middleware.Recovery(logger)(root)

	server := httptest.NewServer(root)
	t.Cleanup(server.Close)
	return server
}

func doJSON(t *testing.T, server *httptest.Server, method, path, token string, body any) (*http.Response, []byte) {
	t.Helper()

	var reqBody io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequest(method, server.URL+path, reqBody)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := server.Client().Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read response: %v", err)
	}
	return resp, data
}

func TestChatFlow(t *testing.T) {
	server := newTestServer(t, nil)

	// Two exchanges on the same session
	for want := 1; want <= 2; want++ {
		resp, data := doJSON(t, server, http.MethodPost, "/api/chat", "", ChatRequest{
			SessionID: "s1",
			Message:   fmt.Sprintf("message %d about my rent", want),
		})
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("chat status = %d, body %s", resp.StatusCode, data)
		}

		var chat ChatResponse
		if err := json.Unmarshal(data, &chat); err != nil {
			t.Fatalf("unmarshal chat response: %v", err)
		}
		if chat.TurnNumber != want {
			t.Errorf("TurnNumber = %d, want %d", chat.TurnNumber, want)
		}
		if chat.Response == "" {
			t.Error("Response is empty")
		}
		if len(chat.AgentLogs) != 3 {
			t.Errorf("len(AgentLogs) = %d, want 3", len(chat.AgentLogs))
		}
	}

	t.Run("history", func(t *testing.T) {
		resp, data := doJSON(t, server, http.MethodGet, "/api/sessions/s1/history", "", nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("history status = %d, body %s", resp.StatusCode, data)
		}
		var history HistoryResponse
		if err := json.Unmarshal(data, &history); err != nil {
			t.Fatalf("unmarshal history: %v", err)
		}
		if history.Count != 2 || len(history.History) != 2 {
			t.Fatalf("history count = %d (%d turns), want 2", history.Count, len(history.History))
		}
		if history.History[0].TurnNumber != 1 || history.History[1].TurnNumber != 2 {
			t.Errorf("turn order = [%d, %d], want [1, 2]",
				history.History[0].TurnNumber, history.History[1].TurnNumber)
		}
	})

	t.Run("history limit", func(t *testing.T) {
		resp, data := doJSON(t, server, http.MethodGet, "/api/sessions/s1/history?limit=1", "", nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("history status = %d, body %s", resp.StatusCode, data)
		}
		var history HistoryResponse
		if err := json.Unmarshal(data, &history); err != nil {
			t.Fatalf("unmarshal history: %v", err)
		}
		if len(history.History) != 1 || history.History[0].TurnNumber != 2 {
			t.Errorf("limited history = %+v, want only turn 2", history.History)
		}
	})

	t.Run("session context", func(t *testing.T) {
		resp, data := doJSON(t, server, http.MethodGet, "/api/sessions/s1", "", nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("session status = %d, body %s", resp.StatusCode, data)
		}
		var result models.SessionContext
		if err := json.Unmarshal(data, &result); err != nil {
			t.Fatalf("unmarshal session context: %v", err)
		}
		if result.Session.TotalTurns != 2 {
			t.Errorf("TotalTurns = %d, want 2", result.Session.TotalTurns)
		}
		if len(result.Logs) != 6 {
			t.Errorf("len(Logs) = %d, want 6", len(result.Logs))
		}
	})

	t.Run("logs", func(t *testing.T) {
		resp, data := doJSON(t, server, http.MethodGet, "/api/sessions/s1/logs", "", nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("logs status = %d, body %s", resp.StatusCode, data)
		}
		var logs LogsResponse
		if err := json.Unmarshal(data, &logs); err != nil {
			t.Fatalf("unmarshal logs: %v", err)
		}
		if logs.Count != 6 {
			t.Errorf("logs count = %d, want 6", logs.Count)
		}
	})
}

func TestChat_Validation(t *testing.T) {
	server := newTestServer(t, nil)

	tests := []struct {
		name string
		body ChatRequest
	}{
		{name: "missing session_id", body: ChatRequest{Message: "hello"}},
		{name: "missing message", body: ChatRequest{SessionID: "s1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, _ := doJSON(t, server, http.MethodPost, "/api/chat", "", tt.body)
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", resp.StatusCode)
			}
		})
	}
}

func TestChat_EngineDown(t *testing.T) {
	server := newTestServer(t, failingEngine{})

	resp, data := doJSON(t, server, http.MethodPost, "/api/chat", "", ChatRequest{
		SessionID: "s1",
		Message:   "hello",
	})
	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502, body %s", resp.StatusCode, data)
	}

	// Nothing may be recorded when the engine fails
	resp, data = doJSON(t, server, http.MethodGet, "/api/sessions/s1/history", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("history status = %d", resp.StatusCode)
	}
	var history HistoryResponse
	if err := json.Unmarshal(data, &history); err != nil {
		t.Fatalf("unmarshal history: %v", err)
	}
	if history.Count != 0 {
		t.Errorf("history count = %d after failed exchange, want 0", history.Count)
	}
}

// racingService simulates a concurrent chat winning the computed turn
// number: the first RecordExchange records a competing turn before
// delegating, so the delegated insert hits the duplicate.
type racingService struct {
	services.ConversationService
	raced bool
}

func (s *racingService) RecordExchange(ctx context.Context, caller string, req *services.RecordTurnRequest, logs []services.RecordLogRequest) (*models.Turn, []models.AgentLog, error) {
	if !s.raced {
		s.raced = true
		competing := *req
		competing.UserMessage = "competing message"
		if _, _, err := s.ConversationService.RecordExchange(ctx, caller, &competing, nil); err != nil {
			return nil, nil, err
		}
	}
	return s.ConversationService.RecordExchange(ctx, caller, req, logs)
}

func TestChat_TurnNumberRaceRetried(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	roster, err := agents.NewRegistry()
	if err != nil {
		t.Fatalf("NewRegistry error = %v", err)
	}
	store := memory.NewStore(logger)
	inner := conversation.NewService(store, memory.NewTransactionManager(), roster, logger)
	chatHandler := NewChatHandler(&racingService{ConversationService: inner}, orchestrator.NewScriptedEngine(roster), logger)

	body, err := json.Marshal(ChatRequest{SessionID: "s1", Message: "hello"})
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	rec := httptest.NewRecorder()
	chatHandler.Chat(rec, httptest.NewRequest(http.MethodPost, "/api/chat", bytes.NewReader(body)))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body %s", rec.Code, rec.Body.String())
	}
	var chat ChatResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &chat); err != nil {
		t.Fatalf("unmarshal chat response: %v", err)
	}
	// The competing exchange took turn 1; the retried recording lands on 2
	if chat.TurnNumber != 2 {
		t.Errorf("TurnNumber = %d, want 2", chat.TurnNumber)
	}
}

func TestChat_ForeignUserIDRejected(t *testing.T) {
	server := newTestServer(t, nil)

	resp, _ := doJSON(t, server, http.MethodPost, "/api/chat", "user:alice", ChatRequest{
		SessionID: "s1",
		Message:   "hello",
		UserID:    "bob",
	})
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("status = %d, want 403", resp.StatusCode)
	}
}

func TestSessions_Visibility(t *testing.T) {
	server := newTestServer(t, nil)

	// Alice's session, then an anonymous one
	resp, data := doJSON(t, server, http.MethodPost, "/api/chat", "user:alice", ChatRequest{
		SessionID: "alice-session",
		Message:   "hello from alice",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("chat status = %d, body %s", resp.StatusCode, data)
	}
	resp, data = doJSON(t, server, http.MethodPost, "/api/chat", "", ChatRequest{
		SessionID: "anon-session",
		Message:   "hello anonymously",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("chat status = %d, body %s", resp.StatusCode, data)
	}

	t.Run("alice sees both", func(t *testing.T) {
		resp, data := doJSON(t, server, http.MethodGet, "/api/sessions", "user:alice", nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d", resp.StatusCode)
		}
		var sessions SessionsResponse
		if err := json.Unmarshal(data, &sessions); err != nil {
			t.Fatalf("unmarshal sessions: %v", err)
		}
		if sessions.Count != 2 {
			t.Errorf("count = %d, want 2", sessions.Count)
		}
	})

	t.Run("anonymous sees only anonymous", func(t *testing.T) {
		resp, data := doJSON(t, server, http.MethodGet, "/api/sessions", "", nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d", resp.StatusCode)
		}
		var sessions SessionsResponse
		if err := json.Unmarshal(data, &sessions); err != nil {
			t.Fatalf("unmarshal sessions: %v", err)
		}
		if sessions.Count != 1 || sessions.Sessions[0].SessionID != "anon-session" {
			t.Errorf("sessions = %+v, want only anon-session", sessions.Sessions)
		}
	})

	t.Run("conflicting user_id param is forbidden", func(t *testing.T) {
		resp, _ := doJSON(t, server, http.MethodGet, "/api/sessions?user_id=bob", "user:alice", nil)
		if resp.StatusCode != http.StatusForbidden {
			t.Errorf("status = %d, want 403", resp.StatusCode)
		}
	})

	t.Run("foreign session context is forbidden", func(t *testing.T) {
		resp, _ := doJSON(t, server, http.MethodGet, "/api/sessions/alice-session", "user:bob", nil)
		if resp.StatusCode != http.StatusForbidden {
			t.Errorf("status = %d, want 403", resp.StatusCode)
		}
	})
}

func TestSession_NotFound(t *testing.T) {
	server := newTestServer(t, nil)

	resp, _ := doJSON(t, server, http.MethodGet, "/api/sessions/never-seen", "", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestHistory_BadLimit(t *testing.T) {
	server := newTestServer(t, nil)

	for _, limit := range []string{"0", "-1", "abc"} {
		resp, _ := doJSON(t, server, http.MethodGet, "/api/sessions/s1/history?limit="+limit, "", nil)
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("limit=%s: status = %d, want 400", limit, resp.StatusCode)
		}
	}
}

func TestAuth_InvalidTokenRejected(t *testing.T) {
	server := newTestServer(t, nil)

	req, err := http.NewRequest(http.MethodGet, server.URL+"/api/sessions", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Authorization", "NotBearer junk")

	resp, err := server.Client().Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}
}

func TestHealth(t *testing.T) {
	server := newTestServer(t, nil)

	resp, data := doJSON(t, server, http.MethodGet, "/health", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var health HealthResponse
	if err := json.Unmarshal(data, &health); err != nil {
		t.Fatalf("unmarshal health: %v", err)
	}
	if health.Status != "healthy" || !health.DatabaseConnected {
		t.Errorf("health = %+v, want healthy and connected", health)
	}
}

func TestAPIInfo(t *testing.T) {
	server := newTestServer(t, nil)

	resp, data := doJSON(t, server, http.MethodGet, "/", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var info APIInfoResponse
	if err := json.Unmarshal(data, &info); err != nil {
		t.Fatalf("unmarshal info: %v", err)
	}
	if info.Name != "MindMoney API" {
		t.Errorf("Name = %q, want %q", info.Name, "MindMoney API")
	}
	if len(info.Agents) != 3 {
		t.Errorf("len(Agents) = %d, want 3", len(info.Agents))
	}
}

var _ auth.TokenVerifier = stubVerifier{}
var _ services.Engine = failingEngine{}
