// Package client is a Go client for the MindMoney conversation API.
//
// The client keeps a stable session ID across runs by persisting it to a
// small state file, mirroring how the web front end keeps the ID in
// browser local storage. A fresh ID is generated when no file exists.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	defaultTimeout = 90 * time.Second

	// maxBodyBytes caps how much of a response body is read
	maxBodyBytes = 4 << 20
)

// APIError is a non-2xx response from the server. Detail carries the
// problem detail text when the server sent one, otherwise the raw body.
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Detail)
}

// Client talks to a MindMoney server
type Client struct {
	baseURL     string
	httpClient  *http.Client
	token       string
	sessionFile string
	sessionID   string
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithToken sets a bearer token sent on every request
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithSessionFile sets the path of the session state file
func WithSessionFile(path string) Option {
	return func(c *Client) { c.sessionFile = path }
}

// WithSessionID pins the session ID, bypassing the state file
func WithSessionID(id string) Option {
	return func(c *Client) { c.sessionID = id }
}

// New creates a client for the server at baseURL. The session ID is
// loaded from the state file, or generated and persisted when absent.
func New(baseURL string, opts ...Option) (*Client, error) {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.sessionID == "" {
		if c.sessionFile == "" {
			c.sessionFile = defaultSessionFile()
		}
		id, err := loadOrCreateSessionID(c.sessionFile)
		if err != nil {
			return nil, fmt.Errorf("session state: %w", err)
		}
		c.sessionID = id
	}

	return c, nil
}

// SessionID returns the session ID used for chat and history calls
func (c *Client) SessionID() string {
	return c.sessionID
}

// ResetSession discards the current session ID and persists a new one,
// starting a fresh conversation.
func (c *Client) ResetSession() error {
	id := uuid.NewString()
	if c.sessionFile != "" {
		if err := os.WriteFile(c.sessionFile, []byte(id+"\n"), 0o600); err != nil {
			return fmt.Errorf("session state: %w", err)
		}
	}
	c.sessionID = id
	return nil
}

// Chat sends one user message and returns the assistant's response
// along with the recorded metrics and agent logs.
func (c *Client) Chat(ctx context.Context, message string) (*ChatResponse, error) {
	body := chatRequest{
		SessionID: c.sessionID,
		Message:   message,
	}

	var out ChatResponse
	if err := c.do(ctx, http.MethodPost, "/api/chat", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// History returns up to limit most recent turns of the current session
// in ascending turn order. A session the server has never seen yields
// an empty history, not an error.
func (c *Client) History(ctx context.Context, limit int) ([]Turn, error) {
	path := "/api/sessions/" + url.PathEscape(c.sessionID) + "/history"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}

	var out historyResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	if out.History == nil {
		out.History = []Turn{}
	}
	return out.History, nil
}

// Logs returns the agent logs of the current session
func (c *Client) Logs(ctx context.Context) ([]AgentLog, error) {
	var out logsResponse
	if err := c.do(ctx, http.MethodGet, "/api/sessions/"+url.PathEscape(c.sessionID)+"/logs", nil, &out); err != nil {
		return nil, err
	}
	if out.Logs == nil {
		out.Logs = []AgentLog{}
	}
	return out.Logs, nil
}

// Sessions lists the sessions visible to the caller. userID is only
// meaningful for unauthenticated clients; authenticated clients are
// scoped by their token.
func (c *Client) Sessions(ctx context.Context, userID string) ([]Session, error) {
	path := "/api/sessions"
	if userID != "" {
		path += "?user_id=" + url.QueryEscape(userID)
	}

	var out sessionsResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	if out.Sessions == nil {
		out.Sessions = []Session{}
	}
	return out.Sessions, nil
}

// SessionContext returns the full context of one session: the session
// row, derived stats, recent history and agent logs.
func (c *Client) SessionContext(ctx context.Context, sessionID string) (*SessionContext, error) {
	var out SessionContext
	if err := c.do(ctx, http.MethodGet, "/api/sessions/"+url.PathEscape(sessionID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Health reports server health. An unreachable server is reported as
// unhealthy rather than returned as an error, so callers can render a
// status either way.
func (c *Client) Health(ctx context.Context) *HealthResponse {
	var out HealthResponse
	if err := c.do(ctx, http.MethodGet, "/health", nil, &out); err != nil {
		return &HealthResponse{Status: "unhealthy", DatabaseConnected: false}
	}
	return &out
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{
			StatusCode: resp.StatusCode,
			Detail:     problemDetail(data),
		}
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// problemDetail extracts the detail field from an RFC 7807 body,
// falling back to the raw body text.
func problemDetail(data []byte) string {
	var problem struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(data, &problem); err == nil && problem.Detail != "" {
		return problem.Detail
	}
	return strings.TrimSpace(string(data))
}

func defaultSessionFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".mindmoney-session"
	}
	return filepath.Join(dir, "mindmoney", "session")
}

func loadOrCreateSessionID(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		if id := strings.TrimSpace(string(data)); id != "" {
			return id, nil
		}
	} else if !os.IsNotExist(err) {
		return "", err
	}

	id := uuid.NewString()
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, []byte(id+"\n"), 0o600); err != nil {
		return "", err
	}
	return id, nil
}
