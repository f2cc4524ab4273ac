package orchestrator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"mindmoney/internal/domain"
	"mindmoney/internal/domain/models"
	"mindmoney/internal/domain/services"
)

// RemoteEngine relays exchanges to the real orchestration engine over
// HTTP. The store never waits on model inference itself; the engine call
// happens before anything is written, so slow upstreams cannot hold
// store transactions open.
type RemoteEngine struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// NewRemoteEngine creates a relay to the engine at baseURL
func NewRemoteEngine(baseURL string, logger *slog.Logger) services.Engine {
	return &RemoteEngine{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: 60 * time.Second,
		},
		logger: logger,
	}
}

// engineRequest is the wire shape sent to the upstream engine.
type engineRequest struct {
	SessionID string        `json:"session_id"`
	Message   string        `json:"message"`
	History   []historyTurn `json:"history,omitempty"`
}

type historyTurn struct {
	TurnNumber    int    `json:"turn_number"`
	UserMessage   string `json:"user_message"`
	AssistantResp string `json:"assistant_response"`
}

// engineResponse is the wire shape produced by the upstream engine.
type engineResponse struct {
	Response string             `json:"response"`
	Metrics  models.TurnMetrics `json:"metrics"`
	Logs     []engineLogEntry   `json:"agent_logs"`
}

type engineLogEntry struct {
	AgentName     string  `json:"agent_name"`
	ModelUsed     *string `json:"model_used,omitempty"`
	InputSummary  string  `json:"input_summary"`
	OutputSummary string  `json:"output_summary"`
	DecisionMade  *string `json:"decision_made,omitempty"`
	DurationMs    *int    `json:"duration_ms,omitempty"`
	TokensUsed    *int    `json:"tokens_used,omitempty"`
}

// Respond forwards the exchange to the upstream engine. A transport
// failure maps to ErrUpstreamUnavailable; a non-2xx status surfaces the
// response body text as the error detail.
func (e *RemoteEngine) Respond(ctx context.Context, req *services.EngineRequest) (*services.EngineResult, error) {
	payload := engineRequest{
		SessionID: req.SessionID,
		Message:   req.Message,
	}
	for _, turn := range req.History {
		payload.History = append(payload.History, historyTurn{
			TurnNumber:    turn.TurnNumber,
			UserMessage:   turn.UserMessage,
			AssistantResp: turn.AssistantResp,
		})
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal engine request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build engine request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(httpReq)
	if err != nil {
		e.logger.Warn("engine unreachable", "url", e.baseURL, "error", err)
		return nil, fmt.Errorf("engine request failed: %w", domain.ErrUpstreamUnavailable)
	}
	defer resp.Body.Close()

	// Bound the response read; engine responses are small.
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read engine response: %w", domain.ErrUpstreamUnavailable)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail := strings.TrimSpace(string(raw))
		if detail == "" {
			detail = resp.Status
		}
		return nil, fmt.Errorf("engine returned %d: %s: %w", resp.StatusCode, detail, domain.ErrUpstreamUnavailable)
	}

	var parsed engineResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("decode engine response: %w", err)
	}
	if parsed.Response == "" {
		return nil, fmt.Errorf("engine returned an empty response")
	}

	result := &services.EngineResult{
		Response: parsed.Response,
		Metrics:  parsed.Metrics,
	}
	for _, entry := range parsed.Logs {
		result.Logs = append(result.Logs, services.EngineLog{
			AgentName:     entry.AgentName,
			ModelUsed:     entry.ModelUsed,
			InputSummary:  entry.InputSummary,
			OutputSummary: entry.OutputSummary,
			DecisionMade:  entry.DecisionMade,
			DurationMs:    entry.DurationMs,
			TokensUsed:    entry.TokensUsed,
		})
	}

	return result, nil
}
