package client

import "time"

// Session is one continuous conversation as reported by the server
type Session struct {
	SessionID      string    `json:"session_id"`
	UserID         *string   `json:"user_id,omitempty"`
	FirstMessageAt time.Time `json:"first_message_at"`
	LastMessageAt  time.Time `json:"last_message_at"`
	TotalTurns     int       `json:"total_turns"`
	HadSafetyFlag  bool      `json:"had_safety_flag"`
	UserAgent      *string   `json:"user_agent,omitempty"`
}

// Turn is one user-message/assistant-response exchange
type Turn struct {
	ID            string    `json:"id"`
	SessionID     string    `json:"session_id"`
	TurnNumber    int       `json:"turn_number"`
	UserMessage   string    `json:"user_message"`
	AssistantResp string    `json:"assistant_response"`
	IntakeAnxiety *int      `json:"intake_anxiety,omitempty"`
	IntakeShame   *int      `json:"intake_shame,omitempty"`
	SafetyFlag    bool      `json:"safety_flag"`
	StrategyMode  *string   `json:"strategy_mode,omitempty"`
	EntitiesCount int       `json:"entities_count"`
	UserID        *string   `json:"user_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// AgentLog is one recorded orchestration step
type AgentLog struct {
	ID            string    `json:"id"`
	SessionID     string    `json:"session_id"`
	TurnID        *string   `json:"turn_id,omitempty"`
	AgentName     string    `json:"agent_name"`
	ModelUsed     *string   `json:"model_used,omitempty"`
	InputSummary  string    `json:"input_summary"`
	OutputSummary string    `json:"output_summary"`
	DecisionMade  *string   `json:"decision_made,omitempty"`
	DurationMs    *int      `json:"duration_ms,omitempty"`
	TokensUsed    *int      `json:"tokens_used,omitempty"`
	UserID        *string   `json:"user_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// TurnMetrics carries the structured per-turn engine metrics
type TurnMetrics struct {
	IntakeAnxiety *int    `json:"intake_anxiety,omitempty"`
	IntakeShame   *int    `json:"intake_shame,omitempty"`
	SafetyFlag    bool    `json:"safety_flag"`
	StrategyMode  *string `json:"strategy_mode,omitempty"`
	EntitiesCount int     `json:"entities_count"`
}

// SessionStats holds the derived per-session aggregates
type SessionStats struct {
	AvgAnxiety         *float64 `json:"avg_anxiety,omitempty"`
	AvgShame           *float64 `json:"avg_shame,omitempty"`
	MaxAnxiety         *int     `json:"max_anxiety,omitempty"`
	MostCommonStrategy *string  `json:"most_common_strategy,omitempty"`
}

// SessionContext is the full read model for one session
type SessionContext struct {
	Session Session      `json:"session"`
	Stats   SessionStats `json:"stats"`
	History []Turn       `json:"history"`
	Logs    []AgentLog   `json:"logs"`
}

// ChatResponse is the server's reply to one chat exchange
type ChatResponse struct {
	SessionID  string      `json:"session_id"`
	TurnNumber int         `json:"turn_number"`
	Response   string      `json:"response"`
	AgentLogs  []AgentLog  `json:"agent_logs"`
	Metrics    TurnMetrics `json:"metrics"`
}

// HealthResponse reports server health
type HealthResponse struct {
	Status            string `json:"status"`
	DatabaseConnected bool   `json:"database_connected"`
}

type chatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
	UserID    string `json:"user_id,omitempty"`
}

type sessionsResponse struct {
	Sessions []Session `json:"sessions"`
	Count    int       `json:"count"`
}

type historyResponse struct {
	SessionID string `json:"session_id"`
	History   []Turn `json:"history"`
	Count     int    `json:"count"`
}

type logsResponse struct {
	SessionID string     `json:"session_id"`
	Logs      []AgentLog `json:"logs"`
	Count     int        `json:"count"`
}
