package handler

import (
	"mindmoney/internal/agents"
	"mindmoney/internal/domain/models"
)

// ChatRequest is the incoming chat request from a front end
type ChatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
	UserID    string `json:"user_id,omitempty"`
}

// ChatResponse is the final chat response to a front end
type ChatResponse struct {
	SessionID  string             `json:"session_id"`
	TurnNumber int                `json:"turn_number"`
	Response   string             `json:"response"`
	AgentLogs  []models.AgentLog  `json:"agent_logs"`
	Metrics    models.TurnMetrics `json:"metrics"`
}

// SessionsResponse wraps the session list
type SessionsResponse struct {
	Sessions []models.Session `json:"sessions"`
	Count    int              `json:"count"`
}

// HistoryResponse wraps a session's conversation history
type HistoryResponse struct {
	SessionID string        `json:"session_id"`
	History   []models.Turn `json:"history"`
	Count     int           `json:"count"`
}

// LogsResponse wraps a session's agent logs
type LogsResponse struct {
	SessionID string            `json:"session_id"`
	Logs      []models.AgentLog `json:"logs"`
	Count     int               `json:"count"`
}

// HealthResponse reports service health. Status is "healthy" or
// "degraded"; transport-level failure never surfaces here.
type HealthResponse struct {
	Status            string `json:"status"`
	DatabaseConnected bool   `json:"database_connected"`
}

// APIInfoResponse describes the service and its agent roster
type APIInfoResponse struct {
	Name        string         `json:"name"`
	Version     string         `json:"version"`
	Description string         `json:"description"`
	Agents      []agents.Agent `json:"agents"`
}
