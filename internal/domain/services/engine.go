package services

import (
	"context"

	"mindmoney/internal/domain/models"
)

// EngineRequest is the input to one orchestration run: the user's new
// message plus the prior turns the engine may condition on.
type EngineRequest struct {
	SessionID string
	Message   string
	History   []models.Turn
}

// EngineLog is one reasoning step reported by the engine. The service
// layer turns these into persisted AgentLog records.
type EngineLog struct {
	AgentName     string
	ModelUsed     *string
	InputSummary  string
	OutputSummary string
	DecisionMade  *string
	DurationMs    *int
	TokensUsed    *int
}

// EngineResult is the engine's output for a single exchange.
type EngineResult struct {
	Response string
	Metrics  models.TurnMetrics
	Logs     []EngineLog
}

// Engine produces, per user turn, one assistant response, zero or more
// per-agent log entries, and structured metrics. The real engine lives
// behind a network boundary; implementations must return
// ErrUpstreamUnavailable when it cannot be reached.
type Engine interface {
	Respond(ctx context.Context, req *EngineRequest) (*EngineResult, error)
}
