package models

import (
	"time"
)

// AgentLog records one internal reasoning step taken by the orchestration
// engine while producing a turn's response. Logs are append-only and
// immutable; many logs may exist per turn, ordered by insertion.
type AgentLog struct {
	ID            string    `json:"id" db:"id"`
	SessionID     string    `json:"session_id" db:"session_id"`
	TurnID        *string   `json:"turn_id,omitempty" db:"turn_id"` // nil when logged outside a recorded turn
	AgentName     string    `json:"agent_name" db:"agent_name"`
	ModelUsed     *string   `json:"model_used,omitempty" db:"model_used"`
	InputSummary  string    `json:"input_summary" db:"input_summary"`
	OutputSummary string    `json:"output_summary" db:"output_summary"`
	DecisionMade  *string   `json:"decision_made,omitempty" db:"decision_made"` // audit/debugging free text
	DurationMs    *int      `json:"duration_ms,omitempty" db:"duration_ms"`
	TokensUsed    *int      `json:"tokens_used,omitempty" db:"tokens_used"`
	UserID        *string   `json:"user_id,omitempty" db:"user_id"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}
