package models

import (
	"time"
)

// Turn represents one user-message/assistant-response exchange within a
// session. The natural key is (session_id, turn_number); a duplicate
// insert for the same pair is rejected. Turns are immutable after
// creation and never updated or deleted in normal operation.
type Turn struct {
	ID            string        `json:"id" db:"id"`
	SessionID     string        `json:"session_id" db:"session_id"`
	TurnNumber    int           `json:"turn_number" db:"turn_number"`
	UserMessage   string        `json:"user_message" db:"user_message"`
	AssistantResp string        `json:"assistant_response" db:"assistant_response"`
	IntakeAnxiety *int          `json:"intake_anxiety,omitempty" db:"intake_anxiety"` // 0-10
	IntakeShame   *int          `json:"intake_shame,omitempty" db:"intake_shame"`     // 0-10
	SafetyFlag    bool          `json:"safety_flag" db:"safety_flag"`
	StrategyMode  *StrategyMode `json:"strategy_mode,omitempty" db:"strategy_mode"`
	EntitiesCount int           `json:"entities_count" db:"entities_count"`
	UserID        *string       `json:"user_id,omitempty" db:"user_id"`
	CreatedAt     time.Time     `json:"created_at" db:"created_at"`
}

// Owner returns the turn's user id, or "" for anonymous turns.
func (t *Turn) Owner() string {
	if t.UserID == nil {
		return ""
	}
	return *t.UserID
}

// TurnMetrics carries the structured per-turn metrics produced by the
// orchestration engine alongside the assistant response.
type TurnMetrics struct {
	IntakeAnxiety *int          `json:"intake_anxiety,omitempty"`
	IntakeShame   *int          `json:"intake_shame,omitempty"`
	SafetyFlag    bool          `json:"safety_flag"`
	StrategyMode  *StrategyMode `json:"strategy_mode,omitempty"`
	EntitiesCount int           `json:"entities_count"`
}
