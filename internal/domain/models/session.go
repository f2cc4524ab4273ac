package models

import (
	"time"
)

// Session represents one continuous conversation, keyed by an opaque
// client-generated or provider-issued session identifier.
//
// The row-level aggregates (TotalTurns, HadSafetyFlag, FirstMessageAt,
// LastMessageAt) are maintained atomically with every turn insert: a
// reader never observes a turn without its session aggregate reflecting
// it. HadSafetyFlag latches true and never resets.
type Session struct {
	SessionID      string    `json:"session_id" db:"session_id"`
	UserID         *string   `json:"user_id,omitempty" db:"user_id"` // nil = anonymous
	FirstMessageAt time.Time `json:"first_message_at" db:"first_message_at"`
	LastMessageAt  time.Time `json:"last_message_at" db:"last_message_at"`
	TotalTurns     int       `json:"total_turns" db:"total_turns"`
	HadSafetyFlag  bool      `json:"had_safety_flag" db:"had_safety_flag"`
	UserAgent      *string   `json:"user_agent,omitempty" db:"user_agent"`
}

// Owner returns the session's user id, or "" for anonymous sessions.
func (s *Session) Owner() string {
	if s.UserID == nil {
		return ""
	}
	return *s.UserID
}

// SessionStats holds the derived aggregates computed over a session's
// turns on read. Absent intake values are ignored; MostCommonStrategy is
// the statistical mode of strategy_mode, ties broken by the strategy
// reached first in ascending turn_number order.
type SessionStats struct {
	AvgAnxiety         *float64      `json:"avg_anxiety,omitempty"` // one fractional digit
	AvgShame           *float64      `json:"avg_shame,omitempty"`   // one fractional digit
	MaxAnxiety         *int          `json:"max_anxiety,omitempty"`
	MostCommonStrategy *StrategyMode `json:"most_common_strategy,omitempty"`
}

// SessionContext is the full read model for a single session: the session
// row, its derived stats, the most recent turns, and all agent logs.
type SessionContext struct {
	Session Session      `json:"session"`
	Stats   SessionStats `json:"stats"`
	History []Turn       `json:"history"`
	Logs    []AgentLog   `json:"logs"`
}
