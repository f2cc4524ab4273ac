package services

import (
	"context"

	"mindmoney/internal/domain/models"
)

// RecordTurnRequest carries one fully populated exchange for persistence.
// UserID "" means anonymous; a non-empty UserID differing from the
// caller's identity is rejected with ErrForbidden.
type RecordTurnRequest struct {
	SessionID     string
	TurnNumber    int
	UserMessage   string
	AssistantResp string
	Metrics       models.TurnMetrics
	UserID        string
	UserAgent     string
}

// RecordLogRequest carries one agent log entry produced while processing
// a turn.
type RecordLogRequest struct {
	AgentName     string
	ModelUsed     *string
	InputSummary  string
	OutputSummary string
	DecisionMade  *string
	DurationMs    *int
	TokensUsed    *int
}

// ConversationService enforces validation and the access policy in front
// of the ConversationStore. The caller identity threading through every
// method is the authenticated user id, or "" for anonymous callers.
type ConversationService interface {
	// RecordExchange persists a turn and its agent logs as one atomic
	// unit and returns the stored records.
	RecordExchange(ctx context.Context, caller string, turn *RecordTurnRequest, logs []RecordLogRequest) (*models.Turn, []models.AgentLog, error)

	// AppendAgentLog persists a single log against an existing turn.
	AppendAgentLog(ctx context.Context, caller string, turnID string, sessionID string, log *RecordLogRequest) (*models.AgentLog, error)

	// NextTurnNumber returns the next sequential turn number for the
	// session (1 for a previously-unseen session).
	NextTurnNumber(ctx context.Context, caller, sessionID string) (int, error)

	// ListSessions returns the sessions visible to the caller, newest
	// activity first.
	ListSessions(ctx context.Context, caller string) ([]models.Session, error)

	// GetSessionContext returns the session row, derived stats, recent
	// history and logs, or ErrNotFound / ErrForbidden.
	GetSessionContext(ctx context.Context, caller, sessionID string, historyLimit int) (*models.SessionContext, error)

	// GetHistory returns up to limit most recent turns in ascending
	// turn_number order; empty for an unknown session the caller could
	// otherwise see.
	GetHistory(ctx context.Context, caller, sessionID string, limit int) ([]models.Turn, error)

	// GetLogs returns all agent logs of a session grouped by turn.
	GetLogs(ctx context.Context, caller, sessionID string) ([]models.AgentLog, error)
}
