package repositories

import (
	"context"

	"mindmoney/internal/domain/models"
)

// ConversationStore is the durable, queryable record of sessions, turns,
// and per-agent execution logs.
//
// Concurrency contract:
//   - InsertTurn for a given (session_id, turn_number) is effectively
//     exactly-once; the losing concurrent writer gets ErrDuplicateTurn.
//   - Session aggregate updates for the same session serialize; updates
//     for different sessions are independent.
//   - Reads never observe a partially-applied turn insert.
type ConversationStore interface {
	// InsertTurn persists a turn and, atomically, creates or updates the
	// owning session's aggregates (total_turns, last_message_at,
	// had_safety_flag). The session is created implicitly on the first
	// turn for a previously-unseen session_id; userAgent is recorded on
	// the session at creation and ignored afterwards.
	// Returns ErrDuplicateTurn if (session_id, turn_number) exists.
	InsertTurn(ctx context.Context, turn *models.Turn, userAgent *string) error

	// AppendAgentLog persists an agent log referencing an existing turn.
	// Returns ErrUnknownTurn if the referenced turn does not exist.
	// Logs with a nil TurnID are accepted.
	AppendAgentLog(ctx context.Context, log *models.AgentLog) error

	// ListSessions returns sessions visible to userID ("" = anonymous
	// caller): those owned by userID plus anonymous sessions. Ordered by
	// last_message_at descending.
	ListSessions(ctx context.Context, userID string) ([]models.Session, error)

	// GetSession returns the session row, or ErrNotFound.
	GetSession(ctx context.Context, sessionID string) (*models.Session, error)

	// GetHistory returns up to limit most recent turns for the session,
	// ordered by ascending turn_number. An unknown or empty session
	// yields an empty slice, not an error.
	GetHistory(ctx context.Context, sessionID string, limit int) ([]models.Turn, error)

	// GetLogs returns all agent logs for all turns of the session,
	// ordered by turn then insertion order.
	GetLogs(ctx context.Context, sessionID string) ([]models.AgentLog, error)

	// LatestTurnNumber returns the highest turn_number recorded for the
	// session, or 0 if the session has no turns.
	LatestTurnNumber(ctx context.Context, sessionID string) (int, error)

	// SessionStats computes the derived aggregates over the session's
	// turns. Returns ErrNotFound for an unknown session.
	SessionStats(ctx context.Context, sessionID string) (*models.SessionStats, error)

	// Ping reports whether the backing storage is reachable.
	Ping(ctx context.Context) error
}
