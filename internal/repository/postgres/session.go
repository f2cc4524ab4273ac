package postgres

import (
	"context"
	"fmt"

	"mindmoney/internal/domain"
	"mindmoney/internal/domain/models"
)

// GetSession retrieves a session row by ID
func (s *Store) GetSession(ctx context.Context, sessionID string) (*models.Session, error) {
	query := fmt.Sprintf(`
		SELECT session_id, user_id, first_message_at, last_message_at,
		       total_turns, had_safety_flag, user_agent
		FROM %s
		WHERE session_id = $1
	`, s.tables.Sessions)

	var session models.Session
	executor := GetExecutor(ctx, s.pool)
	err := executor.QueryRow(ctx, query, sessionID).Scan(
		&session.SessionID,
		&session.UserID,
		&session.FirstMessageAt,
		&session.LastMessageAt,
		&session.TotalTurns,
		&session.HadSafetyFlag,
		&session.UserAgent,
	)

	if err != nil {
		if IsPgNoRowsError(err) {
			return nil, fmt.Errorf("session %s: %w", sessionID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get session: %w", err)
	}

	return &session, nil
}

// ListSessions retrieves the sessions visible to userID: those it owns
// plus anonymous sessions (user_id IS NULL), which remain visible to
// every caller. An anonymous caller ("") sees only anonymous sessions.
func (s *Store) ListSessions(ctx context.Context, userID string) ([]models.Session, error) {
	query := fmt.Sprintf(`
		SELECT session_id, user_id, first_message_at, last_message_at,
		       total_turns, had_safety_flag, user_agent
		FROM %s
		WHERE user_id IS NULL OR ($1 <> '' AND user_id = $1)
		ORDER BY last_message_at DESC
	`, s.tables.Sessions)

	executor := GetExecutor(ctx, s.pool)
	rows, err := executor.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []models.Session
	for rows.Next() {
		var session models.Session
		err := rows.Scan(
			&session.SessionID,
			&session.UserID,
			&session.FirstMessageAt,
			&session.LastMessageAt,
			&session.TotalTurns,
			&session.HadSafetyFlag,
			&session.UserAgent,
		)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, session)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}

	// Return empty slice instead of nil
	if sessions == nil {
		sessions = []models.Session{}
	}

	return sessions, nil
}

// SessionStats computes the derived aggregates over the session's turns.
// Absent intake values are ignored. The most common strategy is the mode
// of strategy_mode across turns; ties break to the strategy reached first
// in ascending turn_number order.
func (s *Store) SessionStats(ctx context.Context, sessionID string) (*models.SessionStats, error) {
	executor := GetExecutor(ctx, s.pool)

	existsQuery := fmt.Sprintf(`SELECT EXISTS(SELECT 1 FROM %s WHERE session_id = $1)`, s.tables.Sessions)
	var exists bool
	if err := executor.QueryRow(ctx, existsQuery, sessionID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("check session: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("session %s: %w", sessionID, domain.ErrNotFound)
	}

	query := fmt.Sprintf(`
		SELECT
			ROUND(AVG(intake_anxiety)::numeric, 1)::float8,
			ROUND(AVG(intake_shame)::numeric, 1)::float8,
			MAX(intake_anxiety),
			(
				SELECT strategy_mode FROM %s
				WHERE session_id = $1 AND strategy_mode IS NOT NULL
				GROUP BY strategy_mode
				ORDER BY COUNT(*) DESC, MIN(turn_number) ASC
				LIMIT 1
			)
		FROM %s
		WHERE session_id = $1
	`, s.tables.Turns, s.tables.Turns)

	var stats models.SessionStats
	err := executor.QueryRow(ctx, query, sessionID).Scan(
		&stats.AvgAnxiety,
		&stats.AvgShame,
		&stats.MaxAnxiety,
		&stats.MostCommonStrategy,
	)
	if err != nil {
		return nil, fmt.Errorf("session stats: %w", err)
	}

	return &stats, nil
}
