package postgres

import (
	"context"
	"fmt"

	"mindmoney/internal/domain"
	"mindmoney/internal/domain/models"
)

// InsertTurn persists a turn and upserts the owning session's aggregates.
// Both statements run through the executor resolved from ctx; callers
// must wrap InsertTurn in a transaction (via TransactionManager.ExecTx)
// so a reader never observes the turn without the session update.
//
// The turn is inserted first: a duplicate (session_id, turn_number) fails
// on the unique index before any session row is touched. The session
// upsert then takes a row lock that serializes concurrent writers for the
// same session; writers for different sessions proceed independently.
func (s *Store) InsertTurn(ctx context.Context, turn *models.Turn, userAgent *string) error {
	executor := GetExecutor(ctx, s.pool)

	turnQuery := fmt.Sprintf(`
		INSERT INTO %s (
			session_id, turn_number, user_message, assistant_response,
			intake_anxiety, intake_shame, safety_flag, strategy_mode,
			entities_count, user_id, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id
	`, s.tables.Turns)

	err := executor.QueryRow(ctx, turnQuery,
		turn.SessionID,
		turn.TurnNumber,
		turn.UserMessage,
		turn.AssistantResp,
		turn.IntakeAnxiety,
		turn.IntakeShame,
		turn.SafetyFlag,
		turn.StrategyMode,
		turn.EntitiesCount,
		turn.UserID,
		turn.CreatedAt,
	).Scan(&turn.ID)

	if err != nil {
		if IsPgDuplicateError(err) {
			return &domain.DuplicateTurnError{
				SessionID:  turn.SessionID,
				TurnNumber: turn.TurnNumber,
			}
		}
		return fmt.Errorf("insert turn: %w", err)
	}

	// GREATEST keeps last_message_at equal to the max created_at of the
	// session's turns even if turns arrive with out-of-order timestamps.
	// had_safety_flag latches true and never resets.
	sessionQuery := fmt.Sprintf(`
		INSERT INTO %s (
			session_id, user_id, first_message_at, last_message_at,
			total_turns, had_safety_flag, user_agent
		)
		VALUES ($1, $2, $3, $3, 1, $4, $5)
		ON CONFLICT (session_id) DO UPDATE SET
			total_turns     = %s.total_turns + 1,
			last_message_at = GREATEST(%s.last_message_at, EXCLUDED.last_message_at),
			had_safety_flag = %s.had_safety_flag OR EXCLUDED.had_safety_flag
	`, s.tables.Sessions, s.tables.Sessions, s.tables.Sessions, s.tables.Sessions)

	_, err = executor.Exec(ctx, sessionQuery,
		turn.SessionID,
		turn.UserID,
		turn.CreatedAt,
		turn.SafetyFlag,
		userAgent,
	)
	if err != nil {
		return fmt.Errorf("upsert session aggregates: %w", err)
	}

	return nil
}

// GetHistory returns up to limit most recent turns for the session in
// ascending turn_number order. An unknown session yields an empty slice.
func (s *Store) GetHistory(ctx context.Context, sessionID string, limit int) ([]models.Turn, error) {
	query := fmt.Sprintf(`
		SELECT id, session_id, turn_number, user_message, assistant_response,
		       intake_anxiety, intake_shame, safety_flag, strategy_mode,
		       entities_count, user_id, created_at
		FROM (
			SELECT * FROM %s
			WHERE session_id = $1
			ORDER BY turn_number DESC
			LIMIT $2
		) recent
		ORDER BY turn_number ASC
	`, s.tables.Turns)

	executor := GetExecutor(ctx, s.pool)
	rows, err := executor.Query(ctx, query, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("get history: %w", err)
	}
	defer rows.Close()

	var turns []models.Turn
	for rows.Next() {
		var turn models.Turn
		err := rows.Scan(
			&turn.ID,
			&turn.SessionID,
			&turn.TurnNumber,
			&turn.UserMessage,
			&turn.AssistantResp,
			&turn.IntakeAnxiety,
			&turn.IntakeShame,
			&turn.SafetyFlag,
			&turn.StrategyMode,
			&turn.EntitiesCount,
			&turn.UserID,
			&turn.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		turns = append(turns, turn)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate turns: %w", err)
	}

	// Return empty slice instead of nil
	if turns == nil {
		turns = []models.Turn{}
	}

	return turns, nil
}

// LatestTurnNumber returns the highest turn_number for the session, or 0
// if the session has no turns.
func (s *Store) LatestTurnNumber(ctx context.Context, sessionID string) (int, error) {
	query := fmt.Sprintf(`
		SELECT COALESCE(MAX(turn_number), 0) FROM %s WHERE session_id = $1
	`, s.tables.Turns)

	var latest int
	executor := GetExecutor(ctx, s.pool)
	if err := executor.QueryRow(ctx, query, sessionID).Scan(&latest); err != nil {
		return 0, fmt.Errorf("latest turn number: %w", err)
	}

	return latest, nil
}
