package postgres

import (
	"context"
	"fmt"

	"mindmoney/internal/domain"
	"mindmoney/internal/domain/models"
)

// AppendAgentLog persists one agent log entry. A non-nil TurnID must
// reference an existing turn; the FK violation maps to ErrUnknownTurn and
// no dangling record is created. Insertion order is the generated seq
// column, so ordering among a turn's logs is monotonic without relying on
// wall-clock created_at.
func (s *Store) AppendAgentLog(ctx context.Context, log *models.AgentLog) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (
			session_id, turn_id, agent_name, model_used, input_summary,
			output_summary, decision_made, duration_ms, tokens_used,
			user_id, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id
	`, s.tables.AgentLogs)

	executor := GetExecutor(ctx, s.pool)
	err := executor.QueryRow(ctx, query,
		log.SessionID,
		log.TurnID,
		log.AgentName,
		log.ModelUsed,
		log.InputSummary,
		log.OutputSummary,
		log.DecisionMade,
		log.DurationMs,
		log.TokensUsed,
		log.UserID,
		log.CreatedAt,
	).Scan(&log.ID)

	if err != nil {
		if IsPgForeignKeyError(err) {
			turnID := ""
			if log.TurnID != nil {
				turnID = *log.TurnID
			}
			return &domain.UnknownTurnError{TurnID: turnID}
		}
		return fmt.Errorf("append agent log: %w", err)
	}

	return nil
}

// GetLogs retrieves all agent logs for all turns of the session, ordered
// by the owning turn's position in the conversation and then by insertion
// order. Logs without a turn sort last.
func (s *Store) GetLogs(ctx context.Context, sessionID string) ([]models.AgentLog, error) {
	query := fmt.Sprintf(`
		SELECT l.id, l.session_id, l.turn_id, l.agent_name, l.model_used,
		       l.input_summary, l.output_summary, l.decision_made,
		       l.duration_ms, l.tokens_used, l.user_id, l.created_at
		FROM %s l
		LEFT JOIN %s t ON t.id = l.turn_id
		WHERE l.session_id = $1
		ORDER BY t.turn_number ASC NULLS LAST, l.seq ASC
	`, s.tables.AgentLogs, s.tables.Turns)

	executor := GetExecutor(ctx, s.pool)
	rows, err := executor.Query(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("get agent logs: %w", err)
	}
	defer rows.Close()

	var logs []models.AgentLog
	for rows.Next() {
		var log models.AgentLog
		err := rows.Scan(
			&log.ID,
			&log.SessionID,
			&log.TurnID,
			&log.AgentName,
			&log.ModelUsed,
			&log.InputSummary,
			&log.OutputSummary,
			&log.DecisionMade,
			&log.DurationMs,
			&log.TokensUsed,
			&log.UserID,
			&log.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan agent log: %w", err)
		}
		logs = append(logs, log)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate agent logs: %w", err)
	}

	// Return empty slice instead of nil
	if logs == nil {
		logs = []models.AgentLog{}
	}

	return logs, nil
}
