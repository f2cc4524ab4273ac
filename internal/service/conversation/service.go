// Package conversation implements the business rules in front of the
// conversation store: input validation, the cross-user access policy, and
// atomic persistence of a turn together with its agent logs.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"golang.org/x/sync/errgroup"

	"mindmoney/internal/agents"
	"mindmoney/internal/domain"
	"mindmoney/internal/domain/models"
	"mindmoney/internal/domain/repositories"
	"mindmoney/internal/domain/services"
)

// Service implements the ConversationService interface
type Service struct {
	store     repositories.ConversationStore
	txManager repositories.TransactionManager
	roster    *agents.Registry
	logger    *slog.Logger
}

// NewService creates a new conversation service
func NewService(
	store repositories.ConversationStore,
	txManager repositories.TransactionManager,
	roster *agents.Registry,
	logger *slog.Logger,
) services.ConversationService {
	return &Service{
		store:     store,
		txManager: txManager,
		roster:    roster,
		logger:    logger,
	}
}

// RecordExchange persists a turn and its agent logs as one atomic unit.
// The turn insert and the session aggregate update happen in the same
// transaction, so readers observe either both or neither.
func (s *Service) RecordExchange(ctx context.Context, caller string, req *services.RecordTurnRequest, logs []services.RecordLogRequest) (*models.Turn, []models.AgentLog, error) {
	if err := s.validateTurnRequest(req); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	for i := range logs {
		if err := s.validateLogRequest(&logs[i]); err != nil {
			return nil, nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
		}
	}
	if err := checkWriteAccess(caller, req.UserID); err != nil {
		return nil, nil, err
	}

	now := time.Now().UTC()
	turn := &models.Turn{
		SessionID:     req.SessionID,
		TurnNumber:    req.TurnNumber,
		UserMessage:   req.UserMessage,
		AssistantResp: req.AssistantResp,
		IntakeAnxiety: req.Metrics.IntakeAnxiety,
		IntakeShame:   req.Metrics.IntakeShame,
		SafetyFlag:    req.Metrics.SafetyFlag,
		StrategyMode:  req.Metrics.StrategyMode,
		EntitiesCount: req.Metrics.EntitiesCount,
		UserID:        optional(req.UserID),
		CreatedAt:     now,
	}

	var stored []models.AgentLog
	err := s.txManager.ExecTx(ctx, func(txCtx context.Context) error {
		if err := s.store.InsertTurn(txCtx, turn, optional(req.UserAgent)); err != nil {
			return err
		}
		stored = make([]models.AgentLog, 0, len(logs))
		for i := range logs {
			entry := models.AgentLog{
				SessionID:     req.SessionID,
				TurnID:        &turn.ID,
				AgentName:     logs[i].AgentName,
				ModelUsed:     logs[i].ModelUsed,
				InputSummary:  logs[i].InputSummary,
				OutputSummary: logs[i].OutputSummary,
				DecisionMade:  logs[i].DecisionMade,
				DurationMs:    logs[i].DurationMs,
				TokensUsed:    logs[i].TokensUsed,
				UserID:        turn.UserID,
				CreatedAt:     now,
			}
			if err := s.store.AppendAgentLog(txCtx, &entry); err != nil {
				return err
			}
			stored = append(stored, entry)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	s.logger.Info("turn recorded",
		"session_id", turn.SessionID,
		"turn_number", turn.TurnNumber,
		"safety_flag", turn.SafetyFlag,
		"agent_logs", len(stored),
	)

	return turn, stored, nil
}

// AppendAgentLog persists a single log entry against an existing turn.
func (s *Service) AppendAgentLog(ctx context.Context, caller string, turnID string, sessionID string, req *services.RecordLogRequest) (*models.AgentLog, error) {
	if err := s.validateLogRequest(req); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	if sessionID == "" {
		return nil, fmt.Errorf("%w: session_id is required", domain.ErrValidation)
	}
	if err := s.checkSessionAccess(ctx, caller, sessionID); err != nil {
		// An unknown session is fine here: the turn existence check in
		// the store is authoritative for log writes.
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
	}

	var turnRef *string
	if turnID != "" {
		turnRef = &turnID
	}

	entry := &models.AgentLog{
		SessionID:     sessionID,
		TurnID:        turnRef,
		AgentName:     req.AgentName,
		ModelUsed:     req.ModelUsed,
		InputSummary:  req.InputSummary,
		OutputSummary: req.OutputSummary,
		DecisionMade:  req.DecisionMade,
		DurationMs:    req.DurationMs,
		TokensUsed:    req.TokensUsed,
		UserID:        optional(caller),
		CreatedAt:     time.Now().UTC(),
	}

	if err := s.store.AppendAgentLog(ctx, entry); err != nil {
		return nil, err
	}

	return entry, nil
}

// NextTurnNumber returns the next sequential turn number for the session.
func (s *Service) NextTurnNumber(ctx context.Context, caller, sessionID string) (int, error) {
	if err := s.checkSessionAccess(ctx, caller, sessionID); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return 0, err
	}

	latest, err := s.store.LatestTurnNumber(ctx, sessionID)
	if err != nil {
		return 0, err
	}
	return latest + 1, nil
}

// ListSessions returns the sessions visible to the caller.
func (s *Service) ListSessions(ctx context.Context, caller string) ([]models.Session, error) {
	return s.store.ListSessions(ctx, caller)
}

// GetSessionContext assembles the full read model for one session. Stats,
// history and logs are independent reads, so they fan out concurrently.
func (s *Service) GetSessionContext(ctx context.Context, caller, sessionID string, historyLimit int) (*models.SessionContext, error) {
	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := checkReadAccess(caller, session.Owner()); err != nil {
		return nil, err
	}

	if historyLimit <= 0 {
		historyLimit = DefaultHistoryLimit
	}

	result := &models.SessionContext{Session: *session}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		stats, err := s.store.SessionStats(gctx, sessionID)
		if err != nil {
			return err
		}
		result.Stats = *stats
		return nil
	})
	g.Go(func() error {
		history, err := s.store.GetHistory(gctx, sessionID, historyLimit)
		if err != nil {
			return err
		}
		result.History = history
		return nil
	})
	g.Go(func() error {
		logs, err := s.store.GetLogs(gctx, sessionID)
		if err != nil {
			return err
		}
		result.Logs = logs
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return result, nil
}

// GetHistory returns up to limit most recent turns, ascending. A session
// the store has never seen yields an empty slice, not an error.
func (s *Service) GetHistory(ctx context.Context, caller, sessionID string, limit int) ([]models.Turn, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if err := s.checkSessionAccess(ctx, caller, sessionID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return []models.Turn{}, nil
		}
		return nil, err
	}

	return s.store.GetHistory(ctx, sessionID, limit)
}

// GetLogs returns all agent logs of a session grouped by turn.
func (s *Service) GetLogs(ctx context.Context, caller, sessionID string) ([]models.AgentLog, error) {
	if err := s.checkSessionAccess(ctx, caller, sessionID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return []models.AgentLog{}, nil
		}
		return nil, err
	}

	return s.store.GetLogs(ctx, sessionID)
}

// checkSessionAccess resolves the session and applies the read policy.
func (s *Service) checkSessionAccess(ctx context.Context, caller, sessionID string) error {
	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	return checkReadAccess(caller, session.Owner())
}

// checkReadAccess: records owned by a user are visible to that user only;
// anonymous records (owner "") stay visible to every caller. Kept
// deliberately permissive to match the no-auth legacy behavior.
func checkReadAccess(caller, owner string) error {
	if owner != "" && owner != caller {
		return fmt.Errorf("session belongs to another user: %w", domain.ErrForbidden)
	}
	return nil
}

// checkWriteAccess rejects writes that try to attribute a record to a
// user other than the caller. Anonymous writes are always allowed.
func checkWriteAccess(caller, userID string) error {
	if userID != "" && userID != caller {
		return fmt.Errorf("cannot write records for another user: %w", domain.ErrForbidden)
	}
	return nil
}

func (s *Service) validateTurnRequest(req *services.RecordTurnRequest) error {
	return validation.ValidateStruct(req,
		validation.Field(&req.SessionID, validation.Required),
		validation.Field(&req.TurnNumber, validation.Required, validation.Min(1)),
		validation.Field(&req.UserMessage, validation.Required),
		validation.Field(&req.AssistantResp, validation.Required),
		validation.Field(&req.Metrics, validation.By(validateMetrics)),
	)
}

func validateMetrics(value interface{}) error {
	metrics, ok := value.(models.TurnMetrics)
	if !ok {
		return fmt.Errorf("unexpected metrics type %T", value)
	}
	if err := scoreInRange(metrics.IntakeAnxiety); err != nil {
		return fmt.Errorf("intake_anxiety: %v", err)
	}
	if err := scoreInRange(metrics.IntakeShame); err != nil {
		return fmt.Errorf("intake_shame: %v", err)
	}
	if metrics.StrategyMode != nil && !metrics.StrategyMode.Valid() {
		return fmt.Errorf("unknown strategy_mode %q", *metrics.StrategyMode)
	}
	if metrics.EntitiesCount < 0 {
		return fmt.Errorf("entities_count must be non-negative")
	}
	return nil
}

func scoreInRange(score *int) error {
	if score == nil {
		return nil
	}
	if *score < 0 || *score > 10 {
		return fmt.Errorf("must be between 0 and 10, got %d", *score)
	}
	return nil
}

func (s *Service) validateLogRequest(req *services.RecordLogRequest) error {
	return validation.ValidateStruct(req,
		validation.Field(&req.AgentName, validation.Required, validation.By(s.knownAgent)),
		validation.Field(&req.DurationMs, validation.Min(0)),
	)
}

func (s *Service) knownAgent(value interface{}) error {
	name, _ := value.(string)
	if name == "" {
		return nil // Required already covers the empty case
	}
	if !s.roster.Known(name) {
		return fmt.Errorf("agent %q is not in the roster", name)
	}
	return nil
}

func optional(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
