// Package memory provides a mutex-guarded in-memory implementation of the
// conversation store. It backs the test suite and demo deployments that
// run without a DATABASE_URL; it must satisfy the same invariants as the
// PostgreSQL store.
package memory

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"sync"

	"github.com/google/uuid"

	"mindmoney/internal/domain"
	"mindmoney/internal/domain/models"
	"mindmoney/internal/domain/repositories"
)

type turnKey struct {
	sessionID  string
	turnNumber int
}

// Store implements the ConversationStore interface in process memory.
// A single mutex serializes writers, which trivially satisfies the
// per-session aggregate serialization requirement; reads take the read
// lock and copy, so they never observe a half-applied insert.
type Store struct {
	mu       sync.RWMutex
	logger   *slog.Logger
	sessions map[string]models.Session
	turns    map[string][]models.Turn // per session, ascending turn_number
	turnByID map[string]turnKey
	turnKeys map[turnKey]struct{}
	logs     map[string][]models.AgentLog // per session, insertion order
}

// NewStore creates an empty in-memory conversation store
func NewStore(logger *slog.Logger) *Store {
	return &Store{
		logger:   logger,
		sessions: make(map[string]models.Session),
		turns:    make(map[string][]models.Turn),
		turnByID: make(map[string]turnKey),
		turnKeys: make(map[turnKey]struct{}),
		logs:     make(map[string][]models.AgentLog),
	}
}

// InsertTurn persists a turn and updates the owning session's aggregates
// under one lock acquisition, so both become visible together.
func (s *Store) InsertTurn(ctx context.Context, turn *models.Turn, userAgent *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := turnKey{sessionID: turn.SessionID, turnNumber: turn.TurnNumber}
	if _, exists := s.turnKeys[key]; exists {
		return &domain.DuplicateTurnError{
			SessionID:  turn.SessionID,
			TurnNumber: turn.TurnNumber,
		}
	}

	turn.ID = uuid.NewString()

	stored := *turn
	s.turns[turn.SessionID] = append(s.turns[turn.SessionID], stored)
	sort.Slice(s.turns[turn.SessionID], func(i, j int) bool {
		return s.turns[turn.SessionID][i].TurnNumber < s.turns[turn.SessionID][j].TurnNumber
	})
	s.turnKeys[key] = struct{}{}
	s.turnByID[stored.ID] = key

	session, exists := s.sessions[turn.SessionID]
	if !exists {
		session = models.Session{
			SessionID:      turn.SessionID,
			UserID:         turn.UserID,
			FirstMessageAt: turn.CreatedAt,
			LastMessageAt:  turn.CreatedAt,
			TotalTurns:     1,
			HadSafetyFlag:  turn.SafetyFlag,
			UserAgent:      userAgent,
		}
	} else {
		session.TotalTurns++
		if turn.CreatedAt.After(session.LastMessageAt) {
			session.LastMessageAt = turn.CreatedAt
		}
		// had_safety_flag latches true and never resets
		session.HadSafetyFlag = session.HadSafetyFlag || turn.SafetyFlag
	}
	s.sessions[turn.SessionID] = session

	return nil
}

// AppendAgentLog persists one agent log entry. A non-nil TurnID must
// reference an existing turn.
func (s *Store) AppendAgentLog(ctx context.Context, log *models.AgentLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if log.TurnID != nil {
		if _, exists := s.turnByID[*log.TurnID]; !exists {
			return &domain.UnknownTurnError{TurnID: *log.TurnID}
		}
	}

	log.ID = uuid.NewString()
	s.logs[log.SessionID] = append(s.logs[log.SessionID], *log)

	return nil
}

// ListSessions retrieves the sessions visible to userID (its own plus
// anonymous ones), ordered by last_message_at descending.
func (s *Store) ListSessions(ctx context.Context, userID string) ([]models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sessions := []models.Session{}
	for _, session := range s.sessions {
		owner := session.Owner()
		if owner == "" || (userID != "" && owner == userID) {
			sessions = append(sessions, session)
		}
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].LastMessageAt.After(sessions[j].LastMessageAt)
	})

	return sessions, nil
}

// GetSession retrieves a session row by ID
func (s *Store) GetSession(ctx context.Context, sessionID string) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, exists := s.sessions[sessionID]
	if !exists {
		return nil, &domain.NotFoundError{Message: "session " + sessionID + ": not found"}
	}

	copied := session
	return &copied, nil
}

// GetHistory returns up to limit most recent turns in ascending
// turn_number order. An unknown session yields an empty slice.
func (s *Store) GetHistory(ctx context.Context, sessionID string, limit int) ([]models.Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	turns := s.turns[sessionID]
	if limit > 0 && len(turns) > limit {
		turns = turns[len(turns)-limit:]
	}

	history := make([]models.Turn, len(turns))
	copy(history, turns)

	return history, nil
}

// GetLogs returns all agent logs for the session, ordered by the owning
// turn's position in the conversation and then by insertion order. Logs
// without a turn sort last.
func (s *Store) GetLogs(ctx context.Context, sessionID string) ([]models.AgentLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	logs := make([]models.AgentLog, len(s.logs[sessionID]))
	copy(logs, s.logs[sessionID])

	sort.SliceStable(logs, func(i, j int) bool {
		return s.logTurnNumber(&logs[i]) < s.logTurnNumber(&logs[j])
	})

	return logs, nil
}

// logTurnNumber resolves the owning turn's number for ordering; logs
// without a turn sort after every real turn.
func (s *Store) logTurnNumber(log *models.AgentLog) int {
	if log.TurnID == nil {
		return math.MaxInt
	}
	key, exists := s.turnByID[*log.TurnID]
	if !exists {
		return math.MaxInt
	}
	return key.turnNumber
}

// LatestTurnNumber returns the highest turn_number for the session, or 0
// if the session has no turns.
func (s *Store) LatestTurnNumber(ctx context.Context, sessionID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	turns := s.turns[sessionID]
	if len(turns) == 0 {
		return 0, nil
	}
	return turns[len(turns)-1].TurnNumber, nil
}

// SessionStats computes the derived aggregates over the session's turns,
// matching the SQL aggregation of the PostgreSQL store: averages ignore
// absent intake values and round to one fractional digit; the most common
// strategy breaks ties toward the strategy reached first in ascending
// turn_number order.
func (s *Store) SessionStats(ctx context.Context, sessionID string) (*models.SessionStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, exists := s.sessions[sessionID]; !exists {
		return nil, &domain.NotFoundError{Message: "session " + sessionID + ": not found"}
	}

	var (
		stats        models.SessionStats
		anxietySum   int
		anxietyCount int
		shameSum     int
		shameCount   int
	)

	strategyCounts := make(map[models.StrategyMode]int)
	strategyFirst := make(map[models.StrategyMode]int)

	for i, turn := range s.turns[sessionID] {
		if turn.IntakeAnxiety != nil {
			anxietySum += *turn.IntakeAnxiety
			anxietyCount++
			if stats.MaxAnxiety == nil || *turn.IntakeAnxiety > *stats.MaxAnxiety {
				value := *turn.IntakeAnxiety
				stats.MaxAnxiety = &value
			}
		}
		if turn.IntakeShame != nil {
			shameSum += *turn.IntakeShame
			shameCount++
		}
		if turn.StrategyMode != nil {
			mode := *turn.StrategyMode
			strategyCounts[mode]++
			if _, seen := strategyFirst[mode]; !seen {
				strategyFirst[mode] = i
			}
		}
	}

	if anxietyCount > 0 {
		avg := roundOneDecimal(float64(anxietySum) / float64(anxietyCount))
		stats.AvgAnxiety = &avg
	}
	if shameCount > 0 {
		avg := roundOneDecimal(float64(shameSum) / float64(shameCount))
		stats.AvgShame = &avg
	}

	var best *models.StrategyMode
	for mode := range strategyCounts {
		mode := mode
		if best == nil {
			best = &mode
			continue
		}
		if strategyCounts[mode] > strategyCounts[*best] ||
			(strategyCounts[mode] == strategyCounts[*best] && strategyFirst[mode] < strategyFirst[*best]) {
			best = &mode
		}
	}
	stats.MostCommonStrategy = best

	return &stats, nil
}

// Ping reports the store as always reachable
func (s *Store) Ping(ctx context.Context) error {
	return nil
}

func roundOneDecimal(v float64) float64 {
	return math.Round(v*10) / 10
}

// TransactionManager is the in-memory stand-in for the database
// transaction manager. Store operations are individually atomic under the
// store mutex, so the function just runs directly.
type TransactionManager struct{}

// NewTransactionManager creates a pass-through transaction manager
func NewTransactionManager() repositories.TransactionManager {
	return &TransactionManager{}
}

// ExecTx executes the function without transactional bracketing
func (tm *TransactionManager) ExecTx(ctx context.Context, fn repositories.TxFn) error {
	return fn(ctx)
}
