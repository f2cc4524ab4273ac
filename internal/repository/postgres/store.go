package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"mindmoney/internal/domain/repositories"
)

// Store implements the ConversationStore interface using PostgreSQL
type Store struct {
	pool   *pgxpool.Pool
	tables *TableNames
	logger *slog.Logger
}

// NewStore creates a new PostgreSQL-backed conversation store
func NewStore(config *RepositoryConfig) repositories.ConversationStore {
	return &Store{
		pool:   config.Pool,
		tables: config.Tables,
		logger: config.Logger,
	}
}

// Ping reports whether the database is reachable
func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}
	return nil
}
