package postgres

import (
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
)

// RepositoryConfig holds configuration for repository implementations
type RepositoryConfig struct {
	Pool   *pgxpool.Pool
	Tables *TableNames
	Logger *slog.Logger
}

// TableNames holds dynamically prefixed table names
type TableNames struct {
	Sessions  string
	Turns     string
	AgentLogs string
}

// NewTableNames creates table names with the given prefix
func NewTableNames(prefix string) *TableNames {
	return &TableNames{
		Sessions:  fmt.Sprintf("%ssessions", prefix),
		Turns:     fmt.Sprintf("%sconversation_turns", prefix),
		AgentLogs: fmt.Sprintf("%sagent_logs", prefix),
	}
}
