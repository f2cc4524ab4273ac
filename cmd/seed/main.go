package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"

	"mindmoney/internal/agents"
	"mindmoney/internal/config"
	"mindmoney/internal/domain/services"
	"mindmoney/internal/repository/postgres"
	"mindmoney/internal/service/conversation"
	"mindmoney/internal/service/orchestrator"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
)

func main() {
	// Parse command-line flags
	dropTables := flag.Bool("drop-tables", false, "Drop all tables before seeding (fresh start)")
	clearData := flag.Bool("clear-data", false, "Clear all sessions, turns and logs (keep schema)")
	flag.Parse()

	// Load .env file
	_ = godotenv.Load()

	cfg := config.Load()

	// SAFETY: Prevent destructive operations in production
	if cfg.Environment == "prod" && (*dropTables || *clearData) {
		log.Fatalf("🚫 BLOCKED: Cannot run destructive operations (--drop-tables or --clear-data) in production environment")
	}

	if cfg.DatabaseURL == "" {
		log.Fatalf("DATABASE_URL is required for seeding (the in-memory store has nothing to seed)")
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	log.Printf("🌱 Seeding database (environment: %s, prefix: %s)", cfg.Environment, cfg.TablePrefix)

	ctx := context.Background()
	pool, err := postgres.CreateConnectionPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	tables := postgres.NewTableNames(cfg.TablePrefix)

	if *dropTables {
		log.Println("🗑️  Dropping all tables...")
		if err := dropAllTables(ctx, pool, tables); err != nil {
			log.Fatalf("Failed to drop tables: %v", err)
		}
		log.Println("✅ Tables dropped")
	}

	// Ensure schema is up to date
	log.Println("📋 Ensuring database schema is up to date...")
	if err := postgres.Migrate(cfg.DatabaseURL); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	log.Println("✅ Schema ready")

	if *clearData {
		log.Println("🧹 Clearing existing sessions, turns and logs...")
		if err := clearAllData(ctx, pool, tables); err != nil {
			log.Fatalf("Failed to clear data: %v", err)
		}
		log.Println("✅ Data cleared successfully")
		return
	}

	store := postgres.NewStore(&postgres.RepositoryConfig{
		Pool:   pool,
		Tables: tables,
		Logger: logger,
	})
	txManager := postgres.NewTransactionManager(pool)

	roster, err := agents.NewRegistry()
	if err != nil {
		log.Fatalf("Failed to load agent roster: %v", err)
	}

	conversations := conversation.NewService(store, txManager, roster, logger)
	engine := orchestrator.NewScriptedEngine(roster)

	log.Println("💬 Seeding demo conversations...")

	scripts := seedConversations()
	for i, script := range scripts {
		if err := replayConversation(ctx, conversations, engine, script); err != nil {
			log.Printf("❌ Failed to seed session '%s': %v", script.sessionID, err)
			continue
		}
		log.Printf("✅ Seeded session %d/%d: %s (%d turns)",
			i+1, len(scripts), script.sessionID, len(script.messages))
	}

	log.Println("🎉 Seeding complete!")
}

// replayConversation runs each user message through the scripted engine
// and records the exchange the same way the chat endpoint does.
func replayConversation(ctx context.Context, conversations services.ConversationService, engine services.Engine, script seedConversation) error {
	for _, message := range script.messages {
		history, err := conversations.GetHistory(ctx, script.userID, script.sessionID, conversation.DefaultHistoryLimit)
		if err != nil {
			return err
		}

		result, err := engine.Respond(ctx, &services.EngineRequest{
			SessionID: script.sessionID,
			Message:   message,
			History:   history,
		})
		if err != nil {
			return err
		}

		turnNumber, err := conversations.NextTurnNumber(ctx, script.userID, script.sessionID)
		if err != nil {
			return err
		}

		logs := make([]services.RecordLogRequest, 0, len(result.Logs))
		for _, entry := range result.Logs {
			logs = append(logs, services.RecordLogRequest{
				AgentName:     entry.AgentName,
				ModelUsed:     entry.ModelUsed,
				InputSummary:  entry.InputSummary,
				OutputSummary: entry.OutputSummary,
				DecisionMade:  entry.DecisionMade,
				DurationMs:    entry.DurationMs,
				TokensUsed:    entry.TokensUsed,
			})
		}

		_, _, err = conversations.RecordExchange(ctx, script.userID, &services.RecordTurnRequest{
			SessionID:     script.sessionID,
			TurnNumber:    turnNumber,
			UserMessage:   message,
			AssistantResp: result.Response,
			Metrics:       result.Metrics,
			UserID:        script.userID,
			UserAgent:     "mindmoney-seed/1.0",
		}, logs)
		if err != nil {
			return err
		}
	}
	return nil
}

// dropAllTables drops all tables in reverse order (to respect foreign keys)
func dropAllTables(ctx context.Context, pool *pgxpool.Pool, tables *postgres.TableNames) error {
	tableNames := []string{
		tables.AgentLogs,
		tables.Turns,
		tables.Sessions,
		"schema_migrations",
	}

	for _, table := range tableNames {
		dropSQL := "DROP TABLE IF EXISTS " + table + " CASCADE"
		if _, err := pool.Exec(ctx, dropSQL); err != nil {
			return err
		}
		log.Printf("  ✓ Dropped %s", table)
	}

	return nil
}

// clearAllData removes all rows while keeping the schema
func clearAllData(ctx context.Context, pool *pgxpool.Pool, tables *postgres.TableNames) error {
	// agent_logs cascades from turns, but delete explicitly so the
	// ordering never depends on the FK
	tableNames := []string{
		tables.AgentLogs,
		tables.Turns,
		tables.Sessions,
	}

	for _, table := range tableNames {
		if _, err := pool.Exec(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}

	return nil
}

type seedConversation struct {
	sessionID string
	userID    string
	messages  []string
}

func seedConversations() []seedConversation {
	return []seedConversation{
		{
			sessionID: "demo-anxious-renter",
			userID:    "",
			messages: []string{
				"I just got my rent increase notice and I can't stop panicking about it",
				"I'm so overwhelmed, I don't even know where my money goes every month",
				"Okay. What's one thing I could actually do this week?",
			},
		},
		{
			sessionID: "demo-debt-shame",
			userID:    "",
			messages: []string{
				"I'm too embarrassed to tell my partner how much credit card debt I have",
				"It's about $12,000 across three cards and I feel like a failure",
				"How would I even start paying that down on my salary?",
			},
		},
		{
			sessionID: "demo-planner",
			userID:    "demo-user-1",
			messages: []string{
				"I want to build a budget for the first time, where do I start?",
				"My take-home pay is about $3,800 a month and rent is $1,400",
				"Can you help me figure out how much to put toward savings?",
				"What about retirement, should I be doing something there too?",
			},
		},
		{
			sessionID: "demo-checkin",
			userID:    "demo-user-1",
			messages: []string{
				"Quick check-in: I stuck to the grocery budget this week",
			},
		},
	}
}
