package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"mindmoney/internal/agents"
	"mindmoney/internal/auth"
	"mindmoney/internal/config"
	"mindmoney/internal/domain/repositories"
	"mindmoney/internal/domain/services"
	"mindmoney/internal/handler"
	"mindmoney/internal/middleware"
	"mindmoney/internal/repository/memory"
	"mindmoney/internal/repository/postgres"
	"mindmoney/internal/service/conversation"
	"mindmoney/internal/service/orchestrator"

	"github.com/joho/godotenv"
	"github.com/rs/cors"
)

func main() {
	// Load .env file (silently ignore if it doesn't exist - for production)
	_ = godotenv.Load()

	cfg := config.Load()

	// Setup structured logging
	logLevel := slog.LevelInfo
	if cfg.Environment == "dev" {
		logLevel = slog.LevelDebug
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("server starting",
		"environment", cfg.Environment,
		"port", cfg.Port,
		"table_prefix", cfg.TablePrefix,
	)

	// Token verifier is optional: without a JWKS URL every caller is
	// anonymous and the store behaves identically.
	var verifier auth.TokenVerifier
	if cfg.JWKSURL != "" {
		v, err := auth.NewJWKSVerifier(cfg.JWKSURL, logger)
		if err != nil {
			log.Fatalf("Failed to create token verifier: %v", err)
		}
		defer v.Close()
		verifier = v
	} else {
		logger.Warn("no IDENTITY_JWKS_URL configured, all callers are anonymous")
	}

	// Conversation store: Postgres when configured, in-memory otherwise
	var (
		store     repositories.ConversationStore
		txManager repositories.TransactionManager
	)
	if cfg.DatabaseURL != "" {
		ctx := context.Background()
		pool, err := postgres.CreateConnectionPool(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("Failed to create connection pool: %v", err)
		}
		defer pool.Close()

		if cfg.TablePrefix == "" {
			if err := postgres.Migrate(cfg.DatabaseURL); err != nil {
				log.Fatalf("Failed to run migrations: %v", err)
			}
		} else {
			logger.Warn("table prefix set, skipping migrations (schema managed externally)",
				"table_prefix", cfg.TablePrefix)
		}

		logger.Info("database connected", "max_conns", 25, "min_conns", 5)

		store = postgres.NewStore(&postgres.RepositoryConfig{
			Pool:   pool,
			Tables: postgres.NewTableNames(cfg.TablePrefix),
			Logger: logger,
		})
		txManager = postgres.NewTransactionManager(pool)
	} else {
		logger.Warn("no DATABASE_URL configured, using in-memory store (no persistence)")
		store = memory.NewStore(logger)
		txManager = memory.NewTransactionManager()
	}

	// Agent roster
	roster, err := agents.NewRegistry()
	if err != nil {
		log.Fatalf("Failed to load agent roster: %v", err)
	}

	// Orchestration engine: remote relay when configured, scripted otherwise
	var engine services.Engine = orchestrator.NewScriptedEngine(roster)
	if cfg.EngineURL != "" {
		engine = orchestrator.NewRemoteEngine(cfg.EngineURL, logger)
		logger.Info("using remote orchestration engine", "url", cfg.EngineURL)
	} else {
		logger.Warn("no ENGINE_URL configured, using scripted engine")
	}

	// Services
	conversations := conversation.NewService(store, txManager, roster, logger)

	// Handlers
	chatHandler := handler.NewChatHandler(conversations, engine, logger)
	sessionHandler := handler.NewSessionHandler(conversations, logger)
	healthHandler := handler.NewHealthHandler(store, roster, logger)

	logger.Info("services initialized")

	// HTTP router (Go 1.22+ enhanced patterns)
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", healthHandler.APIInfo)
	mux.HandleFunc("GET /health", healthHandler.HealthCheck)

	mux.HandleFunc("POST /api/chat", chatHandler.Chat)

	mux.HandleFunc("GET /api/sessions", sessionHandler.ListSessions)
	mux.HandleFunc("GET /api/sessions/{id}", sessionHandler.GetSession)
	mux.HandleFunc("GET /api/sessions/{id}/history", sessionHandler.GetHistory)
	mux.HandleFunc("GET /api/sessions/{id}/logs", sessionHandler.GetLogs)

	// Build middleware chain - applied in reverse order (they wrap each other)
	var root http.Handler = mux
	root = middleware.Auth(verifier)(root)
	root = middleware.Recovery(logger)(root)

	// CORS - must be outermost to handle OPTIONS pre-flight requests
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   strings.Split(cfg.CORSOrigins, ","),
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Origin", "Content-Type", "Accept", "Authorization"},
		AllowCredentials: true,
	})
	root = corsHandler.Handler(root)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      root,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	logger.Info("listening", "port", cfg.Port)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Failed to start server: %v", err)
	}
}
