package config

import (
	"os"
)

type Config struct {
	Port        string
	Environment string
	// DatabaseURL is the Postgres connection string. Empty selects the
	// in-memory store (demo mode, no persistence across restarts).
	DatabaseURL string
	// JWKSURL points at the identity provider's JWKS endpoint. Empty
	// disables token verification; every caller is then anonymous.
	JWKSURL     string
	CORSOrigins string
	// TablePrefix namespaces tables when one database hosts several
	// environments. Default is empty: migrations manage unprefixed
	// tables; prefixed deployments manage their schema externally.
	TablePrefix string
	// EngineURL is the orchestration engine's base URL. Empty selects
	// the scripted development engine.
	EngineURL string
	Debug     bool
}

func Load() *Config {
	env := getEnv("ENVIRONMENT", "dev")

	return &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: env,
		DatabaseURL: getEnv("DATABASE_URL", ""),
		JWKSURL:     getEnv("IDENTITY_JWKS_URL", ""),
		CORSOrigins: getEnv("CORS_ORIGINS", "http://localhost:3000"),
		TablePrefix: getEnv("TABLE_PREFIX", ""),
		EngineURL:   getEnv("ENGINE_URL", ""),
		Debug:       getEnv("DEBUG", getDefaultDebug(env)) == "true",
	}
}

// getDefaultDebug returns the default debug setting based on environment
func getDefaultDebug(env string) string {
	if env == "prod" {
		return "false"
	}
	return "true"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
