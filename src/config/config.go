package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	DatabaseURL string

	PlaidClientID string
	PlaidSecret   string
	PlaidEnv      string

	SyncWorkerLimit  int
	SyncMaxRetries   int
	SyncRetryBackoff time.Duration
	SyncPageSize     int
	SyncLookbackDays int
}

func Load() Config {
	// Load .env file if present
	_ = godotenv.Load()

	cfg := Config{
		Port:        getEnv("PORT", "8080"),
		DatabaseURL: getEnv("DATABASE_URL", ""),

		PlaidClientID: getEnv("PLAID_CLIENT_ID", ""),
		PlaidSecret:   getEnv("PLAID_SECRET", ""),
		PlaidEnv:      getEnv("PLAID_ENV", "sandbox"),

		SyncWorkerLimit:  getEnvInt("SYNC_WORKER_LIMIT", 4),
		SyncMaxRetries:   getEnvInt("SYNC_MAX_RETRIES", 3),
		SyncRetryBackoff: time.Duration(getEnvInt("SYNC_RETRY_BACKOFF_MS", 500)) * time.Millisecond,
		SyncPageSize:     getEnvInt("SYNC_PAGE_SIZE", 100),
		SyncLookbackDays: getEnvInt("SYNC_LOOKBACK_DAYS", 730),
	}

	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is required")
	}

	return cfg
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		log.Fatalf("%s must be an integer, got %q", key, value)
	}
	return n
}
