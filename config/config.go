package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/siftmail/sift-backend/internal/logger"
)

var customLog = logger.NewLogger()

// Config holds application configuration values
type Config struct {
	ServerPort     string
	Env            string
	DatabaseDir    string
	DatabaseFile   string
	SessionTTL     time.Duration
	QueryTimeout   time.Duration
	AllowedOrigins []string
	AuthRateLimit  int // requests per minute per IP on /auth routes
}

// LoadConfig loads configuration from environment variables.
// It uses a .env file for local development if present (ignored in production).
func LoadConfig() (*Config, error) {
	customLog.Println("Loading configuration from environment variables...")

	env := getEnv("APP_ENV", "development")
	if env != "production" {
		if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
			customLog.Warnf("Warning: Error loading .env file: %v", err)
		}
	}

	cfg := &Config{
		ServerPort:     getEnv("SERVER_PORT", "8080"),
		Env:            env,
		DatabaseDir:    getEnv("DATABASE_DIRECTORY", "data"),
		DatabaseFile:   getEnv("DATABASE_FILE", "sift.db"),
		SessionTTL:     time.Hour * time.Duration(getEnvInt("SESSION_TTL_HOURS", 168)),
		QueryTimeout:   time.Second * time.Duration(getEnvInt("QUERY_TIMEOUT_SECONDS", 5)),
		AllowedOrigins: splitList(getEnv("ALLOWED_ORIGINS", "http://localhost:3000")),
		AuthRateLimit:  getEnvInt("AUTH_RATE_LIMIT", 60),
	}

	customLog.Printf("Configuration loaded. Port: %s, Env: %s, Session TTL: %v",
		cfg.ServerPort, cfg.Env, cfg.SessionTTL)
	return cfg, nil
}

// getEnv reads an environment variable or returns a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// getEnvInt reads a positive integer environment variable, falling back on
// absent or malformed values.
func getEnvInt(key string, fallback int) int {
	raw, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		customLog.Warnf("Invalid %s '%s'. Using default %d.", key, raw, fallback)
		return fallback
	}
	return value
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
