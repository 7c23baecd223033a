package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds environment-driven settings for the relay server.
type Config struct {
	Port string

	// Database
	DBDriver    string // "postgres" or "sqlite"
	DatabaseURL string
	DBPath      string
	DBDebug     bool

	// Real-time login
	Credentials map[string]string
	SessionTTL  time.Duration

	// Outbound relay
	RelayTimeout   time.Duration
	ForwardBuyURL  string
	ForwardSellURL string

	// Webhook ingestion limits per client IP
	WebhookRateLimit float64
	WebhookRateBurst int

	StaticDir  string
	AllowReset bool
	LogLevel   string
}

// Load reads environment variables (optionally via .env) into Config.
func Load() (*Config, error) {
	// Ignore error so the app still starts when .env is missing.
	_ = godotenv.Load()

	credentials, err := parseCredentials(getEnv("AUTH_USERS", "cuong:123"))
	if err != nil {
		return nil, err
	}
	sessionTTL, err := getEnvDuration("SESSION_TTL", 12*time.Hour)
	if err != nil {
		return nil, err
	}
	relayTimeout, err := getEnvDuration("RELAY_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Port:             getEnv("PORT", "3000"),
		DBDriver:         strings.ToLower(getEnv("DB_DRIVER", "postgres")),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		DBPath:           getEnv("DB_PATH", "./signals.db"),
		DBDebug:          getEnv("DB_DEBUG", "false") == "true",
		Credentials:      credentials,
		SessionTTL:       sessionTTL,
		RelayTimeout:     relayTimeout,
		ForwardBuyURL:    os.Getenv("FORWARD_BUY_URL"),
		ForwardSellURL:   os.Getenv("FORWARD_SELL_URL"),
		WebhookRateLimit: getEnvFloat("WEBHOOK_RATE_LIMIT", 20),
		WebhookRateBurst: getEnvInt("WEBHOOK_RATE_BURST", 50),
		StaticDir:        getEnv("STATIC_DIR", "."),
		AllowReset:       getEnv("ALLOW_RESET", "false") == "true",
		LogLevel:         getEnv("LOG_LEVEL", "info"),
	}
	return cfg, nil
}

// DSN returns the connection string for the configured driver. For postgres
// an explicit DATABASE_URL wins over the PG* variables.
func (c *Config) DSN() string {
	if c.DBDriver == "sqlite" {
		return c.DBPath
	}
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		getEnv("PGHOST", "localhost"),
		getEnv("PGPORT", "5432"),
		getEnv("PGUSER", "postgres"),
		os.Getenv("PGPASSWORD"),
		getEnv("PGDATABASE", "postgres"),
		getEnv("PGSSLMODE", "require"),
	)
}

// parseCredentials reads "user:pass,user2:pass2".
func parseCredentials(raw string) (map[string]string, error) {
	creds := make(map[string]string)
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		user, pass, ok := strings.Cut(entry, ":")
		if !ok || user == "" {
			return nil, fmt.Errorf("invalid AUTH_USERS entry %q", entry)
		}
		creds[user] = pass
	}
	return creds, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if v, err := strconv.Atoi(value); err == nil {
			return v
		}
		slog.Warn("Invalid integer in environment, using default", "key", key, "value", value)
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if v, err := strconv.ParseFloat(value, 64); err == nil {
			return v
		}
		slog.Warn("Invalid number in environment, using default", "key", key, "value", value)
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
