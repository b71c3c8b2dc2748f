package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store backends
const (
	BackendMemory    = "memory"
	BackendMongo     = "mongo"
	BackendFirestore = "firestore"
	BackendPostgres  = "postgres"
)

// Trigger sources
const (
	TriggerInProcess    = "inprocess"
	TriggerChangeStream = "changestream"
)

type Config struct {
	Port     string
	Env      string
	LogLevel string

	StoreBackend            string
	MongoURI                string
	MongoDatabase           string
	FirebaseCredentialsPath string
	FirebaseProjectID       string
	PostgresConnStr         string
	RedisURL                string

	TriggerSource       string
	TriggerWorkers      int
	TriggerTimeout      time.Duration
	CascadeMaxAttempts  int
	CascadeRetryBackoff time.Duration
}

// Load reads the configuration from the environment, after loading a .env
// file if one exists.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:                    getEnv("PORT", "8080"),
		Env:                     getEnv("ENV", "development"),
		LogLevel:                getEnv("LOG_LEVEL", "info"),
		StoreBackend:            getEnv("STORE_BACKEND", BackendMemory),
		MongoURI:                getEnv("MONGO_URI", ""),
		MongoDatabase:           getEnv("MONGO_DATABASE", "ideafeed"),
		FirebaseCredentialsPath: getEnv("FIREBASE_CREDENTIALS_PATH", ""),
		FirebaseProjectID:       getEnv("FIREBASE_PROJECT_ID", ""),
		PostgresConnStr:         getEnv("POSTGRES_CONN_STR", ""),
		RedisURL:                getEnv("REDIS_URL", ""),
		TriggerSource:           getEnv("TRIGGER_SOURCE", TriggerInProcess),
	}

	var err error
	if cfg.TriggerWorkers, err = getEnvInt("TRIGGER_WORKERS", 4); err != nil {
		return nil, err
	}
	if cfg.TriggerTimeout, err = getEnvDuration("TRIGGER_TIMEOUT", 0); err != nil {
		return nil, err
	}
	if cfg.CascadeMaxAttempts, err = getEnvInt("CASCADE_MAX_ATTEMPTS", 1); err != nil {
		return nil, err
	}
	if cfg.CascadeRetryBackoff, err = getEnvDuration("CASCADE_RETRY_BACKOFF", 500*time.Millisecond); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the selected backend has what it needs.
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case BackendMemory:
	case BackendMongo:
		if c.MongoURI == "" {
			return fmt.Errorf("MONGO_URI environment variable not set")
		}
	case BackendFirestore:
		if c.FirebaseCredentialsPath == "" && c.FirebaseProjectID == "" {
			return fmt.Errorf("FIREBASE_CREDENTIALS_PATH or FIREBASE_PROJECT_ID must be set")
		}
	case BackendPostgres:
		if c.PostgresConnStr == "" {
			return fmt.Errorf("POSTGRES_CONN_STR environment variable not set")
		}
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}

	switch c.TriggerSource {
	case TriggerInProcess:
	case TriggerChangeStream:
		if c.StoreBackend != BackendMongo {
			return fmt.Errorf("TRIGGER_SOURCE=%s requires STORE_BACKEND=%s", TriggerChangeStream, BackendMongo)
		}
	default:
		return fmt.Errorf("unknown TRIGGER_SOURCE %q", c.TriggerSource)
	}

	if c.TriggerWorkers < 1 {
		return fmt.Errorf("TRIGGER_WORKERS must be positive, got %d", c.TriggerWorkers)
	}
	return nil
}

// NewLogger builds the process logger: JSON in production, text otherwise.
func NewLogger(c *Config, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(c.LogLevel)}
	if c.Env == "production" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
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
