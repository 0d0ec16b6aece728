// Package config loads the service configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/castn/sourceswitch/internal/core/domain"
)

// Database drivers
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config holds every setting of the service
type Config struct {
	// Storage
	DatabaseDriver string `validate:"required,oneof=postgres sqlite"`
	DatabaseURL    string `validate:"required"` // Connection URL for postgres, file path for sqlite
	DBMaxOpenConns int    `validate:"min=1"`
	DBMaxIdleConns int    `validate:"min=0"`
	RedisURL       string // Optional; preferences stay in memory when empty

	// HTTP
	Host           string
	Port           int `validate:"min=1,max=65535"`
	AllowedOrigins []string
	UserAgent      string

	// Switch engine
	ProbeTimeout        time.Duration `validate:"gt=0"`
	SearchDeadline      time.Duration `validate:"gt=0,gtefield=ProbeTimeout"`
	ChapterFetchTimeout time.Duration `validate:"gt=0"`
	MaxConcurrentProbes int           `validate:"min=1"`
	SelectionBonus      int64         `validate:"gt=0,ne=450"`

	// Logging
	LogLevel  string `validate:"oneof=debug info warn error"`
	LogFormat string `validate:"oneof=text json"`
}

// Load reads the configuration from the environment. Values in envFiles
// (default ".env") are loaded first without overriding variables that are
// already set; a missing file is not an error.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, file := range envFiles {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", file, err)
		}
	}

	cfg := &Config{
		DatabaseDriver: strings.ToLower(getEnv("DATABASE_DRIVER", DriverSQLite)),
		DatabaseURL:    getEnv("DATABASE_URL", "data/sourceswitch.db"),
		DBMaxOpenConns: getEnvInt("DB_MAX_OPEN_CONNS", 25),
		DBMaxIdleConns: getEnvInt("DB_MAX_IDLE_CONNS", 5),
		RedisURL:       getEnv("REDIS_URL", ""),

		Host:           getEnv("HOST", "0.0.0.0"),
		Port:           getEnvInt("PORT", 8080),
		AllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		UserAgent:      getEnv("HTTP_USER_AGENT", ""),

		ProbeTimeout:        getEnvMillis("PROBE_TIMEOUT_MS", 10*time.Second),
		SearchDeadline:      getEnvMillis("SEARCH_DEADLINE_MS", 30*time.Second),
		ChapterFetchTimeout: getEnvMillis("CHAPTER_FETCH_TIMEOUT_MS", 30*time.Second),
		MaxConcurrentProbes: getEnvInt("MAX_CONCURRENT_PROBES", 16),
		SelectionBonus:      int64(getEnvInt("SELECTION_BONUS", int(domain.DefaultSelectionBonus))),

		LogLevel:  strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat: strings.ToLower(getEnv("LOG_FORMAT", "text")),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every field against its constraints
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// WeightModel builds the weight model from the configured selection bonus
func (c *Config) WeightModel() (domain.WeightModel, error) {
	return domain.NewWeightModel(c.SelectionBonus)
}

// NewLogger builds the process logger writing to w
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(c.LogLevel)}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if result, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return result
		}
	}
	return defaultValue
}

func getEnvMillis(key string, defaultValue time.Duration) time.Duration {
	return time.Duration(getEnvInt(key, int(defaultValue/time.Millisecond))) * time.Millisecond
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var result []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			result = append(result, item)
		}
	}
	return result
}
