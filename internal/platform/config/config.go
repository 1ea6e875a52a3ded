package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultEnvFile           = ".env"
	defaultPort              = "8080"
	defaultReadTimeout       = 15 * time.Second
	defaultWriteTimeout      = 30 * time.Second
	defaultIdleTimeout       = 120 * time.Second
	defaultDBMaxOpenConns    = 25
	defaultDBMaxIdleConns    = 5
	defaultDBConnMaxLifetime = 30 * time.Minute
	defaultIdempotencyHeader = "Idempotency-Key"
	defaultIdempotencyTTL    = 24 * time.Hour
	defaultTokenLeeway       = 30 * time.Second
)

// Config captures all runtime configuration organised by concern.
type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	Auth        AuthConfig
	Idempotency IdempotencyConfig
}

// ServerConfig configures HTTP server parameters.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// DatabaseConfig stores PostgreSQL connection parameters.
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// AuthConfig groups bearer-token verification settings.
type AuthConfig struct {
	TokenSecret string
	TokenLeeway time.Duration
}

// IdempotencyConfig controls idempotency middleware behaviour.
type IdempotencyConfig struct {
	Header string
	TTL    time.Duration
}

// Load reads configuration from the environment, optionally seeded from a
// .env file when present (missing files are not an error).
func Load() (Config, error) {
	envFile := strings.TrimSpace(os.Getenv("ENV_FILE"))
	if envFile == "" {
		envFile = defaultEnvFile
	}
	if _, err := os.Stat(envFile); err == nil {
		if err := godotenv.Load(envFile); err != nil {
			return Config{}, fmt.Errorf("load env file %s: %w", envFile, err)
		}
	}

	cfg := Config{
		Server: ServerConfig{
			Port:         envOr("PORT", defaultPort),
			ReadTimeout:  envDurationOr("SERVER_READ_TIMEOUT", defaultReadTimeout),
			WriteTimeout: envDurationOr("SERVER_WRITE_TIMEOUT", defaultWriteTimeout),
			IdleTimeout:  envDurationOr("SERVER_IDLE_TIMEOUT", defaultIdleTimeout),
		},
		Database: DatabaseConfig{
			URL:             strings.TrimSpace(os.Getenv("DATABASE_URL")),
			MaxOpenConns:    envIntOr("DATABASE_MAX_OPEN_CONNS", defaultDBMaxOpenConns),
			MaxIdleConns:    envIntOr("DATABASE_MAX_IDLE_CONNS", defaultDBMaxIdleConns),
			ConnMaxLifetime: envDurationOr("DATABASE_CONN_MAX_LIFETIME", defaultDBConnMaxLifetime),
		},
		Auth: AuthConfig{
			TokenSecret: strings.TrimSpace(os.Getenv("AUTH_TOKEN_SECRET")),
			TokenLeeway: envDurationOr("AUTH_TOKEN_LEEWAY", defaultTokenLeeway),
		},
		Idempotency: IdempotencyConfig{
			Header: envOr("IDEMPOTENCY_HEADER", defaultIdempotencyHeader),
			TTL:    envDurationOr("IDEMPOTENCY_TTL", defaultIdempotencyTTL),
		},
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("config: DATABASE_URL is required")
	}
	if c.Auth.TokenSecret == "" {
		return fmt.Errorf("config: AUTH_TOKEN_SECRET is required")
	}
	return nil
}

func envOr(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func envIntOr(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	value, err := time.ParseDuration(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}
