package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ENV_FILE", "nonexistent.env")
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/teranga?sslmode=disable")
	t.Setenv("AUTH_TOKEN_SECRET", "test-secret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != "8080" {
		t.Fatalf("Server.Port = %q, want 8080", cfg.Server.Port)
	}
	if cfg.Database.MaxOpenConns != 25 {
		t.Fatalf("Database.MaxOpenConns = %d, want 25", cfg.Database.MaxOpenConns)
	}
	if cfg.Idempotency.Header != "Idempotency-Key" {
		t.Fatalf("Idempotency.Header = %q", cfg.Idempotency.Header)
	}
	if cfg.Idempotency.TTL != 24*time.Hour {
		t.Fatalf("Idempotency.TTL = %v", cfg.Idempotency.TTL)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("ENV_FILE", "nonexistent.env")
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/teranga?sslmode=disable")
	t.Setenv("AUTH_TOKEN_SECRET", "test-secret")
	t.Setenv("PORT", "9090")
	t.Setenv("SERVER_READ_TIMEOUT", "5s")
	t.Setenv("DATABASE_MAX_OPEN_CONNS", "50")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != "9090" {
		t.Fatalf("Server.Port = %q, want 9090", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 5*time.Second {
		t.Fatalf("Server.ReadTimeout = %v, want 5s", cfg.Server.ReadTimeout)
	}
	if cfg.Database.MaxOpenConns != 50 {
		t.Fatalf("Database.MaxOpenConns = %d, want 50", cfg.Database.MaxOpenConns)
	}
}

func TestLoadInvalidValuesFallBack(t *testing.T) {
	t.Setenv("ENV_FILE", "nonexistent.env")
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/teranga?sslmode=disable")
	t.Setenv("AUTH_TOKEN_SECRET", "test-secret")
	t.Setenv("DATABASE_MAX_IDLE_CONNS", "not-a-number")
	t.Setenv("AUTH_TOKEN_LEEWAY", "-5s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Database.MaxIdleConns != 5 {
		t.Fatalf("Database.MaxIdleConns = %d, want 5", cfg.Database.MaxIdleConns)
	}
	if cfg.Auth.TokenLeeway != 30*time.Second {
		t.Fatalf("Auth.TokenLeeway = %v, want 30s", cfg.Auth.TokenLeeway)
	}
}

func TestLoadMissingRequired(t *testing.T) {
	t.Setenv("ENV_FILE", "nonexistent.env")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("AUTH_TOKEN_SECRET", "test-secret")

	if _, err := Load(); err == nil {
		t.Fatal("Load() expected error for missing DATABASE_URL")
	}

	t.Setenv("DATABASE_URL", "postgres://localhost:5432/teranga?sslmode=disable")
	t.Setenv("AUTH_TOKEN_SECRET", "")

	if _, err := Load(); err == nil {
		t.Fatal("Load() expected error for missing AUTH_TOKEN_SECRET")
	}
}
