package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("SERVER_PORT", "")
	t.Setenv("MEDIA_UPLOADS_ENABLED", "")
	t.Setenv("QUESTION_CACHE_TTL_SECONDS", "")

	cfg := Load()
	if cfg.ServerPort != "8080" {
		t.Fatalf("expected default port 8080, got %q", cfg.ServerPort)
	}
	if cfg.MediaUploadsEnabled {
		t.Fatal("media uploads must be disabled by default")
	}
	if cfg.QuestionCacheTTL != 5*time.Minute {
		t.Fatalf("expected 5m cache ttl, got %s", cfg.QuestionCacheTTL)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("MEDIA_UPLOADS_ENABLED", "true")
	t.Setenv("RATE_LIMIT_PER_MINUTE", "5")
	t.Setenv("FOUNDER_ADMIN_EMAIL", "  Founder@Example.COM ")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, ,https://b.example")

	cfg := Load()
	if !cfg.MediaUploadsEnabled {
		t.Fatal("expected media uploads enabled")
	}
	if cfg.RateLimitPerMinute != 5 {
		t.Fatalf("expected rate limit 5, got %d", cfg.RateLimitPerMinute)
	}
	if cfg.FounderEmail != "founder@example.com" {
		t.Fatalf("founder email not normalized: %q", cfg.FounderEmail)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "https://b.example" {
		t.Fatalf("unexpected origins: %v", cfg.AllowedOrigins)
	}
}

func TestGetEnvIntFallsBackOnGarbage(t *testing.T) {
	t.Setenv("MAX_DB_CONNS", "lots")
	if got := getEnvInt("MAX_DB_CONNS", 16); got != 16 {
		t.Fatalf("expected fallback 16, got %d", got)
	}
}
