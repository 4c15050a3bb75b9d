package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("ENV", "")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("PRESCRIPTION_TEMPLATE_URLS", "")
	cfg := Load()
	if cfg.Port != "8080" {
		t.Fatalf("expected default port, got %s", cfg.Port)
	}
	if cfg.Env != "development" {
		t.Fatalf("expected default env, got %s", cfg.Env)
	}
	if cfg.ConnectionsTable != "email_connections" {
		t.Fatalf("expected default connections table, got %s", cfg.ConnectionsTable)
	}
	if len(cfg.TemplateURLs) != 0 {
		t.Fatalf("expected no template URLs by default, got %v", cfg.TemplateURLs)
	}
	if cfg.HTTPTimeout != 30*time.Second {
		t.Fatalf("expected default http timeout, got %s", cfg.HTTPTimeout)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("ENV", "production")
	t.Setenv("CONNECTIONS_TABLE", "conn_prod")
	t.Setenv("PRESCRIPTION_TEMPLATE_URLS", "https://cdn.example.com/pad.pdf, s3://templates/pad.pdf ,")
	t.Setenv("HTTP_TIMEOUT", "10s")
	t.Setenv("RATE_LIMIT_PER_MINUTE", "5")
	cfg := Load()
	if cfg.Port != "9090" {
		t.Fatalf("expected override port, got %s", cfg.Port)
	}
	if cfg.ConnectionsTable != "conn_prod" {
		t.Fatalf("expected table override, got %s", cfg.ConnectionsTable)
	}
	want := []string{"https://cdn.example.com/pad.pdf", "s3://templates/pad.pdf"}
	if len(cfg.TemplateURLs) != len(want) {
		t.Fatalf("expected %d template URLs, got %v", len(want), cfg.TemplateURLs)
	}
	for i := range want {
		if cfg.TemplateURLs[i] != want[i] {
			t.Fatalf("template URL %d: got %s want %s", i, cfg.TemplateURLs[i], want[i])
		}
	}
	if cfg.HTTPTimeout != 10*time.Second {
		t.Fatalf("expected timeout override, got %s", cfg.HTTPTimeout)
	}
	if cfg.RateLimitPerMinute != 5 {
		t.Fatalf("expected rate limit override, got %d", cfg.RateLimitPerMinute)
	}
}

func TestValidate(t *testing.T) {
	cfg := &Config{
		ConnectionsTable:      "email_connections",
		GoogleClientID:        "id",
		GoogleClientSecret:    "secret",
		MicrosoftClientID:     "id",
		MicrosoftClientSecret: "secret",
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}

	cfg.GoogleClientSecret = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing google client secret")
	}
}
