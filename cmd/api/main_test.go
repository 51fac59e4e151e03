package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/inkpost/inkpost/internal/config"
	"github.com/inkpost/inkpost/internal/metrics"
	"github.com/inkpost/inkpost/internal/repository"
)

func TestRedactURL(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"", ""},
		{"postgres://inkpost:s3cret@db:5432/inkpost?sslmode=disable", "postgres://inkpost@db:5432/inkpost?sslmode=disable"},
		{"redis://:s3cret@cache:6379/0", "redis://redacted@cache:6379/0"},
		{"postgres://db/inkpost?password=s3cret", "postgres://db/inkpost?password=redacted"},
		{"sqlite://inkpost.db", "sqlite://inkpost.db"},
	}

	for _, tt := range tests {
		if got := redactURL(tt.raw); got != tt.want {
			t.Errorf("redactURL(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}

func TestSanitizeError(t *testing.T) {
	dsn := "postgres://inkpost:s3cret@db:5432/inkpost"
	err := errors.New("cannot parse `" + dsn + "`: failed; password=hunter2 host=db")

	got := sanitizeError(err, dsn)
	if strings.Contains(got, "s3cret") || strings.Contains(got, "hunter2") {
		t.Errorf("secret leaked: %s", got)
	}
	if !strings.Contains(got, "postgres://inkpost@db:5432/inkpost") {
		t.Errorf("expected redacted URL in %s", got)
	}
	if sanitizeError(nil) != "" {
		t.Error("nil error should sanitize to empty string")
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"error":   slog.LevelError,
		"verbose": slog.LevelInfo,
	}
	for raw, want := range tests {
		if got := parseLogLevel(raw); got != want {
			t.Errorf("parseLogLevel(%q) = %v, want %v", raw, got, want)
		}
	}
}

func TestBuildProviders(t *testing.T) {
	gateway, err := repository.Open(context.Background(), "sqlite::memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(gateway.Close)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	cfg := &config.Config{}
	if got := buildProviders(cfg, gateway, nil, metrics.NewNoop(), logger); len(got) != 1 {
		t.Errorf("expected API key provider only, got %d providers", len(got))
	}

	cfg.TrustedIdentityHeaders = true
	if got := buildProviders(cfg, gateway, nil, metrics.NewNoop(), logger); len(got) != 2 {
		t.Errorf("expected API key and header providers, got %d providers", len(got))
	}
}

func TestRateLimitConfig_DisabledWithoutCache(t *testing.T) {
	cfg := &config.Config{RateLimitEnabled: true, RateLimitRPS: 10, RateLimitBurst: 30}

	rlCfg := rateLimitConfig(cfg, nil, slog.Default())
	if rlCfg.Enabled {
		t.Error("rate limiting requires Redis")
	}
	if rlCfg.Limiter != nil {
		t.Error("limiter must be a nil interface without Redis")
	}
}

func TestCORSConfig(t *testing.T) {
	cfg := &config.Config{CORSAllowedOrigins: "https://app.example.com, *.example.org"}

	corsCfg := corsConfig(cfg)
	if len(corsCfg.AllowedOrigins) != 2 {
		t.Fatalf("AllowedOrigins = %v", corsCfg.AllowedOrigins)
	}
	if len(corsCfg.AllowedMethods) == 0 {
		t.Error("expected default methods to be kept")
	}
}
