package config_test

import (
	"log/slog"
	"testing"
	"time"

	"github.com/ErlanBelekov/account-lifecycle/config"
)

func TestParse_Defaults(t *testing.T) {
	t.Setenv("MONGODB_URI", "mongodb://localhost:27017")

	cfg, err := config.Parse()
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.AuthTokenTTL != 75*time.Minute {
		t.Errorf("AuthTokenTTL = %v", cfg.AuthTokenTTL)
	}
	if cfg.LockBackend != "mongo" || cfg.SummarySink != "log" {
		t.Errorf("backend=%q sink=%q", cfg.LockBackend, cfg.SummarySink)
	}
	if cfg.SlogLevel() != slog.LevelInfo {
		t.Errorf("SlogLevel = %v", cfg.SlogLevel())
	}
}

func TestParse_MissingMongoURI(t *testing.T) {
	t.Setenv("MONGODB_URI", "")
	if _, err := config.Parse(); err == nil {
		t.Fatal("expected error without MONGODB_URI")
	}
}

func TestParse_BackendSpecificSettingsRequired(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"postgres lock without DATABASE_URL", map[string]string{"LOCK_BACKEND": "postgres"}},
		{"redis lock without REDIS_URI", map[string]string{"LOCK_BACKEND": "redis"}},
		{"sns sink without topic", map[string]string{"SUMMARY_SINK": "sns"}},
		{"email sink without key", map[string]string{"SUMMARY_SINK": "email", "RESEND_FROM": "a@b.com", "SUMMARY_EMAIL_TO": "ops@b.com"}},
		{"unknown backend", map[string]string{"LOCK_BACKEND": "zookeeper"}},
		{"short service token", map[string]string{"SERVICE_TOKEN": "letmein"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("MONGODB_URI", "mongodb://localhost:27017")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if _, err := config.Parse(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestSlogLevel(t *testing.T) {
	cfg := &config.Config{LogLevel: "debug"}
	if cfg.SlogLevel() != slog.LevelDebug {
		t.Errorf("got %v", cfg.SlogLevel())
	}
}
