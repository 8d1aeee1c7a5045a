package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("MTA_API_KEY", "secret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Feed.URL != DefaultAlertsURL {
		t.Errorf("expected default alerts url, got %s", cfg.Feed.URL)
	}
	if cfg.Feed.Timeout != 10*time.Second {
		t.Errorf("expected 10s feed timeout, got %s", cfg.Feed.Timeout)
	}
	if cfg.Ingest.PollInterval != 2*time.Minute {
		t.Errorf("expected 2m poll interval, got %s", cfg.Ingest.PollInterval)
	}
	if len(cfg.API.AllowedOrigins) != 2 {
		t.Errorf("expected 2 default origins, got %v", cfg.API.AllowedOrigins)
	}
}

func TestLoad_MissingAPIKey(t *testing.T) {
	t.Setenv("MTA_API_KEY", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected error when MTA_API_KEY is missing")
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"bad log level", "LOG_LEVEL", "verbose"},
		{"bad port", "SERVER_PORT", "70000"},
		{"short poll interval", "POLL_INTERVAL", "5s"},
		{"timeout longer than poll", "FEED_TIMEOUT", "45s"},
		{"bad url", "MTA_ALERTS_URL", "not a url"},
		{"zero rate limit", "RATE_LIMIT_RPS", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("MTA_API_KEY", "secret")
			t.Setenv("POLL_INTERVAL", "40s")
			t.Setenv(tt.key, tt.val)

			if _, err := Load(); err == nil {
				t.Errorf("expected error for %s=%q", tt.key, tt.val)
			}
		})
	}
}

func TestGetEnvList(t *testing.T) {
	t.Setenv("CORS_ORIGINS", " http://a.test , ,http://b.test")

	got := getEnvList("CORS_ORIGINS", nil)
	if len(got) != 2 || got[0] != "http://a.test" || got[1] != "http://b.test" {
		t.Errorf("unexpected origins: %v", got)
	}
}
