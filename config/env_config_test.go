package config

import (
	"testing"
	"time"
)

func TestLoadEnvConfigReviewDefaults(t *testing.T) {
	t.Setenv("REVIEW_JUDGMENT_MAX_ATTEMPTS", "")
	t.Setenv("REVIEW_JUDGMENT_RETRY_DELAY", "")
	t.Setenv("REVIEW_WRITE_BACK_TIMEOUT", "")

	cfg := LoadEnvConfig()

	if cfg.Review.JudgmentMaxAttempts != 30 {
		t.Errorf("JudgmentMaxAttempts = %d, want 30", cfg.Review.JudgmentMaxAttempts)
	}
	if cfg.Review.JudgmentRetryDelay != 30*time.Second {
		t.Errorf("JudgmentRetryDelay = %v, want 30s", cfg.Review.JudgmentRetryDelay)
	}
	if cfg.Review.JudgmentTimeout != 90*time.Second {
		t.Errorf("JudgmentTimeout = %v, want 90s", cfg.Review.JudgmentTimeout)
	}
	if cfg.Review.WriteBackTimeout != 15*time.Second {
		t.Errorf("WriteBackTimeout = %v, want 15s", cfg.Review.WriteBackTimeout)
	}
	if cfg.Review.CrawlPageLimit != 10 {
		t.Errorf("CrawlPageLimit = %d, want 10", cfg.Review.CrawlPageLimit)
	}
}

func TestDurationFromEnv(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  time.Duration
	}{
		{name: "go duration", value: "250ms", want: 250 * time.Millisecond},
		{name: "plain seconds", value: "12", want: 12 * time.Second},
		{name: "garbage falls back", value: "soon", want: time.Minute},
		{name: "empty falls back", value: "", want: time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_DURATION", tt.value)
			if got := durationFromEnv("TEST_DURATION", time.Minute); got != tt.want {
				t.Errorf("durationFromEnv() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGrafanaEndpointStripsScheme(t *testing.T) {
	t.Setenv("GRAFANA_OTLP_ENDPOINT", "https://otel.example.com")
	cfg := LoadEnvConfig()
	if cfg.Grafana.OTLPEndpoint != "otel.example.com" {
		t.Errorf("OTLPEndpoint = %q, want %q", cfg.Grafana.OTLPEndpoint, "otel.example.com")
	}
}
