package config

import (
	"testing"

	"github.com/spf13/viper"
)

func TestLoadConfigRequiresDatabaseURL(t *testing.T) {
	viper.Reset()
	t.Setenv("DATABASE_URL", "")

	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected an error when DATABASE_URL is unset")
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	viper.Reset()
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/billing")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}

	if cfg.Port != "8080" {
		t.Errorf("expected default port 8080, got %q", cfg.Port)
	}
	if cfg.DarajaBaseURL != "https://sandbox.safaricom.co.ke" {
		t.Errorf("unexpected default daraja base url %q", cfg.DarajaBaseURL)
	}
	if cfg.BillingJobSchedule != "0 6 * * *" {
		t.Errorf("unexpected default billing schedule %q", cfg.BillingJobSchedule)
	}
	if cfg.RetryJobSchedule != "0 7 * * *" {
		t.Errorf("unexpected default retry schedule %q", cfg.RetryJobSchedule)
	}
}

func TestLoadConfigReadsEnvironment(t *testing.T) {
	viper.Reset()
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/billing")
	t.Setenv("PORT", "9090")
	t.Setenv("JWT_SECRET", "super-secret")
	t.Setenv("DARAJA_SHORT_CODE", "174379")
	t.Setenv("BILLING_JOB_SCHEDULE", "*/15 * * * *")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}

	if cfg.Port != "9090" {
		t.Errorf("expected port 9090, got %q", cfg.Port)
	}
	if cfg.JWTSecret != "super-secret" {
		t.Errorf("expected jwt secret from env, got %q", cfg.JWTSecret)
	}
	if cfg.DarajaShortCode != "174379" {
		t.Errorf("expected short code from env, got %q", cfg.DarajaShortCode)
	}
	if cfg.BillingJobSchedule != "*/15 * * * *" {
		t.Errorf("expected billing schedule from env, got %q", cfg.BillingJobSchedule)
	}
}
