package config

import (
	"errors"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(WithoutSystemEnv(), WithEnvFile(""))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Fatalf("expected default port 8080, got %q", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 15*time.Second {
		t.Fatalf("expected default read timeout, got %v", cfg.Server.ReadTimeout)
	}
	if cfg.Pricing.Currency != "USD" {
		t.Fatalf("expected default currency USD, got %q", cfg.Pricing.Currency)
	}
	if cfg.Storage.Backend != "memory" {
		t.Fatalf("expected default memory backend, got %q", cfg.Storage.Backend)
	}
	if cfg.Server.CheckoutRateLimit != 10 {
		t.Fatalf("expected default checkout rate limit 10, got %d", cfg.Server.CheckoutRateLimit)
	}
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	cfg, err := Load(WithoutSystemEnv(), WithEnvFile(""), WithEnvMap(map[string]string{
		"API_SERVER_PORT":                "9090",
		"API_PRICING_CURRENCY":           "jpy",
		"API_STORAGE_BACKEND":            "firestore",
		"API_FIRESTORE_PROJECT_ID":       "helpora-dev",
		"API_PUBSUB_BOOKING_TOPIC":       "booking-events",
		"API_SERVER_CHECKOUT_RATE_LIMIT": "25",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != "9090" {
		t.Fatalf("expected port 9090, got %q", cfg.Server.Port)
	}
	if cfg.Pricing.Currency != "JPY" {
		t.Fatalf("expected currency uppercased to JPY, got %q", cfg.Pricing.Currency)
	}
	if cfg.PubSub.ProjectID != "helpora-dev" {
		t.Fatalf("expected pubsub project defaulted from firestore, got %q", cfg.PubSub.ProjectID)
	}
	if cfg.Server.CheckoutRateLimit != 25 {
		t.Fatalf("expected checkout rate limit 25, got %d", cfg.Server.CheckoutRateLimit)
	}
}

func TestLoadFirestoreBackendRequiresProject(t *testing.T) {
	_, err := Load(WithoutSystemEnv(), WithEnvFile(""), WithEnvMap(map[string]string{
		"API_STORAGE_BACKEND": "firestore",
	}))

	var validation *ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if len(validation.Fields()) == 0 {
		t.Fatalf("expected missing fields reported")
	}
}

func TestLoadRejectsUnknownBackend(t *testing.T) {
	_, err := Load(WithoutSystemEnv(), WithEnvFile(""), WithEnvMap(map[string]string{
		"API_STORAGE_BACKEND": "mysql",
	}))

	var validation *ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}
