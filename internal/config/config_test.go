//go:build !integration

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return p
}

func TestLoadConfig(t *testing.T) {
	t.Run("should apply defaults", func(t *testing.T) {
		p := writeConfig(t, `
database: {url: "postgres://u:p@localhost/db"}
redis: {url: "localhost:6379"}
app: {public_base_url: "https://shop.example/"}
`)
		cfg, err := LoadConfig(p, false)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if cfg.App.PublicBaseURL != "https://shop.example" {
			t.Errorf("expected trailing slash trimmed, got %q", cfg.App.PublicBaseURL)
		}
		if cfg.Mpesa.CallbackURL != "https://shop.example/payments/mpesa/webhook" {
			t.Errorf("unexpected callback url %q", cfg.Mpesa.CallbackURL)
		}
		if cfg.Storage.SignTTL != 60*time.Second {
			t.Errorf("expected 60s sign ttl, got %v", cfg.Storage.SignTTL)
		}
		if cfg.Subscription.IntervalDays != 30 || cfg.Subscription.VIPPrice != "2000" {
			t.Errorf("unexpected subscription defaults: %+v", cfg.Subscription)
		}
		if cfg.Mpesa.Configured() {
			t.Error("mpesa must not be configured without credentials")
		}
	})

	t.Run("environment overrides secrets", func(t *testing.T) {
		p := writeConfig(t, `
database: {url: "postgres://file"}
redis: {url: "localhost:6379"}
app: {public_base_url: "https://shop.example"}
`)
		t.Setenv("DATABASE_URL", "postgres://env")
		t.Setenv("MPESA_CONSUMER_KEY", "ck")
		t.Setenv("MPESA_CONSUMER_SECRET", "cs")
		t.Setenv("MPESA_SHORTCODE", "174379")
		t.Setenv("MPESA_PASSKEY", "pk")

		cfg, err := LoadConfig(p, true)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if cfg.Database.URL != "postgres://env" {
			t.Errorf("expected env database url, got %q", cfg.Database.URL)
		}
		if !cfg.Mpesa.Configured() {
			t.Error("expected mpesa to be configured from env")
		}
		if !cfg.Runtime.Dev {
			t.Error("expected dev flag to be carried")
		}
	})

	t.Run("missing public base url is rejected", func(t *testing.T) {
		p := writeConfig(t, `
database: {url: "postgres://file"}
redis: {url: "localhost:6379"}
`)
		t.Setenv("PUBLIC_BASE_URL", "")
		if _, err := LoadConfig(p, false); err == nil {
			t.Fatal("expected an error, got nil")
		}
	})
}
